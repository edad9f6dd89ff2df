// Package submission holds the contact and newsletter payloads together
// with their validation rules and sanitization.
package submission
