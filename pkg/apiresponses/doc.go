// Package apiresponses provides the JSON envelopes every endpoint answers
// with, shared between the api controllers and the server middleware.
package apiresponses
