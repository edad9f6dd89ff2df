// Package api implements the HTTP surface of the contact API (Gin-based):
// the contact and newsletter submission endpoints, health and root info,
// Prometheus metrics, CORS, request logging and panic recovery.
package api
