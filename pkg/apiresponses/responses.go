/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package apiresponses

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// APIError represents a standardized error response.
// Details is a list of reasons for validation failures, or the internal
// error message in development mode.
type APIError struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// Success is the body of an accepted submission.
type Success struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// RespondSuccess sends a 200 OK with {success: true, message}.
func RespondSuccess(c *gin.Context, message string) {
	c.JSON(http.StatusOK, Success{Success: true, Message: message})
}

// RespondBadRequest sends a 400 Bad Request response.
// Use this for client errors like malformed JSON.
func RespondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, APIError{
		Error: message,
		Code:  "BAD_REQUEST",
	})
}

// RespondValidationFailed sends a 400 listing every failed rule.
func RespondValidationFailed(c *gin.Context, details []string) {
	c.JSON(http.StatusBadRequest, APIError{
		Error:   "Validation failed",
		Code:    "VALIDATION_FAILED",
		Details: details,
	})
}

// RespondTooManyRequests sends a 429. Rate limit headers are set by the caller.
func RespondTooManyRequests(c *gin.Context, message string) {
	c.JSON(http.StatusTooManyRequests, APIError{
		Error: message,
		Code:  "TOO_MANY_REQUESTS",
	})
}

// RespondNotFoundSimple sends a 404 Not Found response with a simple message.
func RespondNotFoundSimple(c *gin.Context, message string) {
	c.JSON(http.StatusNotFound, APIError{
		Error: message,
		Code:  "NOT_FOUND",
	})
}

// RespondInternalError sends a 500 with a client-safe message. The internal
// error text is only included when exposeDetails is set (development mode).
// Logging is left to the caller.
func RespondInternalError(c *gin.Context, message string, err error, exposeDetails bool) {
	body := APIError{
		Error: message,
		Code:  "INTERNAL_ERROR",
	}
	if exposeDetails && err != nil {
		body.Details = err.Error()
	}
	c.JSON(http.StatusInternalServerError, body)
}

// RespondOK sends a 200 OK response with the given data.
func RespondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}
