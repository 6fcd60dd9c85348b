// Package response writes the JSON envelope the dashboard expects:
// {code, message, data} with code "200" on success. The code mirrors the
// HTTP status as a string so clients can gate on a single field.
package response

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Envelope is the uniform response body.
type Envelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

const codeOK = "200"

// OK sends a 200 envelope.
func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Envelope{Code: codeOK, Message: "success", Data: data})
}

// Created sends a 201 with the success code (the dashboard only checks code).
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Envelope{Code: codeOK, Message: "created", Data: data})
}

// NoContent sends a 200 envelope without data. A bare 204 would break the
// client's envelope parsing, so deletes answer with a body as well.
func NoContent(c *gin.Context) {
	c.JSON(http.StatusOK, Envelope{Code: codeOK, Message: "success"})
}

// Error aborts with the given status and a matching envelope code.
func Error(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, Envelope{Code: strconv.Itoa(status), Message: message})
}

// BadRequest sends a 400 error response.
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

// Unauthorized sends a 401 error response. The dashboard drops its token
// and routes to the login screen on this status.
func Unauthorized(c *gin.Context) {
	Error(c, http.StatusUnauthorized, "authentication required")
}

// Forbidden sends a 403 error response.
func Forbidden(c *gin.Context, message string) {
	Error(c, http.StatusForbidden, message)
}

// NotFound sends a 404 error response.
func NotFound(c *gin.Context, message string) {
	if message == "" {
		message = "not found"
	}
	Error(c, http.StatusNotFound, message)
}

// MethodNotAllowed sends a 405 error response.
func MethodNotAllowed(c *gin.Context) {
	Error(c, http.StatusMethodNotAllowed, "method not allowed")
}

// Conflict sends a 409 error response.
func Conflict(c *gin.Context, message string) {
	Error(c, http.StatusConflict, message)
}

// UnprocessableEntity sends a 422 error response.
func UnprocessableEntity(c *gin.Context, message string) {
	Error(c, http.StatusUnprocessableEntity, message)
}

// TooManyRequests sends a 429 error response.
func TooManyRequests(c *gin.Context, message string) {
	c.Header("Retry-After", "1")
	Error(c, http.StatusTooManyRequests, message)
}

// InternalError sends a 500 error response.
func InternalError(c *gin.Context, err error) {
	Error(c, http.StatusInternalServerError, err.Error())
}
