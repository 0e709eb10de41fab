// Package httpapi defines the wire-level error envelope shared by both modes.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Machine-readable body codes from the response contract.
const (
	CodeNotFound             = "not_found"
	CodeMethodNotAllowed     = "method_not_allowed"
	CodeNotAuthenticated     = "not_authenticated"
	CodeMisconfigured        = "misconfigured"
	CodeLoopDetected         = "loop_detected"
	CodeUnsupportedMediaType = "unsupported_media_type"
	CodePayloadTooLarge      = "payload_too_large"
	CodeBadRequest           = "bad_request"
	CodeValidationError      = "validation_error"
)

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func Error(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorBody{Code: code, Message: message})
}

func NotFound(c *gin.Context) {
	Error(c, http.StatusNotFound, CodeNotFound, "not found")
}

func MethodNotAllowed(c *gin.Context) {
	Error(c, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "method not allowed")
}

func NotAuthenticated(c *gin.Context) {
	Error(c, http.StatusUnauthorized, CodeNotAuthenticated, "unauthorized")
}

func Misconfigured(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, CodeMisconfigured, message)
}
