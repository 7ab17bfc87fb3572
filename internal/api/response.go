package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/roach88/courseswap/internal/engine"
	"github.com/roach88/courseswap/internal/ir"
)

// Response is the JSON envelope for every endpoint.
type Response struct {
	Status string     `json:"status"` // "ok" or "error"
	Data   any        `json:"data,omitempty"`
	Error  *ErrorBody `json:"error,omitempty"`
}

// ErrorBody describes a failed request. Code is an ir.ErrorKind for domain
// rejections, or one of the Code* constants.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Host-level error codes.
const (
	CodeBadRequest      = "BadRequest"
	CodeUnauthenticated = "Unauthenticated"
	CodeUnavailable     = "Unavailable"
	CodeInternal        = "Internal"
)

// kindStatus maps domain rejections to HTTP status codes.
var kindStatus = map[ir.ErrorKind]int{
	ir.KindInsufficientPermissions:  http.StatusForbidden,
	ir.KindNonexistentCourse:        http.StatusNotFound,
	ir.KindCourseCapacityFull:       http.StatusConflict,
	ir.KindAlreadyRegistered:        http.StatusConflict,
	ir.KindNoRegistrations:          http.StatusNotFound,
	ir.KindCourseAlreadyStarted:     http.StatusConflict,
	ir.KindNoSwappableRegistrations: http.StatusConflict,
	ir.KindNoProposedSwap:           http.StatusNotFound,
	ir.KindInvariantViolation:       http.StatusInternalServerError,
}

// StatusFor returns the HTTP status for err.
func StatusFor(err error) int {
	if status, ok := kindStatus[ir.KindOf(err)]; ok {
		return status
	}
	if errors.Is(err, engine.ErrStopped) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func respond(c *gin.Context, status int, data any) {
	c.JSON(status, Response{Status: "ok", Data: data})
}

func fail(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, Response{
		Status: "error",
		Error:  &ErrorBody{Code: code, Message: message},
	})
}

// handleError writes the error response for a failed command.
// Storage failures and invariant violations are not described to clients.
func handleError(c *gin.Context, err error) {
	status := StatusFor(err)
	kind := ir.KindOf(err)
	switch {
	case kind != "" && kind != ir.KindInvariantViolation:
		fail(c, status, string(kind), err.Error())
	case status == http.StatusServiceUnavailable:
		fail(c, status, CodeUnavailable, "server is shutting down")
	default:
		_ = c.Error(err)
		fail(c, status, CodeInternal, "internal server error")
	}
}
