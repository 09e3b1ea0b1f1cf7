package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/worldchanger/management-systems/internal/kanban"
	"github.com/worldchanger/management-systems/internal/storage"
)

// statusFor maps store and service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, kanban.ErrInvalidInput), errors.Is(err, storage.ErrConstraint):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	detail := err.Error()
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		detail = "internal server error"
	} else {
		detail = trimSentinel(detail)
	}
	c.AbortWithStatusJSON(status, errorResponse{Detail: detail})
}

func (s *Server) notFound(c *gin.Context, what string, id int64) {
	c.AbortWithStatusJSON(http.StatusNotFound, errorResponse{Detail: what + " " + formatID(id) + " not found"})
}

func badRequest(c *gin.Context, detail string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Detail: detail})
}

// trimSentinel drops the package prefix of the wrapped sentinel so clients
// see "content must be ..." rather than "kanban: invalid input: content ...".
func trimSentinel(msg string) string {
	for _, prefix := range []string{kanban.ErrInvalidInput.Error() + ": ", storage.ErrConstraint.Error() + ": "} {
		if rest, ok := strings.CutPrefix(msg, prefix); ok {
			return rest
		}
	}
	return msg
}
