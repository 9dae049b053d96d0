package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	coreconversation "github.com/example/inbox/internal/core/conversation"
	"github.com/example/inbox/internal/logger"
)

// statusFor maps an error kind to an HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, coreconversation.ErrInvalidInput):
		return http.StatusBadRequest, "INVALID_INPUT"
	case errors.Is(err, coreconversation.ErrUnauthorized):
		return http.StatusForbidden, "NOT_A_PARTICIPANT"
	case errors.Is(err, coreconversation.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, coreconversation.ErrConflict):
		return http.StatusConflict, "WRITE_CONFLICT"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "CANCELED"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

// writeError responds with the status for err. Internal errors are logged
// and their text is not returned to the client.
func writeError(c *gin.Context, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.Log.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString(logger.RequestIDKey)),
			zap.Error(err))
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: msg, Code: code})
}

// writeBindError reports a malformed body or query. Validation failures are
// reported per field.
func writeBindError(c *gin.Context, err error) {
	resp := ErrorResponse{Error: "invalid request", Code: "INVALID_REQUEST"}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		resp.Fields = make(map[string]string, len(verrs))
		for _, fe := range verrs {
			rule := fe.Tag()
			if fe.Param() != "" {
				rule += "=" + fe.Param()
			}
			resp.Fields[strings.ToLower(fe.Field())] = rule
		}
	}

	c.AbortWithStatusJSON(http.StatusBadRequest, resp)
}
