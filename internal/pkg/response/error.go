package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nekogravitycat/campus-borrow-backend/internal/pkg/apperror"
)

// ErrorResponse defines the JSON structure for error responses.
type ErrorResponse struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

// Error sends a JSON error response.
// AppErrors carry their own status code and message. Anything else is an internal
// failure: the cause is logged server-side and the client only sees a generic message.
func Error(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		if appErr.Code >= http.StatusInternalServerError {
			zap.L().Error("request failed",
				zap.String("method", c.Request.Method),
				zap.String("path", c.FullPath()),
				zap.Error(err),
			)
		}
		c.JSON(appErr.Code, ErrorResponse{Message: appErr.Message, Errors: appErr.Fields})
		return
	}

	zap.L().Error("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "internal server error"})
}

// Message sends a plain {"message": ...} body with the given status.
func Message(c *gin.Context, code int, message string) {
	c.JSON(code, ErrorResponse{Message: message})
}
