package handlers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/drivopay/payments/internal/service"
	"github.com/drivopay/payments/internal/telemetry"
)

func invalidBody(err error) *service.Error {
	return &service.Error{Kind: service.KindInvalidRequest, Message: "Invalid request body", Err: err}
}

// respondError writes {success:false, error, errorKind} with the status of
// the error's kind.
func respondError(c *gin.Context, err error) {
	svcErr := service.AsError(err)
	status := svcErr.HTTPStatus()
	if status >= 500 {
		telemetry.Logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.String("error_kind", string(svcErr.Kind)),
			zap.Error(err),
		)
	}
	c.JSON(status, gin.H{
		"success":   false,
		"error":     svcErr.Message,
		"errorKind": svcErr.Kind,
	})
}
