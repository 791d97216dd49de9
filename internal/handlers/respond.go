package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"twod-ledger-backend/internal/services"
)

func statusFor(code services.RejectCode) int {
	switch code {
	case services.CodeSlowDown:
		return http.StatusTooManyRequests
	case services.CodeMarketClosed, services.CodeNumberBlocked, services.CodeInsufficientBalance:
		return http.StatusUnprocessableEntity
	case services.CodeConflict, services.CodeAccountExists:
		return http.StatusConflict
	case services.CodeAccountNotFound:
		return http.StatusNotFound
	}
	return http.StatusBadRequest
}

// respondError writes a rejection with its machine-readable code. Anything
// that is not a rejection is a store failure with unknown outcome.
func respondError(c *gin.Context, log *zap.Logger, err error) {
	var re *services.RejectError
	if errors.As(err, &re) {
		body := gin.H{"error": re.Code, "details": re.Error()}
		if re.Number != "" {
			body["number"] = re.Number
		}
		c.JSON(statusFor(re.Code), body)
		return
	}

	if errors.Is(err, context.Canceled) {
		c.Status(499)
		return
	}

	log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusServiceUnavailable, gin.H{
		"error":   "STORE_UNAVAILABLE",
		"details": "outcome unknown, retry with the same idempotency key",
	})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   services.CodeInvalidRequest,
		"details": err.Error(),
	})
}

func currentHandle(c *gin.Context) string {
	return c.GetString("handle")
}
