package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"twod-ledger-backend/internal/models"
	"twod-ledger-backend/internal/services"
)

type AdminHandler struct {
	engine *services.Engine
	log    *zap.Logger
}

func NewAdminHandler(engine *services.Engine, log *zap.Logger) *AdminHandler {
	return &AdminHandler{
		engine: engine,
		log:    log,
	}
}

func (h *AdminHandler) Settle(c *gin.Context) {
	var req models.SettleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	session := h.engine.Market.Now().SettlementSession()
	if req.Session != "" {
		var err error
		if session, err = models.ParseSession(string(req.Session)); err != nil {
			badRequest(c, err)
			return
		}
	}

	h.log.Info("settlement requested",
		zap.String("admin", currentHandle(c)),
		zap.String("session", string(session)),
		zap.String("winning_number", req.WinningNumber),
	)

	report, err := h.engine.Settlement.Settle(c.Request.Context(), req.WinningNumber, session, req.PayoutMultiplier)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	// failed records stay pending; the admin reruns to settle them
	status := http.StatusOK
	if len(report.Failures) > 0 {
		status = http.StatusMultiStatus
	}
	c.JSON(status, gin.H{
		"report":     report,
		"total_paid": report.TotalPaid(),
	})
}

func (h *AdminHandler) MutateBlockList(c *gin.Context) {
	var req models.BlockListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.engine.Blocks.Mutate(c.Request.Context(), req.Op, req.Value); err != nil {
		if errors.Is(err, services.ErrUnknownBlockOp) {
			badRequest(c, err)
			return
		}
		respondError(c, h.log, err)
		return
	}

	numbers, err := h.engine.Blocks.List(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"blocked": numbers})
}
