package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"twod-ledger-backend/internal/models"
	"twod-ledger-backend/internal/services"
)

type WagerHandler struct {
	engine *services.Engine
	log    *zap.Logger
}

func NewWagerHandler(engine *services.Engine, log *zap.Logger) *WagerHandler {
	return &WagerHandler{
		engine: engine,
		log:    log,
	}
}

func (h *WagerHandler) PlaceWager(c *gin.Context) {
	var req models.WagerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.Owner = currentHandle(c)
	if key := c.GetHeader("Idempotency-Key"); key != "" && req.IdempotencyKey == "" {
		req.IdempotencyKey = key
	}

	receipt, err := h.engine.Wagers.PlaceWager(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	status := http.StatusCreated
	if receipt.Replayed {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{
		"success":         true,
		"receipt":         receipt,
		"total_formatted": models.FormatAmount(receipt.Total),
	})
}

func (h *WagerHandler) GetMarket(c *gin.Context) {
	st := h.engine.Market.Now()
	c.JSON(http.StatusOK, gin.H{
		"date":           st.Date,
		"time":           st.Time,
		"weekday":        st.Weekday,
		"minutes_of_day": st.MinutesOfDay,
		"phase":          st.Phase,
		"open":           st.Open(),
		"session":        st.Session,
	})
}

func (h *WagerHandler) GetBlockList(c *gin.Context) {
	numbers, err := h.engine.Blocks.List(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"blocked": numbers})
}
