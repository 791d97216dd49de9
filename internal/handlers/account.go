package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"twod-ledger-backend/internal/models"
	"twod-ledger-backend/internal/services"
)

type AccountHandler struct {
	accounts *services.AccountService
	log      *zap.Logger
}

func NewAccountHandler(accounts *services.AccountService, log *zap.Logger) *AccountHandler {
	return &AccountHandler{
		accounts: accounts,
		log:      log,
	}
}

func (h *AccountHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	acct, err := h.accounts.Register(c.Request.Context(), req.Handle)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"account": acct})
}

func (h *AccountHandler) GetCurrentUser(c *gin.Context) {
	acct, err := h.accounts.Get(c.Request.Context(), currentHandle(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"account":           acct,
		"balance_formatted": models.FormatAmount(acct.Balance),
	})
}

func (h *AccountHandler) GetBalance(c *gin.Context) {
	acct, err := h.accounts.Get(c.Request.Context(), currentHandle(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, models.BalanceResponse{
		Handle:  acct.Handle,
		Balance: acct.Balance,
	})
}

func (h *AccountHandler) GetTransactions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	txs, err := h.accounts.Transactions(c.Request.Context(), currentHandle(c), limit)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

func (h *AccountHandler) GetWagers(c *gin.Context) {
	wagers, err := h.accounts.Wagers(c.Request.Context(), currentHandle(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"wagers": wagers})
}

func (h *AccountHandler) CleanupSettled(c *gin.Context) {
	removed, err := h.accounts.CleanupSettled(c.Request.Context(), currentHandle(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

func (h *AccountHandler) TopUp(c *gin.Context) {
	var req models.TopUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	acct, err := h.accounts.TopUp(c.Request.Context(), req.Handle, req.Amount, "admin:"+currentHandle(c), c.GetHeader("Idempotency-Key"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, models.BalanceResponse{
		Handle:  acct.Handle,
		Balance: acct.Balance,
	})
}
