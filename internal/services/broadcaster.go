package services

import "twod-ledger-backend/internal/models"

// Notifier pushes ledger changes to connected clients.
type Notifier interface {
	NotifyBalance(owner string, balance int64)
	NotifySettlement(report *models.SettlementReport)
}

type NopNotifier struct{}

func (NopNotifier) NotifyBalance(string, int64) {}

func (NopNotifier) NotifySettlement(*models.SettlementReport) {}
