package service

import (
	"context"
	"fmt"

	"retailpos/internal/model"
	"retailpos/internal/repository"

	"github.com/google/uuid"
)

// LedgerService exposes the read side of the stock history: the append-only
// inventory transaction ledger and the audit trail.
type LedgerService interface {
	ListTransactions(ctx context.Context, page, limit int, productID *uuid.UUID, txType string) ([]model.InventoryTransaction, int64, error)
	ListAuditLogs(ctx context.Context, page, limit int, action string) ([]model.AuditLog, int64, error)
	GetWallet(ctx context.Context, customerID uuid.UUID) (*model.Wallet, error)
	GetSalesStatistics(ctx context.Context, groupBy, startDate, endDate string) ([]repository.SalesDataRow, error)
}

type ledgerService struct {
	invTxRepo  repository.InventoryTxRepository
	auditRepo  repository.AuditRepository
	walletRepo repository.WalletRepository
	statsRepo  repository.StatsRepository
}

func NewLedgerService(
	invTxRepo repository.InventoryTxRepository,
	auditRepo repository.AuditRepository,
	walletRepo repository.WalletRepository,
	statsRepo repository.StatsRepository,
) LedgerService {
	return &ledgerService{
		invTxRepo:  invTxRepo,
		auditRepo:  auditRepo,
		walletRepo: walletRepo,
		statsRepo:  statsRepo,
	}
}

func (s *ledgerService) ListTransactions(ctx context.Context, page, limit int, productID *uuid.UUID, txType string) ([]model.InventoryTransaction, int64, error) {
	return s.invTxRepo.List(ctx, page, limit, productID, txType)
}

func (s *ledgerService) ListAuditLogs(ctx context.Context, page, limit int, action string) ([]model.AuditLog, int64, error) {
	return s.auditRepo.List(ctx, page, limit, action)
}

func (s *ledgerService) GetWallet(ctx context.Context, customerID uuid.UUID) (*model.Wallet, error) {
	return s.walletRepo.FindByCustomer(ctx, customerID)
}

func (s *ledgerService) GetSalesStatistics(ctx context.Context, groupBy, startDate, endDate string) ([]repository.SalesDataRow, error) {
	switch groupBy {
	case "day", "week", "month":
	default:
		return nil, fmt.Errorf("%w: group_by must be day, week or month", ErrValidation)
	}
	return s.statsRepo.GetSalesStatistics(ctx, groupBy, startDate, endDate)
}
