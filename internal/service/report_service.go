package service

import (
	"context"
	"time"

	"github.com/safedeal/escrow-backend/internal/models"
	"github.com/safedeal/escrow-backend/internal/repository"
)

// ReportRepo описывает агрегирующие запросы по сделкам.
type ReportRepo interface {
	CountsByStatus(ctx context.Context) (map[string]repository.StatusAggregate, error)
	CountsByMonth(ctx context.Context) ([]repository.MonthAggregate, error)
	SumAmountByStatuses(ctx context.Context, statuses []models.TransactionStatus) (float64, error)
	SumAmountByStatusesSince(ctx context.Context, statuses []models.TransactionStatus, since time.Time) (float64, error)
}

// CommissionFn считает комиссию площадки от суммы оборота.
type CommissionFn func(amount float64) float64

// ReportService строит административные отчёты.
type ReportService struct {
	repo       ReportRepo
	commission CommissionFn
}

// NewReportService создаёт сервис отчётов.
func NewReportService(repo ReportRepo, commission CommissionFn) *ReportService {
	return &ReportService{
		repo:       repo,
		commission: commission,
	}
}

// TransactionsReport — сводка по сделкам.
type TransactionsReport struct {
	ByStatus map[string]repository.StatusAggregate `json:"by_status"`
	ByMonth  []repository.MonthAggregate           `json:"by_month"`
}

// Transactions строит сводку по статусам и месяцам.
func (s *ReportService) Transactions(ctx context.Context) (*TransactionsReport, error) {
	byStatus, err := s.repo.CountsByStatus(ctx)
	if err != nil {
		return nil, err
	}

	byMonth, err := s.repo.CountsByMonth(ctx)
	if err != nil {
		return nil, err
	}

	return &TransactionsReport{
		ByStatus: byStatus,
		ByMonth:  byMonth,
	}, nil
}

// EarningsReport — доход площадки от комиссии.
type EarningsReport struct {
	Turnover       float64 `json:"turnover"`
	Commission     float64 `json:"commission"`
	TurnoverPeriod float64 `json:"turnover_period"`
	Period         string  `json:"period,omitempty"`
}

// Статусы, по которым комиссия считается заработанной: средства выплачены.
var earningStatuses = []models.TransactionStatus{
	models.TransactionStatusCompleted,
	models.TransactionStatusPartiallyCompleted,
}

// Earnings считает оборот и комиссию; since опционально ограничивает период.
func (s *ReportService) Earnings(ctx context.Context, since *time.Time) (*EarningsReport, error) {
	turnover, err := s.repo.SumAmountByStatuses(ctx, earningStatuses)
	if err != nil {
		return nil, err
	}

	report := &EarningsReport{
		Turnover:   turnover,
		Commission: s.commission(turnover),
	}

	if since != nil {
		periodTurnover, err := s.repo.SumAmountByStatusesSince(ctx, earningStatuses, *since)
		if err != nil {
			return nil, err
		}
		report.TurnoverPeriod = periodTurnover
		report.Period = since.Format("2006-01-02")
	}

	return report, nil
}
