package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Счётчики жизненного цикла сделок.
var (
	TransactionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "escrow_transactions_created_total",
		Help: "Количество созданных сделок",
	})

	PaymentsConfirmed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "escrow_payments_confirmed_total",
		Help: "Количество подтверждённых оплат",
	})

	FundsReleased = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "escrow_funds_released_total",
		Help: "Количество освобождений средств (scope: transaction|milestone)",
	}, []string{"scope"})

	FundsRefunded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "escrow_funds_refunded_total",
		Help: "Количество возвратов средств (scope: transaction|milestone)",
	}, []string{"scope"})

	DisputesRaised = promauto.NewCounter(prometheus.CounterOpts{
		Name: "escrow_disputes_raised_total",
		Help: "Количество открытых споров",
	})

	DisputesResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "escrow_disputes_resolved_total",
		Help: "Количество разрешённых споров по типу решения",
	}, []string{"resolution_type"})

	ReleasedAmount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "escrow_released_amount_total",
		Help: "Суммарный объём освобождённых средств",
	})

	RefundedAmount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "escrow_refunded_amount_total",
		Help: "Суммарный объём возвращённых средств",
	})
)
