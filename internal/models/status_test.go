package models

import "testing"

func TestEscrowStatusForwardOnly(t *testing.T) {
	// Деньги двигаются только вперёд: из funded нельзя вернуться к ожиданию оплаты.
	backward := []struct {
		from EscrowStatus
		to   EscrowStatus
	}{
		{EscrowStatusFunded, EscrowStatusAwaitingPayment},
		{EscrowStatusReleased, EscrowStatusFunded},
		{EscrowStatusRefunded, EscrowStatusFunded},
		{EscrowStatusPartiallyReleased, EscrowStatusAwaitingPayment},
		{EscrowStatusReleased, EscrowStatusRefunded},
		{EscrowStatusRefunded, EscrowStatusReleased},
	}
	for _, tc := range backward {
		if tc.from.CanTransitionTo(tc.to) {
			t.Errorf("переход %s -> %s не должен быть разрешён", tc.from, tc.to)
		}
	}

	forward := []struct {
		from EscrowStatus
		to   EscrowStatus
	}{
		{EscrowStatusAwaitingPayment, EscrowStatusFunded},
		{EscrowStatusFunded, EscrowStatusReleased},
		{EscrowStatusFunded, EscrowStatusRefunded},
		{EscrowStatusFunded, EscrowStatusPartiallyReleased},
		{EscrowStatusPartiallyReleased, EscrowStatusReleased},
		{EscrowStatusDisputeResolution, EscrowStatusRefunded},
	}
	for _, tc := range forward {
		if !tc.from.CanTransitionTo(tc.to) {
			t.Errorf("переход %s -> %s должен быть разрешён", tc.from, tc.to)
		}
	}
}

func TestEscrowStatusTerminal(t *testing.T) {
	terminal := []EscrowStatus{EscrowStatusReleased, EscrowStatusRefunded, EscrowStatusCancelled}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("статус %s должен быть терминальным", s)
		}
	}

	active := []EscrowStatus{EscrowStatusAwaitingPayment, EscrowStatusAwaitingFunding, EscrowStatusFunded, EscrowStatusPartiallyReleased, EscrowStatusDisputeResolution}
	for _, s := range active {
		if s.Terminal() {
			t.Errorf("статус %s не должен быть терминальным", s)
		}
	}
}

func TestTransactionStatusTerminal(t *testing.T) {
	if !TransactionStatusCompleted.Terminal() {
		t.Error("completed должен быть терминальным")
	}
	if !TransactionStatusRefunded.Terminal() {
		t.Error("refunded должен быть терминальным")
	}
	if TransactionStatusDisputed.Terminal() {
		t.Error("disputed не должен быть терминальным")
	}
	if TransactionStatusCompleted.CanTransitionTo(TransactionStatusActive) {
		t.Error("из completed нет переходов")
	}
}

func TestPaymentStatusTransitions(t *testing.T) {
	if !PaymentStatusUnpaid.CanTransitionTo(PaymentStatusProcessing) {
		t.Error("unpaid -> processing должен быть разрешён")
	}
	if !PaymentStatusProcessing.CanTransitionTo(PaymentStatusPaid) {
		t.Error("processing -> paid должен быть разрешён")
	}
	if PaymentStatusUnpaid.CanTransitionTo(PaymentStatusPaid) {
		t.Error("unpaid -> paid минуя processing не должен быть разрешён")
	}
	if PaymentStatusPaid.CanTransitionTo(PaymentStatusUnpaid) {
		t.Error("paid — терминальный статус оплаты")
	}
	if !PaymentStatusFailed.CanTransitionTo(PaymentStatusProcessing) {
		t.Error("после failed оплату можно повторить")
	}
}

func TestDisputeStatusTransitions(t *testing.T) {
	if !DisputeStatusOpen.CanTransitionTo(DisputeStatusResolved) {
		t.Error("открытый спор можно разрешить напрямую")
	}
	if !DisputeStatusOpen.CanTransitionTo(DisputeStatusUnderReview) {
		t.Error("open -> under_review должен быть разрешён")
	}
	if !DisputeStatusResolved.CanTransitionTo(DisputeStatusClosed) {
		t.Error("resolved -> closed должен быть разрешён")
	}
	if DisputeStatusResolved.CanTransitionTo(DisputeStatusOpen) {
		t.Error("разрешённый спор нельзя переоткрыть")
	}
	if DisputeStatusClosed.CanTransitionTo(DisputeStatusResolved) {
		t.Error("закрытый спор терминален")
	}
	if !DisputeStatusClosed.Terminal() {
		t.Error("closed должен быть терминальным")
	}
}

func TestStatusValid(t *testing.T) {
	if EscrowStatus("banana").Valid() {
		t.Error("неизвестный escrow статус не должен считаться валидным")
	}
	if DisputeStatus("").Valid() {
		t.Error("пустой статус спора не должен считаться валидным")
	}
	if !MilestoneStatusPending.Valid() {
		t.Error("pending — валидный статус вехи")
	}
	if ResolutionType("split").Valid() {
		t.Error("неизвестный тип решения не должен считаться валидным")
	}
}

func TestResolutionOutcome(t *testing.T) {
	cases := []struct {
		resolution ResolutionType
		status     TransactionStatus
		escrow     EscrowStatus
	}{
		{ResolutionRefund, TransactionStatusRefunded, EscrowStatusRefunded},
		{ResolutionRelease, TransactionStatusCompleted, EscrowStatusReleased},
		{ResolutionPartial, TransactionStatusPartiallyCompleted, EscrowStatusPartiallyReleased},
		{ResolutionCancelled, TransactionStatusCancelled, EscrowStatusCancelled},
	}
	for _, tc := range cases {
		outcome, ok := tc.resolution.Outcome()
		if !ok {
			t.Fatalf("для решения %s должен существовать исход", tc.resolution)
		}
		if outcome.Status != tc.status || outcome.EscrowStatus != tc.escrow {
			t.Errorf("решение %s: ожидался исход (%s, %s), получен (%s, %s)",
				tc.resolution, tc.status, tc.escrow, outcome.Status, outcome.EscrowStatus)
		}
	}

	if _, ok := ResolutionType("split").Outcome(); ok {
		t.Error("у неизвестного типа решения не должно быть исхода")
	}
}
