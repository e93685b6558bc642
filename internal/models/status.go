package models

// Статусы сделки (общий workflow).
type TransactionStatus string

const (
	TransactionStatusPending            TransactionStatus = "pending"
	TransactionStatusActive             TransactionStatus = "active"
	TransactionStatusInProgress         TransactionStatus = "in_progress"
	TransactionStatusCompleted          TransactionStatus = "completed"
	TransactionStatusCancelled          TransactionStatus = "cancelled"
	TransactionStatusDisputed           TransactionStatus = "disputed"
	TransactionStatusRefunded           TransactionStatus = "refunded"
	TransactionStatusPartiallyCompleted TransactionStatus = "partially_completed"
)

// Статусы удержания средств. Отдельны от статуса workflow:
// описывают, где находятся деньги, а не на каком этапе сделка.
type EscrowStatus string

const (
	EscrowStatusAwaitingPayment   EscrowStatus = "awaiting_payment"
	EscrowStatusAwaitingFunding   EscrowStatus = "awaiting_funding" // только для вех
	EscrowStatusFunded            EscrowStatus = "funded"
	EscrowStatusReleased          EscrowStatus = "released"
	EscrowStatusRefunded          EscrowStatus = "refunded"
	EscrowStatusPartiallyReleased EscrowStatus = "partially_released"
	EscrowStatusDisputeResolution EscrowStatus = "dispute_resolution"
	EscrowStatusCancelled         EscrowStatus = "cancelled"
)

// Статусы оплаты через платёжный шлюз.
type PaymentStatus string

const (
	PaymentStatusUnpaid     PaymentStatus = "unpaid"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusPaid       PaymentStatus = "paid"
	PaymentStatusFailed     PaymentStatus = "failed"
)

// Статусы вехи.
type MilestoneStatus string

const (
	MilestoneStatusPending   MilestoneStatus = "pending"
	MilestoneStatusSubmitted MilestoneStatus = "submitted"
	MilestoneStatusCompleted MilestoneStatus = "completed"
	MilestoneStatusRejected  MilestoneStatus = "rejected"
	MilestoneStatusDisputed  MilestoneStatus = "disputed"
	MilestoneStatusRefunded  MilestoneStatus = "refunded"
)

// Статусы спора.
type DisputeStatus string

const (
	DisputeStatusOpen        DisputeStatus = "open"
	DisputeStatusUnderReview DisputeStatus = "under_review"
	DisputeStatusReviewing   DisputeStatus = "reviewing"
	DisputeStatusResolved    DisputeStatus = "resolved"
	DisputeStatusClosed      DisputeStatus = "closed"
	DisputeStatusEscalated   DisputeStatus = "escalated"
)

// Типы решения спора администратором.
type ResolutionType string

const (
	ResolutionRefund    ResolutionType = "refund"
	ResolutionRelease   ResolutionType = "release"
	ResolutionPartial   ResolutionType = "partial"
	ResolutionCancelled ResolutionType = "cancelled"
)

// transactionStatusTransitions описывает допустимые переходы статуса сделки
// при обычном потоке. Решение спора применяется отдельно и может форсировать
// переход из любого нетерминального состояния (см. ResolutionOutcome).
var transactionStatusTransitions = map[TransactionStatus][]TransactionStatus{
	TransactionStatusPending:            {TransactionStatusActive, TransactionStatusInProgress, TransactionStatusCompleted, TransactionStatusCancelled, TransactionStatusDisputed, TransactionStatusRefunded, TransactionStatusPartiallyCompleted},
	TransactionStatusActive:             {TransactionStatusInProgress, TransactionStatusCompleted, TransactionStatusCancelled, TransactionStatusDisputed, TransactionStatusRefunded, TransactionStatusPartiallyCompleted},
	TransactionStatusInProgress:         {TransactionStatusCompleted, TransactionStatusCancelled, TransactionStatusDisputed, TransactionStatusRefunded, TransactionStatusPartiallyCompleted},
	TransactionStatusDisputed:           {TransactionStatusInProgress, TransactionStatusCompleted, TransactionStatusCancelled, TransactionStatusRefunded, TransactionStatusPartiallyCompleted},
	TransactionStatusPartiallyCompleted: {TransactionStatusCompleted, TransactionStatusCancelled, TransactionStatusDisputed, TransactionStatusRefunded},
	TransactionStatusCompleted:          {},
	TransactionStatusCancelled:          {},
	TransactionStatusRefunded:           {},
}

// escrowStatusTransitions — статус удержания двигается только вперёд:
// awaiting_payment → funded → released|refunded. Назад пути нет.
var escrowStatusTransitions = map[EscrowStatus][]EscrowStatus{
	EscrowStatusAwaitingPayment:   {EscrowStatusFunded, EscrowStatusReleased, EscrowStatusRefunded, EscrowStatusCancelled, EscrowStatusDisputeResolution},
	EscrowStatusAwaitingFunding:   {EscrowStatusFunded, EscrowStatusReleased, EscrowStatusRefunded, EscrowStatusCancelled, EscrowStatusDisputeResolution},
	EscrowStatusFunded:            {EscrowStatusReleased, EscrowStatusRefunded, EscrowStatusPartiallyReleased, EscrowStatusCancelled, EscrowStatusDisputeResolution},
	EscrowStatusPartiallyReleased: {EscrowStatusReleased, EscrowStatusRefunded, EscrowStatusCancelled, EscrowStatusDisputeResolution},
	EscrowStatusDisputeResolution: {EscrowStatusReleased, EscrowStatusRefunded, EscrowStatusPartiallyReleased, EscrowStatusCancelled},
	EscrowStatusReleased:          {},
	EscrowStatusRefunded:          {},
	EscrowStatusCancelled:         {},
}

var paymentStatusTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusUnpaid:     {PaymentStatusProcessing, PaymentStatusFailed},
	PaymentStatusProcessing: {PaymentStatusPaid, PaymentStatusFailed},
	PaymentStatusFailed:     {PaymentStatusProcessing},
	PaymentStatusPaid:       {},
}

var milestoneStatusTransitions = map[MilestoneStatus][]MilestoneStatus{
	MilestoneStatusPending:   {MilestoneStatusSubmitted, MilestoneStatusCompleted, MilestoneStatusRejected, MilestoneStatusDisputed, MilestoneStatusRefunded},
	MilestoneStatusSubmitted: {MilestoneStatusCompleted, MilestoneStatusRejected, MilestoneStatusDisputed, MilestoneStatusRefunded},
	MilestoneStatusRejected:  {MilestoneStatusSubmitted, MilestoneStatusDisputed, MilestoneStatusRefunded},
	MilestoneStatusDisputed:  {MilestoneStatusCompleted, MilestoneStatusRejected, MilestoneStatusRefunded},
	MilestoneStatusCompleted: {},
	MilestoneStatusRefunded:  {},
}

// disputeStatusTransitions: open → {under_review, reviewing, escalated} →
// resolved → closed. Открытый спор допускает и прямое разрешение.
var disputeStatusTransitions = map[DisputeStatus][]DisputeStatus{
	DisputeStatusOpen:        {DisputeStatusUnderReview, DisputeStatusReviewing, DisputeStatusEscalated, DisputeStatusResolved},
	DisputeStatusUnderReview: {DisputeStatusReviewing, DisputeStatusEscalated, DisputeStatusResolved},
	DisputeStatusReviewing:   {DisputeStatusUnderReview, DisputeStatusEscalated, DisputeStatusResolved},
	DisputeStatusEscalated:   {DisputeStatusUnderReview, DisputeStatusReviewing, DisputeStatusResolved},
	DisputeStatusResolved:    {DisputeStatusClosed},
	DisputeStatusClosed:      {},
}

func (s TransactionStatus) Valid() bool {
	_, ok := transactionStatusTransitions[s]
	return ok
}

// Terminal сообщает, что из статуса нет допустимых переходов.
func (s TransactionStatus) Terminal() bool {
	return s.Valid() && len(transactionStatusTransitions[s]) == 0
}

func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	for _, candidate := range transactionStatusTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

func (s EscrowStatus) Valid() bool {
	_, ok := escrowStatusTransitions[s]
	return ok
}

func (s EscrowStatus) Terminal() bool {
	return s.Valid() && len(escrowStatusTransitions[s]) == 0
}

func (s EscrowStatus) CanTransitionTo(next EscrowStatus) bool {
	for _, candidate := range escrowStatusTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

func (s PaymentStatus) Valid() bool {
	_, ok := paymentStatusTransitions[s]
	return ok
}

func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, candidate := range paymentStatusTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

func (s MilestoneStatus) Valid() bool {
	_, ok := milestoneStatusTransitions[s]
	return ok
}

func (s MilestoneStatus) Terminal() bool {
	return s.Valid() && len(milestoneStatusTransitions[s]) == 0
}

func (s MilestoneStatus) CanTransitionTo(next MilestoneStatus) bool {
	for _, candidate := range milestoneStatusTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

func (s DisputeStatus) Valid() bool {
	_, ok := disputeStatusTransitions[s]
	return ok
}

func (s DisputeStatus) Terminal() bool {
	return s.Valid() && len(disputeStatusTransitions[s]) == 0
}

func (s DisputeStatus) CanTransitionTo(next DisputeStatus) bool {
	for _, candidate := range disputeStatusTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

func (t ResolutionType) Valid() bool {
	switch t {
	case ResolutionRefund, ResolutionRelease, ResolutionPartial, ResolutionCancelled:
		return true
	}
	return false
}

// ResolutionOutcome — пара статусов, которую решение спора применяет к сделке
// (и к вехе, если спор привязан к вехе).
type ResolutionOutcome struct {
	Status       TransactionStatus
	EscrowStatus EscrowStatus
}

var resolutionOutcomes = map[ResolutionType]ResolutionOutcome{
	ResolutionRefund:    {TransactionStatusRefunded, EscrowStatusRefunded},
	ResolutionRelease:   {TransactionStatusCompleted, EscrowStatusReleased},
	ResolutionPartial:   {TransactionStatusPartiallyCompleted, EscrowStatusPartiallyReleased},
	ResolutionCancelled: {TransactionStatusCancelled, EscrowStatusCancelled},
}

// Outcome возвращает целевые статусы сделки для данного типа решения.
func (t ResolutionType) Outcome() (ResolutionOutcome, bool) {
	outcome, ok := resolutionOutcomes[t]
	return outcome, ok
}
