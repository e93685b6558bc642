package dto

// RegisterRequest represents the registration payload
type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role"`
}

// LoginRequest represents the login payload
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest represents the token refresh payload
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// MilestoneRequest represents a milestone within a new transaction
type MilestoneRequest struct {
	Title       string  `json:"title" binding:"required"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount" binding:"required"`
	DueDate     *string `json:"due_date"`
}

// CreateTransactionRequest represents the request to create a transaction.
// Currency is optional and defaults to USD.
type CreateTransactionRequest struct {
	Title       string             `json:"title" binding:"required"`
	Description string             `json:"description" binding:"required"`
	Type        string             `json:"type"`
	Amount      float64            `json:"amount" binding:"required"`
	Currency    string             `json:"currency"`
	DueDate     *string            `json:"due_date"`
	SellerID    string             `json:"seller_id" binding:"required"`
	Milestones  []MilestoneRequest `json:"milestones"`
}

// ReleaseRequest represents the request to release escrowed funds
type ReleaseRequest struct {
	MilestoneID *string `json:"milestone_id"`
}

// RefundRequest represents the request to refund escrowed funds
type RefundRequest struct {
	MilestoneID *string `json:"milestone_id"`
	Reason      string  `json:"reason"`
}

// RaiseDisputeRequest represents the request to open a dispute
type RaiseDisputeRequest struct {
	MilestoneID *string `json:"milestone_id"`
	Title       string  `json:"title" binding:"required"`
	Description string  `json:"description" binding:"required"`
}

// ResolveDisputeRequest represents the admin dispute update payload
type ResolveDisputeRequest struct {
	Status         *string `json:"status"`
	Resolution     *string `json:"resolution"`
	ResolutionType *string `json:"resolution_type"`
	AssignedToID   *string `json:"assigned_to_id"`
}
