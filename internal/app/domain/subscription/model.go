package subscription

import "time"

// Subscription grants an investor access to an expert's insights.
// (InvestorID, ExpertID) is unique.
type Subscription struct {
	ID         string    `json:"id" db:"id"`
	InvestorID string    `json:"investor_id" db:"investor_id"`
	ExpertID   string    `json:"expert_id" db:"expert_id"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Status is the lifecycle state of a subscription request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDeclined Status = "declined"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusDeclined
}

// Request is an investor's ask to subscribe, answered by the expert.
type Request struct {
	ID         string    `json:"id" db:"id"`
	InvestorID string    `json:"investor_id" db:"investor_id"`
	ExpertID   string    `json:"expert_id" db:"expert_id"`
	Status     Status    `json:"status" db:"status"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}
