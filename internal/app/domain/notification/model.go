package notification

import "time"

// Notification types.
const (
	TypeSubscriptionRequest  = "subscription_request"
	TypeSubscriptionApproved = "subscription_approved"
	TypeSubscriptionDeclined = "subscription_declined"
	TypeNewSubscriber        = "new_subscriber"
	TypeNewComment           = "new_comment"
)

// ActionSubscriptionRequest marks a notification the recipient can accept or decline.
const ActionSubscriptionRequest = "subscription_request"

// Notification is a message addressed to one user.
type Notification struct {
	ID         string    `json:"id" db:"id"`
	UserID     string    `json:"user_id" db:"user_id"`
	Type       string    `json:"type" db:"type"`
	Message    string    `json:"message" db:"message"`
	Read       bool      `json:"read" db:"read"`
	RelatedID  string    `json:"related_id,omitempty" db:"related_id"`
	ActionType string    `json:"action_type,omitempty" db:"action_type"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Actionable reports whether the notification carries an accept/decline action.
func (n Notification) Actionable() bool {
	return n.ActionType == ActionSubscriptionRequest && n.RelatedID != ""
}
