package profile

import "time"

// UserType distinguishes the two kinds of marketplace participant.
type UserType string

const (
	TypeExpert   UserType = "expert"
	TypeInvestor UserType = "investor"
)

// Valid reports whether t is a known user type.
func (t UserType) Valid() bool {
	return t == TypeExpert || t == TypeInvestor
}

// Duration is the billing period an expert charges for.
type Duration string

const (
	DurationMonthly   Duration = "monthly"
	DurationQuarterly Duration = "quarterly"
	DurationYearly    Duration = "yearly"
	DurationFree      Duration = "free"
)

// Valid reports whether d is a known subscription duration.
func (d Duration) Valid() bool {
	switch d {
	case DurationMonthly, DurationQuarterly, DurationYearly, DurationFree:
		return true
	}
	return false
}

// Profile is the public face of an identity. ID equals the identity id.
type Profile struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Name      string    `json:"name" db:"name"`
	Bio       string    `json:"bio" db:"bio"`
	ImageURL  string    `json:"image_url" db:"image_url"`
	UserType  UserType  `json:"user_type" db:"user_type"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsExpert reports whether the profile belongs to an expert.
func (p Profile) IsExpert() bool {
	return p.UserType == TypeExpert
}

// ExpertDetails holds the expert-only terms, keyed by user id.
type ExpertDetails struct {
	UserID               string   `json:"user_id" db:"user_id"`
	SubscriptionFee      float64  `json:"subscription_fee" db:"subscription_fee"`
	SubscriptionDuration Duration `json:"subscription_duration" db:"subscription_duration"`
	PostingFrequency     string   `json:"posting_frequency" db:"posting_frequency"`
	MarketCategories     []string `json:"market_categories" db:"-"`
	Expectations         string   `json:"expectations" db:"expectations"`
}

// InvestorDetails holds the investor-only fields, keyed by user id.
type InvestorDetails struct {
	UserID         string `json:"user_id" db:"user_id"`
	InvestmentGoal string `json:"investment_goal" db:"investment_goal"`
}
