package postgres

import (
	"context"

	"github.com/lib/pq"

	"github.com/marketbridge/platform/internal/app/domain/profile"
)

const profileColumns = `id, user_id, name, bio, image_url, user_type, created_at, updated_at`

func (s *Store) CreateProfile(ctx context.Context, p profile.Profile) (profile.Profile, error) {
	if p.ID == "" {
		p.ID = p.UserID
	}
	if p.UserID == "" {
		p.UserID = p.ID
	}
	now := s.now()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO profiles (`+profileColumns+`)
		VALUES (:id, :user_id, :name, :bio, :image_url, :user_type, :created_at, :updated_at)
	`, p)
	if err != nil {
		return profile.Profile{}, mapError(err, "profile", p.ID)
	}
	return p, nil
}

func (s *Store) GetProfile(ctx context.Context, id string) (profile.Profile, error) {
	var p profile.Profile
	err := s.db.GetContext(ctx, &p, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id)
	return p, mapError(err, "profile", id)
}

func (s *Store) GetProfileByUserID(ctx context.Context, userID string) (profile.Profile, error) {
	var p profile.Profile
	err := s.db.GetContext(ctx, &p, `SELECT `+profileColumns+` FROM profiles WHERE user_id = $1`, userID)
	return p, mapError(err, "profile for user", userID)
}

func (s *Store) UpdateProfile(ctx context.Context, p profile.Profile) (profile.Profile, error) {
	var out profile.Profile
	err := s.db.GetContext(ctx, &out, `
		UPDATE profiles
		SET name = $2, bio = $3, image_url = $4, updated_at = $5
		WHERE id = $1
		RETURNING `+profileColumns,
		p.ID, p.Name, p.Bio, p.ImageURL, s.now())
	return out, mapError(err, "profile", p.ID)
}

func (s *Store) ListProfilesByType(ctx context.Context, userType profile.UserType) ([]profile.Profile, error) {
	out := []profile.Profile{}
	err := s.db.SelectContext(ctx, &out, `
		SELECT `+profileColumns+` FROM profiles WHERE user_type = $1 ORDER BY created_at
	`, userType)
	return out, err
}

func (s *Store) ListProfilesByIDs(ctx context.Context, ids []string) ([]profile.Profile, error) {
	out := []profile.Profile{}
	if len(ids) == 0 {
		return out, nil
	}
	err := s.db.SelectContext(ctx, &out, `
		SELECT `+profileColumns+` FROM profiles WHERE id = ANY($1)
	`, pq.Array(ids))
	return out, err
}

// expertRow carries market_categories as a postgres text[].
type expertRow struct {
	UserID               string           `db:"user_id"`
	SubscriptionFee      float64          `db:"subscription_fee"`
	SubscriptionDuration profile.Duration `db:"subscription_duration"`
	PostingFrequency     string           `db:"posting_frequency"`
	MarketCategories     pq.StringArray   `db:"market_categories"`
	Expectations         string           `db:"expectations"`
}

func (r expertRow) toDomain() profile.ExpertDetails {
	return profile.ExpertDetails{
		UserID:               r.UserID,
		SubscriptionFee:      r.SubscriptionFee,
		SubscriptionDuration: r.SubscriptionDuration,
		PostingFrequency:     r.PostingFrequency,
		MarketCategories:     append([]string{}, r.MarketCategories...),
		Expectations:         r.Expectations,
	}
}

func fromExpert(d profile.ExpertDetails) expertRow {
	return expertRow{
		UserID:               d.UserID,
		SubscriptionFee:      d.SubscriptionFee,
		SubscriptionDuration: d.SubscriptionDuration,
		PostingFrequency:     d.PostingFrequency,
		MarketCategories:     pq.StringArray(append([]string{}, d.MarketCategories...)),
		Expectations:         d.Expectations,
	}
}

const expertColumns = `user_id, subscription_fee, subscription_duration, posting_frequency, market_categories, expectations`

func (s *Store) CreateExpertDetails(ctx context.Context, d profile.ExpertDetails) (profile.ExpertDetails, error) {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO expert_details (`+expertColumns+`)
		VALUES (:user_id, :subscription_fee, :subscription_duration, :posting_frequency, :market_categories, :expectations)
	`, fromExpert(d))
	if err != nil {
		return profile.ExpertDetails{}, mapError(err, "expert details", d.UserID)
	}
	return d, nil
}

func (s *Store) GetExpertDetails(ctx context.Context, userID string) (profile.ExpertDetails, error) {
	var row expertRow
	if err := s.db.GetContext(ctx, &row, `SELECT `+expertColumns+` FROM expert_details WHERE user_id = $1`, userID); err != nil {
		return profile.ExpertDetails{}, mapError(err, "expert details", userID)
	}
	return row.toDomain(), nil
}

func (s *Store) UpdateExpertDetails(ctx context.Context, d profile.ExpertDetails) (profile.ExpertDetails, error) {
	row := fromExpert(d)
	res, err := s.db.ExecContext(ctx, `
		UPDATE expert_details
		SET subscription_fee = $2, subscription_duration = $3, posting_frequency = $4,
		    market_categories = $5, expectations = $6
		WHERE user_id = $1
	`, row.UserID, row.SubscriptionFee, row.SubscriptionDuration, row.PostingFrequency, row.MarketCategories, row.Expectations)
	if err != nil {
		return profile.ExpertDetails{}, err
	}
	if err := expectAffected(res, "expert details", d.UserID); err != nil {
		return profile.ExpertDetails{}, err
	}
	return d, nil
}

func (s *Store) CreateInvestorDetails(ctx context.Context, d profile.InvestorDetails) (profile.InvestorDetails, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO investor_details (user_id, investment_goal) VALUES ($1, $2)
	`, d.UserID, d.InvestmentGoal)
	if err != nil {
		return profile.InvestorDetails{}, mapError(err, "investor details", d.UserID)
	}
	return d, nil
}

func (s *Store) GetInvestorDetails(ctx context.Context, userID string) (profile.InvestorDetails, error) {
	var d profile.InvestorDetails
	err := s.db.GetContext(ctx, &d, `SELECT user_id, investment_goal FROM investor_details WHERE user_id = $1`, userID)
	return d, mapError(err, "investor details", userID)
}

func (s *Store) UpdateInvestorDetails(ctx context.Context, d profile.InvestorDetails) (profile.InvestorDetails, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE investor_details SET investment_goal = $2 WHERE user_id = $1
	`, d.UserID, d.InvestmentGoal)
	if err != nil {
		return profile.InvestorDetails{}, err
	}
	if err := expectAffected(res, "investor details", d.UserID); err != nil {
		return profile.InvestorDetails{}, err
	}
	return d, nil
}
