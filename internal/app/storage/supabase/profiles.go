package supabase

import (
	"context"

	"github.com/marketbridge/platform/internal/app/domain/profile"
)

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
	var out profile.Profile
	err := s.insertOne(ctx, "profiles", p, &out, "profile", p.ID)
	return out, err
}

func (s *Store) GetProfile(ctx context.Context, id string) (profile.Profile, error) {
	var out profile.Profile
	err := s.getOne(ctx, s.c.From("profiles").Select("*").Eq("id", id), &out, "profile", id)
	return out, err
}

func (s *Store) GetProfileByUserID(ctx context.Context, userID string) (profile.Profile, error) {
	var out profile.Profile
	err := s.getOne(ctx, s.c.From("profiles").Select("*").Eq("user_id", userID), &out, "profile for user", userID)
	return out, err
}

func (s *Store) UpdateProfile(ctx context.Context, p profile.Profile) (profile.Profile, error) {
	patch := map[string]any{
		"name":       p.Name,
		"bio":        p.Bio,
		"image_url":  p.ImageURL,
		"updated_at": s.now(),
	}
	var out profile.Profile
	err := s.updateOne(ctx, s.c.From("profiles").Eq("id", p.ID), patch, &out, "profile", p.ID)
	return out, err
}

func (s *Store) ListProfilesByType(ctx context.Context, userType profile.UserType) ([]profile.Profile, error) {
	out := []profile.Profile{}
	err := s.list(ctx, s.c.From("profiles").Select("*").Eq("user_type", userType).Order("created_at", true), &out)
	return out, err
}

func (s *Store) ListProfilesByIDs(ctx context.Context, ids []string) ([]profile.Profile, error) {
	out := []profile.Profile{}
	if len(ids) == 0 {
		return out, nil
	}
	err := s.list(ctx, s.c.From("profiles").Select("*").In("id", ids), &out)
	return out, err
}

func (s *Store) CreateExpertDetails(ctx context.Context, d profile.ExpertDetails) (profile.ExpertDetails, error) {
	if d.MarketCategories == nil {
		d.MarketCategories = []string{}
	}
	var out profile.ExpertDetails
	err := s.insertOne(ctx, "expert_details", d, &out, "expert details", d.UserID)
	return out, err
}

func (s *Store) GetExpertDetails(ctx context.Context, userID string) (profile.ExpertDetails, error) {
	var out profile.ExpertDetails
	err := s.getOne(ctx, s.c.From("expert_details").Select("*").Eq("user_id", userID), &out, "expert details", userID)
	return out, err
}

func (s *Store) UpdateExpertDetails(ctx context.Context, d profile.ExpertDetails) (profile.ExpertDetails, error) {
	if d.MarketCategories == nil {
		d.MarketCategories = []string{}
	}
	var out profile.ExpertDetails
	err := s.updateOne(ctx, s.c.From("expert_details").Eq("user_id", d.UserID), d, &out, "expert details", d.UserID)
	return out, err
}

func (s *Store) CreateInvestorDetails(ctx context.Context, d profile.InvestorDetails) (profile.InvestorDetails, error) {
	var out profile.InvestorDetails
	err := s.insertOne(ctx, "investor_details", d, &out, "investor details", d.UserID)
	return out, err
}

func (s *Store) GetInvestorDetails(ctx context.Context, userID string) (profile.InvestorDetails, error) {
	var out profile.InvestorDetails
	err := s.getOne(ctx, s.c.From("investor_details").Select("*").Eq("user_id", userID), &out, "investor details", userID)
	return out, err
}

func (s *Store) UpdateInvestorDetails(ctx context.Context, d profile.InvestorDetails) (profile.InvestorDetails, error) {
	var out profile.InvestorDetails
	err := s.updateOne(ctx, s.c.From("investor_details").Eq("user_id", d.UserID), d, &out, "investor details", d.UserID)
	return out, err
}
