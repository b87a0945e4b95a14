// Package profiles reads and edits user profiles and their role-specific details.
package profiles

import (
	"context"
	"math"
	"strings"

	"github.com/marketbridge/platform/internal/app/domain/profile"
	"github.com/marketbridge/platform/internal/app/services"
	"github.com/marketbridge/platform/internal/app/storage"
	"github.com/marketbridge/platform/internal/blob"
	"github.com/marketbridge/platform/pkg/logger"
)

// Service manages profiles.
type Service struct {
	store  storage.ProfileStore
	blobs  blob.Store
	bucket string
	log    *logger.Logger
}

// New constructs a profile service. Avatars are uploaded to bucket.
func New(store storage.ProfileStore, blobs blob.Store, bucket string, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("profiles")
	}
	return &Service{store: store, blobs: blobs, bucket: bucket, log: log}
}

// View is a profile with whichever details its role has.
type View struct {
	profile.Profile
	Expert   *profile.ExpertDetails   `json:"expert_details,omitempty"`
	Investor *profile.InvestorDetails `json:"investor_details,omitempty"`
}

// Get returns the profile id with its details.
func (s *Service) Get(ctx context.Context, id string) (View, error) {
	p, err := s.store.GetProfile(ctx, id)
	if err != nil {
		return View{}, err
	}
	return s.view(ctx, p)
}

// GetByUser returns the profile owned by identity userID.
func (s *Service) GetByUser(ctx context.Context, userID string) (View, error) {
	p, err := s.store.GetProfileByUserID(ctx, userID)
	if err != nil {
		return View{}, err
	}
	return s.view(ctx, p)
}

func (s *Service) view(ctx context.Context, p profile.Profile) (View, error) {
	v := View{Profile: p}
	switch p.UserType {
	case profile.TypeExpert:
		d, err := s.store.GetExpertDetails(ctx, p.UserID)
		if err != nil && !storage.IsNotFound(err) {
			return View{}, err
		}
		if err == nil {
			v.Expert = &d
		}
	case profile.TypeInvestor:
		d, err := s.store.GetInvestorDetails(ctx, p.UserID)
		if err != nil && !storage.IsNotFound(err) {
			return View{}, err
		}
		if err == nil {
			v.Investor = &d
		}
	}
	return v, nil
}

// UpdateInput changes a profile. Nil fields are left unchanged; the user type
// cannot be changed.
type UpdateInput struct {
	Name *string
	Bio  *string
}

// Update edits userID's own profile.
func (s *Service) Update(ctx context.Context, userID string, in UpdateInput) (profile.Profile, error) {
	p, err := s.store.GetProfileByUserID(ctx, userID)
	if err != nil {
		return profile.Profile{}, err
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return profile.Profile{}, services.Invalid("name cannot be empty")
		}
		p.Name = name
	}
	if in.Bio != nil {
		p.Bio = strings.TrimSpace(*in.Bio)
	}
	return s.store.UpdateProfile(ctx, p)
}

// UpdateExpertDetails replaces userID's expert terms.
func (s *Service) UpdateExpertDetails(ctx context.Context, userID string, d profile.ExpertDetails) (profile.ExpertDetails, error) {
	p, err := s.store.GetProfileByUserID(ctx, userID)
	if err != nil {
		return profile.ExpertDetails{}, err
	}
	if !p.IsExpert() {
		return profile.ExpertDetails{}, services.ErrNotExpert
	}
	d.UserID = p.UserID
	if err := ValidateExpertDetails(&d); err != nil {
		return profile.ExpertDetails{}, err
	}

	updated, err := s.store.UpdateExpertDetails(ctx, d)
	if storage.IsNotFound(err) {
		updated, err = s.store.CreateExpertDetails(ctx, d)
	}
	if err != nil {
		return profile.ExpertDetails{}, err
	}
	s.log.WithField("user_id", userID).Info("expert details updated")
	return updated, nil
}

// UpdateInvestorDetails replaces userID's investor details.
func (s *Service) UpdateInvestorDetails(ctx context.Context, userID string, d profile.InvestorDetails) (profile.InvestorDetails, error) {
	p, err := s.store.GetProfileByUserID(ctx, userID)
	if err != nil {
		return profile.InvestorDetails{}, err
	}
	if p.UserType != profile.TypeInvestor {
		return profile.InvestorDetails{}, services.ErrNotInvestor
	}
	d.UserID = p.UserID
	d.InvestmentGoal = strings.TrimSpace(d.InvestmentGoal)

	updated, err := s.store.UpdateInvestorDetails(ctx, d)
	if storage.IsNotFound(err) {
		updated, err = s.store.CreateInvestorDetails(ctx, d)
	}
	return updated, err
}

// UploadAvatar stores f and points userID's profile image at it.
func (s *Service) UploadAvatar(ctx context.Context, userID string, f *blob.File) (profile.Profile, error) {
	if f.Empty() {
		return profile.Profile{}, services.Invalid("image is required")
	}
	if blob.MediaType(f.ContentType) != "image" {
		return profile.Profile{}, services.Invalid("avatar must be an image")
	}
	if s.blobs == nil {
		return profile.Profile{}, services.Invalid("uploads are not configured")
	}
	p, err := s.store.GetProfileByUserID(ctx, userID)
	if err != nil {
		return profile.Profile{}, err
	}
	url, err := blob.Put(ctx, s.blobs, s.bucket, p.UserID, f)
	if err != nil {
		return profile.Profile{}, err
	}
	p.ImageURL = url
	return s.store.UpdateProfile(ctx, p)
}

// ValidateExpertDetails normalises d and checks fee and duration.
func ValidateExpertDetails(d *profile.ExpertDetails) error {
	if d.SubscriptionFee < 0 || math.IsNaN(d.SubscriptionFee) || math.IsInf(d.SubscriptionFee, 0) {
		return services.Invalid("subscription_fee must be zero or more")
	}
	if d.SubscriptionDuration == "" {
		d.SubscriptionDuration = profile.DurationMonthly
	}
	if !d.SubscriptionDuration.Valid() {
		return services.Invalid("subscription_duration must be monthly, quarterly, yearly or free")
	}
	if d.SubscriptionDuration == profile.DurationFree {
		d.SubscriptionFee = 0
	}
	d.PostingFrequency = strings.TrimSpace(d.PostingFrequency)
	d.Expectations = strings.TrimSpace(d.Expectations)

	categories := make([]string, 0, len(d.MarketCategories))
	seen := make(map[string]bool)
	for _, c := range d.MarketCategories {
		c = strings.TrimSpace(c)
		if c == "" || seen[strings.ToLower(c)] {
			continue
		}
		seen[strings.ToLower(c)] = true
		categories = append(categories, c)
	}
	d.MarketCategories = categories
	return nil
}
