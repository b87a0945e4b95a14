// Package accounts signs users up, in and out, and creates the profile rows
// that go with a new identity.
package accounts

import (
	"context"
	"net/url"
	"strings"

	"github.com/marketbridge/platform/internal/app/domain/identity"
	"github.com/marketbridge/platform/internal/app/domain/profile"
	"github.com/marketbridge/platform/internal/app/services"
	"github.com/marketbridge/platform/internal/app/services/profiles"
	"github.com/marketbridge/platform/internal/app/storage"
	"github.com/marketbridge/platform/internal/auth"
	"github.com/marketbridge/platform/pkg/logger"
)

// Redirect targets after sign-in.
const (
	ExpertDashboard   = "/expert/dashboard"
	InvestorDashboard = "/investor/dashboard"
	Onboarding        = "/onboarding"
)

// Service manages account lifecycle.
type Service struct {
	provider auth.Provider
	profiles storage.ProfileStore
	log      *logger.Logger
}

// New constructs an account service.
func New(provider auth.Provider, profiles storage.ProfileStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("accounts")
	}
	return &Service{provider: provider, profiles: profiles, log: log}
}

// ProfileInput is the profile part of a sign-up or onboarding.
type ProfileInput struct {
	Name     string                   `json:"name"`
	Bio      string                   `json:"bio"`
	UserType profile.UserType         `json:"user_type"`
	Expert   *profile.ExpertDetails   `json:"expert_details,omitempty"`
	Investor *profile.InvestorDetails `json:"investor_details,omitempty"`
}

// SignUpInput creates an account.
type SignUpInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	ProfileInput
}

// SignUpResult is a new account.
type SignUpResult struct {
	Session identity.Session `json:"session"`
	Profile profile.Profile  `json:"profile"`
}

// SignInResult is a signed-in user and where to send them.
type SignInResult struct {
	Session  identity.Session `json:"session"`
	Profile  *profile.Profile `json:"profile,omitempty"`
	Redirect string           `json:"redirect"`
}

// SignUp creates the identity, then the profile, then the role-specific
// details. The writes are sequential with no rollback: if a later write
// fails the identity remains and the error is returned as is.
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (SignUpResult, error) {
	if strings.TrimSpace(in.Email) == "" || in.Password == "" {
		return SignUpResult{}, services.Invalid("email and password are required")
	}
	if err := validateProfile(&in.ProfileInput); err != nil {
		return SignUpResult{}, err
	}

	session, err := s.provider.SignUp(ctx, in.Email, in.Password)
	if err != nil {
		return SignUpResult{}, err
	}
	p, err := s.createProfile(ctx, session.Identity.ID, in.ProfileInput)
	if err != nil {
		return SignUpResult{Session: session}, err
	}

	s.log.WithField("user_id", p.UserID).
		WithField("user_type", p.UserType).
		Info("account created")
	return SignUpResult{Session: session, Profile: p}, nil
}

// Onboard creates the profile of an identity whose sign-up stopped before it.
func (s *Service) Onboard(ctx context.Context, identityID string, in ProfileInput) (profile.Profile, error) {
	if err := validateProfile(&in); err != nil {
		return profile.Profile{}, err
	}
	if _, err := s.profiles.GetProfileByUserID(ctx, identityID); err == nil {
		return profile.Profile{}, storage.Conflict("profile for %s already exists", identityID)
	} else if !storage.IsNotFound(err) {
		return profile.Profile{}, err
	}
	return s.createProfile(ctx, identityID, in)
}

func (s *Service) createProfile(ctx context.Context, identityID string, in ProfileInput) (profile.Profile, error) {
	p, err := s.profiles.CreateProfile(ctx, profile.Profile{
		ID:       identityID,
		UserID:   identityID,
		Name:     in.Name,
		Bio:      in.Bio,
		UserType: in.UserType,
	})
	if err != nil {
		s.log.WithError(err).WithField("user_id", identityID).Warn("identity created without profile")
		return profile.Profile{}, err
	}

	switch in.UserType {
	case profile.TypeExpert:
		d := profile.ExpertDetails{}
		if in.Expert != nil {
			d = *in.Expert
		}
		d.UserID = identityID
		_, err = s.profiles.CreateExpertDetails(ctx, d)
	case profile.TypeInvestor:
		d := profile.InvestorDetails{}
		if in.Investor != nil {
			d = *in.Investor
		}
		d.UserID = identityID
		_, err = s.profiles.CreateInvestorDetails(ctx, d)
	}
	if err != nil {
		s.log.WithError(err).WithField("user_id", identityID).Warn("profile created without role details")
		return p, err
	}
	return p, nil
}

// SignIn authenticates and picks the post-login destination: redirect when it
// is a safe relative path, else the dashboard for the user's role, or
// onboarding when no profile exists.
func (s *Service) SignIn(ctx context.Context, email, password, redirect string) (SignInResult, error) {
	session, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		return SignInResult{}, auth.MapSignInError(err)
	}

	result := SignInResult{Session: session}
	p, err := s.profiles.GetProfileByUserID(ctx, session.Identity.ID)
	switch {
	case err == nil:
		result.Profile = &p
		result.Redirect = InvestorDashboard
		if p.IsExpert() {
			result.Redirect = ExpertDashboard
		}
	case storage.IsNotFound(err):
		result.Redirect = Onboarding
	default:
		return SignInResult{}, err
	}
	if target := SafeRedirect(redirect); target != "" && result.Profile != nil {
		result.Redirect = target
	}
	return result, nil
}

// SignOut ends the session behind accessToken.
func (s *Service) SignOut(ctx context.Context, accessToken string) error {
	return s.provider.SignOut(ctx, accessToken)
}

// Me returns the identity behind accessToken and its profile, if any.
func (s *Service) Me(ctx context.Context, accessToken string) (identity.Identity, *profile.Profile, error) {
	id, err := s.provider.GetUser(ctx, accessToken)
	if err != nil {
		return identity.Identity{}, nil, err
	}
	p, err := s.profiles.GetProfileByUserID(ctx, id.ID)
	if err != nil {
		if storage.IsNotFound(err) {
			return id, nil, nil
		}
		return identity.Identity{}, nil, err
	}
	return id, &p, nil
}

// SafeRedirect returns raw when it is a same-site relative path, else "".
func SafeRedirect(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.Contains(raw, `\`) {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return ""
	}
	return raw
}

func validateProfile(in *ProfileInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Bio = strings.TrimSpace(in.Bio)
	if in.Name == "" {
		return services.Invalid("name is required")
	}
	if !in.UserType.Valid() {
		return services.Invalid("user_type must be expert or investor")
	}
	if in.UserType != profile.TypeExpert {
		return nil
	}
	if in.Expert == nil {
		in.Expert = &profile.ExpertDetails{}
	}
	return profiles.ValidateExpertDetails(in.Expert)
}
