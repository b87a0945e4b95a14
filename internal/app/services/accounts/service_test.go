package accounts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/marketbridge/platform/internal/app/domain/identity"
	"github.com/marketbridge/platform/internal/app/domain/profile"
	"github.com/marketbridge/platform/internal/app/services"
	"github.com/marketbridge/platform/internal/app/storage"
	"github.com/marketbridge/platform/internal/app/storage/memory"
	"github.com/marketbridge/platform/internal/auth"
	"github.com/marketbridge/platform/pkg/logger"
)

func newService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	provider := auth.NewLocalProvider(store, auth.NewVerifier("secret", "test", time.Hour))
	return New(provider, store, logger.NewDiscard()), store
}

func TestSignUpCreatesProfileAndRoleRow(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	res, err := svc.SignUp(ctx, SignUpInput{
		Email:    "grace@example.com",
		Password: "hunter22",
		ProfileInput: ProfileInput{
			Name:     "Grace",
			UserType: profile.TypeExpert,
			Expert:   &profile.ExpertDetails{SubscriptionFee: 15, SubscriptionDuration: profile.DurationYearly},
		},
	})
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if res.Profile.ID != res.Session.Identity.ID || res.Profile.UserID != res.Session.Identity.ID {
		t.Fatalf("profile id must equal identity id: %+v", res.Profile)
	}
	d, err := store.GetExpertDetails(ctx, res.Profile.UserID)
	if err != nil || d.SubscriptionFee != 15 {
		t.Fatalf("expert details: %+v %v", d, err)
	}
	if _, err := store.GetInvestorDetails(ctx, res.Profile.UserID); !storage.IsNotFound(err) {
		t.Fatalf("expert must not get investor details, got %v", err)
	}
}

func TestSignUpValidates(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.SignUp(ctx, SignUpInput{Email: "a@b.c", Password: "hunter22", ProfileInput: ProfileInput{Name: "A", UserType: "admin"}}); !services.IsInvalid(err) {
		t.Fatalf("expected user_type validation, got %v", err)
	}
	if _, err := svc.SignUp(ctx, SignUpInput{Email: "a@b.c", Password: "hunter22", ProfileInput: ProfileInput{UserType: profile.TypeInvestor}}); !services.IsInvalid(err) {
		t.Fatalf("expected name validation, got %v", err)
	}
}

// failingProfiles fails the role-specific write to leave a partial account.
type failingProfiles struct {
	*memory.Store
}

func (f failingProfiles) CreateInvestorDetails(context.Context, profile.InvestorDetails) (profile.InvestorDetails, error) {
	return profile.InvestorDetails{}, errors.New("permission denied for table investor_details")
}

func TestPartialSignUpLeavesIdentityAndOnboards(t *testing.T) {
	store := memory.New()
	provider := auth.NewLocalProvider(store, auth.NewVerifier("secret", "test", time.Hour))
	svc := New(provider, failingProfiles{store}, logger.NewDiscard())
	ctx := context.Background()

	_, err := svc.SignUp(ctx, SignUpInput{Email: "ada@example.com", Password: "hunter22", ProfileInput: ProfileInput{Name: "Ada", UserType: profile.TypeInvestor}})
	if err == nil || err.Error() != "permission denied for table investor_details" {
		t.Fatalf("expected backend error verbatim, got %v", err)
	}
	if _, err := store.GetIdentityByEmail(ctx, "ada@example.com"); err != nil {
		t.Fatalf("identity should remain after partial sign-up: %v", err)
	}
}

func TestSignInRedirects(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	_, err := svc.SignUp(ctx, SignUpInput{Email: "ada@example.com", Password: "hunter22", ProfileInput: ProfileInput{Name: "Ada", UserType: profile.TypeInvestor}})
	if err != nil {
		t.Fatalf("sign up investor: %v", err)
	}
	res, err := svc.SignIn(ctx, "ada@example.com", "hunter22", "")
	if err != nil || res.Redirect != InvestorDashboard {
		t.Fatalf("investor redirect: %+v %v", res, err)
	}
	res, _ = svc.SignIn(ctx, "ada@example.com", "hunter22", "/insights/42")
	if res.Redirect != "/insights/42" {
		t.Fatalf("explicit redirect ignored: %s", res.Redirect)
	}
	res, _ = svc.SignIn(ctx, "ada@example.com", "hunter22", "https://evil.example")
	if res.Redirect != InvestorDashboard {
		t.Fatalf("absolute redirect must be ignored: %s", res.Redirect)
	}

	// An identity without a profile goes to onboarding.
	provider := auth.NewLocalProvider(store, auth.NewVerifier("secret", "test", time.Hour))
	session, err := provider.SignUp(ctx, "orphan@example.com", "hunter22")
	if err != nil {
		t.Fatalf("provider sign up: %v", err)
	}
	res, err = svc.SignIn(ctx, "orphan@example.com", "hunter22", "/insights/42")
	if err != nil || res.Redirect != Onboarding || res.Profile != nil {
		t.Fatalf("expected onboarding redirect, got %+v %v", res, err)
	}

	p, err := svc.Onboard(ctx, session.Identity.ID, ProfileInput{Name: "Orphan", UserType: profile.TypeExpert})
	if err != nil || !p.IsExpert() {
		t.Fatalf("onboard: %+v %v", p, err)
	}
	if _, err := svc.Onboard(ctx, session.Identity.ID, ProfileInput{Name: "Again", UserType: profile.TypeExpert}); !storage.IsConflict(err) {
		t.Fatalf("expected conflict on second onboarding, got %v", err)
	}
}

type unconfirmedProvider struct {
	auth.Provider
}

func (unconfirmedProvider) SignIn(context.Context, string, string) (identity.Session, error) {
	return identity.Session{}, errors.New("Email not confirmed")
}

func TestSignInEmailNotConfirmed(t *testing.T) {
	svc := New(unconfirmedProvider{}, memory.New(), logger.NewDiscard())
	if _, err := svc.SignIn(context.Background(), "a@b.c", "pw", ""); !errors.Is(err, auth.ErrEmailNotConfirmed) {
		t.Fatalf("expected ErrEmailNotConfirmed, got %v", err)
	}
}

func TestMe(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	res, _ := svc.SignUp(ctx, SignUpInput{Email: "ada@example.com", Password: "hunter22", ProfileInput: ProfileInput{Name: "Ada", UserType: profile.TypeInvestor}})

	id, p, err := svc.Me(ctx, res.Session.AccessToken)
	if err != nil || p == nil || id.Email != "ada@example.com" {
		t.Fatalf("me: %+v %+v %v", id, p, err)
	}
	if err := svc.SignOut(ctx, res.Session.AccessToken); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if _, _, err := svc.Me(ctx, res.Session.AccessToken); err == nil {
		t.Fatalf("expected revoked token to fail")
	}
}

func TestSafeRedirect(t *testing.T) {
	cases := map[string]string{
		"/feed":              "/feed",
		"//evil.example":     "",
		"https://x.example/": "",
		"feed":               "",
		`/\evil`:             "",
		"":                   "",
	}
	for in, want := range cases {
		if got := SafeRedirect(in); got != want {
			t.Fatalf("SafeRedirect(%q) = %q, want %q", in, got, want)
		}
	}
}
