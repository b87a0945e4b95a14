// Package testutil provides shared fixtures for marketplace tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/marketbridge/platform/internal/app/domain/profile"
	"github.com/marketbridge/platform/internal/app/storage"
)

// Expert creates an expert profile for userID. details, when non-nil, is
// stored as the expert's details row.
func Expert(t testing.TB, store storage.ProfileStore, userID, name string, details *profile.ExpertDetails) profile.Profile {
	t.Helper()
	ctx := context.Background()
	p, err := store.CreateProfile(ctx, profile.Profile{UserID: userID, Name: name, UserType: profile.TypeExpert})
	if err != nil {
		t.Fatalf("create expert %s: %v", userID, err)
	}
	if details != nil {
		d := *details
		d.UserID = userID
		if _, err := store.CreateExpertDetails(ctx, d); err != nil {
			t.Fatalf("create expert details %s: %v", userID, err)
		}
	}
	return p
}

// Investor creates an investor profile for userID.
func Investor(t testing.TB, store storage.ProfileStore, userID, name string) profile.Profile {
	t.Helper()
	p, err := store.CreateProfile(context.Background(), profile.Profile{UserID: userID, Name: name, UserType: profile.TypeInvestor})
	if err != nil {
		t.Fatalf("create investor %s: %v", userID, err)
	}
	return p
}

// Eventually polls cond until it holds or two seconds pass.
func Eventually(t testing.TB, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
