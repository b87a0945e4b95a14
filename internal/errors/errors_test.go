package errors

import (
	"fmt"
	"net/http"
	"testing"
)

func TestGetServiceErrorUnwrapsChain(t *testing.T) {
	base := Forbidden("not the author")
	wrapped := fmt.Errorf("edit comment: %w", base)

	got := GetServiceError(wrapped)
	if got == nil {
		t.Fatal("expected service error in chain")
	}
	if got.HTTPStatus != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", got.HTTPStatus, http.StatusForbidden)
	}
	if GetServiceError(fmt.Errorf("plain")) != nil {
		t.Fatal("plain error should not resolve to a service error")
	}
}

func TestBackendKeepsMessage(t *testing.T) {
	raw := fmt.Errorf("duplicate key value violates unique constraint")
	se := Backend(409, raw)
	if se.Message != raw.Error() {
		t.Fatalf("message = %q, want verbatim backend message", se.Message)
	}
	if Backend(0, raw).HTTPStatus != http.StatusBadGateway {
		t.Fatal("expected bad gateway for unknown backend status")
	}
}

func TestRateLimitExceededDetails(t *testing.T) {
	se := RateLimitExceeded(10, "1s")
	if se.Details["limit"] != 10 || se.Details["window"] != "1s" {
		t.Fatalf("unexpected details: %v", se.Details)
	}
}
