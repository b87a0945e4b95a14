package views

import (
	"context"
	"strings"
	"sync"

	"github.com/marketbridge/platform/internal/app/domain/marketplace"
	"github.com/marketbridge/platform/internal/app/domain/profile"
	marketsvc "github.com/marketbridge/platform/internal/app/services/marketplace"
)

// MarketplaceSource lists the marketplace.
type MarketplaceSource interface {
	List(ctx context.Context) (marketsvc.Listing, error)
}

// Marketplace is the marketplace screen.
type Marketplace struct {
	src MarketplaceSource

	mu      sync.Mutex
	items   []marketplace.Item
	sellers map[string]profile.Profile
}

// NewMarketplace creates an empty marketplace screen.
func NewMarketplace(src MarketplaceSource) *Marketplace {
	return &Marketplace{src: src, sellers: make(map[string]profile.Profile)}
}

// Load fetches items and their sellers.
func (m *Marketplace) Load(ctx context.Context) error {
	listing, err := m.src.List(ctx)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = listing.Items
	m.sellers = listing.Sellers
	return nil
}

// Filter returns the loaded items matching query and itemType.
func (m *Marketplace) Filter(query, itemType string) []marketplace.Item {
	m.mu.Lock()
	items := append([]marketplace.Item(nil), m.items...)
	m.mu.Unlock()
	return FilterItems(items, query, itemType)
}

// Seller returns the profile of an item's seller.
func (m *Marketplace) Seller(expertID string) (profile.Profile, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.sellers[expertID]
	return p, ok
}

// Sellers returns a copy of the loaded seller profiles.
func (m *Marketplace) Sellers() map[string]profile.Profile {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]profile.Profile, len(m.sellers))
	for k, v := range m.sellers {
		out[k] = v
	}
	return out
}

// FilterItems keeps items whose title or description contain query, ignoring
// case, and whose type equals itemType. Empty arguments or "all" match everything.
func FilterItems(items []marketplace.Item, query, itemType string) []marketplace.Item {
	q := strings.ToLower(strings.TrimSpace(query))
	t := strings.ToLower(strings.TrimSpace(itemType))
	if t == "all" {
		t = ""
	}
	out := make([]marketplace.Item, 0, len(items))
	for _, item := range items {
		if t != "" && strings.ToLower(item.ItemType) != t {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(item.Title), q) && !strings.Contains(strings.ToLower(item.Description), q) {
			continue
		}
		out = append(out, item)
	}
	return out
}
