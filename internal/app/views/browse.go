package views

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/marketbridge/platform/internal/app/domain/subscription"
	"github.com/marketbridge/platform/internal/app/services/subscriptions"
)

// ErrToggleInFlight is returned when a toggle for the same expert is still running.
var ErrToggleInFlight = errors.New("a subscription change for this expert is already in progress")

// BrowseSource is what the expert directory reads and writes.
type BrowseSource interface {
	ListExperts(ctx context.Context) ([]subscriptions.ExpertCard, error)
	SubscribedExpertIDs(ctx context.Context, investorID string) ([]string, error)
	PendingExpertIDs(ctx context.Context, investorID string) ([]string, error)
	Subscribe(ctx context.Context, investorID, expertID string) (subscription.Subscription, error)
	Unsubscribe(ctx context.Context, investorID, expertID string) error
}

// BrowseState is a snapshot of the directory.
type BrowseState struct {
	Experts    []subscriptions.ExpertCard `json:"experts"`
	Subscribed []string                   `json:"subscribed"`
	Pending    []string                   `json:"pending"`
	Loading    bool                       `json:"loading"`
}

// Browse is the expert directory of one investor.
type Browse struct {
	src        BrowseSource
	investorID string

	mu         sync.Mutex
	experts    []subscriptions.ExpertCard
	subscribed map[string]bool
	pending    map[string]bool
	inFlight   map[string]bool
	loading    bool
}

// NewBrowse creates an empty directory for investorID.
func NewBrowse(src BrowseSource, investorID string) *Browse {
	return &Browse{
		src:        src,
		investorID: investorID,
		subscribed: make(map[string]bool),
		pending:    make(map[string]bool),
		inFlight:   make(map[string]bool),
	}
}

// Load fetches experts and the investor's subscriptions and pending requests.
func (b *Browse) Load(ctx context.Context) error {
	b.mu.Lock()
	b.loading = true
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		b.loading = false
		b.mu.Unlock()
	}()

	experts, err := b.src.ListExperts(ctx)
	if err != nil {
		return err
	}
	subscribed, err := b.src.SubscribedExpertIDs(ctx, b.investorID)
	if err != nil {
		return err
	}
	pending, err := b.src.PendingExpertIDs(ctx, b.investorID)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.experts = experts
	b.subscribed = toSet(subscribed)
	b.pending = toSet(pending)
	return nil
}

// State returns a snapshot.
func (b *Browse) State() BrowseState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BrowseState{
		Experts:    append([]subscriptions.ExpertCard(nil), b.experts...),
		Subscribed: fromSet(b.subscribed),
		Pending:    fromSet(b.pending),
		Loading:    b.loading,
	}
}

// Filter returns the loaded experts matching query.
func (b *Browse) Filter(query string) []subscriptions.ExpertCard {
	b.mu.Lock()
	experts := append([]subscriptions.ExpertCard(nil), b.experts...)
	b.mu.Unlock()
	return FilterExperts(experts, query)
}

// Toggle subscribes to or unsubscribes from expertID depending on the local
// state. The local state changes only after the write succeeds. It returns
// whether the investor is now subscribed.
func (b *Browse) Toggle(ctx context.Context, expertID string) (bool, error) {
	b.mu.Lock()
	if b.inFlight[expertID] {
		b.mu.Unlock()
		return false, ErrToggleInFlight
	}
	b.inFlight[expertID] = true
	subscribed := b.subscribed[expertID]
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.inFlight, expertID)
		b.mu.Unlock()
	}()

	var err error
	if subscribed {
		err = b.src.Unsubscribe(ctx, b.investorID, expertID)
	} else {
		_, err = b.src.Subscribe(ctx, b.investorID, expertID)
	}
	if err != nil {
		return subscribed, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if subscribed {
		delete(b.subscribed, expertID)
		b.adjustSubscribers(expertID, -1)
	} else {
		b.subscribed[expertID] = true
		b.adjustSubscribers(expertID, 1)
	}
	return !subscribed, nil
}

func (b *Browse) adjustSubscribers(expertID string, delta int) {
	for i := range b.experts {
		if b.experts[i].Profile.ID == expertID {
			b.experts[i].SubscriberCount += delta
			if b.experts[i].SubscriberCount < 0 {
				b.experts[i].SubscriberCount = 0
			}
			return
		}
	}
}

// FilterExperts keeps cards whose name, bio or market categories contain
// query, ignoring case. An empty query keeps everything.
func FilterExperts(cards []subscriptions.ExpertCard, query string) []subscriptions.ExpertCard {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]subscriptions.ExpertCard, 0, len(cards))
	for _, c := range cards {
		if q == "" || matchesExpert(c, q) {
			out = append(out, c)
		}
	}
	return out
}

func matchesExpert(c subscriptions.ExpertCard, q string) bool {
	if strings.Contains(strings.ToLower(c.Profile.Name), q) || strings.Contains(strings.ToLower(c.Profile.Bio), q) {
		return true
	}
	if c.Details != nil {
		for _, cat := range c.Details.MarketCategories {
			if strings.Contains(strings.ToLower(cat), q) {
				return true
			}
		}
	}
	return false
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func fromSet(set map[string]bool) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
