package views

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/marketbridge/platform/internal/app/domain/insight"
	"github.com/marketbridge/platform/internal/app/domain/marketplace"
	"github.com/marketbridge/platform/internal/app/domain/notification"
	"github.com/marketbridge/platform/internal/app/domain/profile"
	"github.com/marketbridge/platform/internal/app/domain/subscription"
	insightsvc "github.com/marketbridge/platform/internal/app/services/insights"
	"github.com/marketbridge/platform/internal/app/services/notifications"
	"github.com/marketbridge/platform/internal/app/services/subscriptions"
	"github.com/marketbridge/platform/internal/app/storage/memory"
	"github.com/marketbridge/platform/internal/changefeed"
	"github.com/marketbridge/platform/pkg/logger"
	"github.com/marketbridge/platform/pkg/testutil"
)

type world struct {
	store    *memory.Store
	broker   *changefeed.Broker
	notes    *notifications.Service
	subs     *subscriptions.Service
	insights *insightsvc.Service
	expert   profile.Profile
	investor profile.Profile
}

func newWorld(t *testing.T) world {
	t.Helper()
	ctx := context.Background()
	log := logger.NewDiscard()
	store := memory.New()
	broker := changefeed.NewBroker()
	t.Cleanup(func() { broker.Close() })

	notes := notifications.New(store, broker, log)
	subs := subscriptions.New(store, store, store, store, notes, log)
	ins := insightsvc.New(store, store, store, store, subs, notes, nil, "", log)

	expert := testutil.Expert(t, store, "exp", "Grace", &profile.ExpertDetails{MarketCategories: []string{"Fixed Income"}})
	expert.Bio = "rates and bonds"
	if _, err := store.UpdateProfile(ctx, expert); err != nil {
		t.Fatalf("update expert bio: %v", err)
	}
	investor := testutil.Investor(t, store, "inv", "Ada")
	return world{store: store, broker: broker, notes: notes, subs: subs, insights: ins, expert: expert, investor: investor}
}

func TestBrowseLoadFilterToggle(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	b := NewBrowse(w.subs, w.investor.ID)

	if err := b.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(b.Filter("FIXED")) != 1 || len(b.Filter("bonds")) != 1 || len(b.Filter("crypto")) != 0 {
		t.Fatalf("unexpected filter results")
	}

	now, err := b.Toggle(ctx, w.expert.ID)
	if err != nil || !now {
		t.Fatalf("toggle on: %v %v", now, err)
	}
	state := b.State()
	if len(state.Subscribed) != 1 || state.Experts[0].SubscriberCount != 1 {
		t.Fatalf("unexpected state after subscribe: %+v", state)
	}

	now, err = b.Toggle(ctx, w.expert.ID)
	if err != nil || now {
		t.Fatalf("toggle off: %v %v", now, err)
	}
	if len(b.State().Subscribed) != 0 {
		t.Fatalf("expected unsubscribed")
	}
}

type blockingBrowse struct {
	BrowseSource
	release chan struct{}
	calls   int32
}

func (b *blockingBrowse) Subscribe(ctx context.Context, investorID, expertID string) (subscription.Subscription, error) {
	atomic.AddInt32(&b.calls, 1)
	<-b.release
	return subscription.Subscription{InvestorID: investorID, ExpertID: expertID}, nil
}

func TestBrowseToggleInFlightGuard(t *testing.T) {
	src := &blockingBrowse{release: make(chan struct{})}
	b := NewBrowse(src, "inv")

	done := make(chan error, 1)
	go func() {
		_, err := b.Toggle(context.Background(), "exp")
		done <- err
	}()
	testutil.Eventually(t, func() bool { return atomic.LoadInt32(&src.calls) == 1 })

	if _, err := b.Toggle(context.Background(), "exp"); !errors.Is(err, ErrToggleInFlight) {
		t.Fatalf("expected ErrToggleInFlight, got %v", err)
	}
	close(src.release)
	if err := <-done; err != nil {
		t.Fatalf("first toggle: %v", err)
	}
	if atomic.LoadInt32(&src.calls) != 1 {
		t.Fatalf("expected a single write, got %d", src.calls)
	}
}

type failingBrowse struct{ BrowseSource }

func (failingBrowse) Subscribe(context.Context, string, string) (subscription.Subscription, error) {
	return subscription.Subscription{}, errors.New("backend down")
}

func TestBrowseToggleFailureKeepsState(t *testing.T) {
	b := NewBrowse(failingBrowse{}, "inv")
	if _, err := b.Toggle(context.Background(), "exp"); err == nil {
		t.Fatalf("expected error")
	}
	if len(b.State().Subscribed) != 0 {
		t.Fatalf("local state must not change on failure")
	}
}

func TestFeedLoadAndToggleLike(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	in, _ := w.insights.Publish(ctx, w.expert.ID, insightsvc.PublishInput{Title: "t"})
	_, _ = w.subs.Subscribe(ctx, w.investor.ID, w.expert.ID)

	f := NewFeed(w.insights, w.investor.ID)
	if err := f.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if st := f.State(); len(st.Insights) != 1 || st.Insights[0].ViewsCount != 1 {
		t.Fatalf("unexpected feed: %+v", st)
	}

	state, err := f.ToggleLike(ctx, in.ID)
	if err != nil || !state.Liked {
		t.Fatalf("like: %+v %v", state, err)
	}
	st := f.State()
	if st.Insights[0].LikesCount != 1 || len(st.Liked) != 1 {
		t.Fatalf("unexpected state after like: %+v", st)
	}
}

type failingLikes struct {
	FeedSource
	items []insight.Insight
}

func (f failingLikes) Feed(context.Context, string) ([]insight.Insight, error) {
	return f.items, nil
}

func (failingLikes) LikedIDs(context.Context, string, []string) ([]string, error) {
	return nil, nil
}

func (failingLikes) ToggleLike(context.Context, string, string) (insightsvc.LikeState, error) {
	return insightsvc.LikeState{}, errors.New("backend down")
}

func TestFeedToggleLikeRollsBack(t *testing.T) {
	f := NewFeed(failingLikes{items: []insight.Insight{{ID: "a", LikesCount: 4}}}, "inv")
	if err := f.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := f.ToggleLike(context.Background(), "a"); err == nil {
		t.Fatalf("expected error")
	}
	st := f.State()
	if st.Insights[0].LikesCount != 4 || len(st.Liked) != 0 {
		t.Fatalf("expected rollback, got %+v", st)
	}
}

func TestBellReloadsOnChangeAndCloses(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	var changes int32
	bell := NewBell(w.notes, w.subs, w.expert.ID, func(BellState) { atomic.AddInt32(&changes, 1) }, logger.NewDiscard())
	if err := bell.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if bell.State().Count != 0 {
		t.Fatalf("expected empty bell")
	}

	_, _ = w.notes.Notify(ctx, w.expert.ID, notification.TypeNewComment, "hi", "", "")
	testutil.Eventually(t, func() bool { return bell.State().Count == 1 })

	// Changes for other users do not reach this bell.
	_, _ = w.notes.Notify(ctx, w.investor.ID, notification.TypeNewComment, "other", "", "")

	if err := bell.MarkAllRead(ctx); err != nil {
		t.Fatalf("mark all read: %v", err)
	}
	if bell.State().Count != 0 {
		t.Fatalf("expected cleared bell")
	}

	bell.Close()
	bell.Close()
	testutil.Eventually(t, func() bool { return w.broker.Len() == 0 })
	if atomic.LoadInt32(&changes) == 0 {
		t.Fatalf("expected onChange calls")
	}
}

// gatedSource holds the first Unread call after its snapshot is taken.
type gatedSource struct {
	*notifications.Service
	once    sync.Once
	taken   chan struct{}
	release chan struct{}
}

func (g *gatedSource) Unread(ctx context.Context, userID string) ([]notification.Notification, error) {
	list, err := g.Service.Unread(ctx, userID)
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.taken)
		<-g.release
	}
	return list, err
}

func TestBellInitialLoadDoesNotOverwriteNewerReload(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	src := &gatedSource{Service: w.notes, taken: make(chan struct{}), release: make(chan struct{})}

	bell := NewBell(src, w.subs, w.expert.ID, nil, logger.NewDiscard())
	defer bell.Close()
	started := make(chan error, 1)
	go func() { started <- bell.Start(ctx) }()

	<-src.taken
	if _, err := w.notes.Notify(ctx, w.expert.ID, notification.TypeNewComment, "hi", "", ""); err != nil {
		t.Fatalf("notify: %v", err)
	}
	testutil.Eventually(t, func() bool { return bell.State().Count == 1 })

	close(src.release)
	if err := <-started; err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := bell.State().Count; got != 1 {
		t.Fatalf("stale initial load replaced newer state: count=%d, store has 1 unread", got)
	}
}

func TestBellAcceptRequest(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	req, err := w.subs.RequestSubscription(ctx, w.investor.ID, w.expert.ID)
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	bell := NewBell(w.notes, w.subs, w.expert.ID, nil, logger.NewDiscard())
	if err := bell.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer bell.Close()

	st := bell.State()
	if st.Count != 1 || !st.Unread[0].Actionable() {
		t.Fatalf("expected actionable request notification: %+v", st)
	}

	answered, err := bell.Accept(ctx, st.Unread[0].ID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if answered.ID != req.ID || answered.Status != subscription.StatusApproved {
		t.Fatalf("unexpected request: %+v", answered)
	}
	if ok, _ := w.subs.IsSubscribed(ctx, w.investor.ID, w.expert.ID); !ok {
		t.Fatalf("accept should subscribe the investor")
	}
	testutil.Eventually(t, func() bool { return bell.State().Count == 0 })
}

func TestBellDeclineNonActionable(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	n, _ := w.notes.Notify(ctx, w.expert.ID, notification.TypeNewComment, "hi", "", "")

	bell := NewBell(w.notes, w.subs, w.expert.ID, nil, logger.NewDiscard())
	if _, err := bell.Decline(ctx, n.ID); !errors.Is(err, ErrNotActionable) {
		t.Fatalf("expected ErrNotActionable, got %v", err)
	}
}

func TestFilterItems(t *testing.T) {
	items := []marketplace.Item{
		{ID: "1", Title: "Options Course", ItemType: "course"},
		{ID: "2", Title: "Weekly report", Description: "options flow", ItemType: "report"},
		{ID: "3", Title: "Coaching", ItemType: "service"},
	}
	if got := FilterItems(items, "options", ""); len(got) != 2 {
		t.Fatalf("expected 2 options matches, got %d", len(got))
	}
	if got := FilterItems(items, "options", "report"); len(got) != 1 || got[0].ID != "2" {
		t.Fatalf("unexpected typed match: %+v", got)
	}
	if got := FilterItems(items, "", "all"); len(got) != 3 {
		t.Fatalf("expected everything, got %d", len(got))
	}
}
