package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
)

// ErrRealtimeNotConnected is returned when a channel is joined before Connect.
var ErrRealtimeNotConnected = errors.New("realtime: not connected")

// RealtimeClient handles Supabase Realtime subscriptions (phoenix channels).
type RealtimeClient struct {
	mu       sync.Mutex
	writeMu  sync.Mutex
	url      string
	apiKey   string
	conn     *websocket.Conn
	done     chan struct{}
	channels map[string]*Channel
	ref      int64

	heartbeatInterval time.Duration
}

// ChangeHandler handles one postgres change. Handlers run on the read loop
// and must not block.
type ChangeHandler func(change *ChangeEvent)

// ChangeEvent is a decoded postgres_changes message.
type ChangeEvent struct {
	Topic           string
	Type            string // INSERT, UPDATE, DELETE
	Schema          string
	Table           string
	CommitTimestamp string
	Record          map[string]any
	OldRecord       map[string]any
}

// PostgresChangesConfig configures a postgres changes subscription.
type PostgresChangesConfig struct {
	Event  string // INSERT, UPDATE, DELETE, *
	Schema string
	Table  string
	Filter string // optional, e.g. "user_id=eq.42"
}

// Channel represents a realtime channel.
type Channel struct {
	client   *RealtimeClient
	topic    string
	changes  []PostgresChangesConfig
	handlers []registeredHandler
	joined   bool
}

type registeredHandler struct {
	event string
	fn    ChangeHandler
}

// NewRealtimeClient creates a new realtime client for a project URL.
func NewRealtimeClient(supabaseURL, apiKey string) *RealtimeClient {
	wsURL := strings.TrimSuffix(supabaseURL, "/")
	switch {
	case strings.HasPrefix(wsURL, "https"):
		wsURL = "wss" + strings.TrimPrefix(wsURL, "https")
	case strings.HasPrefix(wsURL, "http"):
		wsURL = "ws" + strings.TrimPrefix(wsURL, "http")
	}
	wsURL += "/realtime/v1/websocket?apikey=" + url.QueryEscape(apiKey) + "&vsn=1.0.0"

	return &RealtimeClient{
		url:               wsURL,
		apiKey:            apiKey,
		channels:          make(map[string]*Channel),
		heartbeatInterval: 30 * time.Second,
	}
}

// Connect establishes the WebSocket connection and re-joins known channels.
func (r *RealtimeClient) Connect(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn != nil {
		return nil
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, r.url, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	done := make(chan struct{})
	r.conn = conn
	r.done = done

	go r.readLoop(conn)
	go r.heartbeat(conn, done)

	for _, ch := range r.channels {
		if err := r.writeJoin(conn, ch); err != nil {
			return err
		}
	}
	return nil
}

// Connected reports whether a socket is currently open.
func (r *RealtimeClient) Connected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conn != nil
}

// Disconnect closes the WebSocket connection. Channels stay registered and
// are re-joined by the next Connect.
func (r *RealtimeClient) Disconnect() error {
	r.mu.Lock()
	conn := r.conn
	if conn == nil {
		r.mu.Unlock()
		return nil
	}
	r.conn = nil
	close(r.done)
	r.done = nil
	for _, ch := range r.channels {
		ch.joined = false
	}
	r.mu.Unlock()

	r.writeMu.Lock()
	err := conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
	r.writeMu.Unlock()
	conn.Close()
	if err != nil {
		return fmt.Errorf("close message: %w", err)
	}
	return nil
}

// SubscribeToPostgresChanges joins (or reuses) the channel for cfg and registers handler on it.
func (r *RealtimeClient) SubscribeToPostgresChanges(ctx context.Context, cfg PostgresChangesConfig, handler ChangeHandler) (*Channel, error) {
	if cfg.Schema == "" {
		cfg.Schema = "public"
	}
	if cfg.Event == "" {
		cfg.Event = "*"
	}

	topic := fmt.Sprintf("realtime:%s:%s", cfg.Schema, cfg.Table)
	if cfg.Filter != "" {
		topic += ":" + cfg.Filter
	}

	r.mu.Lock()
	ch, ok := r.channels[topic]
	if !ok {
		ch = &Channel{client: r, topic: topic}
		r.channels[topic] = ch
	}
	ch.changes = append(ch.changes, cfg)
	ch.handlers = append(ch.handlers, registeredHandler{event: cfg.Event, fn: handler})
	r.mu.Unlock()

	if err := ch.Subscribe(ctx); err != nil {
		return nil, err
	}
	return ch, nil
}

// Topic returns the channel topic.
func (c *Channel) Topic() string {
	return c.topic
}

// Subscribe sends phx_join for the channel.
func (c *Channel) Subscribe(ctx context.Context) error {
	r := c.client
	r.mu.Lock()
	defer r.mu.Unlock()

	if c.joined {
		return nil
	}
	if r.conn == nil {
		return ErrRealtimeNotConnected
	}
	return r.writeJoin(r.conn, c)
}

// Unsubscribe leaves the channel and drops its handlers.
func (c *Channel) Unsubscribe(ctx context.Context) error {
	r := c.client
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.channels, c.topic)
	c.handlers = nil
	if !c.joined || r.conn == nil {
		c.joined = false
		return nil
	}
	c.joined = false

	msg := map[string]any{
		"topic":   c.topic,
		"event":   "phx_leave",
		"payload": map[string]any{},
		"ref":     r.nextRef(),
	}
	if err := r.write(r.conn, msg); err != nil {
		return fmt.Errorf("send leave: %w", err)
	}
	return nil
}

// writeJoin must be called with r.mu held.
func (r *RealtimeClient) writeJoin(conn *websocket.Conn, ch *Channel) error {
	changes := make([]map[string]string, 0, len(ch.changes))
	for _, cfg := range ch.changes {
		entry := map[string]string{
			"event":  cfg.Event,
			"schema": cfg.Schema,
			"table":  cfg.Table,
		}
		if cfg.Filter != "" {
			entry["filter"] = cfg.Filter
		}
		changes = append(changes, entry)
	}

	ref := r.nextRef()
	msg := map[string]any{
		"topic": ch.topic,
		"event": "phx_join",
		"payload": map[string]any{
			"config": map[string]any{
				"broadcast":        map[string]any{"self": false},
				"presence":         map[string]any{"key": ""},
				"postgres_changes": changes,
			},
			"access_token": r.apiKey,
		},
		"ref":      ref,
		"join_ref": ref,
	}
	if err := r.write(conn, msg); err != nil {
		return fmt.Errorf("send join: %w", err)
	}
	ch.joined = true
	return nil
}

func (r *RealtimeClient) write(conn *websocket.Conn, msg any) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	return conn.WriteJSON(msg)
}

func (r *RealtimeClient) nextRef() string {
	return strconv.FormatInt(atomic.AddInt64(&r.ref, 1), 10)
}

func (r *RealtimeClient) readLoop(conn *websocket.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			r.dropConn(conn)
			return
		}
		r.dispatch(message)
	}
}

// dropConn forgets conn if it is still current so a later Connect can dial again.
func (r *RealtimeClient) dropConn(conn *websocket.Conn) {
	r.mu.Lock()
	if r.conn == conn {
		r.conn = nil
		close(r.done)
		r.done = nil
		for _, ch := range r.channels {
			ch.joined = false
		}
	}
	r.mu.Unlock()
	conn.Close()
}

func (r *RealtimeClient) dispatch(raw []byte) {
	if !gjson.ValidBytes(raw) {
		return
	}
	parsed := gjson.ParseBytes(raw)

	var data gjson.Result
	switch parsed.Get("event").String() {
	case "postgres_changes":
		data = parsed.Get("payload.data")
	case "INSERT", "UPDATE", "DELETE":
		data = parsed.Get("payload")
	default:
		return
	}

	change := &ChangeEvent{
		Topic:           parsed.Get("topic").String(),
		Type:            strings.ToUpper(firstString(data, "type", "eventType")),
		Schema:          data.Get("schema").String(),
		Table:           data.Get("table").String(),
		CommitTimestamp: data.Get("commit_timestamp").String(),
		Record:          objectOf(data.Get("record")),
		OldRecord:       objectOf(data.Get("old_record")),
	}

	r.mu.Lock()
	var handlers []registeredHandler
	if ch, ok := r.channels[change.Topic]; ok {
		handlers = append(handlers, ch.handlers...)
	}
	r.mu.Unlock()

	for _, h := range handlers {
		if h.event == "*" || h.event == change.Type {
			h.fn(change)
		}
	}
}

func objectOf(res gjson.Result) map[string]any {
	if m, ok := res.Value().(map[string]any); ok {
		return m
	}
	return nil
}

func (r *RealtimeClient) heartbeat(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(r.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			msg := map[string]any{
				"topic":   "phoenix",
				"event":   "heartbeat",
				"payload": map[string]any{},
				"ref":     r.nextRef(),
			}
			if err := r.write(conn, msg); err != nil {
				r.dropConn(conn)
				return
			}
		}
	}
}
