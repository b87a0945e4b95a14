package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/marketbridge/platform/internal/app/views"
	svcerrors "github.com/marketbridge/platform/internal/errors"
)

var errUnknownAction = svcerrors.BadRequest("unknown action")

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

func (h *handler) notificationRoutes(r *mux.Router) {
	r.HandleFunc("/notifications", h.unreadNotifications).Methods(http.MethodGet)
	r.HandleFunc("/notifications/count", h.unreadCount).Methods(http.MethodGet)
	r.HandleFunc("/notifications/read-all", h.markAllRead).Methods(http.MethodPost)
	r.HandleFunc("/notifications/{id}/read", h.markRead).Methods(http.MethodPost)
	r.HandleFunc("/notifications/{id}/accept", h.answerNotification(true)).Methods(http.MethodPost)
	r.HandleFunc("/notifications/{id}/decline", h.answerNotification(false)).Methods(http.MethodPost)
	r.HandleFunc("/ws/notifications", h.notificationSocket).Methods(http.MethodGet)
}

func (h *handler) bell(r *http.Request, onChange func(views.BellState)) *views.Bell {
	return views.NewBell(h.app.Notifications, h.app.Subscriptions, caller(r), onChange, h.log.Component("bell"))
}

func (h *handler) unreadNotifications(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Notifications.Unread(r.Context(), caller(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) unreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.app.Notifications.UnreadCount(r.Context(), caller(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

func (h *handler) markRead(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Notifications.MarkRead(r.Context(), caller(r), pathVar(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) markAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.app.Notifications.MarkAllRead(r.Context(), caller(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": n})
}

// answerNotification accepts or declines the subscription request behind a
// notification and clears the notification.
func (h *handler) answerNotification(approve bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b := h.bell(r, nil)
		id := pathVar(r, "id")
		var err error
		if approve {
			_, err = b.Accept(r.Context(), id)
		} else {
			_, err = b.Decline(r.Context(), id)
		}
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// socketCommand is a message from the client.
type socketCommand struct {
	Action string `json:"action"` // read, read_all, accept, decline, reload
	ID     string `json:"id,omitempty"`
}

// socketMessage is a message to the client: either the bell state or the
// error of a command.
type socketMessage struct {
	Type   string      `json:"type"`
	Unread interface{} `json:"unread,omitempty"`
	Count  *int        `json:"count,omitempty"`
	Action string      `json:"action,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// notificationSocket streams the caller's unread notifications. A full state
// message is pushed on connect and after every change; the client may send
// commands that act on the bell.
func (h *handler) notificationSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already replied.
		h.log.WithContext(r.Context()).WithError(err).Debug("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	states := make(chan views.BellState, 1)
	errs := make(chan socketMessage, 8)
	bell := h.bell(r, func(s views.BellState) { pushLatest(states, s) })
	defer bell.Close()

	if err := bell.Start(ctx); err != nil {
		_ = conn.WriteJSON(socketMessage{Type: "error", Error: err.Error()})
		return
	}

	go h.readCommands(ctx, cancel, conn, bell, errs)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		var msg socketMessage
		select {
		case <-ctx.Done():
			return
		case s := <-states:
			count := s.Count
			msg = socketMessage{Type: "state", Unread: s.Unread, Count: &count}
		case msg = <-errs:
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			continue
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

func (h *handler) readCommands(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, bell *views.Bell, errs chan<- socketMessage) {
	defer cancel()
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var cmd socketCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.WithContext(ctx).WithError(err).Debug("notification socket closed")
			}
			return
		}

		var err error
		switch cmd.Action {
		case "read":
			err = bell.MarkRead(ctx, cmd.ID)
		case "read_all":
			err = bell.MarkAllRead(ctx)
		case "accept":
			_, err = bell.Accept(ctx, cmd.ID)
		case "decline":
			_, err = bell.Decline(ctx, cmd.ID)
		case "reload":
			err = bell.Reload(ctx)
		default:
			err = errUnknownAction
		}
		if err != nil {
			select {
			case errs <- socketMessage{Type: "error", Action: cmd.Action, Error: toServiceError(err).Message}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// pushLatest replaces any undelivered state with s.
func pushLatest(ch chan views.BellState, s views.BellState) {
	for {
		select {
		case ch <- s:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
