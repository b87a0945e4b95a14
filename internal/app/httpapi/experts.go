package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/marketbridge/platform/internal/app/domain/subscription"
	"github.com/marketbridge/platform/internal/app/views"
)

func (h *handler) expertRoutes(r *mux.Router) {
	r.HandleFunc("/experts", h.browseExperts).Methods(http.MethodGet)
	r.HandleFunc("/experts/{id}/insights", h.expertInsights).Methods(http.MethodGet)
	r.HandleFunc("/experts/{id}/items", h.expertItems).Methods(http.MethodGet)
	r.HandleFunc("/experts/{id}/testimonials", h.expertTestimonials).Methods(http.MethodGet)
	r.HandleFunc("/experts/{id}/subscription", h.subscribe).Methods(http.MethodPost)
	r.HandleFunc("/experts/{id}/subscription", h.unsubscribe).Methods(http.MethodDelete)
	r.HandleFunc("/experts/{id}/requests", h.requestSubscription).Methods(http.MethodPost)

	r.HandleFunc("/subscriptions", h.mySubscriptions).Methods(http.MethodGet)
	r.HandleFunc("/subscribers", h.mySubscribers).Methods(http.MethodGet)
	r.HandleFunc("/requests", h.incomingRequests).Methods(http.MethodGet)
	r.HandleFunc("/requests/mine", h.outgoingRequests).Methods(http.MethodGet)
	r.HandleFunc("/requests/{id}/approve", h.respond(true)).Methods(http.MethodPost)
	r.HandleFunc("/requests/{id}/decline", h.respond(false)).Methods(http.MethodPost)
}

// browseExperts returns the directory as the browse screen sees it: every
// expert with counts, filtered by q, plus the caller's subscriptions and
// pending requests.
func (h *handler) browseExperts(w http.ResponseWriter, r *http.Request) {
	b := views.NewBrowse(h.app.Subscriptions, caller(r))
	if err := b.Load(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	state := b.State()
	state.Experts = b.Filter(r.URL.Query().Get("q"))
	writeJSON(w, http.StatusOK, state)
}

func (h *handler) expertInsights(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Insights.ListByExpert(r.Context(), caller(r), pathVar(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) expertItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.app.Marketplace.ListByExpert(r.Context(), pathVar(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *handler) expertTestimonials(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Marketplace.ListTestimonials(r.Context(), pathVar(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) subscribe(w http.ResponseWriter, r *http.Request) {
	sub, err := h.app.Subscriptions.Subscribe(r.Context(), caller(r), pathVar(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (h *handler) unsubscribe(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Subscriptions.Unsubscribe(r.Context(), caller(r), pathVar(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) requestSubscription(w http.ResponseWriter, r *http.Request) {
	req, err := h.app.Subscriptions.RequestSubscription(r.Context(), caller(r), pathVar(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

func (h *handler) mySubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.app.Subscriptions.ListSubscriptions(r.Context(), caller(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

func (h *handler) mySubscribers(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Subscriptions.ListSubscribers(r.Context(), caller(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) incomingRequests(w http.ResponseWriter, r *http.Request) {
	status := subscription.Status(r.URL.Query().Get("status"))
	list, err := h.app.Subscriptions.ListRequests(r.Context(), caller(r), status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) outgoingRequests(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Subscriptions.ListMyRequests(r.Context(), caller(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) respond(approve bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := h.app.Subscriptions.Respond(r.Context(), caller(r), pathVar(r, "id"), approve)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, req)
	}
}
