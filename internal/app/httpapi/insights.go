package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/marketbridge/platform/internal/app/domain/insight"
	"github.com/marketbridge/platform/internal/app/services/insights"
	"github.com/marketbridge/platform/internal/app/views"
)

func (h *handler) insightRoutes(r *mux.Router) {
	r.HandleFunc("/feed", h.feed).Methods(http.MethodGet)
	r.HandleFunc("/insights", h.publicInsights).Methods(http.MethodGet)
	r.HandleFunc("/insights", h.publishInsight).Methods(http.MethodPost)
	r.HandleFunc("/insights/{id}", h.getInsight).Methods(http.MethodGet)
	r.HandleFunc("/insights/{id}", h.updateInsight).Methods(http.MethodPatch)
	r.HandleFunc("/insights/{id}", h.deleteInsight).Methods(http.MethodDelete)
	r.HandleFunc("/insights/{id}/like", h.toggleLike).Methods(http.MethodPost)
	r.HandleFunc("/insights/{id}/comments", h.comments).Methods(http.MethodGet)
	r.HandleFunc("/insights/{id}/comments", h.addComment).Methods(http.MethodPost)
	r.HandleFunc("/comments/{id}", h.editComment).Methods(http.MethodPatch)
	r.HandleFunc("/comments/{id}", h.deleteComment).Methods(http.MethodDelete)
}

// feed loads the caller's feed, recording a view on every insight returned.
func (h *handler) feed(w http.ResponseWriter, r *http.Request) {
	f := views.NewFeed(h.app.Insights, caller(r))
	if err := f.Load(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f.State())
}

func (h *handler) publicInsights(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	list, err := h.app.Insights.ListPublic(r.Context(), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type insightBody struct {
	Title      *string             `json:"title"`
	Content    *string             `json:"content"`
	Visibility *insight.Visibility `json:"visibility"`
}

// readInsight accepts either JSON or a multipart form with an optional
// "image" file.
func (h *handler) readInsight(w http.ResponseWriter, r *http.Request) (insights.UpdateInput, error) {
	if !isMultipart(r) {
		var body insightBody
		if err := decode(w, r, &body); err != nil {
			return insights.UpdateInput{}, err
		}
		return insights.UpdateInput{Title: body.Title, Content: body.Content, Visibility: body.Visibility}, nil
	}

	f, err := parseForm(w, r)
	if err != nil {
		return insights.UpdateInput{}, err
	}
	in := insights.UpdateInput{Title: f.String("title"), Content: f.String("content")}
	if v := f.String("visibility"); v != nil {
		vis := insight.Visibility(*v)
		in.Visibility = &vis
	}
	if in.Image, err = f.File("image"); err != nil {
		return insights.UpdateInput{}, err
	}
	return in, nil
}

func (h *handler) publishInsight(w http.ResponseWriter, r *http.Request) {
	in, err := h.readInsight(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	publish := insights.PublishInput{Image: in.Image}
	if in.Title != nil {
		publish.Title = *in.Title
	}
	if in.Content != nil {
		publish.Content = *in.Content
	}
	if in.Visibility != nil {
		publish.Visibility = *in.Visibility
	}

	created, err := h.app.Insights.Publish(r.Context(), caller(r), publish)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *handler) getInsight(w http.ResponseWriter, r *http.Request) {
	in, err := h.app.Insights.Get(r.Context(), caller(r), pathVar(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, in)
}

func (h *handler) updateInsight(w http.ResponseWriter, r *http.Request) {
	in, err := h.readInsight(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	updated, err := h.app.Insights.Update(r.Context(), caller(r), pathVar(r, "id"), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *handler) deleteInsight(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Insights.Delete(r.Context(), caller(r), pathVar(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) toggleLike(w http.ResponseWriter, r *http.Request) {
	state, err := h.app.Insights.ToggleLike(r.Context(), pathVar(r, "id"), caller(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *handler) comments(w http.ResponseWriter, r *http.Request) {
	threads, err := h.app.Insights.Thread(r.Context(), pathVar(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, threads)
}

func (h *handler) addComment(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Content         string `json:"content"`
		ParentCommentID string `json:"parent_comment_id"`
	}
	if err := decode(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	c, err := h.app.Insights.AddComment(r.Context(), pathVar(r, "id"), caller(r), in.Content, in.ParentCommentID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *handler) editComment(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Content string `json:"content"`
	}
	if err := decode(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	c, err := h.app.Insights.EditComment(r.Context(), caller(r), pathVar(r, "id"), in.Content)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *handler) deleteComment(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Insights.DeleteComment(r.Context(), caller(r), pathVar(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
