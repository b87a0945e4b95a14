package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/marketbridge/platform/internal/app/services/marketplace"
	"github.com/marketbridge/platform/internal/app/views"
	svcerrors "github.com/marketbridge/platform/internal/errors"
)

func (h *handler) marketplaceRoutes(r *mux.Router) {
	r.HandleFunc("/marketplace", h.browseMarketplace).Methods(http.MethodGet)
	r.HandleFunc("/marketplace/items", h.createItem).Methods(http.MethodPost)
	r.HandleFunc("/marketplace/items/{id}", h.updateItem).Methods(http.MethodPatch)
	r.HandleFunc("/marketplace/items/{id}", h.deleteItem).Methods(http.MethodDelete)
	r.HandleFunc("/marketplace/items/{id}/contact", h.contactExpert).Methods(http.MethodPost)
	r.HandleFunc("/testimonials", h.addTestimonial).Methods(http.MethodPost)
	r.HandleFunc("/testimonials/{id}", h.deleteTestimonial).Methods(http.MethodDelete)
}

// browseMarketplace returns the items matching q and type with their sellers.
func (h *handler) browseMarketplace(w http.ResponseWriter, r *http.Request) {
	m := views.NewMarketplace(h.app.Marketplace)
	if err := m.Load(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	writeJSON(w, http.StatusOK, marketplace.Listing{
		Items:   m.Filter(q.Get("q"), q.Get("type")),
		Sellers: m.Sellers(),
	})
}

type itemBody struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price"`
	ItemType    *string  `json:"item_type"`
}

// readItem accepts either JSON or a multipart form with an optional "media" file.
func (h *handler) readItem(w http.ResponseWriter, r *http.Request) (marketplace.ItemInput, error) {
	if !isMultipart(r) {
		var body itemBody
		if err := decode(w, r, &body); err != nil {
			return marketplace.ItemInput{}, err
		}
		return marketplace.ItemInput{
			Title:       body.Title,
			Description: body.Description,
			Price:       body.Price,
			ItemType:    body.ItemType,
		}, nil
	}

	f, err := parseForm(w, r)
	if err != nil {
		return marketplace.ItemInput{}, err
	}
	in := marketplace.ItemInput{
		Title:       f.String("title"),
		Description: f.String("description"),
		ItemType:    f.String("item_type"),
	}
	if in.Price, err = f.Float("price"); err != nil {
		return marketplace.ItemInput{}, err
	}
	if in.Media, err = f.File("media"); err != nil {
		return marketplace.ItemInput{}, err
	}
	return in, nil
}

func (h *handler) createItem(w http.ResponseWriter, r *http.Request) {
	in, err := h.readItem(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	item, err := h.app.Marketplace.CreateItem(r.Context(), caller(r), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h *handler) updateItem(w http.ResponseWriter, r *http.Request) {
	in, err := h.readItem(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	item, err := h.app.Marketplace.UpdateItem(r.Context(), caller(r), pathVar(r, "id"), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *handler) deleteItem(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Marketplace.DeleteItem(r.Context(), caller(r), pathVar(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) contactExpert(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Marketplace.ContactExpert(r.Context(), caller(r), pathVar(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *handler) addTestimonial(w http.ResponseWriter, r *http.Request) {
	var in marketplace.TestimonialInput
	if isMultipart(r) {
		f, err := parseForm(w, r)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		in.VideoURL = f.Value("video_url")
		if in.Media, err = f.File("media"); err != nil {
			h.writeError(w, r, err)
			return
		}
	} else {
		var body struct {
			VideoURL string `json:"video_url"`
		}
		if err := decode(w, r, &body); err != nil {
			h.writeError(w, r, err)
			return
		}
		if body.VideoURL == "" {
			h.writeError(w, r, svcerrors.BadRequest("a media file or video_url is required"))
			return
		}
		in.VideoURL = body.VideoURL
	}

	t, err := h.app.Marketplace.AddTestimonial(r.Context(), caller(r), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *handler) deleteTestimonial(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Marketplace.DeleteTestimonial(r.Context(), caller(r), pathVar(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
