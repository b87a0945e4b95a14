package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/marketbridge/platform/internal/app/domain/profile"
	"github.com/marketbridge/platform/internal/app/services/profiles"
	svcerrors "github.com/marketbridge/platform/internal/errors"
)

func (h *handler) profileRoutes(r *mux.Router) {
	r.HandleFunc("/profiles/me", h.myProfile).Methods(http.MethodGet)
	r.HandleFunc("/profiles/me", h.updateProfile).Methods(http.MethodPatch)
	r.HandleFunc("/profiles/me/expert", h.updateExpertDetails).Methods(http.MethodPut)
	r.HandleFunc("/profiles/me/investor", h.updateInvestorDetails).Methods(http.MethodPut)
	r.HandleFunc("/profiles/me/avatar", h.uploadAvatar).Methods(http.MethodPost)
	r.HandleFunc("/profiles/{id}", h.getProfile).Methods(http.MethodGet)
}

func (h *handler) myProfile(w http.ResponseWriter, r *http.Request) {
	v, err := h.app.Profiles.GetByUser(r.Context(), caller(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *handler) getProfile(w http.ResponseWriter, r *http.Request) {
	v, err := h.app.Profiles.Get(r.Context(), pathVar(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name *string `json:"name"`
		Bio  *string `json:"bio"`
	}
	if err := decode(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	p, err := h.app.Profiles.Update(r.Context(), caller(r), profiles.UpdateInput{Name: in.Name, Bio: in.Bio})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *handler) updateExpertDetails(w http.ResponseWriter, r *http.Request) {
	var in profile.ExpertDetails
	if err := decode(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	d, err := h.app.Profiles.UpdateExpertDetails(r.Context(), caller(r), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *handler) updateInvestorDetails(w http.ResponseWriter, r *http.Request) {
	var in profile.InvestorDetails
	if err := decode(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	d, err := h.app.Profiles.UpdateInvestorDetails(r.Context(), caller(r), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *handler) uploadAvatar(w http.ResponseWriter, r *http.Request) {
	if !isMultipart(r) {
		h.writeError(w, r, svcerrors.BadRequest("avatar must be sent as multipart/form-data"))
		return
	}
	f, err := parseForm(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	file, err := f.File("file")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	p, err := h.app.Profiles.UploadAvatar(r.Context(), caller(r), file)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
