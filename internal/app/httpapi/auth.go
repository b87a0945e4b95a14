package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/marketbridge/platform/internal/app/domain/identity"
	"github.com/marketbridge/platform/internal/app/domain/profile"
	"github.com/marketbridge/platform/internal/app/services/accounts"
	"github.com/marketbridge/platform/internal/middleware"
)

func (h *handler) authRoutes(r *mux.Router) {
	r.HandleFunc("/auth/signup", h.signUp).Methods(http.MethodPost)
	r.HandleFunc("/auth/signin", h.signIn).Methods(http.MethodPost)
	r.HandleFunc("/auth/signout", h.signOut).Methods(http.MethodPost)
	r.HandleFunc("/auth/me", h.me).Methods(http.MethodGet)
	r.HandleFunc("/auth/onboarding", h.onboard).Methods(http.MethodPost)
}

func (h *handler) signUp(w http.ResponseWriter, r *http.Request) {
	var in accounts.SignUpInput
	if err := decode(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.app.Accounts.SignUp(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *handler) signIn(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Redirect string `json:"redirect"`
	}
	if err := decode(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.app.Accounts.SignIn(r.Context(), in.Email, in.Password, in.Redirect)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) signOut(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Accounts.SignOut(r.Context(), middleware.GetToken(r.Context())); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	id, p, err := h.app.Accounts.Me(r.Context(), middleware.GetToken(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Identity identity.Identity `json:"identity"`
		Profile  *profile.Profile  `json:"profile"`
	}{id, p})
}

func (h *handler) onboard(w http.ResponseWriter, r *http.Request) {
	var in accounts.ProfileInput
	if err := decode(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	p, err := h.app.Accounts.Onboard(r.Context(), caller(r), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}
