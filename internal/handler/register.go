package handler

import (
	"log/slog"
	"net/http"

	"github.com/moltdeck/moltdeck/internal/remote"
	"github.com/moltdeck/moltdeck/internal/service"
)

// RegistrationHandler serves the remote agent registration flow: the
// platform mints the credentials and moltdeck stores them as a new identity.
type RegistrationHandler struct {
	identities *service.IdentityService
	renderer   *Renderer
	logger     *slog.Logger
}

// NewRegistrationHandler creates a RegistrationHandler.
func NewRegistrationHandler(identities *service.IdentityService, renderer *Renderer, logger *slog.Logger) *RegistrationHandler {
	return &RegistrationHandler{
		identities: identities,
		renderer:   renderer,
		logger:     logger,
	}
}

// registerView feeds the registration form template.
type registerView struct {
	Title       string
	Error       string
	Name        string
	Description string
}

// registerSuccessView feeds the post-registration page template.
type registerSuccessView struct {
	Title        string
	Registration remote.Registration
}

// HandleForm serves GET /register.
func (h *RegistrationHandler) HandleForm(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, http.StatusOK, "register", registerView{
		Title: "Register a new agent",
	})
}

// HandleCreate serves POST /register. On success the page shows the claim
// URL and verification code the platform returned; both are also stored
// with the identity, but this page is the user's main chance to act on
// them.
func (h *RegistrationHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.Render(w, http.StatusBadRequest, "register", registerView{
			Title: "Register a new agent",
			Error: "Could not read the submitted form.",
		})
		return
	}

	name := r.PostFormValue("name")
	description := r.PostFormValue("description")

	registration, err := h.identities.RegisterRemote(r.Context(), name, description)
	if err != nil {
		// Re-render with the typed values so the user can correct and retry.
		h.renderer.Render(w, httpStatus(err), "register", registerView{
			Title:       "Register a new agent",
			Error:       userMessage(err),
			Name:        name,
			Description: description,
		})
		return
	}

	h.renderer.Render(w, http.StatusOK, "register_success", registerSuccessView{
		Title:        "Agent registered",
		Registration: *registration,
	})
}
