package handler

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/moltdeck/moltdeck/internal/model"
	"github.com/moltdeck/moltdeck/internal/service"
)

// IdentityHandler serves the dashboard and the identity lifecycle routes:
// registering stored credentials, switching the active identity, refreshing
// stats, and removing an identity.
type IdentityHandler struct {
	identities *service.IdentityService
	renderer   *Renderer
	logger     *slog.Logger
}

// NewIdentityHandler creates an IdentityHandler.
func NewIdentityHandler(identities *service.IdentityService, renderer *Renderer, logger *slog.Logger) *IdentityHandler {
	return &IdentityHandler{
		identities: identities,
		renderer:   renderer,
		logger:     logger,
	}
}

// dashboardView feeds the index page template.
type dashboardView struct {
	Title      string
	Notice     string
	Error      string
	ActiveName string
	HasActive  bool
	Identities []model.Identity
}

// HandleDashboard serves GET /. The identity table shows the cached stats
// snapshot from the store; the per-identity stats page is what refreshes it.
func (h *IdentityHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	h.renderDashboard(w, r, http.StatusOK, "")
}

// renderDashboard builds and renders the index page. POST handlers on this
// page reuse it to re-render with an error banner and a non-200 status.
func (h *IdentityHandler) renderDashboard(w http.ResponseWriter, r *http.Request, status int, errorMsg string) {
	identities, err := h.identities.List(r.Context())
	if err != nil {
		renderError(w, h.renderer, err)
		return
	}

	activeName, hasActive := h.identities.ActiveName()

	h.renderer.Render(w, status, "index", dashboardView{
		Title:      "moltdeck",
		Notice:     r.URL.Query().Get("notice"),
		Error:      errorMsg,
		ActiveName: activeName,
		HasActive:  hasActive,
		Identities: identities,
	})
}

// HandleRegister serves POST /identities: store credentials the user
// obtained elsewhere as a new identity.
func (h *IdentityHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderDashboard(w, r, http.StatusBadRequest, "Could not read the submitted form.")
		return
	}

	identity, err := h.identities.Register(r.Context(), service.RegisterIdentityInput{
		Name:          r.PostFormValue("name"),
		APIKey:        r.PostFormValue("api_key"),
		APISecret:     r.PostFormValue("api_secret"),
		LinkedAccount: r.PostFormValue("linked_account"),
	})
	if err != nil {
		h.renderDashboard(w, r, httpStatus(err), userMessage(err))
		return
	}

	redirectWithNotice(w, r, "Registered "+identity.Name+".")
}

// HandleActivate serves POST /identities/{name}/activate.
func (h *IdentityHandler) HandleActivate(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	if err := h.identities.Activate(r.Context(), name); err != nil {
		h.renderDashboard(w, r, httpStatus(err), userMessage(err))
		return
	}

	redirectWithNotice(w, r, name+" is now the active identity.")
}

// HandleDelete serves POST /identities/{name}/delete. Removing the active
// identity leaves no identity selected.
func (h *IdentityHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	if err := h.identities.Remove(r.Context(), name); err != nil {
		h.renderDashboard(w, r, httpStatus(err), userMessage(err))
		return
	}

	redirectWithNotice(w, r, "Removed "+name+".")
}

// statsView feeds the stats page template.
type statsView struct {
	Title    string
	Identity model.Identity
}

// HandleStats serves GET /identities/{name}/stats. The view always fetches
// fresh numbers from the platform and persists them before rendering; the
// dashboard keeps showing the cached snapshot when the platform is down.
func (h *IdentityHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	identity, err := h.identities.RefreshStats(r.Context(), name)
	if err != nil {
		renderError(w, h.renderer, err)
		return
	}

	h.renderer.Render(w, http.StatusOK, "stats", statsView{
		Title:    identity.Name + " stats",
		Identity: *identity,
	})
}

// redirectWithNotice sends a 303 back to the dashboard carrying a one-shot
// notice in the query string.
func redirectWithNotice(w http.ResponseWriter, r *http.Request, notice string) {
	http.Redirect(w, r, "/?notice="+url.QueryEscape(notice), http.StatusSeeOther)
}
