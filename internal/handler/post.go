package handler

import (
	"log/slog"
	"net/http"

	"github.com/moltdeck/moltdeck/internal/apperror"
	"github.com/moltdeck/moltdeck/internal/model"
	"github.com/moltdeck/moltdeck/internal/remote"
	"github.com/moltdeck/moltdeck/internal/service"
)

// PostHandler serves the composer and the recent-posts view. Everything
// here acts as the active identity.
type PostHandler struct {
	posts      *service.PostService
	identities *service.IdentityService
	renderer   *Renderer
	logger     *slog.Logger
}

// NewPostHandler creates a PostHandler.
func NewPostHandler(posts *service.PostService, identities *service.IdentityService, renderer *Renderer, logger *slog.Logger) *PostHandler {
	return &PostHandler{
		posts:      posts,
		identities: identities,
		renderer:   renderer,
		logger:     logger,
	}
}

// composeView feeds the composer page template.
type composeView struct {
	Title      string
	ActiveName string
	Error      string
	Draft      model.PostDraft
	Submolts   []remote.Submolt
}

// HandleComposer serves GET /posts/new. The submolt list comes from the
// platform; when that call fails the composer still renders and the field
// falls back to free text.
func (h *PostHandler) HandleComposer(w http.ResponseWriter, r *http.Request) {
	activeName, ok := h.identities.ActiveName()
	if !ok {
		renderError(w, h.renderer, apperror.NoActiveIdentity())
		return
	}

	submolts, err := h.posts.Submolts(r.Context())
	if err != nil {
		renderError(w, h.renderer, err)
		return
	}

	h.renderer.Render(w, http.StatusOK, "compose", composeView{
		Title:      "New post",
		ActiveName: activeName,
		Draft:      model.PostDraft{Kind: model.PostText},
		Submolts:   submolts,
	})
}

// HandleCreate serves POST /posts. Success redirects to the dashboard with
// the new post id; failure re-renders the composer with the submitted draft
// so nothing typed is lost.
func (h *PostHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderComposer(w, r, http.StatusBadRequest, "Could not read the submitted form.", model.PostDraft{})
		return
	}

	draft := model.PostDraft{
		Kind:    model.PostKind(r.PostFormValue("kind")),
		Title:   r.PostFormValue("title"),
		Body:    r.PostFormValue("body"),
		URL:     r.PostFormValue("url"),
		Submolt: r.PostFormValue("submolt"),
	}

	postID, err := h.posts.Submit(r.Context(), draft)
	if err != nil {
		h.renderComposer(w, r, httpStatus(err), userMessage(err), draft)
		return
	}

	redirectWithNotice(w, r, "Posted as "+postID+".")
}

func (h *PostHandler) renderComposer(w http.ResponseWriter, r *http.Request, status int, errorMsg string, draft model.PostDraft) {
	activeName, _ := h.identities.ActiveName()

	// Best effort: the error banner matters more than the dropdown, so a
	// second failure here just leaves the list empty.
	submolts, err := h.posts.Submolts(r.Context())
	if err != nil {
		submolts = nil
	}

	h.renderer.Render(w, status, "compose", composeView{
		Title:      "New post",
		ActiveName: activeName,
		Error:      errorMsg,
		Draft:      draft,
		Submolts:   submolts,
	})
}

// recentView feeds the recent-posts page template.
type recentView struct {
	Title      string
	ActiveName string
	Posts      []remote.Post
}

// HandleRecent serves GET /posts with the active identity's recent posts as
// the platform reports them. Nothing here is stored locally.
func (h *PostHandler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.Recent(r.Context())
	if err != nil {
		renderError(w, h.renderer, err)
		return
	}

	activeName, _ := h.identities.ActiveName()

	h.renderer.Render(w, http.StatusOK, "posts", recentView{
		Title:      "Recent posts",
		ActiveName: activeName,
		Posts:      posts,
	})
}
