package model

// PostKind selects the shape of a post: self text or an external link.
type PostKind string

const (
	PostText PostKind = "text"
	PostLink PostKind = "link"
)

// Valid reports whether k is one of the accepted kinds.
func (k PostKind) Valid() bool {
	return k == PostText || k == PostLink
}

// PostDraft is a single create-post action. Drafts are never persisted
// locally: one is built from the submitted form, handed to the platform
// gateway, and discarded once the call resolves. Body is used by text posts,
// URL by link posts. An empty Submolt means the platform default community.
type PostDraft struct {
	Kind    PostKind
	Title   string
	Body    string
	URL     string
	Submolt string
}
