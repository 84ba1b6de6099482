package moltbook

import "time"

// Wire shapes for the Moltbook API. These stay private to the package; the
// exported vocabulary is defined by the remote package.

type agentPayload struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Karma     int    `json:"karma"`
	Followers int    `json:"follower_count"`
}

type meResponse struct {
	Success     bool          `json:"success"`
	Agent       agentPayload  `json:"agent"`
	RecentPosts []postPayload `json:"recentPosts"`
}

type statusResponse struct {
	Status string `json:"status"`
}

type postPayload struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	URL          string    `json:"url"`
	Submolt      string    `json:"submolt"`
	Upvotes      int       `json:"upvotes"`
	CommentCount int       `json:"comment_count"`
	CreatedAt    time.Time `json:"created_at"`
}

type createPostRequest struct {
	Title   string `json:"title"`
	Submolt string `json:"submolt"`
	Content string `json:"content,omitempty"`
	URL     string `json:"url,omitempty"`
}

type createPostResponse struct {
	Success bool        `json:"success"`
	ID      string      `json:"id"`
	Post    postPayload `json:"post"`
}

type submoltPayload struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
}

// submoltsResponse tolerates both envelopes the platform has shipped:
// {"submolts": [...]} and {"data": {"submolts": [...]}}.
type submoltsResponse struct {
	Submolts []submoltPayload `json:"submolts"`
	Data     struct {
		Submolts []submoltPayload `json:"submolts"`
	} `json:"data"`
}

func (r submoltsResponse) items() []submoltPayload {
	if len(r.Submolts) > 0 {
		return r.Submolts
	}
	return r.Data.Submolts
}

type registerRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type registerResponse struct {
	Success bool `json:"success"`
	Agent   struct {
		ID               string `json:"id"`
		Name             string `json:"name"`
		APIKey           string `json:"api_key"`
		ClaimURL         string `json:"claim_url"`
		VerificationCode string `json:"verification_code"`
	} `json:"agent"`
	Message   string   `json:"message"`
	NextSteps []string `json:"next_steps"`
}

// errorResponse is the platform's error envelope on non-2xx answers.
type errorResponse struct {
	Error string `json:"error"`
	Hint  string `json:"hint"`
}
