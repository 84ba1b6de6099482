// Package model defines the data structures shared across the application.
package model

import "time"

// Identity is one registered agent account. The struct is also the on-disk
// record: the credential store marshals it straight into credentials.json,
// so the json tags are the file format.
//
// APISecret is empty for agents created through the dashboard's remote
// registration flow; the platform issues only an API key there. ClaimURL and
// VerificationCode are set only by that flow and let a human claim the agent
// later.
type Identity struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	APIKey           string    `json:"api_key"`
	APISecret        string    `json:"api_secret,omitempty"`
	LinkedAccount    string    `json:"linked_account,omitempty"`
	ClaimURL         string    `json:"claim_url,omitempty"`
	VerificationCode string    `json:"verification_code,omitempty"`
	Stats            Stats     `json:"stats"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Stats is the cached snapshot of what the platform last reported for an
// identity. RefreshedAt stays zero until the first successful refresh.
type Stats struct {
	Karma       int       `json:"karma"`
	Followers   int       `json:"followers"`
	Status      string    `json:"status,omitempty"`
	RefreshedAt time.Time `json:"refreshed_at,omitzero"`
}
