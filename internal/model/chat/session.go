package chat

import "github.com/google/uuid"

// State is the identity half of a UI session. The token only ever serves as
// a lookup key and is never persisted on its own.
type State struct {
	Token       string `json:"token,omitempty"`
	Initialized bool   `json:"initialized"`
}

// Mint replaces the token with a fresh random UUID and marks the state initialized.
func (s *State) Mint() string {
	s.Token = uuid.NewString()
	s.Initialized = true
	return s.Token
}

// IsValid reports whether chat turns may be submitted for this state.
func (s State) IsValid() bool {
	return s.Initialized && s.Token != ""
}
