package session

import "fmt"

// State is the observable session snapshot published to subscribers.
// IsAuthenticated always equals (User != nil); RedirectTo is a one-shot
// signal the router consumes and clears via Manager.ClearRedirect.
type State struct {
	User            *User      `json:"user,omitempty"`
	Tokens          *TokenPair `json:"tokens,omitempty"`
	IsAuthenticated bool       `json:"is_authenticated"`
	IsLoading       bool       `json:"is_loading"`
	RedirectTo      string     `json:"redirect_to,omitempty"`
}

// Clone returns a deep copy so subscribers and State() callers can never
// reach back into the Manager's fields.
func (s State) Clone() State {
	out := s
	out.User = s.User.Clone()
	out.Tokens = s.Tokens.Clone()
	return out
}

func (s State) String() string {
	email := "<nil>"
	if s.User != nil {
		email = s.User.Email
	}
	return fmt.Sprintf(
		"user=%s authenticated=%t loading=%t redirect=%q",
		email,
		s.IsAuthenticated,
		s.IsLoading,
		s.RedirectTo,
	)
}
