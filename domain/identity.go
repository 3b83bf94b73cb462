package domain

import "fmt"

// Identity is the authenticated shopper, resolved once per request and passed
// explicitly to every operation that acts on their behalf.
type Identity struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

func (i Identity) IsZero() bool {
	return i.Username == ""
}

// ContactEmail falls back to a placeholder mailbox when the token carried none.
func (i Identity) ContactEmail() string {
	if i.Email != "" {
		return i.Email
	}
	return fmt.Sprintf("%s@example.com", i.Username)
}
