// Package access decides whether an identity may act on a resource owned by
// another identity.
package access

import "errors"

// ErrAccessDenied is returned when the actor is neither the owner nor an admin.
var ErrAccessDenied = errors.New("access denied")

// Role names as stored on users and carried in tokens.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Identity is the authenticated caller.
type Identity struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

// Check allows the owner of a resource and any admin.
func Check(ownerID string, actor Identity) error {
	if actor.IsAdmin() {
		return nil
	}
	if actor.ID != "" && actor.ID == ownerID {
		return nil
	}
	return ErrAccessDenied
}
