package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheck(t *testing.T) {
	tests := []struct {
		name    string
		owner   string
		actor   Identity
		allowed bool
	}{
		{"owner", "u1", Identity{ID: "u1", Role: RoleUser}, true},
		{"other user", "u1", Identity{ID: "u2", Role: RoleUser}, false},
		{"admin on foreign resource", "u1", Identity{ID: "a1", Role: RoleAdmin}, true},
		{"empty actor", "", Identity{}, false},
		{"unknown role", "u1", Identity{ID: "u2", Role: "editor"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Check(tt.owner, tt.actor)
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrAccessDenied)
			}
		})
	}
}
