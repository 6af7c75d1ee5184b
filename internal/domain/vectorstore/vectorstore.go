// Package vectorstore holds the entities of the generic similarity store and the session message log.
package vectorstore

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/bullion/internal/domain"
)

// Search defaults applied when the caller omits limit or threshold.
const (
	DefaultSearchLimit     = 5
	DefaultSearchThreshold = 0.7
)

// Document is a free-text entry stored together with its embedding.
type Document struct {
	ID        string
	Text      string
	Metadata  map[string]any
	CreatedAt time.Time
}

// Match is a document returned by similarity search.
type Match struct {
	ID         string
	Text       string
	Similarity float64
	Metadata   map[string]any
}

// Session groups messages of one conversation.
type Session struct {
	ID        string
	Title     *string
	CreatedAt time.Time
}

// Role identifies the author of a message.
type Role string

// Role constants.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// IsValid checks if the role is one of the supported values.
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// ParseRole converts a wire value into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.IsValid() {
		return "", fmt.Errorf("%w: role must be one of user, assistant, system; got %q", domain.ErrValidation, s)
	}
	return r, nil
}

// Message is one entry of a session log.
type Message struct {
	ID        string
	SessionID string
	Role      Role
	Content   string
	CreatedAt time.Time
}
