package vectorstore

import (
	domvs "github.com/kailas-cloud/bullion/internal/domain/vectorstore"
)

// Action names as they appear on the wire.
const (
	ActionStore         = "store"
	ActionSearch        = "search"
	ActionStoreMessage  = "store-message"
	ActionGetHistory    = "get-history"
	ActionCreateSession = "create-session"
)

// Command is one of the closed set of store actions.
type Command interface {
	// Action returns the wire name of the command.
	Action() string
	sealed()
}

// StoreCommand persists a document with a caller-supplied embedding.
type StoreCommand struct {
	Text      string
	Embedding []float32
	Metadata  map[string]any
}

// SearchCommand finds documents similar to an embedding.
// Nil Limit and Threshold fall back to the store defaults.
type SearchCommand struct {
	Embedding []float32
	Limit     *int
	Threshold *float64
}

// StoreMessageCommand appends a message to a session. Embedding is optional.
type StoreMessageCommand struct {
	SessionID string
	Role      domvs.Role
	Content   string
	Embedding []float32
}

// GetHistoryCommand lists the messages of a session.
type GetHistoryCommand struct {
	SessionID string
}

// CreateSessionCommand opens a new session.
type CreateSessionCommand struct {
	Title *string
}

func (StoreCommand) Action() string         { return ActionStore }
func (SearchCommand) Action() string        { return ActionSearch }
func (StoreMessageCommand) Action() string  { return ActionStoreMessage }
func (GetHistoryCommand) Action() string    { return ActionGetHistory }
func (CreateSessionCommand) Action() string { return ActionCreateSession }

func (StoreCommand) sealed()         {}
func (SearchCommand) sealed()        {}
func (StoreMessageCommand) sealed()  {}
func (GetHistoryCommand) sealed()    {}
func (CreateSessionCommand) sealed() {}
