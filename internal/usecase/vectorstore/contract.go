package vectorstore

import (
	"context"

	domvs "github.com/kailas-cloud/bullion/internal/domain/vectorstore"
)

// Repository defines the storage contract for documents, sessions and messages.
type Repository interface {
	Store(ctx context.Context, text string, vec []float32, metadata map[string]any) (domvs.Document, error)
	Search(ctx context.Context, vec []float32, limit int, threshold float64) ([]domvs.Match, error)
	CreateSession(ctx context.Context, title *string) (domvs.Session, error)
	StoreMessage(
		ctx context.Context, sessionID string, role domvs.Role, content string, vec []float32,
	) (domvs.Message, error)
	History(ctx context.Context, sessionID string) ([]domvs.Message, error)
}
