// Package vectorstore persists free-text embeddings and session message logs in PostgreSQL.
package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/kailas-cloud/bullion/internal/db"
	"github.com/kailas-cloud/bullion/internal/db/postgres"
	"github.com/kailas-cloud/bullion/internal/db/query"
	"github.com/kailas-cloud/bullion/internal/domain"
	"github.com/kailas-cloud/bullion/internal/domain/vectorstore"
)

// Repo implements usecase/vectorstore.Repository.
type Repo struct {
	db    postgres.Querier
	newID func() string
}

// New creates a vector store repository. IDs are random UUIDs.
func New(q postgres.Querier) *Repo {
	return &Repo{db: q, newID: uuid.NewString}
}

// Store inserts a document with its embedding.
func (r *Repo) Store(
	ctx context.Context, text string, vec []float32, metadata map[string]any,
) (vectorstore.Document, error) {
	meta, err := encodeMetadata(metadata)
	if err != nil {
		return vectorstore.Document{}, err
	}

	doc := vectorstore.Document{ID: r.newID(), Text: text, Metadata: metadata}
	err = r.db.QueryRow(ctx,
		`INSERT INTO embeddings (id, text, embedding, metadata)
		 VALUES ($1, $2, $3::vector, $4)
		 RETURNING created_at`,
		doc.ID, text, pgvector.NewVector(vec), meta,
	).Scan(&doc.CreatedAt)
	if err != nil {
		return vectorstore.Document{}, persistenceErr(db.OpExec, err)
	}
	return doc, nil
}

// Search returns documents whose similarity to vec exceeds threshold, nearest first.
func (r *Repo) Search(ctx context.Context, vec []float32, limit int, threshold float64) ([]vectorstore.Match, error) {
	b := query.New()
	v := b.Bind(pgvector.NewVector(vec))
	where := b.Where(query.Gt("1 - (embedding <=> "+string(v)+"::vector)", threshold))
	lim := b.Bind(limit)

	sql := "SELECT id, text, metadata, 1 - (embedding <=> " + string(v) + "::vector) AS similarity" +
		" FROM embeddings " + where +
		" ORDER BY embedding <=> " + string(v) + "::vector LIMIT " + string(lim)

	rows, err := r.db.Query(ctx, sql, b.Args()...)
	if err != nil {
		return nil, persistenceErr(db.OpQuery, err)
	}
	defer rows.Close()

	out := []vectorstore.Match{}
	for rows.Next() {
		var (
			m    vectorstore.Match
			meta []byte
		)
		if err := rows.Scan(&m.ID, &m.Text, &meta, &m.Similarity); err != nil {
			return nil, persistenceErr(db.OpScan, err)
		}
		if m.Metadata, err = decodeMetadata(meta); err != nil {
			return nil, persistenceErr(db.OpScan, err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceErr(db.OpQuery, err)
	}
	return out, nil
}

// CreateSession opens a new message log. title may be nil.
func (r *Repo) CreateSession(ctx context.Context, title *string) (vectorstore.Session, error) {
	s := vectorstore.Session{ID: r.newID(), Title: title}
	err := r.db.QueryRow(ctx,
		`INSERT INTO chat_sessions (id, title) VALUES ($1, $2) RETURNING created_at`,
		s.ID, title,
	).Scan(&s.CreatedAt)
	if err != nil {
		return vectorstore.Session{}, persistenceErr(db.OpExec, err)
	}
	return s, nil
}

// StoreMessage appends a message to a session. vec may be nil.
// An unknown session yields domain.ErrNotFound.
func (r *Repo) StoreMessage(
	ctx context.Context, sessionID string, role vectorstore.Role, content string, vec []float32,
) (vectorstore.Message, error) {
	var embedding *pgvector.Vector
	if vec != nil {
		v := pgvector.NewVector(vec)
		embedding = &v
	}

	m := vectorstore.Message{ID: r.newID(), SessionID: sessionID, Role: role, Content: content}
	err := r.db.QueryRow(ctx,
		`INSERT INTO chat_messages (id, session_id, role, content, embedding)
		 VALUES ($1, $2, $3, $4, $5::vector)
		 RETURNING created_at`,
		m.ID, sessionID, string(role), content, embedding,
	).Scan(&m.CreatedAt)
	if err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return vectorstore.Message{}, fmt.Errorf("session %s: %w", sessionID, domain.ErrNotFound)
		}
		return vectorstore.Message{}, persistenceErr(db.OpExec, err)
	}
	return m, nil
}

// History returns the messages of a session, oldest first.
// An unknown session yields domain.ErrNotFound; a known empty one yields an empty slice.
func (r *Repo) History(ctx context.Context, sessionID string) ([]vectorstore.Message, error) {
	var exists bool
	if err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM chat_sessions WHERE id = $1)`, sessionID,
	).Scan(&exists); err != nil {
		return nil, persistenceErr(db.OpQuery, err)
	}
	if !exists {
		return nil, fmt.Errorf("session %s: %w", sessionID, domain.ErrNotFound)
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, session_id, role, content, created_at
		 FROM chat_messages
		 WHERE session_id = $1
		 ORDER BY created_at ASC, id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, persistenceErr(db.OpQuery, err)
	}
	defer rows.Close()

	out := []vectorstore.Message{}
	for rows.Next() {
		var (
			m    vectorstore.Message
			role string
			at   time.Time
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &role, &m.Content, &at); err != nil {
			return nil, persistenceErr(db.OpScan, err)
		}
		m.Role = vectorstore.Role(role)
		m.CreatedAt = at
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceErr(db.OpQuery, err)
	}
	return out, nil
}

func encodeMetadata(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("%w: metadata is not JSON-encodable: %w", domain.ErrValidation, err)
	}
	return b, nil
}

func decodeMetadata(b []byte) (map[string]any, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return m, nil
}

func persistenceErr(op string, err error) error {
	return fmt.Errorf("%w: %w", domain.ErrPersistence, &db.Error{Op: op, Err: err})
}
