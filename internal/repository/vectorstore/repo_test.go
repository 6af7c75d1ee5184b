package vectorstore

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/bullion/internal/domain"
	"github.com/kailas-cloud/bullion/internal/domain/vectorstore"
)

var createdAt = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func vecPtr(vals ...float32) *pgvector.Vector {
	v := pgvector.NewVector(vals)
	return &v
}

func newRepo(t *testing.T) (*Repo, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	r := New(mock)
	r.newID = func() string { return "id-1" }
	return r, mock
}

func TestStore_Success(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO embeddings (id, text, embedding, metadata)")).
		WithArgs("id-1", "gold is a noble metal", pgvector.NewVector([]float32{0.5, 0.25}), []byte(`{"source":"faq"}`)).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(createdAt))

	doc, err := repo.Store(context.Background(), "gold is a noble metal", []float32{0.5, 0.25},
		map[string]any{"source": "faq"})
	require.NoError(t, err)
	assert.Equal(t, "id-1", doc.ID)
	assert.Equal(t, createdAt, doc.CreatedAt)
	assert.Equal(t, "faq", doc.Metadata["source"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_NilMetadataIsNull(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery("INSERT INTO embeddings").
		WithArgs("id-1", "t", pgvector.NewVector([]float32{1}), []byte(nil)).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(createdAt))

	_, err := repo.Store(context.Background(), "t", []float32{1}, nil)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_UnencodableMetadata(t *testing.T) {
	repo, _ := newRepo(t)

	_, err := repo.Store(context.Background(), "t", []float32{1}, map[string]any{"ch": make(chan int)})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestSearch_ThresholdAndOrder(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT id, text, metadata, 1 - (embedding <=> $1::vector) AS similarity FROM embeddings" +
			" WHERE 1 - (embedding <=> $1::vector) > $2" +
			" ORDER BY embedding <=> $1::vector LIMIT $3")).
		WithArgs(pgvector.NewVector([]float32{1, 0}), 0.7, 5).
		WillReturnRows(pgxmock.NewRows([]string{"id", "text", "metadata", "similarity"}).
			AddRow("a", "closest", []byte(`{"k":"v"}`), 0.95).
			AddRow("b", "close", []byte(nil), 0.8))

	matches, err := repo.Search(context.Background(), []float32{1, 0}, 5, 0.7)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "a", matches[0].ID)
	assert.Equal(t, "v", matches[0].Metadata["k"])
	assert.Nil(t, matches[1].Metadata)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearch_EmptyIsNotNil(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery("FROM embeddings").
		WithArgs(pgvector.NewVector([]float32{1}), 0.99, 5).
		WillReturnRows(pgxmock.NewRows([]string{"id", "text", "metadata", "similarity"}))

	matches, err := repo.Search(context.Background(), []float32{1}, 5, 0.99)
	require.NoError(t, err)
	assert.NotNil(t, matches)
	assert.Empty(t, matches)
}

func TestSearch_Error(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery("FROM embeddings").
		WithArgs(pgvector.NewVector([]float32{1}), 0.7, 5).
		WillReturnError(errors.New("relation does not exist"))

	_, err := repo.Search(context.Background(), []float32{1}, 5, 0.7)
	assert.ErrorIs(t, err, domain.ErrPersistence)
}

func TestCreateSession(t *testing.T) {
	repo, mock := newRepo(t)
	title := "Gold questions"

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO chat_sessions (id, title)")).
		WithArgs("id-1", &title).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(createdAt))

	s, err := repo.CreateSession(context.Background(), &title)
	require.NoError(t, err)
	assert.Equal(t, "id-1", s.ID)
	require.NotNil(t, s.Title)
	assert.Equal(t, title, *s.Title)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreMessage_Success(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO chat_messages (id, session_id, role, content, embedding)")).
		WithArgs("id-1", "s-1", "user", "hello", vecPtr(0.5)).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(createdAt))

	m, err := repo.StoreMessage(context.Background(), "s-1", vectorstore.RoleUser, "hello", []float32{0.5})
	require.NoError(t, err)
	assert.Equal(t, "s-1", m.SessionID)
	assert.Equal(t, vectorstore.RoleUser, m.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreMessage_NoEmbedding(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery("INSERT INTO chat_messages").
		WithArgs("id-1", "s-1", "assistant", "hi", (*pgvector.Vector)(nil)).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(createdAt))

	_, err := repo.StoreMessage(context.Background(), "s-1", vectorstore.RoleAssistant, "hi", nil)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreMessage_UnknownSession(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery("INSERT INTO chat_messages").
		WithArgs("id-1", "missing", "user", "hello", (*pgvector.Vector)(nil)).
		WillReturnError(&pgconn.PgError{Code: "23503", Message: "violates foreign key constraint"})

	_, err := repo.StoreMessage(context.Background(), "missing", vectorstore.RoleUser, "hello", nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NotErrorIs(t, err, domain.ErrPersistence)
}

func TestHistory_OldestFirst(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM chat_sessions WHERE id = $1)")).
		WithArgs("s-1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at ASC, id ASC")).
		WithArgs("s-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "session_id", "role", "content", "created_at"}).
			AddRow("m1", "s-1", "user", "first", createdAt).
			AddRow("m2", "s-1", "assistant", "second", createdAt.Add(time.Second)))

	msgs, err := repo.History(context.Background(), "s-1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Content)
	assert.Equal(t, vectorstore.RoleAssistant, msgs[1].Role)
	assert.True(t, msgs[0].CreatedAt.Before(msgs[1].CreatedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistory_UnknownSession(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	_, err := repo.History(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistory_EmptySession(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("s-1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("FROM chat_messages").
		WithArgs("s-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "session_id", "role", "content", "created_at"}))

	msgs, err := repo.History(context.Background(), "s-1")
	require.NoError(t, err)
	assert.NotNil(t, msgs)
	assert.Empty(t, msgs)
}
