package product

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pgvector/pgvector-go"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/bullion/internal/db"
	"github.com/kailas-cloud/bullion/internal/db/query"
	"github.com/kailas-cloud/bullion/internal/domain"
	domproduct "github.com/kailas-cloud/bullion/internal/domain/product"
	"github.com/kailas-cloud/bullion/internal/domain/search/filter"
	"github.com/kailas-cloud/bullion/internal/domain/search/strategy"
)

var resultColumns = []string{
	"id", "name", "description", "sku",
	"metal_type", "category", "condition",
	"weight", "weight_unit", "purity",
	"price", "currency", "stock_count", "metadata",
	"mint", "grade", "jewelry_type", "score",
}

func text(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func eagleRow(score float64) []any {
	return []any{
		"p-eagle", "American Gold Eagle 1 oz Coin", "Iconic US gold bullion coin", "AGE-1OZ-2024",
		"GOLD", "COINS", "NEW",
		31.103, "GRAMS", 91.67,
		2150.0, "USD", 50, []byte(`{"year":2024,"diameter":"32.7mm"}`),
		text("US_MINT"), text("UNCIRCULATED"), text(""),
		score,
	}
}

func barRow(score float64) []any {
	return []any{
		"p-pamp", "PAMP Suisse 1 oz Gold Bar", "Lady Fortuna design gold bar", "PAMP-1OZ",
		"GOLD", "BARS", "NEW",
		31.103, "GRAMS", 99.99,
		2100.0, "USD", 25, []byte(nil),
		text("PAMP_SUISSE"), text(""), text(""),
		score,
	}
}

func newRepo(t *testing.T) (*Repo, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return New(mock), mock
}

func mustFilters(t *testing.T, raw filter.Raw) filter.Filters {
	t.Helper()
	f, err := filter.Parse(raw)
	require.NoError(t, err)
	return f
}

// --- BuildFilter ---

func TestBuildFilter_AlwaysInStock(t *testing.T) {
	b := query.New()
	where := b.Where(BuildFilter(filter.Filters{}))

	assert.Equal(t, "WHERE p.stock_count > 0", where)
	assert.Empty(t, b.Args())
}

func TestBuildFilter_AllFields(t *testing.T) {
	f := mustFilters(t, filter.Raw{Category: "BARS", MetalType: "GOLD", MinPrice: "1000", MaxPrice: "2000"})

	b := query.New()
	where := b.Where(BuildFilter(f))

	assert.Equal(t,
		"WHERE p.category = $1 AND p.metal_type = $2 AND p.price >= $3 AND p.price <= $4 AND p.stock_count > 0",
		where)
	assert.Equal(t, []any{"BARS", "GOLD", 1000.0, 2000.0}, b.Args())
}

func TestBuildFilter_PlaceholdersContinueAfterEarlierBinds(t *testing.T) {
	f := mustFilters(t, filter.Raw{Category: "COINS"})

	b := query.New()
	b.Bind("gold")
	b.Bind("%gold%")
	where := b.Where(BuildFilter(f))

	assert.Equal(t, "WHERE p.category = $3 AND p.stock_count > 0", where)
}

// --- SearchText ---

func TestSearchText_Success(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(
		"WHERE (to_tsvector('english', p.name || ' ' || p.description) @@ plainto_tsquery('english', $1)" +
			" OR p.name ILIKE $2 OR p.description ILIKE $2) AND p.stock_count > 0" +
			" ORDER BY relevance_score DESC, p.price ASC, p.id ASC LIMIT $3")).
		WithArgs("gold", "%gold%", 5).
		WillReturnRows(pgxmock.NewRows(resultColumns).
			AddRow(eagleRow(0.6)...).
			AddRow(barRow(0.3)...))

	results, err := repo.SearchText(context.Background(), "gold", filter.Filters{}, 5)
	require.NoError(t, err)
	require.Len(t, results, 2)

	first := results[0].Product()
	assert.Equal(t, "p-eagle", first.ID)
	assert.Equal(t, "AGE-1OZ-2024", first.SKU)
	assert.Equal(t, domproduct.Gold, first.MetalType)
	assert.Equal(t, domproduct.Coins, first.Category)
	assert.Equal(t, 50, first.StockCount)
	assert.Equal(t, domproduct.Mint("US_MINT"), first.Mint)
	assert.Equal(t, float64(2024), first.Metadata["year"])
	assert.Equal(t, strategy.Text, results[0].Strategy())
	assert.InDelta(t, 0.6, results[0].Score(), 1e-9)

	second := results[1].Product()
	assert.Nil(t, second.Metadata)
	assert.Empty(t, string(second.Grade))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchText_CategoryFilter(t *testing.T) {
	repo, mock := newRepo(t)
	f := mustFilters(t, filter.Raw{Category: "BARS"})

	mock.ExpectQuery(regexp.QuoteMeta("AND p.category = $3 AND p.stock_count > 0")).
		WithArgs("gold bar", "%gold bar%", "BARS", 10).
		WillReturnRows(pgxmock.NewRows(resultColumns).AddRow(barRow(0.5)...))

	results, err := repo.SearchText(context.Background(), "gold bar", f, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, domproduct.Bars, results[0].Product().Category)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchText_EscapesLikePattern(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery("FROM products p").
		WithArgs("99.9%_pure", `%99.9\%\_pure%`, 5).
		WillReturnRows(pgxmock.NewRows(resultColumns))

	results, err := repo.SearchText(context.Background(), "99.9%_pure", filter.Filters{}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchText_QueryError(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery("FROM products p").
		WithArgs("gold", "%gold%", 5).
		WillReturnError(errors.New("connection reset"))

	_, err := repo.SearchText(context.Background(), "gold", filter.Filters{}, 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPersistence)

	var dbErr *db.Error
	require.ErrorAs(t, err, &dbErr)
	assert.Equal(t, db.OpQuery, dbErr.Op)
}

func TestSearchText_RowError(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery("FROM products p").
		WithArgs("gold", "%gold%", 5).
		WillReturnRows(pgxmock.NewRows(resultColumns).
			AddRow(eagleRow(0.6)...).
			RowError(0, errors.New("broken row")))

	_, err := repo.SearchText(context.Background(), "gold", filter.Filters{}, 5)
	assert.ErrorIs(t, err, domain.ErrPersistence)
}

// --- SearchVector ---

func TestSearchVector_Success(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(
		"1 - (p.embedding <=> $1::vector) AS similarity_score FROM products p" +
			" WHERE p.embedding IS NOT NULL AND p.stock_count > 0" +
			" ORDER BY similarity_score DESC, p.price ASC, p.id ASC LIMIT $2")).
		WithArgs(pgvector.NewVector([]float32{0.1, 0.2, 0.3}), 3).
		WillReturnRows(pgxmock.NewRows(resultColumns).
			AddRow(eagleRow(0.91)...).
			AddRow(barRow(0.84)...))

	results, err := repo.SearchVector(context.Background(), []float32{0.1, 0.2, 0.3}, filter.Filters{}, 3, 0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, strategy.Vector, results[0].Strategy())
	assert.InDelta(t, 0.91, results[0].Score(), 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchVector_FiltersAndThreshold(t *testing.T) {
	repo, mock := newRepo(t)
	f := mustFilters(t, filter.Raw{MetalType: "silver", MinPrice: "20", MaxPrice: "40"})

	mock.ExpectQuery(regexp.QuoteMeta(
		"WHERE p.embedding IS NOT NULL AND p.metal_type = $2 AND p.price >= $3 AND p.price <= $4" +
			" AND p.stock_count > 0 AND 1 - (p.embedding <=> $1::vector) > $5" +
			" ORDER BY similarity_score DESC, p.price ASC, p.id ASC LIMIT $6")).
		WithArgs(pgvector.NewVector([]float32{1, 0}), "SILVER", 20.0, 40.0, 0.25, 5).
		WillReturnRows(pgxmock.NewRows(resultColumns))

	results, err := repo.SearchVector(context.Background(), []float32{1, 0}, f, 5, 0.25)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchVector_QueryError(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery("FROM products p").
		WithArgs(pgvector.NewVector([]float32{1}), 5).
		WillReturnError(context.DeadlineExceeded)

	_, err := repo.SearchVector(context.Background(), []float32{1}, filter.Filters{}, 5, 0)
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
