// Package product reads ranked product projections from PostgreSQL.
package product

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pgvector/pgvector-go"

	"github.com/kailas-cloud/bullion/internal/db"
	"github.com/kailas-cloud/bullion/internal/db/postgres"
	"github.com/kailas-cloud/bullion/internal/db/query"
	"github.com/kailas-cloud/bullion/internal/domain"
	"github.com/kailas-cloud/bullion/internal/domain/product"
	"github.com/kailas-cloud/bullion/internal/domain/search/filter"
	"github.com/kailas-cloud/bullion/internal/domain/search/result"
	"github.com/kailas-cloud/bullion/internal/domain/search/strategy"
)

// columns is the product projection. The embedding column is never selected.
var columns = []string{
	"p.id", "p.name", "p.description", "p.sku",
	"p.metal_type", "p.category", "p.condition",
	"p.weight", "p.weight_unit", "p.purity",
	"p.price", "p.currency", "p.stock_count", "p.metadata",
	"p.mint", "p.grade", "p.jewelry_type",
}

// document is the text the full-text index is built on.
const document = "to_tsvector('english', p.name || ' ' || p.description)"

// Repo implements usecase/search.ProductRepository.
type Repo struct {
	db postgres.Querier
}

// New creates a product repository.
func New(q postgres.Querier) *Repo {
	return &Repo{db: q}
}

// BuildFilter turns structured filters into an AND-chain of predicates.
// Absent filters add nothing; the in-stock clause is always present.
func BuildFilter(f filter.Filters) query.Predicate {
	var ps []query.Predicate
	if c := f.Category(); c != nil {
		ps = append(ps, query.Eq("p.category", string(*c)))
	}
	if m := f.MetalType(); m != nil {
		ps = append(ps, query.Eq("p.metal_type", string(*m)))
	}
	if v := f.MinPrice(); v != nil {
		ps = append(ps, query.Gte("p.price", *v))
	}
	if v := f.MaxPrice(); v != nil {
		ps = append(ps, query.Lte("p.price", *v))
	}
	ps = append(ps, query.Expr("p.stock_count > 0"))
	return query.And(ps...)
}

// SearchText ranks products by ts_rank. A product matches when the full-text
// query matches or the query is a literal substring of its name or description.
func (r *Repo) SearchText(ctx context.Context, q string, f filter.Filters, limit int) ([]result.Result, error) {
	b := query.New()
	tsq := b.Bind(q)
	pattern := b.Bind(query.Contains(q))

	where := b.Where(query.And(
		query.Or(
			query.Expr(document+" @@ plainto_tsquery('english', ?)", tsq),
			query.ILike("p.name", pattern),
			query.ILike("p.description", pattern),
		),
		BuildFilter(f),
	))
	lim := b.Bind(limit)

	sql := "SELECT " + strings.Join(columns, ", ") +
		", ts_rank(" + document + ", plainto_tsquery('english', " + string(tsq) + "))::float8 AS relevance_score" +
		" FROM products p " + where +
		" ORDER BY relevance_score DESC, p.price ASC, p.id ASC LIMIT " + string(lim)

	return r.query(ctx, sql, b.Args(), strategy.Text)
}

// SearchVector ranks products with an embedding by cosine similarity to vec.
// minSimilarity > 0 drops rows whose similarity does not exceed it.
func (r *Repo) SearchVector(
	ctx context.Context, vec []float32, f filter.Filters, limit int, minSimilarity float64,
) ([]result.Result, error) {
	b := query.New()
	v := b.Bind(pgvector.NewVector(vec))

	preds := []query.Predicate{query.NotNull("p.embedding"), BuildFilter(f)}
	if minSimilarity > 0 {
		preds = append(preds, query.Gt("1 - (p.embedding <=> "+string(v)+"::vector)", minSimilarity))
	}
	where := b.Where(query.And(preds...))
	lim := b.Bind(limit)

	sql := "SELECT " + strings.Join(columns, ", ") +
		", 1 - (p.embedding <=> " + string(v) + "::vector) AS similarity_score" +
		" FROM products p " + where +
		" ORDER BY similarity_score DESC, p.price ASC, p.id ASC LIMIT " + string(lim)

	return r.query(ctx, sql, b.Args(), strategy.Vector)
}

func (r *Repo) query(ctx context.Context, sql string, args []any, s strategy.Strategy) ([]result.Result, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, persistenceErr(db.OpQuery, err)
	}
	defer rows.Close()

	var out []result.Result
	for rows.Next() {
		p, score, err := scanProduct(rows)
		if err != nil {
			return nil, persistenceErr(db.OpScan, err)
		}
		out = append(out, result.New(p, score, s))
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceErr(db.OpQuery, err)
	}
	return out, nil
}

func scanProduct(row pgx.Row) (product.Product, float64, error) {
	var (
		p                         product.Product
		metalType, category       string
		condition, unit, currency string
		metadata                  []byte
		mint, grade, jewelry      pgtype.Text
		score                     float64
	)
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.SKU,
		&metalType, &category, &condition,
		&p.Weight, &unit, &p.Purity,
		&p.Price, &currency, &p.StockCount, &metadata,
		&mint, &grade, &jewelry,
		&score,
	)
	if err != nil {
		return product.Product{}, 0, err //nolint:wrapcheck // wrapped by caller
	}

	p.MetalType = product.MetalType(metalType)
	p.Category = product.Category(category)
	p.Condition = product.Condition(condition)
	p.WeightUnit = product.WeightUnit(unit)
	p.Currency = product.Currency(currency)
	p.Mint = product.Mint(mint.String)
	p.Grade = product.Grade(grade.String)
	p.JewelryType = product.JewelryType(jewelry.String)

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &p.Metadata); err != nil {
			return product.Product{}, 0, fmt.Errorf("decode metadata of %s: %w", p.ID, err)
		}
	}
	return p, score, nil
}

func persistenceErr(op string, err error) error {
	return fmt.Errorf("%w: %w", domain.ErrPersistence, &db.Error{Op: op, Err: err})
}
