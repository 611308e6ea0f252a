package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	apperrors "assistant-workers/internal/common/errors"
	"assistant-workers/internal/models"

	"github.com/lib/pq"
)

const productColumns = `id, title, price, currency, category, activities, image_url, product_url`

// PostgresRepository reads the products table. Activities are stored as a
// comma separated string.
type PostgresRepository struct {
	db    *sql.DB
	limit int
}

// NewPostgresRepository reads the products table, listing at most limit rows.
func NewPostgresRepository(db *sql.DB, limit int) *PostgresRepository {
	if limit <= 0 {
		limit = 20
	}
	return &PostgresRepository{db: db, limit: limit}
}

func (r *PostgresRepository) Name() string { return "postgres" }

func (r *PostgresRepository) Lookup(ctx context.Context, q Query) ([]models.CatalogEntry, error) {
	var (
		rows *sql.Rows
		err  error
	)
	terms := searchTerms(q.Text)
	switch {
	case len(q.IDs) > 0:
		rows, err = r.db.QueryContext(ctx,
			`SELECT `+productColumns+` FROM products WHERE id = ANY($1)`, pq.Array(q.IDs))
	case len(terms) > 0:
		patterns := make([]string, len(terms))
		for i, term := range terms {
			patterns[i] = "%" + term + "%"
		}
		rows, err = r.db.QueryContext(ctx,
			`SELECT `+productColumns+` FROM products WHERE title ILIKE ANY($1) ORDER BY id LIMIT $2`,
			pq.Array(patterns), r.limit)
	default:
		rows, err = r.db.QueryContext(ctx,
			`SELECT `+productColumns+` FROM products ORDER BY id LIMIT $1`, r.limit)
	}
	if err != nil {
		return nil, r.wrap(ctx, err)
	}
	defer rows.Close()

	var entries []models.CatalogEntry
	for rows.Next() {
		e, err := scanProduct(rows)
		if err != nil {
			return nil, r.wrap(ctx, fmt.Errorf("scan product: %w", err))
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, r.wrap(ctx, err)
	}

	if len(q.IDs) > 0 {
		return orderByIDs(q.IDs, entries), nil
	}
	return entries, nil
}

func scanProduct(rows *sql.Rows) (models.CatalogEntry, error) {
	var (
		e        models.CatalogEntry
		price    sql.NullFloat64
		currency sql.NullString
		category sql.NullString
		acts     sql.NullString
		img      sql.NullString
		prodURL  sql.NullString
	)
	if err := rows.Scan(&e.ID, &e.Title, &price, &currency, &category, &acts, &img, &prodURL); err != nil {
		return e, err
	}
	if price.Valid {
		p := price.Float64
		e.Price = &p
	}
	e.Currency = currency.String
	e.Category = category.String
	e.Activities = splitActivities(acts.String)
	e.ImageURL = img.String
	e.ProductURL = prodURL.String
	return e, nil
}

func (r *PostgresRepository) wrap(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperrors.NewCatalogTimeoutError(r.Name())
	}
	return apperrors.NewCatalogLoadFailedError(r.Name(), err)
}
