package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"product-catalog-engine/internal/domain"
)

// DefaultRecommendationLimit is used when a caller passes a non-positive limit.
const DefaultRecommendationLimit = 10

// Predefined errors for store operations
var (
	ErrSchemaMissing = errors.New("store: products table does not exist")
	ErrSourceFailed  = errors.New("store: product source failed")
)

// PostgresStore implements ProductSource on top of the products.products table.
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresStore creates a new PostgresStore instance.
func NewPostgresStore(db *sql.DB, logger *zap.Logger) *PostgresStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresStore{db: db, logger: logger.Named("postgres")}
}

const productColumns = `id, name, description, price, original_price, discount, category, tags, rating, sales, image_url, in_stock, created_at`

// ListProducts returns every product ordered by id.
func (s *PostgresStore) ListProducts(ctx context.Context) ([]domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products.products ORDER BY id;`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("store: ListProducts failed to query products: %w", classify(err))
	}
	defer rows.Close()

	products, err := scanProducts(rows, 0)
	if err != nil {
		return nil, fmt.Errorf("store: ListProducts %w", err)
	}
	return products, nil
}

// ListRecommendations returns up to limit products picked at random.
func (s *PostgresStore) ListRecommendations(ctx context.Context, limit int) ([]domain.Product, error) {
	if limit <= 0 {
		limit = DefaultRecommendationLimit
	}
	query := `SELECT ` + productColumns + ` FROM products.products ORDER BY random() LIMIT $1;`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("store: ListRecommendations failed to query products: %w", classify(err))
	}
	defer rows.Close()

	products, err := scanProducts(rows, limit)
	if err != nil {
		return nil, fmt.Errorf("store: ListRecommendations %w", err)
	}
	return products, nil
}

func scanProducts(rows *sql.Rows, capacity int) ([]domain.Product, error) {
	products := make([]domain.Product, 0, capacity)
	for rows.Next() {
		var (
			p             domain.Product
			description   sql.NullString
			originalPrice sql.NullFloat64
			discount      sql.NullInt32
			imageURL      sql.NullString
			category      string
		)
		if err := rows.Scan(
			&p.ID, &p.Name, &description, &p.Price, &originalPrice, &discount,
			&category, pq.Array(&p.Tags), &p.Rating, &p.Sales, &imageURL,
			&p.InStock, &p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan product row: %w", err)
		}
		p.Category = domain.Category(category)
		p.Description = description.String
		p.ImageURL = imageURL.String
		if originalPrice.Valid {
			p.OriginalPrice = &originalPrice.Float64
		}
		if discount.Valid {
			d := int(discount.Int32)
			p.Discount = &d
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iteration error: %w", err)
	}
	return products, nil
}

// classify maps well-known PostgreSQL error codes to store errors.
func classify(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "42P01" { // undefined_table
		return fmt.Errorf("%w: %v", ErrSchemaMissing, err)
	}
	return fmt.Errorf("%w: %v", ErrSourceFailed, err)
}

func (s *PostgresStore) Close() error {
	if s.db != nil {
		s.logger.Info("closing database connection pool")
		if err := s.db.Close(); err != nil {
			s.logger.Error("failed to close database connection pool", zap.Error(err))
			return err
		}
		return nil
	}
	return nil
}
