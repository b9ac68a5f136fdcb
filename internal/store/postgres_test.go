package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"product-catalog-engine/internal/domain"
)

// Helper function to create a mock DB and PostgresStore for testing
func newMockDBAndStore(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresStore) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err, "Failed to create sqlmock")

	store := NewPostgresStore(db, zap.NewNop())
	require.NotNil(t, store, "Store should not be nil")

	return db, mock, store
}

var productRowColumns = []string{
	"id", "name", "description", "price", "original_price", "discount", "category",
	"tags", "rating", "sales", "image_url", "in_stock", "created_at",
}

func TestPostgresStore_ListProducts(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	now := time.Now().Truncate(time.Millisecond)
	rows := sqlmock.NewRows(productRowColumns).
		AddRow(int64(1), "Desk Lamp", "warm light", 120.0, 200.0, int64(40), "home", "{hot,new}", 4.5, int64(12), "https://example.com/1.jpg", true, now).
		AddRow(int64(2), "Green Tea", nil, 15.0, nil, nil, "food", "{}", 3.0, int64(0), nil, false, now)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM products.products ORDER BY id;`)).WillReturnRows(rows)

	products, err := store.ListProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)

	lamp := products[0]
	assert.Equal(t, int64(1), lamp.ID)
	assert.Equal(t, domain.CategoryHome, lamp.Category)
	assert.Equal(t, []string{"hot", "new"}, lamp.Tags)
	require.NotNil(t, lamp.OriginalPrice)
	assert.Equal(t, 200.0, *lamp.OriginalPrice)
	require.NotNil(t, lamp.Discount)
	assert.Equal(t, 40, *lamp.Discount)
	assert.Equal(t, "warm light", lamp.Description)
	assert.True(t, lamp.InStock)

	tea := products[1]
	assert.Nil(t, tea.OriginalPrice)
	assert.Nil(t, tea.Discount)
	assert.Empty(t, tea.Description)
	assert.Empty(t, tea.ImageURL)
	assert.False(t, tea.InStock)

	require.NoError(t, domain.ValidateProducts(domain.NewValidator(), products))
	require.NoError(t, mock.ExpectationsWereMet(), "SQLmock expectations were not met")
}

func TestPostgresStore_ListProducts_Empty(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM products.products ORDER BY id;`)).
		WillReturnRows(sqlmock.NewRows(productRowColumns))

	products, err := store.ListProducts(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, products)
	assert.Empty(t, products)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListProducts_MissingTable(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM products.products`)).
		WillReturnError(&pq.Error{Code: "42P01", Message: `relation "products.products" does not exist`})

	_, err := store.ListProducts(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchemaMissing), "Error should be ErrSchemaMissing")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListProducts_ScanError(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	rows := sqlmock.NewRows(productRowColumns).
		AddRow("not-an-id", "x", nil, 1.0, nil, nil, "home", "{}", 1.0, int64(0), nil, true, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta(`FROM products.products`)).WillReturnRows(rows)

	_, err := store.ListProducts(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to scan product row")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRecommendations(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	now := time.Now()
	query := regexp.QuoteMeta(`FROM products.products ORDER BY random() LIMIT $1;`)

	mock.ExpectQuery(query).WithArgs(3).
		WillReturnRows(sqlmock.NewRows(productRowColumns).
			AddRow(int64(5), "Face Cream", "", 80.0, nil, nil, "beauty", "{sale}", 5.0, int64(3), nil, true, now))
	products, err := store.ListRecommendations(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, int64(5), products[0].ID)

	mock.ExpectQuery(query).WithArgs(DefaultRecommendationLimit).
		WillReturnError(errors.New("connection reset"))
	_, err = store.ListRecommendations(context.Background(), 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceFailed)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Close(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	mock.ExpectClose()
	require.NoError(t, store.Close())
	require.NoError(t, mock.ExpectationsWereMet())
	_ = db
}
