package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"order-sync-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite" // pure Go sqlite driver
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("not found")

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store for the given driver (postgres or sqlite)
// and applies the schema.
func NewStore(driver, databaseURL string) (*Store, error) {
	dsn := databaseURL
	if driver == "sqlite" && !strings.HasPrefix(dsn, "file:") {
		dsn = fmt.Sprintf("file:%s?_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", databaseURL)
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == "sqlite" {
		// sqlite serializes writers; a single connection avoids SQLITE_BUSY
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.migrate(ctx, driver); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// CreateProduct creates a new product
func (s *Store) CreateProduct(ctx context.Context, product *models.Product) error {
	product.CreatedAt = now()

	query := s.db.Rebind(`
		INSERT INTO products (sku, name, price, created_at)
		VALUES (?, ?, ?, ?)
		RETURNING id`)

	return s.db.GetContext(ctx, &product.ID, query,
		product.SKU, product.Name, product.Price, product.CreatedAt)
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, s.db.Rebind("SELECT * FROM products WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: product %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// DeleteProduct removes a product. Order items keep their dangling reference.
func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind("DELETE FROM products WHERE id = ?"), id)
	return err
}

// GetProductsByIDs retrieves the products with the given IDs
func (s *Store) GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	products := []models.Product{}
	if len(ids) == 0 {
		return products, nil
	}

	query, args, err := sqlx.In("SELECT * FROM products WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}

	err = s.db.SelectContext(ctx, &products, s.db.Rebind(query), args...)
	return products, err
}
