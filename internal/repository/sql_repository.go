package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/go_cart/shopping-cart/internal/domain"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Dialect selects the SQL driver and migration set.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

type Credentials struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

func (c *Credentials) dsn() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.DBName)
}

type SQLRepository struct {
	db      *sql.DB
	dialect Dialect
}

// NewPostgresRepository opens a pooled Postgres connection. Call RunMigrations
// before serving traffic.
func NewPostgresRepository(cred *Credentials) (*SQLRepository, error) {
	db, err := sql.Open("postgres", cred.dsn())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	return &SQLRepository{db: db, dialect: DialectPostgres}, nil
}

// NewSQLiteRepository opens an embedded database at path (":memory:" works
// for tests).
func NewSQLiteRepository(path string) (*SQLRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// one connection keeps an in-memory database alive and serializes writers
	db.SetMaxOpenConns(1)
	return &SQLRepository{db: db, dialect: DialectSQLite}, nil
}

func (r *SQLRepository) FindByUsername(ctx context.Context, username string) ([]domain.CartLine, error) {
	query := `SELECT id, username, product_name, quantity, price, created_at, updated_at
	          FROM cart WHERE username = $1 ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, username)
	if err != nil {
		return nil, fmt.Errorf("query cart lines by username: %w", err)
	}
	defer rows.Close()

	lines := make([]domain.CartLine, 0)
	for rows.Next() {
		var line domain.CartLine
		var id int64
		if err := rows.Scan(
			&id,
			&line.Username,
			&line.ProductName,
			&line.Quantity,
			&line.Price,
			&line.CreatedAt,
			&line.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		line.ID = strconv.FormatInt(id, 10)
		lines = append(lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return lines, nil
}

func (r *SQLRepository) Save(ctx context.Context, line *domain.CartLine, expectedQuantity int) error {
	now := time.Now().UTC()

	if line.ID == "" {
		query := `INSERT INTO cart (username, product_name, product_key, quantity, price, created_at, updated_at)
		          VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`

		var id int64
		err := r.db.QueryRowContext(ctx, query,
			line.Username,
			line.ProductName,
			domain.ProductKey(line.ProductName),
			line.Quantity,
			line.Price,
			now,
			now).Scan(&id)
		if err != nil {
			if r.isUniqueViolation(err) {
				return ErrConcurrentUpdate
			}
			return fmt.Errorf("insert cart line: %w", err)
		}

		line.ID = strconv.FormatInt(id, 10)
		line.CreatedAt = now
		line.UpdatedAt = now
		return nil
	}

	id, err := strconv.ParseInt(line.ID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid cart line id %q: %w", line.ID, err)
	}

	query := `UPDATE cart SET quantity = $1, price = $2, updated_at = $3
	          WHERE id = $4 AND quantity = $5`

	result, err := r.db.ExecContext(ctx, query, line.Quantity, line.Price, now, id, expectedQuantity)
	if err != nil {
		return fmt.Errorf("update cart line: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update cart line: %w", err)
	}
	if affected == 0 {
		return ErrConcurrentUpdate
	}

	line.UpdatedAt = now
	return nil
}

func (r *SQLRepository) DeleteByID(ctx context.Context, id string) (*domain.CartLine, error) {
	numericID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, nil
	}

	query := `DELETE FROM cart WHERE id = $1
	          RETURNING id, username, product_name, quantity, price, created_at, updated_at`

	var line domain.CartLine
	var deletedID int64
	err = r.db.QueryRowContext(ctx, query, numericID).Scan(
		&deletedID,
		&line.Username,
		&line.ProductName,
		&line.Quantity,
		&line.Price,
		&line.CreatedAt,
		&line.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("delete cart line: %w", err)
	}

	line.ID = strconv.FormatInt(deletedID, 10)
	return &line, nil
}

func (r *SQLRepository) DeleteByUsername(ctx context.Context, username string) (int64, error) {
	uowCtx, cancel := independentContext(ctx)
	defer cancel()

	tx, err := r.db.BeginTx(uowCtx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin delete-by-username transaction: %w", err)
	}
	defer tx.Rollback() // no-op after commit

	result, err := tx.ExecContext(uowCtx, `DELETE FROM cart WHERE username = $1`, username)
	if err != nil {
		return 0, fmt.Errorf("delete cart lines of %s: %w", username, err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete cart lines of %s: %w", username, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit delete-by-username transaction: %w", err)
	}

	return deleted, nil
}

func (r *SQLRepository) Close(context.Context) error {
	return r.db.Close()
}

func (r *SQLRepository) isUniqueViolation(err error) bool {
	switch r.dialect {
	case DialectPostgres:
		var pqErr *pq.Error
		return errors.As(err, &pqErr) && pqErr.Code == "23505"
	case DialectSQLite:
		var liteErr *sqlite.Error
		if !errors.As(err, &liteErr) {
			return false
		}
		// without extended result codes only the primary code is set
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			(liteErr.Code() == sqlite3.SQLITE_CONSTRAINT && strings.Contains(liteErr.Error(), "UNIQUE"))
	}
	return false
}

func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
