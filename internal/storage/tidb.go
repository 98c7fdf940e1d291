package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/maneesh/mediadrop/internal/models"
)

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

const schemaBundles = `CREATE TABLE IF NOT EXISTS bundles (
	token            VARCHAR(64) NOT NULL PRIMARY KEY,
	attachment_count INT         NOT NULL,
	created_at       DATETIME(6) NOT NULL
)`

const schemaAttachments = `CREATE TABLE IF NOT EXISTS bundle_attachments (
	token       VARCHAR(64)  NOT NULL,
	order_index INT          NOT NULL,
	category    VARCHAR(16)  NOT NULL,
	file_id     VARCHAR(255) NOT NULL,
	caption     TEXT         NOT NULL,
	PRIMARY KEY (token, order_index)
)`

// TiDBBundleStore stores bundles in TiDB/MySQL with tracing. A bundle row and
// its attachment rows are written in one transaction.
type TiDBBundleStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewTiDBBundleStore opens and pings the database
func NewTiDBBundleStore(dsn string) (*TiDBBundleStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return NewTiDBBundleStoreFromDB(db), nil
}

// NewTiDBBundleStoreFromDB wraps an already opened handle.
func NewTiDBBundleStoreFromDB(db *sql.DB) *TiDBBundleStore {
	return &TiDBBundleStore{db: db, now: time.Now}
}

// Close closes the database connection
func (tc *TiDBBundleStore) Close() error {
	return tc.db.Close()
}

// EnsureSchema creates the bundle tables when they are missing.
func (tc *TiDBBundleStore) EnsureSchema(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "tidb.ensure_schema")
	defer span.End()

	for _, stmt := range []string{schemaBundles, schemaAttachments} {
		if _, err := tc.db.ExecContext(ctx, stmt); err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// Put inserts the bundle and its attachments atomically.
func (tc *TiDBBundleStore) Put(ctx context.Context, token string, attachments []models.Attachment) (err error) {
	ctx, span := tracer.Start(ctx, "tidb.put_bundle",
		trace.WithAttributes(
			attribute.String("token", token),
			attribute.Int("attachment_count", len(attachments)),
		),
	)
	defer span.End()

	if len(attachments) == 0 {
		return ErrEmptyBundle
	}

	tx, err := tc.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				span.RecordError(rbErr)
			}
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO bundles (token, attachment_count, created_at) VALUES (?, ?, ?)`,
		token, len(attachments), tc.now().UTC(),
	)
	if err != nil {
		if isDuplicateEntry(err) {
			span.SetAttributes(attribute.Bool("duplicate", true))
			return ErrDuplicateToken
		}
		span.RecordError(err)
		return fmt.Errorf("failed to insert bundle: %w", err)
	}

	for i, att := range attachments {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO bundle_attachments (token, order_index, category, file_id, caption) VALUES (?, ?, ?, ?, ?)`,
			token, i, att.Type.String(), att.FileID, att.Caption,
		)
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to insert attachment %d: %w", i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to commit bundle: %w", err)
	}

	span.SetAttributes(attribute.Bool("insert_success", true))
	return nil
}

// Get returns the bundle's attachments ordered by order_index.
func (tc *TiDBBundleStore) Get(ctx context.Context, token string) ([]models.Attachment, error) {
	ctx, span := tracer.Start(ctx, "tidb.get_bundle",
		trace.WithAttributes(
			attribute.String("token", token),
		),
	)
	defer span.End()

	query := `SELECT category, file_id, caption
			  FROM bundle_attachments
			  WHERE token = ?
			  ORDER BY order_index ASC`

	rows, err := tc.db.QueryContext(ctx, query, token)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query attachments: %w", err)
	}
	defer rows.Close()

	var attachments []models.Attachment
	for rows.Next() {
		var category, fileID, caption string
		if err := rows.Scan(&category, &fileID, &caption); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan attachment: %w", err)
		}
		c, err := models.ParseCategory(category)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("bundle %s: %w", token, err)
		}
		attachments = append(attachments, models.Attachment{Type: c, FileID: fileID, Caption: caption})
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error iterating attachments: %w", err)
	}

	// Put never commits a bundle without attachments.
	if len(attachments) == 0 {
		span.SetAttributes(attribute.Bool("found", false))
		return nil, ErrNotFound
	}

	span.SetAttributes(
		attribute.Bool("found", true),
		attribute.Int("attachment_count", len(attachments)),
	)
	return attachments, nil
}

func isDuplicateEntry(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry
}
