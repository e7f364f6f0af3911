package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/markdave123-py/CodeInsight/internal/config"
	"github.com/markdave123-py/CodeInsight/internal/core"
	"github.com/markdave123-py/CodeInsight/internal/models"
)

type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (*DatabaseClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	dsn, err := buildDSN(cfg.DatabaseURL, cfg.SslCertPath)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Sensible pool settings for an API service; adjust as needed.
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	// Ensure bootstrap once
	if err := EnsureBootstrapped(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

// buildDSN appends verify-ca SSL params when a root certificate is configured.
func buildDSN(databaseURL, certPath string) (string, error) {
	if certPath == "" {
		return databaseURL, nil
	}
	if _, err := os.Stat(certPath); err != nil {
		return "", fmt.Errorf("ssl cert not accessible at %q: %w", certPath, err)
	}
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid DATABASE_URL: %w", err)
	}
	q := u.Query()
	q.Set("sslmode", "verify-ca")
	q.Set("sslrootcert", certPath)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func nowIfZero(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

// Implementing the db interface for user

func (c *DatabaseClient) CreateUser(ctx context.Context, user *models.User) error {
	if user == nil {
		return errors.New("nil user")
	}
	user.CreatedAt = nowIfZero(user.CreatedAt)
	user.UpdatedAt = nowIfZero(user.UpdatedAt)
	const q = `
		INSERT INTO users (id, display_name, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := c.db.ExecContext(ctx, q,
		user.ID, user.DisplayName, user.Email, user.PasswordHash, user.CreatedAt, user.UpdatedAt)
	return err
}

func (c *DatabaseClient) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const q = `
		SELECT id, display_name, email, password_hash, created_at, updated_at
		FROM users WHERE email = $1
	`
	return c.scanUser(c.db.QueryRowContext(ctx, q, email))
}

func (c *DatabaseClient) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	const q = `
		SELECT id, display_name, email, password_hash, created_at, updated_at
		FROM users WHERE id = $1
	`
	return c.scanUser(c.db.QueryRowContext(ctx, q, id))
}

func (c *DatabaseClient) scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.DisplayName, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Token revocation backs logout for stateless JWTs.

func (c *DatabaseClient) RevokeToken(ctx context.Context, tokenID string, expiresAt time.Time) error {
	const q = `
		INSERT INTO revoked_tokens (token_id, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (token_id) DO NOTHING
	`
	if _, err := c.db.ExecContext(ctx, q, tokenID, expiresAt); err != nil {
		return err
	}
	// Expired entries can never match a valid token again.
	_, err := c.db.ExecContext(ctx, `DELETE FROM revoked_tokens WHERE expires_at < now()`)
	return err
}

func (c *DatabaseClient) IsTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	var revoked bool
	err := c.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE token_id = $1)`, tokenID).Scan(&revoked)
	return revoked, err
}

// Implementing the db interface for Collection

func (c *DatabaseClient) CreateCollection(ctx context.Context, col *models.Collection) error {
	if col == nil {
		return errors.New("nil collection")
	}
	col.CreatedAt = nowIfZero(col.CreatedAt)
	const q = `
		INSERT INTO collections (name, description, owner_id, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO NOTHING
	`
	res, err := c.db.ExecContext(ctx, q, col.Name, col.Description, col.OwnerID, col.CreatedAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", core.ErrCollectionExists, col.Name)
	}
	return nil
}

func (c *DatabaseClient) GetCollection(ctx context.Context, name string) (*models.Collection, error) {
	const q = `
		SELECT name, description, owner_id, created_at
		FROM collections WHERE name = $1
	`
	var col models.Collection
	err := c.db.QueryRowContext(ctx, q, name).Scan(&col.Name, &col.Description, &col.OwnerID, &col.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &col, nil
}

// Implementing the db interface for Document

func (c *DatabaseClient) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc == nil {
		return errors.New("nil document")
	}
	meta, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	doc.CreatedAt = nowIfZero(doc.CreatedAt)
	doc.UpdatedAt = nowIfZero(doc.UpdatedAt)
	const q = `
		INSERT INTO documents
			(id, collection_name, user_id, file_name, content_type, content, metadata, status, error, created_at, updated_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = c.db.ExecContext(ctx, q,
		doc.ID, doc.CollectionName, doc.UserID, doc.FileName, doc.ContentType, doc.Content,
		meta, doc.Status, doc.Error, doc.CreatedAt, doc.UpdatedAt)
	return err
}

func (c *DatabaseClient) GetDocumentByID(ctx context.Context, id string) (*models.Document, error) {
	const q = `
		SELECT id, collection_name, user_id, file_name, content_type, content, metadata, status, error, created_at, updated_at
		FROM documents
		WHERE id = $1
	`
	var (
		d    models.Document
		meta []byte
	)
	err := c.db.QueryRowContext(ctx, q, id).Scan(
		&d.ID, &d.CollectionName, &d.UserID, &d.FileName, &d.ContentType, &d.Content,
		&meta, &d.Status, &d.Error, &d.CreatedAt, &d.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrDocumentNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(meta, &d.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata for %s: %w", id, err)
	}
	return &d, nil
}

// ListDocumentsByCollection returns documents newest first, without content.
func (c *DatabaseClient) ListDocumentsByCollection(ctx context.Context, collection string) ([]models.Document, error) {
	const q = `
		SELECT id, collection_name, user_id, file_name, content_type, metadata, status, error, created_at, updated_at
		FROM documents
		WHERE collection_name = $1
		ORDER BY created_at DESC
	`
	return c.listDocuments(ctx, q, collection)
}

// ListDocumentsByStatus returns documents oldest first, without content.
func (c *DatabaseClient) ListDocumentsByStatus(ctx context.Context, status string) ([]models.Document, error) {
	const q = `
		SELECT id, collection_name, user_id, file_name, content_type, metadata, status, error, created_at, updated_at
		FROM documents
		WHERE status = $1
		ORDER BY created_at ASC
	`
	return c.listDocuments(ctx, q, status)
}

func (c *DatabaseClient) listDocuments(ctx context.Context, q string, arg string) ([]models.Document, error) {
	rows, err := c.db.QueryContext(ctx, q, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Document{}
	for rows.Next() {
		var (
			d    models.Document
			meta []byte
		)
		if err := rows.Scan(
			&d.ID, &d.CollectionName, &d.UserID, &d.FileName, &d.ContentType,
			&meta, &d.Status, &d.Error, &d.CreatedAt, &d.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(meta, &d.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata for %s: %w", d.ID, err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) UpdateDocumentStatus(ctx context.Context, id string, status string, reason string) error {
	const q = `
		UPDATE documents
		SET status = $2, error = $3, updated_at = now()
		WHERE id = $1
	`
	res, err := c.db.ExecContext(ctx, q, id, status, reason)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: %s", core.ErrDocumentNotFound, id)
	}
	return nil
}

// DeleteDocument removes the document row; its chunks cascade.
func (c *DatabaseClient) DeleteDocument(ctx context.Context, id string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: %s", core.ErrDocumentNotFound, id)
	}
	return nil
}

// Implementing the vector index on pgvector

// EnsureCollection is a no-op: every collection shares document_chunks.
func (c *DatabaseClient) EnsureCollection(ctx context.Context, collection string, dim int) error {
	return nil
}

// InsertDocumentChunks inserts chunks in a single transaction.
func (c *DatabaseClient) InsertDocumentChunks(ctx context.Context, collection string, chunks []models.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}

	const q = `
		INSERT INTO document_chunks
			(id, document_id, collection_name, position, text, embedding, token_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := range chunks {
		ch := &chunks[i]
		if ch.ID == "" {
			ch.ID = uuid.NewString()
		}
		vec := pgvector.NewVector(ch.Embedding)

		if _, err := stmt.ExecContext(ctx,
			ch.ID, ch.DocumentID, collection, ch.Position, ch.Text, vec, ch.TokenCount, nowIfZero(ch.CreatedAt),
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// SearchChunks finds top-k chunks in a collection by cosine similarity.
func (c *DatabaseClient) SearchChunks(ctx context.Context, collection string, queryVec []float32, limit int) ([]models.ScoredChunk, error) {
	const q = `
		SELECT c.id, c.document_id, c.position, c.text, c.token_count, d.file_name,
		       1 - (c.embedding <=> $2) AS score
		FROM document_chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE c.collection_name = $1 AND d.status = 'ready'
		ORDER BY c.embedding <=> $2
		LIMIT $3
	`
	vec := pgvector.NewVector(queryVec)
	rows, err := c.db.QueryContext(ctx, q, collection, vec, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ScoredChunk
	for rows.Next() {
		var ch models.ScoredChunk
		if err := rows.Scan(&ch.ID, &ch.DocumentID, &ch.Position, &ch.Text, &ch.TokenCount, &ch.FileName, &ch.Score); err != nil {
			return nil, err
		}
		ch.CollectionName = collection
		out = append(out, ch)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) DeleteDocumentChunks(ctx context.Context, collection string, documentID string) error {
	_, err := c.db.ExecContext(ctx,
		`DELETE FROM document_chunks WHERE collection_name = $1 AND document_id = $2`, collection, documentID)
	return err
}
