package document

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	_ "modernc.org/sqlite" // registers the pure-Go "sqlite" driver

	"github.com/kailas-cloud/hybridex/internal/domain"
	domdoc "github.com/kailas-cloud/hybridex/internal/domain/document"
	"github.com/kailas-cloud/hybridex/internal/domain/document/metadata"
)

const driverName = "sqlite"

// fixed width so text order matches time order
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLite is a durable store backed by a single SQLite file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies migrations.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	// single writer; WAL lets readers proceed during writes
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if err := applyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}
	return nil
}

// Ping checks the connection.
func (s *SQLite) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sqlite: %w", err)
	}
	return nil
}

// Create inserts doc. Fails with ErrDuplicateID if the id exists.
func (s *SQLite) Create(ctx context.Context, doc domdoc.Document) error {
	md, err := json.Marshal(doc.Metadata())
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, title, body, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		doc.ID(), doc.Title(), doc.Body(), string(md),
		formatTime(doc.CreatedAt()), formatTime(doc.UpdatedAt()))
	if err != nil {
		return fmt.Errorf("insert document %s: %w", doc.ID(), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert document %s: %w", doc.ID(), err)
	}
	if n == 0 {
		return fmt.Errorf("document %s: %w", doc.ID(), domain.ErrDuplicateID)
	}
	return nil
}

// Put inserts or replaces doc. A stored embedding is kept.
func (s *SQLite) Put(ctx context.Context, doc domdoc.Document) error {
	md, err := json.Marshal(doc.Metadata())
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (id, title, body, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			body = excluded.body,
			metadata = excluded.metadata,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at`,
		doc.ID(), doc.Title(), doc.Body(), string(md),
		formatTime(doc.CreatedAt()), formatTime(doc.UpdatedAt()))
	if err != nil {
		return fmt.Errorf("upsert document %s: %w", doc.ID(), err)
	}
	return nil
}

// Get returns the document with id.
func (s *SQLite) Get(ctx context.Context, id string) (domdoc.Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, body, metadata, created_at, updated_at
		FROM documents WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domdoc.Document{}, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domdoc.Document{}, fmt.Errorf("get document %s: %w", id, err)
	}
	return doc, nil
}

// Delete removes the document. Its embedding goes with it through the foreign key.
func (s *SQLite) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// List returns limit documents starting at offset, in creation order.
func (s *SQLite) List(ctx context.Context, offset, limit int) (Page, error) {
	total, err := s.Count(ctx)
	if err != nil {
		return Page{}, err
	}
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = -1 // sqlite: no limit
	}
	docs, err := s.query(ctx, `
		SELECT id, title, body, metadata, created_at, updated_at
		FROM documents ORDER BY created_at, id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return Page{}, err
	}
	return Page{Documents: docs, Total: total}, nil
}

// All returns every document in creation order.
func (s *SQLite) All(ctx context.Context) ([]domdoc.Document, error) {
	return s.query(ctx, `
		SELECT id, title, body, metadata, created_at, updated_at
		FROM documents ORDER BY created_at, id`)
}

// Count returns the number of stored documents.
func (s *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

// PutEmbedding stores the embedding of id.
func (s *SQLite) PutEmbedding(ctx context.Context, id string, e Embedding) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO embeddings (doc_id, content_hash, dimension, vector)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(doc_id) DO UPDATE SET
			content_hash = excluded.content_hash,
			dimension = excluded.dimension,
			vector = excluded.vector`,
		id, e.Hash, len(e.Vector), encodeVector(e.Vector))
	if err != nil {
		// the foreign key rejects embeddings of unknown documents
		if _, gerr := s.Get(ctx, id); errors.Is(gerr, domain.ErrNotFound) {
			return gerr
		}
		return fmt.Errorf("put embedding %s: %w", id, err)
	}
	return nil
}

// GetEmbedding returns the stored embedding of id.
func (s *SQLite) GetEmbedding(ctx context.Context, id string) (Embedding, error) {
	var hash string
	var dim int
	var blob []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT content_hash, dimension, vector FROM embeddings WHERE doc_id = ?`, id).
		Scan(&hash, &dim, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return Embedding{}, fmt.Errorf("embedding %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return Embedding{}, fmt.Errorf("get embedding %s: %w", id, err)
	}
	vec, err := decodeVector(blob)
	if err != nil || len(vec) != dim {
		return Embedding{}, domain.NewIndexCorrupt("document store",
			fmt.Sprintf("embedding %s: stored dimension %d, decoded %d", id, dim, len(vec)))
	}
	return Embedding{Hash: hash, Vector: vec}, nil
}

func (s *SQLite) query(ctx context.Context, q string, args ...any) ([]domdoc.Document, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var docs []domdoc.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(r scanner) (domdoc.Document, error) {
	var id, title, body, md, created, updated string
	if err := r.Scan(&id, &title, &body, &md, &created, &updated); err != nil {
		return domdoc.Document{}, err //nolint:wrapcheck // callers wrap with the document id
	}
	var m metadata.Map
	if err := json.Unmarshal([]byte(md), &m); err != nil {
		return domdoc.Document{}, fmt.Errorf("metadata of %s: %w", id, err)
	}
	createdAt, err := time.Parse(timeLayout, created)
	if err != nil {
		return domdoc.Document{}, fmt.Errorf("created_at of %s: %w", id, err)
	}
	updatedAt, err := time.Parse(timeLayout, updated)
	if err != nil {
		return domdoc.Document{}, fmt.Errorf("updated_at of %s: %w", id, err)
	}
	return domdoc.Reconstruct(id, title, body, m, createdAt, updatedAt), nil
}

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}
