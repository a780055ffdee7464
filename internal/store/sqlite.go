// Package store provides the SQLite implementation of the Store interface.
package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/genbatech/chie/internal/models"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes
// the schema. Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		logical_type TEXT NOT NULL,
		original_name TEXT NOT NULL,
		title TEXT,
		description TEXT,
		content TEXT NOT NULL,
		structured TEXT,
		metadata TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at);
	CREATE INDEX IF NOT EXISTS idx_documents_type_created ON documents(logical_type, created_at);

	CREATE TABLE IF NOT EXISTS version_diffs (
		id TEXT PRIMARY KEY,
		logical_type TEXT NOT NULL,
		compared_against TEXT,
		segments TEXT NOT NULL,
		unavailable INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_diffs_type_created ON version_diffs(logical_type, created_at);

	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		content TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		embedding BLOB,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_document_id ON chunks(document_id);
	CREATE INDEX IF NOT EXISTS idx_chunks_document_chunk ON chunks(document_id, chunk_index);
	`
	_, err := db.Exec(schema)
	return err
}

// SaveDocumentWithChunks inserts a document and all its chunks in a single
// transaction. Either everything becomes visible or nothing does; a failed
// chunk insert leaves no document row behind.
func (s *SQLiteStore) SaveDocumentWithChunks(ctx context.Context, doc *models.ProcessedDocument, chunks []*models.Chunk) error {
	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO documents (id, logical_type, original_name, title, description, content, structured, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.LogicalType, doc.OriginalName, doc.Title, doc.Description,
		doc.Content, string(doc.Structured), string(metadataJSON), doc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}

	if len(chunks) > 0 {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO chunks (id, document_id, content, chunk_index, embedding, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
		)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, chunk := range chunks {
			if chunk.CreatedAt.IsZero() {
				chunk.CreatedAt = doc.CreatedAt
			}
			if _, err := stmt.ExecContext(ctx,
				chunk.ID, chunk.DocumentID, chunk.Content, chunk.ChunkIndex,
				embeddingToBytes(chunk.Embedding), chunk.CreatedAt,
			); err != nil {
				return fmt.Errorf("failed to insert chunk %d: %w", chunk.ChunkIndex, err)
			}
		}
	}

	return tx.Commit()
}

// GetDocument returns a document by ID.
func (s *SQLiteStore) GetDocument(ctx context.Context, id string) (*models.ProcessedDocument, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, logical_type, original_name, title, description, content, structured, metadata, created_at
		 FROM documents WHERE id = ?`, id,
	)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("document %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// DeleteDocument removes a document by ID; chunks cascade.
func (s *SQLiteStore) DeleteDocument(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// ListDocuments returns document summaries newest first. Rows with equal
// timestamps are ordered by insertion order, newest first, so listing is
// deterministic even within one clock tick.
func (s *SQLiteStore) ListDocuments(ctx context.Context, offset, limit int) ([]*models.DocumentSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, logical_type, title, description, created_at
		 FROM documents ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	return scanSummaries(rows)
}

// SearchDocuments returns summaries whose title or description contains the
// query as a substring, case-insensitive for ASCII, newest first.
func (s *SQLiteStore) SearchDocuments(ctx context.Context, query string, limit int) ([]*models.DocumentSummary, error) {
	pattern := "%" + escapeLike(query) + "%"
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, logical_type, title, description, created_at
		 FROM documents
		 WHERE title LIKE ? ESCAPE '\' OR description LIKE ? ESCAPE '\'
		 ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		pattern, pattern, limit,
	)
	if err != nil {
		return nil, err
	}
	return scanSummaries(rows)
}

// LatestByType returns the most recently created document of a logical type.
func (s *SQLiteStore) LatestByType(ctx context.Context, logicalType string) (*models.ProcessedDocument, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, logical_type, original_name, title, description, content, structured, metadata, created_at
		 FROM documents WHERE logical_type = ?
		 ORDER BY created_at DESC, rowid DESC LIMIT 1`, logicalType,
	)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no document of type %s: %w", logicalType, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// SaveDiff inserts a version diff.
func (s *SQLiteStore) SaveDiff(ctx context.Context, diff *models.VersionDiff) error {
	segmentsJSON, err := json.Marshal(diff.Segments)
	if err != nil {
		return fmt.Errorf("failed to marshal segments: %w", err)
	}
	if diff.CreatedAt.IsZero() {
		diff.CreatedAt = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO version_diffs (id, logical_type, compared_against, segments, unavailable, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		diff.ID, diff.LogicalType, diff.ComparedAgainst, string(segmentsJSON),
		boolToInt(diff.Unavailable), diff.CreatedAt,
	)
	return err
}

// ListDiffsByType returns the diff history of a logical type, newest first.
func (s *SQLiteStore) ListDiffsByType(ctx context.Context, logicalType string) ([]*models.VersionDiff, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, logical_type, compared_against, segments, unavailable, created_at
		 FROM version_diffs WHERE logical_type = ?
		 ORDER BY created_at DESC, rowid DESC`, logicalType,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var diffs []*models.VersionDiff
	for rows.Next() {
		var d models.VersionDiff
		var segmentsJSON string
		var unavailable int
		if err := rows.Scan(&d.ID, &d.LogicalType, &d.ComparedAgainst, &segmentsJSON, &unavailable, &d.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(segmentsJSON), &d.Segments); err != nil {
			return nil, fmt.Errorf("failed to unmarshal segments: %w", err)
		}
		d.Unavailable = unavailable != 0
		diffs = append(diffs, &d)
	}
	return diffs, rows.Err()
}

// GetChunksByDocumentID returns all chunks for a document ordered by
// chunk_index, embeddings decoded.
func (s *SQLiteStore) GetChunksByDocumentID(ctx context.Context, docID string) ([]*models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, content, chunk_index, embedding, created_at
		 FROM chunks WHERE document_id = ? ORDER BY chunk_index`, docID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*models.Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

// GetChunk returns a chunk by ID.
func (s *SQLiteStore) GetChunk(ctx context.Context, id string) (*models.Chunk, error) {
	var chunk models.Chunk
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT id, document_id, content, chunk_index, embedding, created_at
		 FROM chunks WHERE id = ?`, id,
	).Scan(&chunk.ID, &chunk.DocumentID, &chunk.Content, &chunk.ChunkIndex, &blob, &chunk.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("chunk %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	chunk.Embedding = bytesToEmbedding(blob)
	return &chunk, nil
}

// CountDocuments returns the total number of documents.
func (s *SQLiteStore) CountDocuments(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

// CountChunks returns the total number of chunks.
func (s *SQLiteStore) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*models.ProcessedDocument, error) {
	var doc models.ProcessedDocument
	var structured, metadataJSON string
	err := row.Scan(&doc.ID, &doc.LogicalType, &doc.OriginalName, &doc.Title,
		&doc.Description, &doc.Content, &structured, &metadataJSON, &doc.CreatedAt)
	if err != nil {
		return nil, err
	}
	if structured != "" {
		doc.Structured = json.RawMessage(structured)
	}
	if metadataJSON != "" {
		if err := json.Unmarshal([]byte(metadataJSON), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return &doc, nil
}

func scanChunk(row rowScanner) (*models.Chunk, error) {
	var chunk models.Chunk
	var blob []byte
	if err := row.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Content, &chunk.ChunkIndex, &blob, &chunk.CreatedAt); err != nil {
		return nil, err
	}
	chunk.Embedding = bytesToEmbedding(blob)
	return &chunk, nil
}

func scanSummaries(rows *sql.Rows) ([]*models.DocumentSummary, error) {
	defer rows.Close()
	var docs []*models.DocumentSummary
	for rows.Next() {
		var d models.DocumentSummary
		if err := rows.Scan(&d.ID, &d.LogicalType, &d.Title, &d.Description, &d.CreatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, &d)
	}
	return docs, rows.Err()
}

// embeddingToBytes encodes a vector as little-endian float32 bytes.
func embeddingToBytes(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	b := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(f))
	}
	return b
}

// bytesToEmbedding decodes little-endian float32 bytes into a vector.
func bytesToEmbedding(b []byte) []float32 {
	if len(b) < 4 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
