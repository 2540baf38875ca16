package embedding

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/pgvector/pgvector-go"

	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/db"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/entity"
)

// DefaultTable is the Postgres table holding entity vectors.
const DefaultTable = "entity_embeddings"

// PGRepo stores entity vectors in Postgres with the pgvector extension.
// Each row holds all four vectors; missing ones are NULL.
type PGRepo struct {
	db    *sql.DB
	table string
}

// OpenPostgres connects through the pgx database/sql driver and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, &db.Error{Op: db.OpPing, Err: err}
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, &db.Error{Op: db.OpPing, Err: err}
	}
	return conn, nil
}

// NewPG creates a pgvector-backed embedding repository over an open connection.
func NewPG(conn *sql.DB, table string) *PGRepo {
	if table == "" {
		table = DefaultTable
	}
	return &PGRepo{db: conn, table: table}
}

// Ping verifies the connection.
func (r *PGRepo) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

var vectorColumns = []string{
	FieldName(domain.ProfilePrimary, domain.SpaceA),
	FieldName(domain.ProfilePrimary, domain.SpaceB),
	FieldName(domain.ProfileSecondary, domain.SpaceA),
	FieldName(domain.ProfileSecondary, domain.SpaceB),
}

// schemaStatements returns the DDL for the table and its HNSW index.
// dim <= 0 leaves the columns untyped and skips the ANN index.
func schemaStatements(table string, dim int) []string {
	colType := "vector"
	if dim > 0 {
		colType = fmt.Sprintf("vector(%d)", dim)
	}
	cols := make([]string, 0, len(vectorColumns)+1)
	cols = append(cols, "symbol TEXT PRIMARY KEY")
	for _, c := range vectorColumns {
		cols = append(cols, c+" "+colType)
	}
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n    %s\n)", table, strings.Join(cols, ",\n    ")),
	}
	if dim > 0 {
		stmts = append(stmts, fmt.Sprintf(
			"CREATE INDEX IF NOT EXISTS %s_%s_hnsw ON %s USING hnsw (%s vector_cosine_ops)",
			table, vectorColumns[0], table, vectorColumns[0]))
	}
	return stmts
}

// EnsureIndex creates the extension, table and HNSW index when missing.
func (r *PGRepo) EnsureIndex(ctx context.Context, dim int) error {
	for _, stmt := range schemaStatements(r.table, dim) {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return &db.Error{Op: db.OpMigrate, Err: err}
		}
	}
	return nil
}

func upsertStatement(table string) string {
	sets := make([]string, len(vectorColumns))
	for i, c := range vectorColumns {
		sets[i] = fmt.Sprintf("%s = COALESCE(EXCLUDED.%s, %s.%s)", c, c, table, c)
	}
	return fmt.Sprintf(
		"INSERT INTO %s (symbol, %s) VALUES ($1, $2, $3, $4, $5)\nON CONFLICT (symbol) DO UPDATE SET %s",
		table, strings.Join(vectorColumns, ", "), strings.Join(sets, ", "))
}

func nullableVector(v []float32) any {
	if len(v) == 0 {
		return nil
	}
	return pgvector.NewVector(v)
}

// Put upserts the vectors present in rec. Absent vectors keep their stored value.
func (r *PGRepo) Put(ctx context.Context, symbol string, rec entity.EmbeddingRecord) error {
	_, err := r.db.ExecContext(ctx, upsertStatement(r.table), symbol,
		nullableVector(rec.PrimaryA), nullableVector(rec.PrimaryB),
		nullableVector(rec.SecondaryA), nullableVector(rec.SecondaryB))
	if err != nil {
		return &db.Error{Op: db.OpUpsert, Err: fmt.Errorf("upsert %s: %w", symbol, err)}
	}
	return nil
}

// PutMany upserts several records in one transaction.
func (r *PGRepo) PutMany(ctx context.Context, recs map[string]entity.EmbeddingRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return &db.Error{Op: db.OpUpsert, Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, upsertStatement(r.table))
	if err != nil {
		return &db.Error{Op: db.OpUpsert, Err: err}
	}
	defer stmt.Close()

	for symbol, rec := range recs {
		if _, err := stmt.ExecContext(ctx, symbol,
			nullableVector(rec.PrimaryA), nullableVector(rec.PrimaryB),
			nullableVector(rec.SecondaryA), nullableVector(rec.SecondaryB)); err != nil {
			return &db.Error{Op: db.OpUpsert, Err: fmt.Errorf("upsert %s: %w", symbol, err)}
		}
	}
	if err := tx.Commit(); err != nil {
		return &db.Error{Op: db.OpUpsert, Err: err}
	}
	return nil
}

// All loads every stored row.
func (r *PGRepo) All(ctx context.Context) (map[string]entity.EmbeddingRecord, error) {
	query := fmt.Sprintf("SELECT symbol, %s FROM %s", strings.Join(vectorColumns, ", "), r.table)
	return r.query(ctx, query)
}

// Fetch loads rows for the given symbols.
func (r *PGRepo) Fetch(ctx context.Context, symbols []string) (map[string]entity.EmbeddingRecord, error) {
	if len(symbols) == 0 {
		return map[string]entity.EmbeddingRecord{}, nil
	}
	query := fmt.Sprintf("SELECT symbol, %s FROM %s WHERE symbol = ANY($1)",
		strings.Join(vectorColumns, ", "), r.table)
	return r.query(ctx, query, symbols)
}

func (r *PGRepo) query(ctx context.Context, query string, args ...any) (map[string]entity.EmbeddingRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &db.Error{Op: db.OpSelect, Err: err}
	}
	defer rows.Close()

	out := make(map[string]entity.EmbeddingRecord)
	for rows.Next() {
		var (
			symbol string
			vecs   [4]sql.Null[pgvector.Vector]
		)
		if err := rows.Scan(&symbol, &vecs[0], &vecs[1], &vecs[2], &vecs[3]); err != nil {
			return nil, &db.Error{Op: db.OpSelect, Err: err}
		}
		var rec entity.EmbeddingRecord
		for i, v := range vecs {
			if v.Valid {
				p, s := columnProfileSpace(i)
				rec.Set(p, s, v.V.Slice())
			}
		}
		out[symbol] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, &db.Error{Op: db.OpSelect, Err: err}
	}
	return out, nil
}

func columnProfileSpace(i int) (domain.Profile, domain.Space) {
	return domain.Profiles[i/2], domain.Spaces[i%2]
}

// Nearest returns up to k entities ordered by cosine similarity of primary_embed_a to vec.
func (r *PGRepo) Nearest(ctx context.Context, vec []float32, k int) ([]entity.Neighbor, error) {
	col := vectorColumns[0]
	query := fmt.Sprintf(
		"SELECT symbol, 1 - (%s <=> $1) AS similarity FROM %s WHERE %s IS NOT NULL ORDER BY %s <=> $1 LIMIT $2",
		col, r.table, col, col)

	rows, err := r.db.QueryContext(ctx, query, pgvector.NewVector(vec), k)
	if err != nil {
		return nil, &db.Error{Op: db.OpSelect, Err: err}
	}
	defer rows.Close()

	var out []entity.Neighbor
	for rows.Next() {
		var n entity.Neighbor
		if err := rows.Scan(&n.Symbol, &n.Similarity); err != nil {
			return nil, &db.Error{Op: db.OpSelect, Err: err}
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, &db.Error{Op: db.OpSelect, Err: err}
	}
	return out, nil
}
