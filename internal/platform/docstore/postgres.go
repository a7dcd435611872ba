package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres stores documents as JSONB rows in the documents table created by
// migrations/001_documents.sql. The (collection, key) primary key is what
// makes deterministic keys behave like a unique constraint.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) Get(ctx context.Context, collection, key string, dst any) error {
	var body []byte
	err := p.pool.QueryRow(ctx,
		`SELECT body FROM documents WHERE collection = $1 AND key = $2`,
		collection, key).Scan(&body)
	if err != nil {
		return classifyPG("get", err)
	}
	return json.Unmarshal(body, dst)
}

func (p *Postgres) Set(ctx context.Context, collection, key string, doc any) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO documents (collection, key, body)
		VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection, key) DO UPDATE SET body = EXCLUDED.body, updated_at = NOW()`,
		collection, key, string(body))
	if err != nil {
		return classifyPG("set", err)
	}
	return nil
}

func (p *Postgres) Update(ctx context.Context, collection, key string, fields map[string]any) error {
	patch, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode fields: %w", err)
	}
	tag, err := p.pool.Exec(ctx, `
		UPDATE documents SET body = body || $3::jsonb, updated_at = NOW()
		WHERE collection = $1 AND key = $2`,
		collection, key, string(patch))
	if err != nil {
		return classifyPG("update", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) Query(ctx context.Context, collection string, q Query) ([]Snapshot, error) {
	sql, args, err := buildPGQuery(collection, q)
	if err != nil {
		return nil, err
	}
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, classifyPG("query", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var s jsonSnapshot
		if err := rows.Scan(&s.key, &s.raw); err != nil {
			return nil, classifyPG("query", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyPG("query", err)
	}
	return out, nil
}

func (p *Postgres) Close(context.Context) error {
	p.pool.Close()
	return nil
}

// pgFieldPattern limits filter fields to names that are safe to inline as a
// JSONB key literal.
var pgFieldPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// buildPGQuery renders a Query as SQL. String filters compare body->>'field'
// so the expression indexes in migrations/002 apply. Other values use JSONB
// containment and compare by their JSON encoding.
func buildPGQuery(collection string, q Query) (string, []any, error) {
	var sb strings.Builder
	args := []any{collection}
	sb.WriteString(`SELECT key, body FROM documents WHERE collection = $1`)

	for _, f := range q.Filters {
		if !pgFieldPattern.MatchString(f.Field) {
			return "", nil, fmt.Errorf("invalid filter field %q", f.Field)
		}
		if str, ok := f.Value.(string); ok {
			args = append(args, str)
			fmt.Fprintf(&sb, ` AND body->>'%s' = $%d`, f.Field, len(args))
			continue
		}
		probe, err := json.Marshal(map[string]any{f.Field: f.Value})
		if err != nil {
			return "", nil, fmt.Errorf("encode filter %s: %w", f.Field, err)
		}
		args = append(args, string(probe))
		fmt.Fprintf(&sb, ` AND body @> $%d::jsonb`, len(args))
	}

	dir := "ASC"
	if q.StartAfter != "" {
		args = append(args, q.StartAfter)
		cmp := ">"
		if q.Descending {
			cmp = "<"
		}
		fmt.Fprintf(&sb, ` AND key %s $%d`, cmp, len(args))
	}
	if q.Descending {
		dir = "DESC"
	}
	fmt.Fprintf(&sb, ` ORDER BY key %s`, dir)

	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&sb, ` LIMIT $%d`, len(args))
	}
	return sb.String(), args, nil
}

func classifyPG(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var connErr *pgconn.ConnectError
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
		pgconn.Timeout(err) || errors.As(err, &connErr) {
		return Unavailable(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// jsonSnapshot is shared by the backends that hand back raw JSON bodies.
type jsonSnapshot struct {
	key string
	raw []byte
}

func (s jsonSnapshot) Key() string { return s.key }

func (s jsonSnapshot) DataTo(dst any) error { return json.Unmarshal(s.raw, dst) }
