package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nidhogg/lovebook/internal/content"
)

// scanner is satisfied by both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// table implements content.Repository[T] over one table whose first
// column is the text primary key "id".
type table[T any] struct {
	db      *pgxpool.Pool
	name    string
	columns []string          // id first
	sorts   map[string]string // sort field -> column
	idOf    func(*T) *string
	values  func(*T) []any // in column order, id first
	scan    func(scanner, *T) error
	prepare func(*T) // normalises a record before it is written
}

func (t *table[T]) selectList() string {
	return strings.Join(t.columns, ", ")
}

// Create assigns a fresh UUID to rec and inserts it.
func (t *table[T]) Create(ctx context.Context, rec *T) error {
	*t.idOf(rec) = uuid.New().String()
	if t.prepare != nil {
		t.prepare(rec)
	}

	placeholders := make([]string, len(t.columns))
	for i := range t.columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	sql := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		t.name, t.selectList(), strings.Join(placeholders, ", "))

	if _, err := t.db.Exec(ctx, sql, t.values(rec)...); err != nil {
		return classify("insert "+t.name, err)
	}
	return nil
}

// FindByID returns the record or ok == false when no row matches.
func (t *table[T]) FindByID(ctx context.Context, id string) (*T, bool, error) {
	row := t.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, t.selectList(), t.name), id)

	rec := new(T)
	if err := t.scan(row, rec); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, classify("get "+t.name+" "+id, err)
	}
	return rec, true, nil
}

// FindAll returns every row in insertion order.
func (t *table[T]) FindAll(ctx context.Context) ([]*T, error) {
	return t.query(ctx, fmt.Sprintf(`SELECT %s FROM %s ORDER BY created_at, id`, t.selectList(), t.name))
}

// FindSortedLimited returns at most limit rows ordered by s.
// A non-positive limit returns every row.
func (t *table[T]) FindSortedLimited(ctx context.Context, s content.Sort, limit int) ([]*T, error) {
	col, ok := t.sorts[s.Field]
	if !ok {
		return nil, fmt.Errorf("sort %s by %q: %w", t.name, s.Field, content.ErrValidation)
	}
	// NULL sorts as the smallest value, matching the in-memory backend.
	dir, nulls := "ASC", "NULLS FIRST"
	if s.Desc {
		dir, nulls = "DESC", "NULLS LAST"
	}
	sql := fmt.Sprintf(`SELECT %s FROM %s ORDER BY %s %s %s, created_at %s, id %s`,
		t.selectList(), t.name, col, dir, nulls, dir, dir)
	if limit > 0 {
		return t.query(ctx, sql+` LIMIT $1`, limit)
	}
	return t.query(ctx, sql)
}

// Save overwrites every non-id column of the row with rec's values.
func (t *table[T]) Save(ctx context.Context, rec *T) error {
	if t.prepare != nil {
		t.prepare(rec)
	}
	sets := make([]string, 0, len(t.columns)-1)
	for i, c := range t.columns[1:] {
		sets = append(sets, fmt.Sprintf("%s = $%d", c, i+2))
	}
	sql := fmt.Sprintf(`UPDATE %s SET %s WHERE id = $1`, t.name, strings.Join(sets, ", "))

	id := *t.idOf(rec)
	tag, err := t.db.Exec(ctx, sql, t.values(rec)...)
	if err != nil {
		return classify("update "+t.name+" "+id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update %s %s: %w", t.name, id, content.ErrNotFound)
	}
	return nil
}

func (t *table[T]) query(ctx context.Context, sql string, args ...any) ([]*T, error) {
	rows, err := t.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, classify("query "+t.name, err)
	}
	defer rows.Close()

	out := []*T{}
	for rows.Next() {
		rec := new(T)
		if err := t.scan(rows, rec); err != nil {
			return nil, classify("scan "+t.name, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate "+t.name, err)
	}
	return out, nil
}
