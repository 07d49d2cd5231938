package datarecording

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"reflect"
	"strings"
)

// A Filter selects and orders rows. Where and OrderBy are SQL fragments
// without their keywords, and Args fill the placeholders of Where.
type Filter struct {
	Where   string
	Args    []any
	OrderBy string

	// Limit caps the number of rows; 0 reads every row.
	Limit  int
	Offset int
}

func (f Filter) clauses() string {
	var b strings.Builder

	if f.Where != "" {
		b.WriteString(" WHERE " + f.Where)
	}

	if f.OrderBy != "" {
		b.WriteString(" ORDER BY " + f.OrderBy)
	}

	if f.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d OFFSET %d", f.Limit, f.Offset)
	}

	return b.String()
}

// Reader reads the tables of a recording back into the structs their rows
// were written from.
type Reader struct {
	db       *sql.DB
	rowTypes map[string]reflect.Type
}

// OpenReader opens an existing recording. The ".sqlite3" extension may be
// left out, as it is when recording.
func OpenReader(path string) (*Reader, error) {
	filename := path
	if !strings.HasSuffix(filename, ".sqlite3") {
		if _, err := os.Stat(filename); err != nil {
			filename += ".sqlite3"
		}
	}

	if _, err := os.Stat(filename); err != nil {
		return nil, fmt.Errorf("opening recording: %w", err)
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return nil, err
	}

	return NewReaderWithDB(db), nil
}

// NewReaderWithDB creates a Reader on an open database.
func NewReaderWithDB(db *sql.DB) *Reader {
	return &Reader{
		db:       db,
		rowTypes: make(map[string]reflect.Type),
	}
}

// Register tells the reader which struct the rows of a table are read into.
// Columns without a field of the same name are skipped.
func (r *Reader) Register(table string, sample any) {
	r.rowTypes[table] = reflect.TypeOf(sample)
}

// Tables returns the names of the tables in the recording, sorted.
func (r *Reader) Tables(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string

	for rows.Next() {
		var name string

		err = rows.Scan(&name)
		if err != nil {
			return nil, err
		}

		names = append(names, name)
	}

	return names, rows.Err()
}

// Count returns the number of rows the filter selects, ignoring its limit.
func (r *Reader) Count(ctx context.Context, table string, f Filter) (int, error) {
	f.OrderBy = ""
	f.Limit = 0

	var n int

	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM "+table+f.clauses(), f.Args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting %s: %w", table, err)
	}

	return n, nil
}

// Each reads the selected rows one at a time. fn receives a pointer to the
// registered struct, and an error from fn stops the read.
func (r *Reader) Each(
	ctx context.Context,
	table string,
	f Filter,
	fn func(row any) error,
) error {
	rowType, ok := r.rowTypes[table]
	if !ok {
		return fmt.Errorf("table %s is not registered", table)
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT * FROM "+table+f.clauses(), f.Args...)
	if err != nil {
		return fmt.Errorf("reading %s: %w", table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return err
	}

	for rows.Next() {
		row := reflect.New(rowType)

		err = rows.Scan(scanTargets(row.Elem(), columns)...)
		if err != nil {
			return fmt.Errorf("reading %s: %w", table, err)
		}

		err = fn(row.Interface())
		if err != nil {
			return err
		}
	}

	return rows.Err()
}

// All reads every selected row.
func (r *Reader) All(ctx context.Context, table string, f Filter) ([]any, error) {
	var all []any

	err := r.Each(ctx, table, f, func(row any) error {
		all = append(all, row)
		return nil
	})

	return all, err
}

func scanTargets(row reflect.Value, columns []string) []any {
	targets := make([]any, len(columns))

	for i, name := range columns {
		field := row.FieldByName(name)
		if field.IsValid() && field.CanSet() {
			targets[i] = field.Addr().Interface()
			continue
		}

		var skipped any
		targets[i] = &skipped
	}

	return targets
}

// Close closes the database.
func (r *Reader) Close() error {
	return r.db.Close()
}
