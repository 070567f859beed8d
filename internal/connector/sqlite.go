package connector

import (
	"database/sql"
	"fmt"

	"github.com/dshills/agentsearch-mcp/internal/storage"
)

// openReadOnly opens a source database without ever writing to it. Connector
// source stores are read-only inputs; immutable mode also tolerates databases
// a running tool still holds open.
func openReadOnly(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro&immutable=1", path)
	db, err := sql.Open(storage.DriverName, dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// hasTable reports whether the database contains the named table.
func hasTable(db *sql.DB, name string) (bool, error) {
	row := db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name = ? LIMIT 1", name)
	var found string
	err := row.Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// tableColumns enumerates the actual column names of a table at scan time.
// This is the foundation of schema sniffing: logical fields are resolved
// against this list rather than a fixed schema.
func tableColumns(db *sql.DB, table string) ([]string, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%q)", table))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var cols []string
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notNull    int
			defaultVal any
			pk         int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &defaultVal, &pk); err != nil {
			return nil, err
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

// scanRows reads every row of a SELECT * result into rowMaps keyed by the
// provided column names.
func scanRows(rows *sql.Rows, cols []string) ([]rowMap, error) {
	var out []rowMap
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			// A single malformed row never aborts the table.
			continue
		}
		r := make(rowMap, len(cols))
		for i, c := range cols {
			r[c] = values[i]
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
