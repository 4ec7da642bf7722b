package sqlite

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/sakif/vinyl-storefront/internal/apperror"
)

// Row is one result row keyed by column name. Values are the driver's
// native types (int64, float64, string, []byte, nil), copied out of the
// driver's buffers so a Row stays valid after the statement finishes.
type Row map[string]any

// Result is what the execution primitive returns.
//
// Writes fill RowsAffected and LastInsertID. Reads fill Columns and Rows;
// Rows is never nil, so "no rows" is simply an empty slice.
type Result struct {
	Columns      []string
	Rows         []Row
	RowsAffected int64
	LastInsertID int64
}

// Execute runs one parameterized statement once the database is ready.
//
// It is the only path repositories use to reach SQL, so readiness waiting,
// the per-statement timeout and error classification all happen here once.
// Every failure is a *QueryError; its cause may be ErrDatabaseNotReady or a
// *ConstraintViolation, both reachable with errors.Is / errors.As.
func (db *DB) Execute(ctx context.Context, stmt string, args ...any) (*Result, error) {
	if err := db.awaitReady(ctx); err != nil {
		return nil, &QueryError{Statement: stmt, Err: err}
	}
	return db.run(ctx, stmt, args...)
}

// run executes a statement without waiting on the gate. Only initialization,
// which runs before the gate opens, calls it directly.
func (db *DB) run(ctx context.Context, stmt string, args ...any) (*Result, error) {
	db.mu.RLock()
	conn := db.conn
	db.mu.RUnlock()
	if conn == nil {
		return nil, &QueryError{Statement: stmt, Err: ErrDatabaseNotReady}
	}

	ctx, cancel := context.WithTimeout(ctx, db.cfg.StatementTimeout)
	defer cancel()

	if isReadStatement(stmt) {
		rows, err := conn.QueryContext(ctx, stmt, args...)
		if err != nil {
			return nil, classify(stmt, err)
		}
		defer rows.Close()

		res, err := collectRows(rows)
		if err != nil {
			return nil, classify(stmt, err)
		}
		return res, nil
	}

	sqlRes, err := conn.ExecContext(ctx, stmt, args...)
	if err != nil {
		return nil, classify(stmt, err)
	}

	res := &Result{Rows: []Row{}}
	if res.RowsAffected, err = sqlRes.RowsAffected(); err != nil {
		return nil, classify(stmt, err)
	}
	if res.LastInsertID, err = sqlRes.LastInsertId(); err != nil {
		return nil, classify(stmt, err)
	}
	return res, nil
}

func collectRows(rows *sql.Rows) (*Result, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	res := &Result{Columns: cols, Rows: []Row{}}
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(Row, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				values[i] = append([]byte(nil), b...)
			}
			row[col] = values[i]
		}
		res.Rows = append(res.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// isReadStatement reports whether stmt returns rows.
func isReadStatement(stmt string) bool {
	s := strings.TrimSpace(stmt)
	for strings.HasPrefix(s, "--") {
		nl := strings.IndexByte(s, '\n')
		if nl < 0 {
			return false
		}
		s = strings.TrimSpace(s[nl+1:])
	}
	end := strings.IndexFunc(s, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '('
	})
	if end >= 0 {
		s = s[:end]
	}
	switch strings.ToUpper(s) {
	case "SELECT", "WITH", "PRAGMA", "EXPLAIN", "VALUES":
		return true
	}
	return false
}

// requireAffected turns a write that matched no row into apperror.NotFound.
func requireAffected(res *Result, resource string, id int64) error {
	if res.RowsAffected == 0 {
		return apperror.NotFound(resource, strconv.FormatInt(id, 10))
	}
	return nil
}
