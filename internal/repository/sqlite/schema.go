package sqlite

import (
	"context"
	"fmt"
	"log/slog"
)

// Table names form part of the on-disk contract.
const (
	tableUsers  = "Users"
	tableVinyls = "Vinyls"
	tableOrders = "Orders"
)

// tableDDL lists the tables in dependency order: Orders references Users,
// so Users must exist first. Every statement is IF NOT EXISTS; running the
// list against an existing database changes nothing.
var tableDDL = []struct {
	name string
	ddl  string
}{
	{tableUsers, `
		CREATE TABLE IF NOT EXISTS Users (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			username    TEXT NOT NULL UNIQUE,
			password    TEXT NOT NULL,
			role        TEXT NOT NULL DEFAULT 'customer',
			name        TEXT NOT NULL DEFAULT '',
			email       TEXT UNIQUE,
			phoneNumber TEXT,
			photo       TEXT,
			createdAt   TEXT NOT NULL,
			lastLogin   TEXT,

			CHECK (role IN ('customer', 'admin', 'employee', 'manager'))
		);
		CREATE INDEX IF NOT EXISTS idx_users_role ON Users(role);
	`},
	{tableVinyls, `
		CREATE TABLE IF NOT EXISTS Vinyls (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			titulo      TEXT NOT NULL,
			artista     TEXT NOT NULL,
			imagen      TEXT NOT NULL DEFAULT '',
			descripcion TEXT NOT NULL DEFAULT '[]',
			tracklist   TEXT NOT NULL DEFAULT '[]',
			stock       INTEGER NOT NULL DEFAULT 0,
			precio      TEXT NOT NULL DEFAULT '0',
			isAvailable INTEGER NOT NULL DEFAULT 1,

			UNIQUE (titulo, artista)
		);
	`},
	{tableOrders, `
		CREATE TABLE IF NOT EXISTS Orders (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			reference     TEXT NOT NULL UNIQUE,
			userId        INTEGER NOT NULL REFERENCES Users(id),
			status        TEXT NOT NULL DEFAULT 'Pending',
			createdAt     TEXT NOT NULL,
			updatedAt     TEXT NOT NULL,
			totalAmount   TEXT NOT NULL DEFAULT '0',
			orderDetails  TEXT NOT NULL DEFAULT '[]',
			paymentMethod TEXT,

			CHECK (status IN ('Pending', 'Processing', 'Shipped', 'Delivered', 'Canceled'))
		);
		CREATE INDEX IF NOT EXISTS idx_orders_user ON Orders(userId);
		CREATE INDEX IF NOT EXISTS idx_orders_created ON Orders(createdAt DESC);
	`},
}

// addedColumns are columns that earlier revisions of the database lacked.
// A database created by an older build gets them added in place.
var addedColumns = []struct {
	table, column, definition string
}{
	{tableUsers, "photo", "TEXT"},
	{tableUsers, "lastLogin", "TEXT"},
	{tableVinyls, "isAvailable", "INTEGER NOT NULL DEFAULT 1"},
	{tableOrders, "paymentMethod", "TEXT"},
}

// ensureSchema creates every table, index and late-added column that is
// missing. It never drops or rewrites data.
func (db *DB) ensureSchema(ctx context.Context) error {
	for _, t := range tableDDL {
		if _, err := db.run(ctx, t.ddl); err != nil {
			return fmt.Errorf("creating %s table: %w", t.name, err)
		}
	}
	for _, c := range addedColumns {
		if err := db.addColumnIfNotExists(ctx, c.table, c.column, c.definition); err != nil {
			return fmt.Errorf("adding %s.%s: %w", c.table, c.column, err)
		}
	}
	return nil
}

// addColumnIfNotExists adds a column to a table only if it doesn't already exist.
// ALTER TABLE errors if the column exists, so we check pragma_table_info first.
func (db *DB) addColumnIfNotExists(ctx context.Context, table, column, definition string) error {
	res, err := db.run(ctx,
		`SELECT COUNT(*) AS n FROM pragma_table_info(?) WHERE name = ?`,
		table, column,
	)
	if err != nil {
		return fmt.Errorf("checking column %s.%s: %w", table, column, err)
	}
	r := rowReader{row: res.Rows[0]}
	if r.int64("n") > 0 {
		return nil
	}
	// table/column come from the fixed list above, never from user input.
	_, err = db.run(ctx, fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition))
	return err
}

// Reset drops every table, recreates the schema and reloads the seed rows.
//
// DESTRUCTIVE: all users, catalog items and orders are lost. Normal startup
// never calls this; it exists for the dbtool "reset" command. The gate is
// closed while the reset runs, so concurrent callers wait instead of seeing
// half-built tables.
func (db *DB) Reset(ctx context.Context) error {
	if err := db.Initialize(ctx); err != nil {
		return err
	}

	db.gate.set(false)
	for i := len(tableDDL) - 1; i >= 0; i-- {
		name := tableDDL[i].name
		if _, err := db.run(ctx, "DROP TABLE IF EXISTS "+name); err != nil {
			return fmt.Errorf("sqlite: dropping %s: %w", name, err)
		}
	}
	if err := db.ensureSchema(ctx); err != nil {
		return fmt.Errorf("sqlite: recreating schema: %w", err)
	}
	if err := db.seedIfEmpty(ctx); err != nil {
		return fmt.Errorf("sqlite: reseeding: %w", err)
	}
	db.gate.set(true)

	db.logger.Warn("database reset", slog.String("path", db.cfg.DSN()))
	return nil
}

// TableCounts returns the row count of every table.
func (db *DB) TableCounts(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64, len(tableDDL))
	for _, t := range tableDDL {
		res, err := db.Execute(ctx, "SELECT COUNT(*) AS n FROM "+t.name)
		if err != nil {
			return nil, fmt.Errorf("sqlite: counting %s: %w", t.name, err)
		}
		r := rowReader{row: res.Rows[0]}
		counts[t.name] = r.int64("n")
	}
	return counts, nil
}
