// Package recordsql stores search records in PostgreSQL or SQLite.
package recordsql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // registers "postgres"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"  // registers "sqlite3"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/kailas-cloud/carscore/internal/db"
	"github.com/kailas-cloud/carscore/internal/db/sqldb"
	"github.com/kailas-cloud/carscore/internal/domain/assessment"
	"github.com/kailas-cloud/carscore/internal/domain/mileage"
	domrec "github.com/kailas-cloud/carscore/internal/domain/record"
	"github.com/kailas-cloud/carscore/internal/domain/vehicle"
)

const table = "search_records"

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS search_records (
		id            TEXT PRIMARY KEY,
		requester     TEXT NOT NULL,
		created_at_ms BIGINT NOT NULL,
		make          TEXT NOT NULL,
		model         TEXT NOT NULL,
		sub_model     TEXT NOT NULL DEFAULT '',
		year          INTEGER NOT NULL,
		fuel          TEXT NOT NULL DEFAULT '',
		transmission  TEXT NOT NULL DEFAULT '',
		mileage_range TEXT NOT NULL DEFAULT '',
		base_score    DOUBLE PRECISION NULL,
		mileage_delta INTEGER NOT NULL DEFAULT 0,
		mileage_note  TEXT NOT NULL DEFAULT '',
		payload       TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_search_records_year_created ON search_records (year, created_at_ms)`,
	`CREATE INDEX IF NOT EXISTS idx_search_records_requester_created ON search_records (requester, created_at_ms)`,
}

var columns = []any{
	"id", "requester", "created_at_ms", "make", "model", "sub_model", "year",
	"fuel", "transmission", "mileage_range", "mileage_delta", "mileage_note", "payload",
}

// Repo is an append-only record store on a SQL database.
type Repo struct {
	conn *sql.DB
	qb   *goqu.Database
}

// New creates a SQL record repository.
func New(d *sqldb.DB) *Repo {
	return &Repo{conn: d.SQL(), qb: goqu.New(d.Dialect(), d.SQL())}
}

// Migrate creates the records table and its indexes when missing.
func (r *Repo) Migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := r.conn.ExecContext(ctx, stmt); err != nil {
			return &db.Error{Op: db.OpMigrate, Err: err}
		}
	}
	return nil
}

// Append inserts a record. A duplicate ID yields db.ErrKeyExists.
func (r *Repo) Append(ctx context.Context, rec *domrec.Record) error {
	payload, err := json.Marshal(rec.Result())
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	f := rec.Identity().Fields()
	adj := rec.Adjustment()
	score, hasScore := rec.Result().BaseScore()

	row := goqu.Record{
		"id":            rec.ID(),
		"requester":     rec.Requester(),
		"created_at_ms": rec.CreatedAt().UnixMilli(),
		"make":          f.Make,
		"model":         f.Model,
		"sub_model":     f.SubModel,
		"year":          f.Year,
		"fuel":          f.Fuel,
		"transmission":  f.Transmission,
		"mileage_range": f.MileageRange,
		"base_score":    sql.NullFloat64{Float64: score, Valid: hasScore},
		"mileage_delta": adj.Delta,
		"mileage_note":  adj.Note,
		"payload":       string(payload),
	}

	query, args, err := r.qb.Insert(table).Rows(row).ToSQL()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.conn.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("record %s: %w", rec.ID(), db.ErrKeyExists)
		}
		return &db.Error{Op: db.OpInsert, Err: err}
	}
	return nil
}

// Window returns records of the given model year created at or after since,
// oldest first. Rows whose payload cannot be decoded are skipped.
func (r *Repo) Window(ctx context.Context, year int, since time.Time) ([]domrec.Record, error) {
	query, args, err := r.qb.From(table).
		Select(columns...).
		Where(
			goqu.C("year").Eq(year),
			goqu.C("created_at_ms").Gte(since.UnixMilli()),
		).
		Order(goqu.C("created_at_ms").Asc()).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build window query: %w", err)
	}

	rows, err := r.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &db.Error{Op: db.OpSelect, Err: err}
	}
	defer func() { _ = rows.Close() }()

	var out []domrec.Record
	for rows.Next() {
		var (
			f         vehicle.Fields
			id, req   string
			createdMs int64
			adj       mileage.Adjustment
			payload   string
		)
		if err := rows.Scan(
			&id, &req, &createdMs, &f.Make, &f.Model, &f.SubModel, &f.Year,
			&f.Fuel, &f.Transmission, &f.MileageRange, &adj.Delta, &adj.Note, &payload,
		); err != nil {
			return nil, &db.Error{Op: db.OpSelect, Err: err}
		}

		var result assessment.Assessment
		if err := result.UnmarshalJSON([]byte(payload)); err != nil {
			continue
		}
		out = append(out, domrec.Reconstruct(
			id, req, vehicle.Reconstruct(f), time.UnixMilli(createdMs), result, adj,
		))
	}
	if err := rows.Err(); err != nil {
		return nil, &db.Error{Op: db.OpSelect, Err: err}
	}
	return out, nil
}

// Count returns the number of records created in [from, to).
// An empty requester counts across everyone.
func (r *Repo) Count(ctx context.Context, requester string, from, to time.Time) (int, error) {
	where := goqu.Ex{
		"created_at_ms": goqu.Op{"gte": from.UnixMilli(), "lt": to.UnixMilli()},
	}
	if requester != "" {
		where["requester"] = requester
	}

	query, args, err := r.qb.From(table).Select(goqu.COUNT("*")).Where(where).ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}

	var n int
	if err := r.conn.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, &db.Error{Op: db.OpSelect, Err: err}
	}
	return n, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY ||
			liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}
