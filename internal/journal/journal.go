// Package journal persists per-day run records to a local SQLite
// database so a finished run can be inspected offline.
package journal

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/signalsfoundry/fuelchain-optimizer/core"
	"github.com/signalsfoundry/fuelchain-optimizer/internal/logging"
)

const schema = `
CREATE TABLE IF NOT EXISTS rounds (
	day            INTEGER PRIMARY KEY,
	endgame        INTEGER NOT NULL,
	outcome        TEXT    NOT NULL,
	drain_count    INTEGER NOT NULL,
	movement_count INTEGER NOT NULL,
	delta_cost     REAL,
	delta_co2      REAL
);
CREATE TABLE IF NOT EXISTS movements (
	day         INTEGER NOT NULL,
	link_id     TEXT    NOT NULL,
	source      TEXT    NOT NULL,
	destination TEXT    NOT NULL,
	amount      REAL    NOT NULL,
	arrival_day INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS penalties (
	day     INTEGER NOT NULL,
	type    TEXT    NOT NULL,
	message TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_movements_day ON movements(day);
CREATE INDEX IF NOT EXISTS idx_penalties_day ON penalties(day);
`

// Journal writes day reports to SQLite. It implements
// core.DayObserver; write failures are logged and never surfaced to
// the driver.
type Journal struct {
	db  *sql.DB
	log logging.Logger
}

// Open creates or opens the journal database at path and ensures the
// schema exists.
func Open(path string, log logging.Logger) (*Journal, error) {
	if log == nil {
		log = logging.Noop()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init journal schema: %w", err)
	}
	return &Journal{db: db, log: log}, nil
}

// ObserveDay records one processed day. Implements core.DayObserver.
func (j *Journal) ObserveDay(ctx context.Context, r core.DayReport) {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		j.log.Warn(ctx, "journal write failed", logging.Int("day", r.Day), logging.String("error", err.Error()))
		return
	}
	defer tx.Rollback()

	var cost, co2 sql.NullFloat64
	if r.Result != nil && r.Result.KPIs != nil {
		cost = sql.NullFloat64{Float64: r.Result.KPIs.Cost, Valid: true}
		co2 = sql.NullFloat64{Float64: r.Result.KPIs.CO2, Valid: true}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO rounds (day, endgame, outcome, drain_count, movement_count, delta_cost, delta_co2)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.Day, boolToInt(r.Endgame), r.Outcome.String(), r.DrainMovements, len(r.Movements), cost, co2,
	); err != nil {
		j.log.Warn(ctx, "journal write failed", logging.Int("day", r.Day), logging.String("error", err.Error()))
		return
	}

	for _, m := range r.Movements {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO movements (day, link_id, source, destination, amount, arrival_day)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			r.Day, m.LinkID, m.From, m.To, m.Amount, m.ArrivalDay(),
		); err != nil {
			j.log.Warn(ctx, "journal write failed", logging.Int("day", r.Day), logging.String("error", err.Error()))
			return
		}
	}
	if r.Result != nil {
		for _, p := range r.Result.Penalties {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO penalties (day, type, message) VALUES (?, ?, ?)`,
				r.Day, p.Type, p.Message,
			); err != nil {
				j.log.Warn(ctx, "journal write failed", logging.Int("day", r.Day), logging.String("error", err.Error()))
				return
			}
		}
	}

	if err := tx.Commit(); err != nil {
		j.log.Warn(ctx, "journal commit failed", logging.Int("day", r.Day), logging.String("error", err.Error()))
	}
}

// RoundCount returns the number of journaled days.
func (j *Journal) RoundCount(ctx context.Context) (int, error) {
	var n int
	err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rounds`).Scan(&n)
	return n, err
}

// Close flushes and closes the underlying database.
func (j *Journal) Close() error { return j.db.Close() }

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
