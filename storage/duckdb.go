// Package storage persists simulation runs to DuckDB so results can be
// queried and compared across seeds. It sits outside the simulation
// core; nothing in epidemic depends on it.
package storage

import (
	_ "embed"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/tifye/kansen/epidemic"
)

//go:embed schema/runs.sql
var runsSchema []byte

type DuckDB = *sqlx.DB

func InitDuckDB(path string) (DuckDB, error) {
	db, err := sqlx.Connect("duckdb", path)
	if err != nil {
		return nil, err
	}

	_ = db.MustExec(string(runsSchema))

	return db, nil
}

// RecordRun stores a completed run and its per-step results. It returns
// the id of the new row in runs.
func RecordRun(db DuckDB, seed1, seed2 uint64, population int, results []epidemic.StepResult) (int64, error) {
	var runID int64
	err := db.Get(&runID,
		`INSERT INTO runs (seed1, seed2, population) VALUES (?, ?, ?) RETURNING id`,
		seed1, seed2, population,
	)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}

	tx, err := db.Beginx()
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}

	for _, res := range results {
		_, err := tx.Exec(
			`INSERT INTO steps (
				run_id, t,
				susceptible, exposed, infectious, recovered, dead,
				exposures, infections, recoveries, deaths
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, res.Time,
			res.Counts.Susceptible, res.Counts.Exposed, res.Counts.Infectious,
			res.Counts.Recovered, res.Counts.Dead,
			res.Flows.Exposures, res.Flows.Infections, res.Flows.Recoveries,
			res.Flows.Deaths,
		)
		if err != nil {
			return 0, errors.Join(fmt.Errorf("insert step t=%v: %w", res.Time, err), tx.Rollback())
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return runID, nil
}
