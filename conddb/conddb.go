// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package conddb gives access to the calibration database of the
// motion-control cards.
package conddb // import "github.com/go-lpc/mesa/conddb"

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

const (
	host = "localhost"
)

var (
	usr = "username"
	pwd = "s3cr3t"

	drvName = "mysql"
)

// DB exposes convenience methods to easily retrieve calibration data
// from the database.
type DB struct {
	db   *sql.DB
	name string // name of the database
}

// Open opens a connection to the calibration database dbname.
func Open(dbname string) (*DB, error) {
	db, err := sql.Open(drvName, dsn(dbname))
	if err != nil {
		return nil, fmt.Errorf("conddb: could not open %q db: %w", dbname, err)
	}

	err = ping(db, dbname)
	if err != nil {
		return nil, fmt.Errorf("conddb: could not ping %q db: %w", dbname, err)
	}

	return &DB{db: db, name: dbname}, nil
}

func dsn(db string) string {
	return fmt.Sprintf("%s:%s@tcp(%s)/%s", usr, pwd, host, db)
}

func ping(db *sql.DB, dbname string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("conddb: could not ping %q db: %w", dbname, err)
	}

	return nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

func (db *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return db.db.QueryContext(ctx, query, args...)
}

// Boards returns the PCI slots of all the calibrated boards.
func (db *DB) Boards(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var boards []string
	rows, err := db.db.QueryContext(
		ctx,
		"SELECT DISTINCT board FROM calibrations ORDER BY board",
	)
	if err != nil {
		return boards, fmt.Errorf("conddb: could not query boards: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var board string
		err = rows.Scan(&board)
		if err != nil {
			return boards, fmt.Errorf("conddb: could not get board value: %w", err)
		}
		boards = append(boards, board)
	}

	if err := rows.Err(); err != nil {
		return boards, fmt.Errorf("conddb: could not scan db for boards: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return boards, fmt.Errorf("conddb: context error while retrieving boards: %w", err)
	}

	return boards, nil
}

// Calibration returns the calibration of the board at the given PCI slot.
// Channels without calibration rows keep their zero value.
// When a channel appears more than once, the latest row wins.
func (db *DB) Calibration(ctx context.Context, board string) (Calibration, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cal := Calibration{Board: board}
	rows, err := db.db.QueryContext(
		ctx,
		`
SELECT kind, channel, v0, v1 FROM calibrations
WHERE board=?
ORDER BY datetime ASC
`,
		board,
	)
	if err != nil {
		return cal, fmt.Errorf("conddb: could not run calibration query: %w", err)
	}
	defer rows.Close()

	i := 0
	for rows.Next() {
		var (
			kind string
			ch   int
			v0   float64
			v1   float64
		)
		err = rows.Scan(&kind, &ch, &v0, &v1)
		if err != nil {
			return cal, fmt.Errorf("conddb: could not scan row %d for calibration: %w", i, err)
		}
		i++

		err = cal.set(kind, ch, v0, v1)
		if err != nil {
			return cal, fmt.Errorf("conddb: invalid calibration row %d for %q: %w", i, board, err)
		}
	}

	if err := rows.Err(); err != nil {
		return cal, fmt.Errorf("conddb: could not scan db for calibration: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return cal, fmt.Errorf("conddb: context error while retrieving calibration: %w", err)
	}

	return cal, nil
}
