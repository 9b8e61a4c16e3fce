// Copyright (C) 2024 ParentLink, Inc.
// See LICENSE for copying information.

// Package portaldb implements the portal's storage interfaces on
// PostgreSQL through database/sql with the pgx driver.
package portaldb

import (
	"context"
	"database/sql"
	_ "embed"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/parentlink/parentlink/portal/provisioning"
	"github.com/parentlink/parentlink/portal/pushnotifications"
)

var mon = monkit.Package()

// Error represents errors from the portal database.
var Error = errs.Class("portaldb")

//go:embed schema.sql
var schema string

// DB provides access to the portal's databases.
type DB struct {
	log *zap.Logger
	db  *sql.DB
}

// Open connects to the database at the given URL.
func Open(ctx context.Context, log *zap.Logger, databaseURL string) (*DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, Error.Wrap(errs.Combine(err, db.Close()))
	}
	return New(log, db), nil
}

// New wraps an existing database handle.
func New(log *zap.Logger, db *sql.DB) *DB {
	return &DB{log: log, db: db}
}

// MigrateSchema creates the portal tables if they do not exist.
func (db *DB) MigrateSchema(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	_, err = db.db.ExecContext(ctx, schema)
	return Error.Wrap(err)
}

// DeviceTokens returns the device token store.
func (db *DB) DeviceTokens() pushnotifications.DeviceTokens {
	return &deviceTokens{db: db}
}

// Notifications returns the notification feed store.
func (db *DB) Notifications() pushnotifications.Notifications {
	return &notifications{db: db}
}

// Recipients returns the dispatch target resolver store.
func (db *DB) Recipients() pushnotifications.Recipients {
	return &parents{db: db}
}

// Parents returns the parent profile store.
func (db *DB) Parents() provisioning.Parents {
	return &parents{db: db}
}

// Students returns the student roster store.
func (db *DB) Students() provisioning.Students {
	return &students{db: db}
}

// Close releases the underlying database handle.
func (db *DB) Close() error {
	return Error.Wrap(db.db.Close())
}
