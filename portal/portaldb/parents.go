// Copyright (C) 2024 ParentLink, Inc.
// See LICENSE for copying information.

package portaldb

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/zeebo/errs"

	"github.com/parentlink/parentlink/portal/provisioning"
	"github.com/parentlink/parentlink/portal/pushnotifications"
)

// ensures that parents implements both the provisioning store and the
// dispatch target resolver.
var (
	_ provisioning.Parents         = (*parents)(nil)
	_ pushnotifications.Recipients = (*parents)(nil)
)

// ErrParents represents errors from the parents database.
var ErrParents = errs.Class("parents")

type parents struct {
	db *DB
}

// GetByEmail retrieves a parent by email, or nil when none exists.
func (p *parents) GetByEmail(ctx context.Context, email string) (_ *provisioning.Parent, err error) {
	defer mon.Task()(&ctx)(&err)

	var parent provisioning.Parent
	err = p.db.db.QueryRowContext(ctx, `
		SELECT id, auth_user_id, name, email, phone, username, created_at
		FROM parents
		WHERE email = $1
	`, email).Scan(&parent.ID, &parent.AuthUserID, &parent.Name, &parent.Email,
		&parent.Phone, &parent.Username, &parent.CreatedAt)
	if errs.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, ErrParents.Wrap(err)
	}
	return &parent, nil
}

// Insert writes a new parent profile row.
func (p *parents) Insert(ctx context.Context, parent provisioning.Parent) (err error) {
	defer mon.Task()(&ctx)(&err)

	if parent.ID == uuid.Nil {
		parent.ID = uuid.New()
	}

	_, err = p.db.db.ExecContext(ctx, `
		INSERT INTO parents (id, auth_user_id, name, email, phone, username, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
	`, parent.ID, parent.AuthUserID, parent.Name, parent.Email, parent.Phone, parent.Username)
	return ErrParents.Wrap(err)
}

// GetByAuthUserID retrieves a parent by its auth identity id.
func (p *parents) GetByAuthUserID(ctx context.Context, authUserID uuid.UUID) (_ provisioning.Parent, err error) {
	defer mon.Task()(&ctx)(&err)

	var parent provisioning.Parent
	err = p.db.db.QueryRowContext(ctx, `
		SELECT id, auth_user_id, name, email, phone, username, created_at
		FROM parents
		WHERE auth_user_id = $1
	`, authUserID).Scan(&parent.ID, &parent.AuthUserID, &parent.Name, &parent.Email,
		&parent.Phone, &parent.Username, &parent.CreatedAt)
	if err != nil {
		return provisioning.Parent{}, ErrParents.Wrap(err)
	}
	return parent, nil
}

// LinkStudent inserts a parent-student relationship row.
func (p *parents) LinkStudent(ctx context.Context, parentID, studentID uuid.UUID) (err error) {
	defer mon.Task()(&ctx)(&err)

	_, err = p.db.db.ExecContext(ctx, `
		INSERT INTO parent_students (parent_id, student_id, created_at)
		VALUES ($1, $2, now())
	`, parentID, studentID)
	return ErrParents.Wrap(err)
}

// GetParentAuthID returns the auth user id for a single parent.
func (p *parents) GetParentAuthID(ctx context.Context, parentID uuid.UUID) (_ uuid.UUID, err error) {
	defer mon.Task()(&ctx)(&err)

	var authUserID uuid.UUID
	err = p.db.db.QueryRowContext(ctx, `
		SELECT auth_user_id FROM parents WHERE id = $1
	`, parentID).Scan(&authUserID)
	if err != nil {
		return uuid.Nil, ErrParents.Wrap(err)
	}
	return authUserID, nil
}

// GetParentAuthIDsByStudent returns the auth user ids of every parent
// linked to the given student.
func (p *parents) GetParentAuthIDsByStudent(ctx context.Context, studentID uuid.UUID) (_ []uuid.UUID, err error) {
	defer mon.Task()(&ctx)(&err)

	return p.queryAuthIDs(ctx, `
		SELECT p.auth_user_id
		FROM parents p
		JOIN parent_students ps ON ps.parent_id = p.id
		WHERE ps.student_id = $1
	`, studentID)
}

// GetAllParentAuthIDs returns the auth user ids of every parent.
func (p *parents) GetAllParentAuthIDs(ctx context.Context) (_ []uuid.UUID, err error) {
	defer mon.Task()(&ctx)(&err)

	return p.queryAuthIDs(ctx, `SELECT auth_user_id FROM parents`)
}

func (p *parents) queryAuthIDs(ctx context.Context, query string, args ...interface{}) (_ []uuid.UUID, err error) {
	rows, err := p.db.db.QueryContext(ctx, query, args...)
	if err != nil {
		if errs.Is(err, sql.ErrNoRows) {
			return []uuid.UUID{}, nil
		}
		return nil, ErrParents.Wrap(err)
	}
	defer func() { err = errs.Combine(err, rows.Close()) }()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err = rows.Scan(&id); err != nil {
			return nil, ErrParents.Wrap(err)
		}
		ids = append(ids, id)
	}
	return ids, ErrParents.Wrap(rows.Err())
}
