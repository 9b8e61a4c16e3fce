// Copyright (C) 2024 ParentLink, Inc.
// See LICENSE for copying information.

package provisioning

import (
	"context"

	"github.com/zeebo/errs"
	"go.uber.org/zap"
)

// ErrParentExists is returned when a parent profile already exists for
// the given email. No mutation has occurred when this is returned.
var ErrParentExists = errs.Class("parent account already exists")

// ErrProvisioner represents errors from the account provisioner.
var ErrProvisioner = errs.Class("provisioner")

// Provisioner creates one auth identity plus parent profile plus
// parent-student link per student. The identity is a scoped resource:
// acquired first, released (deleted) if the profile insert fails, and
// kept once the profile row exists. The link row is best-effort.
type Provisioner struct {
	log        *zap.Logger
	parents    Parents
	identities Identities
}

// NewProvisioner creates a new account provisioner.
func NewProvisioner(log *zap.Logger, parents Parents, identities Identities) *Provisioner {
	return &Provisioner{
		log:        log,
		parents:    parents,
		identities: identities,
	}
}

// CreateParentAccount provisions a parent login for the given student.
// Steps run in order: duplicate check, identity creation, profile
// insert (with compensating identity delete on failure), profile
// re-fetch for its primary key, then the parent-student link. A link
// failure is logged and tolerated; the account still works.
func (p *Provisioner) CreateParentAccount(ctx context.Context, student Student, username, password string) (err error) {
	defer mon.Task()(&ctx)(&err)

	existing, err := p.parents.GetByEmail(ctx, student.ParentEmail)
	if err != nil {
		return ErrProvisioner.Wrap(err)
	}
	if existing != nil {
		return ErrParentExists.New("%s", student.ParentEmail)
	}

	parentName := student.ParentName
	if parentName == "" {
		parentName = "Parent"
	}

	authUserID, err := p.identities.CreateUser(ctx, NewIdentity{
		Email:    student.ParentEmail,
		Password: password,
		Name:     parentName,
		Username: username,
		Role:     "parent",
	})
	if err != nil {
		return ErrProvisioner.Wrap(err)
	}

	// The identity is released again unless the profile insert lands.
	profileExists := false
	defer func() {
		if profileExists {
			return
		}
		if deleteErr := p.identities.DeleteUser(ctx, authUserID); deleteErr != nil {
			p.log.Error("failed to delete orphaned auth identity",
				zap.String("auth_user_id", authUserID.String()),
				zap.Error(deleteErr))
		}
	}()

	err = p.parents.Insert(ctx, Parent{
		AuthUserID: authUserID,
		Name:       parentName,
		Email:      student.ParentEmail,
		Phone:      student.ParentPhone,
		Username:   username,
	})
	if err != nil {
		return ErrProvisioner.Wrap(err)
	}
	profileExists = true

	// Storage layers do not all echo generated keys on insert, so the
	// row is re-fetched to obtain the parent's primary key.
	parent, err := p.parents.GetByAuthUserID(ctx, authUserID)
	if err != nil {
		return ErrProvisioner.New("failed to fetch parent record: %v", err)
	}

	if err := p.parents.LinkStudent(ctx, parent.ID, student.ID); err != nil {
		p.log.Warn("failed to create parent-student relationship",
			zap.String("parent_id", parent.ID.String()),
			zap.String("student_id", student.ID.String()),
			zap.Error(err))
	}

	return nil
}
