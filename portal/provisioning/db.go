// Copyright (C) 2024 ParentLink, Inc.
// See LICENSE for copying information.

package provisioning

import (
	"context"

	"github.com/google/uuid"
)

// Students defines roster read operations used for candidate selection.
type Students interface {
	// ListByIDs retrieves students by explicit id list, preserving the
	// requested order.
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]Student, error)

	// ListByClassSection retrieves students of one class, optionally
	// narrowed to a section. An empty section matches all sections.
	ListByClassSection(ctx context.Context, class, section string) ([]Student, error)

	// ListAll retrieves the whole roster.
	ListAll(ctx context.Context) ([]Student, error)
}

// Parents defines database operations for parent profiles and the
// parent-student relationship.
type Parents interface {
	// GetByEmail retrieves a parent by email, or nil when none exists.
	GetByEmail(ctx context.Context, email string) (*Parent, error)

	// Insert writes a new parent profile row.
	Insert(ctx context.Context, parent Parent) error

	// GetByAuthUserID retrieves a parent by its auth identity id.
	GetByAuthUserID(ctx context.Context, authUserID uuid.UUID) (Parent, error)

	// LinkStudent inserts a parent-student relationship row.
	LinkStudent(ctx context.Context, parentID, studentID uuid.UUID) error
}

// NewIdentity describes an auth identity to create for a parent. The
// identity is pre-confirmed: no verification round trip is required
// before first login.
type NewIdentity struct {
	Email    string
	Password string
	Name     string
	Username string
	Role     string
}

// Identities is the auth provider's admin surface. Implemented by
// identity.Client against the provider's service-role admin API.
type Identities interface {
	// CreateUser creates a pre-confirmed auth identity and returns its id.
	CreateUser(ctx context.Context, identity NewIdentity) (uuid.UUID, error)

	// DeleteUser removes an auth identity. Used as the compensating
	// action when provisioning fails after identity creation.
	DeleteUser(ctx context.Context, id uuid.UUID) error
}

// CredentialsMailer delivers generated credentials to a parent. Failures
// are reported as warnings and never flip a row's status.
type CredentialsMailer interface {
	SendCredentials(ctx context.Context, email, parentName, username, password, studentName string) error
}
