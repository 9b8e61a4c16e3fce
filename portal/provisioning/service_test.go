// Copyright (C) 2024 ParentLink, Inc.
// See LICENSE for copying information.

package provisioning

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/errs"
	"go.uber.org/zap/zaptest"
)

// mockStudents implements the Students interface for testing.
type mockStudents struct {
	students []Student
}

func (m *mockStudents) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]Student, error) {
	byID := make(map[uuid.UUID]Student)
	for _, student := range m.students {
		byID[student.ID] = student
	}
	out := []Student{}
	for _, id := range ids {
		if student, ok := byID[id]; ok {
			out = append(out, student)
		}
	}
	return out, nil
}

func (m *mockStudents) ListByClassSection(ctx context.Context, class, section string) ([]Student, error) {
	out := []Student{}
	for _, student := range m.students {
		if student.Class != class {
			continue
		}
		if section != "" && student.Section != section {
			continue
		}
		out = append(out, student)
	}
	return out, nil
}

func (m *mockStudents) ListAll(ctx context.Context) ([]Student, error) {
	return m.students, nil
}

// mockParents implements the Parents interface with func-field
// overrides for failure injection.
type mockParents struct {
	byEmail  map[string]*Parent
	byAuthID map[uuid.UUID]Parent
	links    [][2]uuid.UUID

	insert      func(ctx context.Context, parent Parent) error
	linkStudent func(ctx context.Context, parentID, studentID uuid.UUID) error
}

func newMockParents() *mockParents {
	return &mockParents{
		byEmail:  make(map[string]*Parent),
		byAuthID: make(map[uuid.UUID]Parent),
	}
}

func (m *mockParents) GetByEmail(ctx context.Context, email string) (*Parent, error) {
	return m.byEmail[email], nil
}

func (m *mockParents) Insert(ctx context.Context, parent Parent) error {
	if m.insert != nil {
		return m.insert(ctx, parent)
	}
	if parent.ID == uuid.Nil {
		parent.ID = uuid.New()
	}
	m.byEmail[parent.Email] = &parent
	m.byAuthID[parent.AuthUserID] = parent
	return nil
}

func (m *mockParents) GetByAuthUserID(ctx context.Context, authUserID uuid.UUID) (Parent, error) {
	parent, ok := m.byAuthID[authUserID]
	if !ok {
		return Parent{}, errs.New("parent not found")
	}
	return parent, nil
}

func (m *mockParents) LinkStudent(ctx context.Context, parentID, studentID uuid.UUID) error {
	if m.linkStudent != nil {
		return m.linkStudent(ctx, parentID, studentID)
	}
	m.links = append(m.links, [2]uuid.UUID{parentID, studentID})
	return nil
}

// mockIdentities implements the Identities interface and records
// created and deleted identities.
type mockIdentities struct {
	created map[uuid.UUID]NewIdentity
	deleted []uuid.UUID

	createUser func(ctx context.Context, identity NewIdentity) (uuid.UUID, error)
}

func newMockIdentities() *mockIdentities {
	return &mockIdentities{created: make(map[uuid.UUID]NewIdentity)}
}

func (m *mockIdentities) CreateUser(ctx context.Context, identity NewIdentity) (uuid.UUID, error) {
	if m.createUser != nil {
		return m.createUser(ctx, identity)
	}
	id := uuid.New()
	m.created[id] = identity
	return id, nil
}

func (m *mockIdentities) DeleteUser(ctx context.Context, id uuid.UUID) error {
	delete(m.created, id)
	m.deleted = append(m.deleted, id)
	return nil
}

type mockMailer struct {
	sent []string
	fail bool
}

func (m *mockMailer) SendCredentials(ctx context.Context, email, parentName, username, password, studentName string) error {
	if m.fail {
		return errs.New("smtp unavailable")
	}
	m.sent = append(m.sent, email)
	return nil
}

func newTestService(t *testing.T, students *mockStudents, parents *mockParents, identities *mockIdentities, mail CredentialsMailer) *Service {
	log := zaptest.NewLogger(t)
	provisioner := NewProvisioner(log, parents, identities)
	return NewService(log, students, provisioner, mail)
}

func TestRunValidation(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t, &mockStudents{}, newMockParents(), newMockIdentities(), nil)

	_, err := service.Run(ctx, Job{LoginPrefix: "", PasswordLength: 8})
	require.True(t, ErrValidation.Has(err))

	_, err = service.Run(ctx, Job{LoginPrefix: "parent", PasswordLength: 5})
	require.True(t, ErrValidation.Has(err))

	_, err = service.Run(ctx, Job{LoginPrefix: "parent", PasswordLength: 21})
	require.True(t, ErrValidation.Has(err))
}

func TestRunNoCandidates(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t, &mockStudents{}, newMockParents(), newMockIdentities(), nil)

	_, err := service.Run(ctx, Job{LoginPrefix: "parent", PasswordLength: 8, GenerateFor: GenerateForAllParents})
	require.True(t, ErrNoCandidates.Has(err))
}

func TestRunEndToEnd(t *testing.T) {
	ctx := context.Background()

	noEmail := Student{ID: uuid.New(), ExternalID: "S1", Name: "Amit Shah"}
	fresh := Student{ID: uuid.New(), ExternalID: "S2", Name: "Bina Rao", ParentEmail: "bina.parent@example.com", ParentName: "Raj Rao"}
	duplicate := Student{ID: uuid.New(), ExternalID: "S3", Name: "Chitra Iyer", ParentEmail: "chitra.parent@example.com"}

	parents := newMockParents()
	parents.byEmail[duplicate.ParentEmail] = &Parent{ID: uuid.New(), Email: duplicate.ParentEmail}

	identities := newMockIdentities()
	mail := &mockMailer{}
	service := newTestService(t, &mockStudents{students: []Student{noEmail, fresh, duplicate}}, parents, identities, mail)

	result, err := service.Run(ctx, Job{
		LoginPrefix:    "parent",
		PasswordLength: 8,
		GenerateFor:    GenerateForAllParents,
		NotifyParents:  true,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 1, result.Successful)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, result.Total, result.Successful+result.Failed+result.Skipped)
	require.Len(t, result.Results, result.Total)

	// Rows come back in candidate order.
	assert.Equal(t, StatusSkipped, result.Results[0].Status)
	assert.Equal(t, "no parent email provided", result.Results[0].Error)
	assert.Equal(t, "Not provided", result.Results[0].ParentEmail)

	assert.Equal(t, StatusSuccess, result.Results[1].Status)
	assert.Equal(t, "parent_S2", result.Results[1].ParentLogin)
	assert.Len(t, result.Results[1].ParentPassword, 8)

	assert.Equal(t, StatusFailed, result.Results[2].Status)
	assert.Contains(t, result.Results[2].Error, "already exists")

	// Exactly one identity created, none for the skipped/failed rows.
	assert.Len(t, identities.created, 1)
	assert.Empty(t, identities.deleted)
	assert.Equal(t, []string{fresh.ParentEmail}, mail.sent)

	// The successful parent is linked to its student.
	require.Len(t, parents.links, 1)
	assert.Equal(t, fresh.ID, parents.links[0][1])
}

func TestRunRepeatIsNotSilentSecondSuccess(t *testing.T) {
	ctx := context.Background()
	student := Student{ID: uuid.New(), ExternalID: "S1", Name: "Bina Rao", ParentEmail: "bina.parent@example.com"}

	parents := newMockParents()
	identities := newMockIdentities()
	service := newTestService(t, &mockStudents{students: []Student{student}}, parents, identities, nil)

	job := Job{LoginPrefix: "parent", PasswordLength: 8, GenerateFor: GenerateForNewParents}

	first, err := service.Run(ctx, job)
	require.NoError(t, err)
	require.Equal(t, 1, first.Successful)

	second, err := service.Run(ctx, job)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Successful)
	assert.Equal(t, 1, second.Failed)
	assert.Len(t, identities.created, 1)
}

func TestRunCompensatingDeleteOnProfileFailure(t *testing.T) {
	ctx := context.Background()
	student := Student{ID: uuid.New(), ExternalID: "S1", Name: "Bina Rao", ParentEmail: "bina.parent@example.com"}

	parents := newMockParents()
	parents.insert = func(ctx context.Context, parent Parent) error {
		return errs.New("duplicate key value violates unique constraint")
	}

	identities := newMockIdentities()
	service := newTestService(t, &mockStudents{students: []Student{student}}, parents, identities, nil)

	result, err := service.Run(ctx, Job{LoginPrefix: "parent", PasswordLength: 8, GenerateFor: GenerateForAllParents})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)

	// The identity was created and then released again.
	assert.Empty(t, identities.created)
	require.Len(t, identities.deleted, 1)
}

func TestRunLinkFailureIsTolerated(t *testing.T) {
	ctx := context.Background()
	student := Student{ID: uuid.New(), ExternalID: "S1", Name: "Bina Rao", ParentEmail: "bina.parent@example.com"}

	parents := newMockParents()
	parents.linkStudent = func(ctx context.Context, parentID, studentID uuid.UUID) error {
		return errs.New("foreign key violation")
	}

	identities := newMockIdentities()
	service := newTestService(t, &mockStudents{students: []Student{student}}, parents, identities, nil)

	result, err := service.Run(ctx, Job{LoginPrefix: "parent", PasswordLength: 8, GenerateFor: GenerateForAllParents})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Successful)
	assert.Empty(t, identities.deleted)
}

func TestRunNotifyFailureIsNonFatal(t *testing.T) {
	ctx := context.Background()
	student := Student{ID: uuid.New(), ExternalID: "S1", Name: "Bina Rao", ParentEmail: "bina.parent@example.com"}

	service := newTestService(t, &mockStudents{students: []Student{student}}, newMockParents(), newMockIdentities(), &mockMailer{fail: true})

	result, err := service.Run(ctx, Job{
		LoginPrefix:    "parent",
		PasswordLength: 8,
		GenerateFor:    GenerateForAllParents,
		NotifyParents:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Successful)
	assert.Equal(t, StatusSuccess, result.Results[0].Status)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "failed to send notification")
}

func TestRunCustomPassword(t *testing.T) {
	ctx := context.Background()
	student := Student{ID: uuid.New(), ExternalID: "S1", Name: "Bina Rao", ParentEmail: "bina.parent@example.com"}

	service := newTestService(t, &mockStudents{students: []Student{student}}, newMockParents(), newMockIdentities(), nil)

	result, err := service.Run(ctx, Job{
		LoginPrefix:    "parent",
		PasswordLength: 8,
		GenerateFor:    GenerateForAllParents,
		CustomPassword: "Fixed1234",
	})
	require.NoError(t, err)
	assert.Equal(t, "Fixed1234", result.Results[0].ParentPassword)
}

func TestSelectCandidatesByClassSection(t *testing.T) {
	ctx := context.Background()
	tenA := Student{ID: uuid.New(), Name: "A", Class: "10", Section: "A", ParentEmail: "a@example.com"}
	tenB := Student{ID: uuid.New(), Name: "B", Class: "10", Section: "B", ParentEmail: "b@example.com"}
	nine := Student{ID: uuid.New(), Name: "C", Class: "9", Section: "A", ParentEmail: "c@example.com"}

	students := &mockStudents{students: []Student{tenA, tenB, nine}}
	service := newTestService(t, students, newMockParents(), newMockIdentities(), nil)

	result, err := service.Run(ctx, Job{LoginPrefix: "parent", PasswordLength: 8, ClassSection: "10-A"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Total)

	// A bare class covers every section.
	result, err = service.Run(ctx, Job{LoginPrefix: "p2", PasswordLength: 8, ClassSection: "10"})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)
}
