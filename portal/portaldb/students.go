// Copyright (C) 2024 ParentLink, Inc.
// See LICENSE for copying information.

package portaldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/zeebo/errs"

	"github.com/parentlink/parentlink/portal/provisioning"
)

// ensures that students implements provisioning.Students.
var _ provisioning.Students = (*students)(nil)

// ErrStudents represents errors from the students database.
var ErrStudents = errs.Class("students")

type students struct {
	db *DB
}

const studentColumns = `id, external_id, name, class, section, parent_email, parent_phone, parent_name, created_at`

// ListByIDs retrieves students by explicit id list, preserving the
// requested order.
func (s *students) ListByIDs(ctx context.Context, ids []uuid.UUID) (_ []provisioning.Student, err error) {
	defer mon.Task()(&ctx)(&err)

	if len(ids) == 0 {
		return []provisioning.Student{}, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	fetched, err := s.queryStudents(ctx, `
		SELECT `+studentColumns+`
		FROM students
		WHERE id IN (`+strings.Join(placeholders, ", ")+`)
	`, args...)
	if err != nil {
		return nil, err
	}

	// The IN query returns rows in storage order; candidates must come
	// back in the order they were requested.
	byID := make(map[uuid.UUID]provisioning.Student, len(fetched))
	for _, student := range fetched {
		byID[student.ID] = student
	}
	ordered := make([]provisioning.Student, 0, len(fetched))
	for _, id := range ids {
		if student, ok := byID[id]; ok {
			ordered = append(ordered, student)
		}
	}
	return ordered, nil
}

// ListByClassSection retrieves students of one class, optionally
// narrowed to a section.
func (s *students) ListByClassSection(ctx context.Context, class, section string) (_ []provisioning.Student, err error) {
	defer mon.Task()(&ctx)(&err)

	if section == "" {
		return s.queryStudents(ctx, `
			SELECT `+studentColumns+`
			FROM students
			WHERE class = $1
			ORDER BY name
		`, class)
	}
	return s.queryStudents(ctx, `
		SELECT `+studentColumns+`
		FROM students
		WHERE class = $1 AND section = $2
		ORDER BY name
	`, class, section)
}

// ListAll retrieves the whole roster.
func (s *students) ListAll(ctx context.Context) (_ []provisioning.Student, err error) {
	defer mon.Task()(&ctx)(&err)

	return s.queryStudents(ctx, `
		SELECT `+studentColumns+`
		FROM students
		ORDER BY name
	`)
}

func (s *students) queryStudents(ctx context.Context, query string, args ...interface{}) (_ []provisioning.Student, err error) {
	rows, err := s.db.db.QueryContext(ctx, query, args...)
	if err != nil {
		if errs.Is(err, sql.ErrNoRows) {
			return []provisioning.Student{}, nil
		}
		return nil, ErrStudents.Wrap(err)
	}
	defer func() { err = errs.Combine(err, rows.Close()) }()

	list := []provisioning.Student{}
	for rows.Next() {
		var student provisioning.Student
		err = rows.Scan(&student.ID, &student.ExternalID, &student.Name, &student.Class,
			&student.Section, &student.ParentEmail, &student.ParentPhone,
			&student.ParentName, &student.CreatedAt)
		if err != nil {
			return nil, ErrStudents.Wrap(err)
		}
		list = append(list, student)
	}
	return list, ErrStudents.Wrap(rows.Err())
}
