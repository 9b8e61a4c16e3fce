// Copyright (C) 2024 ParentLink, Inc.
// See LICENSE for copying information.

// Package provisioning implements bulk parent-account provisioning:
// credential generation, per-student account creation with compensating
// cleanup, and per-candidate result accounting.
package provisioning

import (
	"context"
	"fmt"
	"strings"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
)

var mon = monkit.Package()

var (
	// Error represents errors from the bulk provisioning service.
	Error = errs.Class("provisioning")

	// ErrValidation is returned for malformed job input before any work
	// is performed.
	ErrValidation = errs.Class("provisioning validation")

	// ErrNoCandidates is returned when candidate selection matches no
	// students.
	ErrNoCandidates = errs.Class("no candidates")
)

// Service runs bulk provisioning jobs: it selects candidate students,
// provisions one parent account per candidate sequentially and reports
// exactly one result row per candidate.
type Service struct {
	log         *zap.Logger
	students    Students
	provisioner *Provisioner
	mailer      CredentialsMailer
}

// NewService creates a new bulk provisioning service. The mailer may be
// nil; notifyParents then degrades to a per-row warning.
func NewService(log *zap.Logger, students Students, provisioner *Provisioner, mailer CredentialsMailer) *Service {
	return &Service{
		log:         log,
		students:    students,
		provisioner: provisioner,
		mailer:      mailer,
	}
}

// Run executes a bulk provisioning job. Candidates are processed one at
// a time in selection order; every candidate yields exactly one row and
// the result counts always satisfy total = successful+failed+skipped.
func (s *Service) Run(ctx context.Context, job Job) (_ Result, err error) {
	defer mon.Task()(&ctx)(&err)

	if err := validateJob(job); err != nil {
		return Result{}, err
	}

	candidates, err := s.selectCandidates(ctx, job)
	if err != nil {
		return Result{}, Error.Wrap(err)
	}
	if len(candidates) == 0 {
		return Result{}, ErrNoCandidates.New("no students found matching criteria")
	}

	s.log.Info("starting bulk login generation",
		zap.Int("candidates", len(candidates)),
		zap.String("generate_for", job.GenerateFor),
		zap.Bool("notify_parents", job.NotifyParents))

	result := Result{
		Success: true,
		Total:   len(candidates),
		Results: make([]ResultRow, 0, len(candidates)),
		Errors:  []string{},
	}

	for _, student := range candidates {
		result.Results = append(result.Results, s.processStudent(ctx, job, student, &result))
	}

	s.log.Info("bulk login generation completed",
		zap.Int("successful", result.Successful),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped))

	return result, nil
}

// processStudent provisions one candidate and returns its result row,
// updating the aggregate counters and warning list.
func (s *Service) processStudent(ctx context.Context, job Job, student Student, result *Result) ResultRow {
	if student.ParentEmail == "" {
		result.Skipped++
		return ResultRow{
			StudentName: student.Name,
			ParentEmail: "Not provided",
			Status:      StatusSkipped,
			Error:       "no parent email provided",
		}
	}

	externalID := student.ExternalID
	if externalID == "" {
		externalID = student.ID.String()
	}
	username := GenerateUsername(job.LoginPrefix, externalID, student.Name)
	password := job.CustomPassword
	if password == "" {
		password = GeneratePassword(job.PasswordLength)
	}

	row := ResultRow{
		StudentName:    student.Name,
		ParentEmail:    student.ParentEmail,
		ParentLogin:    username,
		ParentPassword: password,
	}

	if err := s.provisioner.CreateParentAccount(ctx, student, username, password); err != nil {
		result.Failed++
		result.Errors = append(result.Errors, fmt.Sprintf("failed to create account for %s: %v", student.Name, err))
		row.Status = StatusFailed
		row.Error = err.Error()
		return row
	}

	result.Successful++
	row.Status = StatusSuccess

	if job.NotifyParents {
		if err := s.notifyParent(ctx, student, username, password); err != nil {
			s.log.Warn("failed to send credentials notification",
				zap.String("parent_email", student.ParentEmail),
				zap.Error(err))
			result.Errors = append(result.Errors, fmt.Sprintf("failed to send notification to %s", student.ParentEmail))
		}
	}

	return row
}

func (s *Service) notifyParent(ctx context.Context, student Student, username, password string) error {
	if s.mailer == nil {
		return Error.New("credentials mailer is not configured")
	}
	parentName := student.ParentName
	if parentName == "" {
		parentName = "Parent"
	}
	return s.mailer.SendCredentials(ctx, student.ParentEmail, parentName, username, password, student.Name)
}

// selectCandidates resolves the job's target-selection mode into a
// student list: explicit ids, a class with optional section ("10-A"),
// or the whole roster.
func (s *Service) selectCandidates(ctx context.Context, job Job) (_ []Student, err error) {
	defer mon.Task()(&ctx)(&err)

	if job.GenerateFor == GenerateForSpecificStudents && len(job.StudentIDs) > 0 {
		return s.students.ListByIDs(ctx, job.StudentIDs)
	}
	if job.ClassSection != "" {
		class, section, _ := strings.Cut(job.ClassSection, "-")
		return s.students.ListByClassSection(ctx, class, section)
	}
	return s.students.ListAll(ctx)
}

func validateJob(job Job) error {
	if job.LoginPrefix == "" {
		return ErrValidation.New("login prefix is required")
	}
	if job.PasswordLength < MinPasswordLength || job.PasswordLength > MaxPasswordLength {
		return ErrValidation.New("password length must be between %d and %d characters", MinPasswordLength, MaxPasswordLength)
	}
	return nil
}
