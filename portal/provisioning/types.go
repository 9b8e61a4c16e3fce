// Copyright (C) 2024 ParentLink, Inc.
// See LICENSE for copying information.

package provisioning

import (
	"time"

	"github.com/google/uuid"
)

// Target selection modes for a bulk provisioning job.
const (
	GenerateForNewParents       = "new_parents"
	GenerateForAllParents       = "all_parents"
	GenerateForSpecificStudents = "specific_students"
)

// Per-row outcome statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Password length bounds accepted by bulk jobs.
const (
	MinPasswordLength = 6
	MaxPasswordLength = 20
)

// Student is a student roster row, carrying the parent contact details
// captured at import time.
type Student struct {
	ID          uuid.UUID
	ExternalID  string
	Name        string
	Class       string
	Section     string
	ParentEmail string
	ParentPhone string
	ParentName  string
	CreatedAt   time.Time
}

// Parent is a provisioned parent profile bound to an auth identity.
type Parent struct {
	ID         uuid.UUID
	AuthUserID uuid.UUID
	Name       string
	Email      string
	Phone      string
	Username   string
	CreatedAt  time.Time
}

// Job describes one bulk provisioning run.
type Job struct {
	ClassSection   string      `json:"classSection,omitempty"`
	LoginPrefix    string      `json:"loginPrefix"`
	NotifyParents  bool        `json:"notifyParents"`
	GenerateFor    string      `json:"generateFor"`
	StudentIDs     []uuid.UUID `json:"studentIds,omitempty"`
	PasswordLength int         `json:"passwordLength"`
	CustomPassword string      `json:"customPassword,omitempty"`
}

// ResultRow is the outcome for a single candidate student. Every
// candidate produces exactly one row; nothing is silently dropped.
type ResultRow struct {
	StudentName    string `json:"studentName"`
	ParentEmail    string `json:"parentEmail"`
	ParentLogin    string `json:"parentLogin"`
	ParentPassword string `json:"parentPassword"`
	Status         string `json:"status"`
	Error          string `json:"error,omitempty"`
}

// Result aggregates a bulk run. Total always equals
// Successful + Failed + Skipped, and len(Results) equals Total.
type Result struct {
	Success    bool        `json:"success"`
	Total      int         `json:"total"`
	Successful int         `json:"successful"`
	Failed     int         `json:"failed"`
	Skipped    int         `json:"skipped"`
	Results    []ResultRow `json:"results"`
	Errors     []string    `json:"errors"`
}
