// Copyright (C) 2024 ParentLink, Inc.
// See LICENSE for copying information.

package provisioning

import (
	"math/rand"
	"strings"
)

// passwordAlphabet is the 62-symbol alphanumeric alphabet passwords are
// drawn from. Generated passwords are one-time credentials rotated at
// first login, not long-lived secrets.
const passwordAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// GeneratePassword returns a random password of exactly length
// characters drawn uniformly from the alphanumeric alphabet.
func GeneratePassword(length int) string {
	var sb strings.Builder
	sb.Grow(length)
	for i := 0; i < length; i++ {
		sb.WriteByte(passwordAlphabet[rand.Intn(len(passwordAlphabet))])
	}
	return sb.String()
}

// GenerateUsername derives a deterministic login name for a parent
// account. A non-empty prefix yields prefix_externalID; otherwise the
// lowercased first token of the student name is used, so re-runs against
// the same student always produce the same username.
func GenerateUsername(prefix, studentExternalID, studentName string) string {
	if prefix != "" {
		return prefix + "_" + studentExternalID
	}
	firstName := studentName
	if idx := strings.IndexByte(studentName, ' '); idx >= 0 {
		firstName = studentName[:idx]
	}
	return strings.ToLower(firstName) + "_" + studentExternalID
}
