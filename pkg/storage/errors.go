// Package storage provides the database connector and the error taxonomy
// shared by every store in the service.
package storage

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// Sentinel errors for the four failure classes every caller must be able to
// distinguish. Stores wrap these with fmt.Errorf("...: %w", ...) so that
// errors.Is keeps working through the wrapping.
var (
	// ErrNotFound means a referenced entity or foreign key does not resolve.
	ErrNotFound = errors.New("not found")

	// ErrIntegrity means a uniqueness or shape violation on write.
	ErrIntegrity = errors.New("integrity violation")

	// ErrConflict means a concurrent transition raced and lost. Callers are
	// expected to re-read and retry with fresh data.
	ErrConflict = errors.New("conflict")

	// ErrStorage means the backend failed. Transient and permanent failures
	// are not distinguished here.
	ErrStorage = errors.New("storage failure")
)

// NotFoundf wraps ErrNotFound with a formatted message.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
}

// Integrityf wraps ErrIntegrity with a formatted message.
func Integrityf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrIntegrity)...)
}

// Conflictf wraps ErrConflict with a formatted message.
func Conflictf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrConflict)...)
}

// Storagef wraps ErrStorage with a formatted message.
func Storagef(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrStorage)...)
}

// ClassifyWrite maps a GORM write error onto the taxonomy. Duplicate-key and
// foreign-key violations become ErrIntegrity, everything else ErrStorage.
// The dialects report constraint violations differently, so matching is done
// on both typed errors and the driver message text.
func ClassifyWrite(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || errors.Is(err, gorm.ErrForeignKeyViolated) {
		return fmt.Errorf("%s: %v: %w", op, err, ErrIntegrity)
	}
	if isConstraintMessage(err) {
		return fmt.Errorf("%s: %v: %w", op, err, ErrIntegrity)
	}
	return fmt.Errorf("%s: %v: %w", op, err, ErrStorage)
}

// ClassifyRead maps a GORM read error onto the taxonomy.
func ClassifyRead(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %v: %w", op, err, ErrStorage)
}

func isConstraintMessage(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, probe := range []string{
		"unique constraint",     // postgres
		"duplicate entry",       // mysql
		"unique failed",         // sqlite
		"constraint failed",     // sqlite
		"foreign key constraint",
	} {
		if strings.Contains(msg, probe) {
			return true
		}
	}
	return false
}

// IsDuplicateKey reports whether err is a duplicate-key violation. Used by
// code paths where "already exists" is a success, such as lazy segment
// creation.
func IsDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate entry") ||
		strings.Contains(msg, "unique failed") ||
		strings.Contains(msg, "constraint failed")
}
