package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sunforge/solar-epc/validation"
	"gorm.io/gorm"
)

// Error taxonomy shared by services and the HTTP boundary.
var (
	ErrNotFound    = errors.New("not found")
	ErrConstraint  = errors.New("constraint violation")
	ErrUnavailable = errors.New("store unavailable")
	ErrValidation  = validation.ErrInvalid
)

// Classify wraps a raw store error in the matching taxonomy sentinel so callers
// can branch with errors.Is. Errors that already carry a sentinel, and nil, pass through.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range []error{ErrNotFound, ErrConstraint, ErrUnavailable, ErrValidation} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	if kind := kindOf(err); kind != nil {
		return fmt.Errorf("%w: %v", kind, err)
	}
	return err
}

func kindOf(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey), errors.Is(err, gorm.ErrForeignKeyViolated), errors.Is(err, gorm.ErrCheckConstraintViolated):
		return ErrConstraint
	case errors.Is(err, gorm.ErrInvalidData), errors.Is(err, gorm.ErrInvalidValue), errors.Is(err, gorm.ErrMissingWhereClause):
		return ErrValidation
	case errors.Is(err, driver.ErrBadConn), errors.Is(err, context.DeadlineExceeded):
		return ErrUnavailable
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "23"): // integrity_constraint_violation class
			return ErrConstraint
		case strings.HasPrefix(pgErr.Code, "08"), strings.HasPrefix(pgErr.Code, "57P"), pgErr.Code == "53300":
			return ErrUnavailable
		case strings.HasPrefix(pgErr.Code, "22"): // data_exception class
			return ErrValidation
		}
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return ErrUnavailable
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrUnavailable
	}

	// sqlite reports constraint failures as plain messages.
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "constraint failed"), strings.Contains(msg, "foreign key"):
		return ErrConstraint
	case strings.Contains(msg, "database is locked"), strings.Contains(msg, "connection refused"), strings.Contains(msg, "sql: database is closed"):
		return ErrUnavailable
	}
	return nil
}

// IsDuplicate reports whether err is a unique-key violation.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
