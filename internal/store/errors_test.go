package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"record not found", gorm.ErrRecordNotFound, ErrNotFound},
		{"wrapped not found", fmt.Errorf("load quotation: %w", gorm.ErrRecordNotFound), ErrNotFound},
		{"duplicate key", gorm.ErrDuplicatedKey, ErrConstraint},
		{"foreign key", gorm.ErrForeignKeyViolated, ErrConstraint},
		{"pg unique", &pgconn.PgError{Code: "23505"}, ErrConstraint},
		{"pg fk", &pgconn.PgError{Code: "23503"}, ErrConstraint},
		{"pg admin shutdown", &pgconn.PgError{Code: "57P01"}, ErrUnavailable},
		{"pg connection failure", &pgconn.PgError{Code: "08006"}, ErrUnavailable},
		{"pg bad datetime", &pgconn.PgError{Code: "22007"}, ErrValidation},
		{"sqlite fk message", errors.New("FOREIGN KEY constraint failed"), ErrConstraint},
		{"sqlite locked", errors.New("database is locked"), ErrUnavailable},
		{"missing where", gorm.ErrMissingWhereClause, ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			if !errors.Is(got, tt.want) {
				t.Fatalf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestClassify_PassThrough(t *testing.T) {
	if Classify(nil) != nil {
		t.Fatal("nil must stay nil")
	}
	already := fmt.Errorf("quotation 4: %w", ErrNotFound)
	if got := Classify(already); got != already {
		t.Fatalf("expected classified error unchanged got %v", got)
	}
	plain := errors.New("boom")
	if got := Classify(plain); got != plain {
		t.Fatalf("expected unknown error unchanged got %v", got)
	}
}

func TestIsDuplicate(t *testing.T) {
	if !IsDuplicate(gorm.ErrDuplicatedKey) {
		t.Error("gorm duplicate should match")
	}
	if !IsDuplicate(&pgconn.PgError{Code: "23505"}) {
		t.Error("pg 23505 should match")
	}
	if !IsDuplicate(errors.New("UNIQUE constraint failed: token_accesses.token")) {
		t.Error("sqlite message should match")
	}
	if IsDuplicate(&pgconn.PgError{Code: "23503"}) {
		t.Error("fk violation is not a duplicate")
	}
	if IsDuplicate(nil) {
		t.Error("nil is not a duplicate")
	}
}

func TestMaskDSN(t *testing.T) {
	tests := []struct{ in, want string }{
		{"host=db user=solar password=s3cret dbname=epc", "host=db user=solar password=*** dbname=epc"},
		{"postgres://solar:s3cret@db:5432/epc?sslmode=disable", "postgres://solar:***@db:5432/epc?sslmode=disable"},
		{"epc.db", "epc.db"},
	}
	for _, tt := range tests {
		if got := MaskDSN(tt.in); got != tt.want {
			t.Errorf("MaskDSN(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
