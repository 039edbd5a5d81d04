package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func pgErr(code, constraint string) error {
	return &pgconn.PgError{Code: code, ConstraintName: constraint}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"serialization failure", pgErr("40001", ""), true},
		{"deadlock detected", pgErr("40P01", ""), true},
		{"wrapped serialization failure", fmt.Errorf("commit: %w", pgErr("40001", "")), true},
		{"unique violation", pgErr("23505", ""), false},
		{"plain error", errors.New("connection refused"), false},
		{"nil", nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsRetryable(tc.err); got != tc.want {
				t.Fatalf("IsRetryable(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	err := pgErr("23505", "developers_email_key")

	if !IsUniqueViolation(err, "") {
		t.Fatal("expected any-constraint match for 23505")
	}
	if !IsUniqueViolation(err, "developers_email_key") {
		t.Fatal("expected match on named constraint")
	}
	if IsUniqueViolation(err, "invitations_token_key") {
		t.Fatal("matched the wrong constraint name")
	}
	if IsUniqueViolation(fmt.Errorf("insert: %w", err), "developers_email_key") != true {
		t.Fatal("expected match through wrapping")
	}
	if IsUniqueViolation(pgErr("40001", ""), "") {
		t.Fatal("matched a non-unique-violation code")
	}
	if IsUniqueViolation(errors.New("boom"), "") {
		t.Fatal("matched a non-pg error")
	}
}
