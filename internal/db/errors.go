package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"

	"github.com/raphaelgruber/legalchat/internal/store"
)

// Sentinel errors for database operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrAlreadyExists indicates a record with the same ID already exists.
	ErrAlreadyExists = errors.New("record already exists")

	// ErrTransactionConflict indicates a SurrealDB transaction conflict.
	// This occurs when concurrent transactions modify the same records.
	ErrTransactionConflict = errors.New("transaction conflict")
)

// versionConflictMessage is thrown by the commit transaction when the stored
// version differs from the expected one.
const versionConflictMessage = "version conflict"

// wrapQueryError inspects a SurrealDB error and wraps it with the appropriate
// sentinel error if it's a known query error type. Every kind of concurrent
// write also matches store.ErrStateConflict.
func wrapQueryError(err error) error {
	if err == nil {
		return nil
	}

	var queryErr *surrealdb.QueryError
	if errors.As(err, &queryErr) {
		msg := queryErr.Message
		switch {
		case strings.Contains(msg, versionConflictMessage):
			return fmt.Errorf("%w: %s", store.ErrStateConflict, msg)
		case strings.Contains(msg, "Transaction conflict"):
			return fmt.Errorf("%w: %w: %s", ErrTransactionConflict, store.ErrStateConflict, msg)
		case strings.Contains(msg, "already exists"):
			return fmt.Errorf("%w: %w: %s", ErrAlreadyExists, store.ErrStateConflict, msg)
		}
	}

	return err
}
