package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jonesrussell/north-cloud/shelter-sync/internal/domain"
)

// PostgreSQL error classes and codes the pipeline reacts to.
const (
	pqClassIntegrityViolation pq.ErrorClass = "23"
	pqClassConnection         pq.ErrorClass = "08"
	pqClassOperatorIntervened pq.ErrorClass = "57"
	pqCodeUniqueViolation     pq.ErrorCode  = "23505"
)

// execRequireRows validates that an ExecContext result affected at least one row.
// Returns err if non-nil, or notFoundErr if rowsAffected is 0.
func execRequireRows(result sql.Result, err, notFoundErr error) error {
	if err != nil {
		return err
	}
	n, affectedErr := result.RowsAffected()
	if affectedErr != nil {
		return affectedErr
	}
	if n == 0 {
		return notFoundErr
	}
	return nil
}

// classify wraps err as a *domain.PersistenceError so callers can tell
// constraint violations (per-item failures) from a lost connection (fatal
// for the job).
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var pe *domain.PersistenceError
	if errors.As(err, &pe) {
		return err
	}

	kind := domain.PersistenceOther
	var pqErr *pq.Error
	var netErr net.Error
	switch {
	case errors.As(err, &pqErr):
		switch pqErr.Code.Class() {
		case pqClassIntegrityViolation:
			kind = domain.PersistenceConstraintViolation
		case pqClassConnection, pqClassOperatorIntervened:
			kind = domain.PersistenceConnectionLost
		}
	case errors.Is(err, driver.ErrBadConn), errors.Is(err, sql.ErrConnDone), errors.As(err, &netErr):
		kind = domain.PersistenceConnectionLost
	}

	return &domain.PersistenceError{Kind: kind, Op: op, Err: err}
}

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != pqCodeUniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

// withTx runs fn inside a transaction, committing on success.
func withTx(ctx context.Context, db *sqlx.DB, op string, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return classify(op, fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	if fnErr := fn(tx); fnErr != nil {
		return classify(op, fnErr)
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return classify(op, fmt.Errorf("failed to commit transaction: %w", commitErr))
	}
	return nil
}

// notFoundOr maps sql.ErrNoRows to notFound and classifies anything else.
func notFoundOr(err, notFound error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return classify(op, fmt.Errorf("failed to %s: %w", op, err))
}

// statusesInto renders the URL statuses allowed to move to to as a SQL list.
func statusesInto(to domain.URLStatus) string {
	from := domain.URLStatusesInto(to)
	quoted := make([]string, len(from))
	for i, s := range from {
		quoted[i] = "'" + string(s) + "'"
	}
	return strings.Join(quoted, ", ")
}
