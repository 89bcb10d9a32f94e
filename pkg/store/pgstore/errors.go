package pgstore

import (
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
)

// SQLStateError annotates a server error with its SQLSTATE class.
type SQLStateError struct {
	Code  string
	Class string
	Err   error
}

func (e *SQLStateError) Error() string {
	return fmt.Sprintf("%s: %v", e.Class, e.Err)
}

func (e *SQLStateError) Unwrap() error { return e.Err }

var classes = []struct {
	is   func(string) bool
	name string
}{
	{pgerrcode.IsConnectionException, "connection exception"},
	{pgerrcode.IsDataException, "data exception"},
	{pgerrcode.IsIntegrityConstraintViolation, "integrity constraint violation"},
	{pgerrcode.IsInvalidTransactionState, "invalid transaction state"},
	{pgerrcode.IsInvalidAuthorizationSpecification, "invalid authorization specification"},
	{pgerrcode.IsInvalidCatalogName, "invalid catalog name"},
	{pgerrcode.IsTransactionRollback, "transaction rollback"},
	{pgerrcode.IsSyntaxErrororAccessRuleViolation, "syntax error or access rule violation"},
	{pgerrcode.IsInsufficientResources, "insufficient resources"},
	{pgerrcode.IsProgramLimitExceeded, "program limit exceeded"},
	{pgerrcode.IsObjectNotInPrerequisiteState, "object not in prerequisite state"},
	{pgerrcode.IsOperatorIntervention, "operator intervention"},
	{pgerrcode.IsSystemError, "system error"},
	{pgerrcode.IsInternalError, "internal error"},
}

// ClassName names the SQLSTATE class of code.
func ClassName(code string) string {
	for _, c := range classes {
		if c.is(code) {
			return c.name
		}
	}
	return "class " + classOf(code)
}

func classOf(code string) string {
	if len(code) < 2 {
		return code
	}
	return code[:2]
}

// classify wraps server errors in *SQLStateError and leaves others alone.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	return &SQLStateError{Code: pgErr.Code, Class: ClassName(pgErr.Code), Err: err}
}

// IsUndefinedTable reports whether err is a missing relation error.
func IsUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UndefinedTable
}
