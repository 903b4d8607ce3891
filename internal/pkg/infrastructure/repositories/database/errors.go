package database

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

var ErrNotFound = fmt.Errorf("not found")
var ErrUserNotFound = fmt.Errorf("user not found: %w", ErrNotFound)
var ErrLaboratoryNotFound = fmt.Errorf("laboratory not found: %w", ErrNotFound)
var ErrModuleNotFound = fmt.Errorf("module not found: %w", ErrNotFound)

var ErrAlreadyExists = fmt.Errorf("already exists")
var ErrUserAlreadyExists = fmt.Errorf("username or email already registered: %w", ErrAlreadyExists)
var ErrLaboratoryAlreadyExists = fmt.Errorf("laboratory code already registered: %w", ErrAlreadyExists)

var ErrRepositoryError = fmt.Errorf("could not fetch data from repository")

// mysqlSignalError is the error number MySQL reports for SIGNAL SQLSTATE '45000'.
const mysqlSignalError uint16 = 1644

// BusinessRuleError carries a rule violation raised by the database itself,
// either by a stored procedure signal or by the equivalent checks on other dialects.
type BusinessRuleError struct {
	Message string
}

func (e *BusinessRuleError) Error() string {
	return e.Message
}

func translateProcedureError(err error) error {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		if myErr.Number == mysqlSignalError || string(myErr.SQLState[:]) == "45000" {
			return &BusinessRuleError{Message: myErr.Message}
		}
	}
	return err
}
