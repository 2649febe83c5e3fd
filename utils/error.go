package utils

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrorRecordNotFound = errors.New("record not found")

var ErrDuplicateInvoiceNumber = errors.New("invoice number already exists")

// ValidationError is returned before any transaction starts.
type ValidationError struct {
	Message string
	Details map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Details) == 0 {
		return e.Message
	}
	keys := make([]string, 0, len(e.Details))
	for k := range e.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Details[k])
	}
	return e.Message + " (" + strings.Join(parts, ", ") + ")"
}

func NewValidationError(message string, details map[string]string) error {
	return &ValidationError{Message: message, Details: details}
}

// InsufficientStockError aborts the invoice transaction and names the product that ran out.
type InsufficientStockError struct {
	ProductId int
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Insufficient stock for product ID %d", e.ProductId)
}

// PersistenceError wraps a storage failure. The message shown to clients stays generic.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// DocumentGenerationError is reported after commit; the invoice itself is already durable.
type DocumentGenerationError struct {
	InvoiceNumber string
	Err           error
}

func (e *DocumentGenerationError) Error() string {
	return fmt.Sprintf("document generation failed for invoice %s: %v", e.InvoiceNumber, e.Err)
}

func (e *DocumentGenerationError) Unwrap() error { return e.Err }

// WrapPersistence leaves domain errors untouched and wraps anything else as a PersistenceError.
func WrapPersistence(op string, err error) error {
	if err == nil {
		return nil
	}
	var vErr *ValidationError
	var sErr *InsufficientStockError
	var pErr *PersistenceError
	if errors.As(err, &vErr) || errors.As(err, &sErr) || errors.As(err, &pErr) || errors.Is(err, ErrorRecordNotFound) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrorRecordNotFound
	}
	return &PersistenceError{Op: op, Err: err}
}

// IsDuplicateKeyError reports a unique index violation (MySQL 1062).
func IsDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	return false
}

// HTTPStatusForError maps the error taxonomy onto response codes.
func HTTPStatusForError(err error) int {
	var vErr *ValidationError
	var sErr *InsufficientStockError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &vErr), errors.As(err, &sErr):
		return http.StatusBadRequest
	case errors.Is(err, ErrorRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicateInvoiceNumber):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the text safe to return to a client for err.
func PublicMessage(err error) string {
	var vErr *ValidationError
	var sErr *InsufficientStockError
	switch {
	case errors.As(err, &vErr):
		return vErr.Message
	case errors.As(err, &sErr):
		return sErr.Error()
	case errors.Is(err, ErrorRecordNotFound):
		return "Invoice not found"
	case errors.Is(err, ErrDuplicateInvoiceNumber):
		return ErrDuplicateInvoiceNumber.Error()
	default:
		return "Internal server error"
	}
}
