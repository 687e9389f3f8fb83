package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	LoansErrorBadInput      = "LOANS_BAD_INPUT"
	LoansErrorNotFound      = "LOANS_NOT_FOUND"
	LoansErrorConflict      = "LOANS_CONFLICT"
	LoansErrorLimitExceeded = "LOANS_LIMIT_EXCEEDED"
	LoansErrorInactive      = "LOANS_INACTIVE"
	LoansErrorInternal      = "LOANS_INTERNAL_ERROR"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrNotFound           = errors.New("not found")
	ErrDuplicateCode      = errors.New("grant code already issued")
	ErrMalformedCode      = errors.New("malformed grant code")
	ErrEmployeeInactive   = errors.New("employee is not active")
	ErrGrantTypeInactive  = errors.New("grant type is not active")
	ErrAmountExceedsLimit = errors.New("amount exceeds grant type limit")
	ErrLoanClosed         = errors.New("loan is not active")
	ErrOverpayment        = errors.New("payment exceeds outstanding balance")
	ErrLoanHasPayments    = errors.New("loan has recorded payments")
	ErrDuplicateEvent     = errors.New("outbox event already enqueued")
)

// ErrorKind classifies a failure cause for callers that need to branch on
// it without matching message text.
type ErrorKind string

const (
	ErrorKindInvalidInput ErrorKind = "invalid_input"
	ErrorKindNotFound     ErrorKind = "not_found"
	ErrorKindConflict     ErrorKind = "conflict"
	ErrorKindLimit        ErrorKind = "limit"
	ErrorKindInactive     ErrorKind = "inactive"
	ErrorKindInternal     ErrorKind = "internal"
)

// OperationError is returned by RunInTransaction and RunWithContext when the
// unit of work fails. Its message is "<context>: <cause>" and the cause stays
// reachable through errors.Is and errors.As.
type OperationError struct {
	Context string
	Err     error
}

func (e *OperationError) Error() string {
	if e == nil {
		return ""
	}
	label := strings.TrimSpace(e.Context)
	cause := ""
	if e.Err != nil {
		cause = e.Err.Error()
	}
	if label == "" {
		return cause
	}
	return label + ": " + cause
}

func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *OperationError) Kind() ErrorKind {
	if e == nil {
		return ErrorKindInternal
	}
	return KindOf(e.Err)
}

func WrapOperation(label string, err error) error {
	if err == nil {
		return nil
	}
	return &OperationError{Context: label, Err: err}
}

func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrMalformedCode):
		return ErrorKindInvalidInput
	case errors.Is(err, ErrNotFound):
		return ErrorKindNotFound
	case errors.Is(err, ErrDuplicateCode), errors.Is(err, ErrLoanHasPayments):
		return ErrorKindConflict
	case errors.Is(err, ErrAmountExceedsLimit), errors.Is(err, ErrOverpayment):
		return ErrorKindLimit
	case errors.Is(err, ErrEmployeeInactive), errors.Is(err, ErrGrantTypeInactive), errors.Is(err, ErrLoanClosed):
		return ErrorKindInactive
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		switch richErr.Category {
		case goerrors.CategoryBadInput, goerrors.CategoryValidation:
			return ErrorKindInvalidInput
		case goerrors.CategoryNotFound:
			return ErrorKindNotFound
		case goerrors.CategoryConflict:
			return ErrorKindConflict
		}
	}
	return ErrorKindInternal
}

func loansErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var opErr *OperationError
	if !errors.As(err, &opErr) {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return ensureLoansErrorEnvelope(richErr)
		}
	}

	kind := KindOf(err)
	if kind == ErrorKindInternal {
		msg := strings.ToLower(strings.TrimSpace(err.Error()))
		switch {
		case strings.Contains(msg, "not found"), strings.Contains(msg, "no rows"):
			kind = ErrorKindNotFound
		case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
			kind = ErrorKindInvalidInput
		}
	}

	category, textCode := kindEnvelope(kind)
	if kind == ErrorKindInternal && opErr == nil {
		mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
		return ensureLoansErrorEnvelope(mapped)
	}
	return ensureLoansErrorEnvelope(
		goerrors.Wrap(err, category, err.Error()).
			WithTextCode(textCode),
	)
}

func kindEnvelope(kind ErrorKind) (goerrors.Category, string) {
	switch kind {
	case ErrorKindInvalidInput:
		return goerrors.CategoryBadInput, LoansErrorBadInput
	case ErrorKindNotFound:
		return goerrors.CategoryNotFound, LoansErrorNotFound
	case ErrorKindConflict:
		return goerrors.CategoryConflict, LoansErrorConflict
	case ErrorKindLimit:
		return goerrors.CategoryBadInput, LoansErrorLimitExceeded
	case ErrorKindInactive:
		return goerrors.CategoryConflict, LoansErrorInactive
	default:
		return goerrors.CategoryInternal, LoansErrorInternal
	}
}

func ensureLoansErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = loansHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultLoansTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultLoansTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return LoansErrorBadInput
	case goerrors.CategoryNotFound:
		return LoansErrorNotFound
	case goerrors.CategoryConflict:
		return LoansErrorConflict
	default:
		return LoansErrorInternal
	}
}

func loansHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
