package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	SettingsErrorBadInput        = "SETTINGS_BAD_INPUT"
	SettingsErrorUnauthorized    = "SETTINGS_UNAUTHORIZED"
	SettingsErrorForbidden       = "SETTINGS_FORBIDDEN"
	SettingsErrorRateLimited     = "SETTINGS_RATE_LIMITED"
	SettingsErrorExternalFailure = "SETTINGS_EXTERNAL_FAILURE"
	SettingsErrorOperationFailed = "SETTINGS_OPERATION_FAILED"
	SettingsErrorUnknown         = "SETTINGS_UNKNOWN_ERROR"
	SettingsErrorInternal        = "SETTINGS_INTERNAL_ERROR"
)

// Matrix errcode values the clients surface as TextCode.
const (
	MatrixErrorForbidden        = "M_FORBIDDEN"
	MatrixErrorUnknownToken     = "M_UNKNOWN_TOKEN"
	MatrixErrorMissingToken     = "M_MISSING_TOKEN"
	MatrixErrorUnauthorized     = "M_UNAUTHORIZED"
	MatrixErrorWeakPassword     = "M_WEAK_PASSWORD"
	MatrixErrorPasswordTooShort = "M_PASSWORD_TOO_SHORT"
	MatrixErrorLimitExceeded    = "M_LIMIT_EXCEEDED"
	MatrixErrorTermsNotSigned   = "M_TERMS_NOT_SIGNED"
	MatrixErrorUserDeactivated  = "M_USER_DEACTIVATED"
	MatrixErrorNotFound         = "M_NOT_FOUND"
	MatrixErrorUnrecognized     = "M_UNRECOGNIZED"
	MatrixErrorUnknown          = "M_UNKNOWN"
)

const unknownErrorMessage = "An unexpected error occurred"

// ErrorClassification is the outcome of mapping a raw error to a domain code.
// Recognized is false for opaque errors; Code is then empty.
type ErrorClassification struct {
	Code       string
	Recognized bool
	Category   goerrors.Category
	Status     int
	Message    string
}

// MatrixErrorClassifier recognises errors carrying a Matrix errcode as their
// TextCode. Messages overrides the user-facing text per code.
type MatrixErrorClassifier struct {
	Messages map[string]string
}

func NewMatrixErrorClassifier() MatrixErrorClassifier {
	return MatrixErrorClassifier{Messages: defaultMatrixMessages()}
}

func (c MatrixErrorClassifier) Classify(err error) ErrorClassification {
	if err == nil {
		return ErrorClassification{}
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return ErrorClassification{}
	}
	code := strings.ToUpper(strings.TrimSpace(rich.TextCode))
	if !strings.HasPrefix(code, "M_") {
		return ErrorClassification{}
	}

	category, status := matrixCategory(code)
	if rich.Code != 0 {
		status = rich.Code
	}
	message := strings.TrimSpace(c.Messages[code])
	if message == "" {
		message = strings.TrimSpace(rich.Message)
	}
	if message == "" {
		message = unknownErrorMessage
	}
	return ErrorClassification{
		Code:       code,
		Recognized: true,
		Category:   category,
		Status:     status,
		Message:    message,
	}
}

func defaultMatrixMessages() map[string]string {
	return map[string]string{
		MatrixErrorForbidden:        "The current password is incorrect",
		MatrixErrorWeakPassword:     "The new password is too weak",
		MatrixErrorPasswordTooShort: "The new password is too short",
		MatrixErrorLimitExceeded:    "Too many requests, try again later",
		MatrixErrorUnknownToken:     "Your session has expired, sign in again",
		MatrixErrorMissingToken:     "Your session has expired, sign in again",
		MatrixErrorTermsNotSigned:   "The identity server terms have not been accepted",
		MatrixErrorUserDeactivated:  "This account has been deactivated",
	}
}

func matrixCategory(code string) (goerrors.Category, int) {
	switch code {
	case MatrixErrorForbidden, MatrixErrorTermsNotSigned, MatrixErrorUserDeactivated:
		return goerrors.CategoryAuthz, http.StatusForbidden
	case MatrixErrorUnknownToken, MatrixErrorMissingToken, MatrixErrorUnauthorized:
		return goerrors.CategoryAuth, http.StatusUnauthorized
	case MatrixErrorWeakPassword, MatrixErrorPasswordTooShort:
		return goerrors.CategoryValidation, http.StatusBadRequest
	case MatrixErrorLimitExceeded:
		return goerrors.CategoryRateLimit, http.StatusTooManyRequests
	case MatrixErrorNotFound:
		return goerrors.CategoryNotFound, http.StatusNotFound
	default:
		return goerrors.CategoryExternal, http.StatusBadGateway
	}
}

// DisplayError converts err into the envelope delivered to the presentation
// layer: recognised codes keep their code and message, anything else becomes
// SETTINGS_UNKNOWN_ERROR wrapping the cause.
func DisplayError(classifier ErrorClassifier, err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich.TextCode == SettingsErrorBadInput {
		return rich
	}
	if classifier != nil {
		if classified := classifier.Classify(err); classified.Recognized {
			return goerrors.New(classified.Message, classified.Category).
				WithCode(classified.Status).
				WithTextCode(classified.Code)
		}
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, unknownErrorMessage).
		WithCode(http.StatusInternalServerError).
		WithTextCode(SettingsErrorUnknown)
}

func validationError(field string, message string) error {
	return goerrors.NewValidation("core: validation failed", goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(SettingsErrorBadInput).
		WithSeverity(goerrors.SeverityError)
}

func dependencyError(message string) error {
	return goerrors.New(message, goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(SettingsErrorInternal)
}

func settingsErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureSettingsErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "throttl"), strings.Contains(msg, "rate limit"):
		return newSettingsError(err.Error(), goerrors.CategoryRateLimit, SettingsErrorRateLimited)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return newSettingsError(err.Error(), goerrors.CategoryBadInput, SettingsErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	if mapped != nil && mapped.TextCode == "INTERNAL_ERROR" {
		mapped.TextCode = SettingsErrorInternal
	}
	return ensureSettingsErrorEnvelope(mapped)
}

func newSettingsError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureSettingsErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureSettingsErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = SettingsHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = SettingsTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = unknownErrorMessage
	}
	return err
}

// SettingsTextCode is the default SETTINGS_* code for a category.
func SettingsTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return SettingsErrorBadInput
	case goerrors.CategoryAuth:
		return SettingsErrorUnauthorized
	case goerrors.CategoryAuthz:
		return SettingsErrorForbidden
	case goerrors.CategoryRateLimit:
		return SettingsErrorRateLimited
	case goerrors.CategoryOperation:
		return SettingsErrorOperationFailed
	case goerrors.CategoryExternal:
		return SettingsErrorExternalFailure
	default:
		return SettingsErrorInternal
	}
}

func SettingsHTTPStatus(category goerrors.Category) int {
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
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
