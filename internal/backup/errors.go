package backup

import (
	"errors"
	"fmt"
	"strings"
)

// BackupError represents errors that occur during backup and restore runs
type BackupError struct {
	Type    BackupErrorType        `json:"type"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *BackupError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause error
func (e *BackupError) Unwrap() error {
	return e.Cause
}

// BackupErrorType represents different types of backup errors
type BackupErrorType string

const (
	BackupErrorTypeIntrospection      BackupErrorType = "INTROSPECTION_ERROR"
	BackupErrorTypeSerialization      BackupErrorType = "SERIALIZATION_ERROR"
	BackupErrorTypeCompression        BackupErrorType = "COMPRESSION_ERROR"
	BackupErrorTypeEncryption         BackupErrorType = "ENCRYPTION_ERROR"
	BackupErrorTypeDecryption         BackupErrorType = "DECRYPTION_ERROR"
	BackupErrorTypeValidation         BackupErrorType = "VALIDATION_ERROR"
	BackupErrorTypeStatementExecution BackupErrorType = "STATEMENT_EXECUTION_ERROR"
	BackupErrorTypeNotFound           BackupErrorType = "NOT_FOUND_ERROR"
	BackupErrorTypeStorage            BackupErrorType = "STORAGE_ERROR"
	BackupErrorTypeConfiguration      BackupErrorType = "CONFIGURATION_ERROR"
	BackupErrorTypeCodec              BackupErrorType = "CODEC_ERROR"
)

// NewBackupError creates a new BackupError
func NewBackupError(errorType BackupErrorType, message string, cause error) *BackupError {
	return &BackupError{
		Type:    errorType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// WithContext adds context information to the error
func (e *BackupError) WithContext(key string, value interface{}) *BackupError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Common error constructors
func NewIntrospectionError(message string, cause error) *BackupError {
	return NewBackupError(BackupErrorTypeIntrospection, message, cause)
}

func NewSerializationError(message string, cause error) *BackupError {
	return NewBackupError(BackupErrorTypeSerialization, message, cause)
}

func NewCompressionError(message string, cause error) *BackupError {
	return NewBackupError(BackupErrorTypeCompression, message, cause)
}

func NewEncryptionError(message string, cause error) *BackupError {
	return NewBackupError(BackupErrorTypeEncryption, message, cause)
}

func NewDecryptionError(message string, cause error) *BackupError {
	return NewBackupError(BackupErrorTypeDecryption, message, cause)
}

func NewValidationError(message string, cause error) *BackupError {
	return NewBackupError(BackupErrorTypeValidation, message, cause)
}

func NewStatementExecutionError(message string, cause error) *BackupError {
	return NewBackupError(BackupErrorTypeStatementExecution, message, cause)
}

func NewNotFoundError(message string, cause error) *BackupError {
	return NewBackupError(BackupErrorTypeNotFound, message, cause)
}

func NewStorageError(message string, cause error) *BackupError {
	return NewBackupError(BackupErrorTypeStorage, message, cause)
}

func NewConfigurationError(message string, cause error) *BackupError {
	return NewBackupError(BackupErrorTypeConfiguration, message, cause)
}

func NewCodecError(message string, cause error) *BackupError {
	return NewBackupError(BackupErrorTypeCodec, message, cause)
}

// ValidationError represents validation-specific errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// ValidationErrors represents a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (e ValidationErrors) Error() string {
	switch len(e) {
	case 0:
		return "no validation errors"
	case 1:
		return e[0].Error()
	}

	messages := make([]string, len(e))
	for i := range e {
		messages[i] = e[i].Error()
	}
	return fmt.Sprintf("%d validation errors: %s", len(e), strings.Join(messages, "; "))
}

// Add adds a validation error to the collection
func (e *ValidationErrors) Add(field, message string, value interface{}) {
	*e = append(*e, ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	})
}

// HasErrors returns true if there are validation errors
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// ErrorType returns the BackupErrorType carried anywhere in err's chain, or ""
func ErrorType(err error) BackupErrorType {
	var backupErr *BackupError
	if errors.As(err, &backupErr) {
		return backupErr.Type
	}
	return ""
}

func IsIntrospectionError(err error) bool { return ErrorType(err) == BackupErrorTypeIntrospection }
func IsDecryptionError(err error) bool    { return ErrorType(err) == BackupErrorTypeDecryption }
func IsValidationError(err error) bool    { return ErrorType(err) == BackupErrorTypeValidation }
func IsNotFound(err error) bool           { return ErrorType(err) == BackupErrorTypeNotFound }
func IsStorageError(err error) bool       { return ErrorType(err) == BackupErrorTypeStorage }
func IsCodecError(err error) bool         { return ErrorType(err) == BackupErrorTypeCodec }

// IsRetryable determines if an error is worth re-invoking the operation for
func IsRetryable(err error) bool {
	switch ErrorType(err) {
	case BackupErrorTypeStorage, BackupErrorTypeIntrospection:
		return true
	default:
		return false
	}
}

// IsPermanent determines if an error is permanent and should not be retried
func IsPermanent(err error) bool {
	switch ErrorType(err) {
	case BackupErrorTypeValidation, BackupErrorTypeDecryption,
		BackupErrorTypeNotFound, BackupErrorTypeConfiguration, BackupErrorTypeCodec:
		return true
	default:
		return false
	}
}
