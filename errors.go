package workflow

import (
	stderrors "errors"
	"strings"

	apperrors "github.com/goliatone/go-errors"
)

const (
	ErrCodeConfiguration   = "CONFIGURATION_ERROR"
	ErrCodeStepTimeout     = "STEP_TIMEOUT"
	ErrCodeActionFailed    = "ACTION_EXECUTION_FAILED"
	ErrCodeValidation      = "RECORD_VALIDATION_FAILED"
	ErrCodeSyncConflict    = "SYNC_CONFLICT"
	ErrCodeWorkflowInvalid = "WORKFLOW_DEFINITION_INVALID"
	ErrCodeNotFound        = "ENTITY_NOT_FOUND"
)

var (
	// ErrConfiguration marks an unknown system/action. Fatal, never retried.
	ErrConfiguration = apperrors.New("configuration error", apperrors.CategoryBadInput).
				WithTextCode(ErrCodeConfiguration)
	// ErrStepTimeout marks a step exceeding its timeout. Retryable per policy.
	ErrStepTimeout = apperrors.New("step timed out", apperrors.CategoryExternal).
			WithTextCode(ErrCodeStepTimeout)
	// ErrActionFailed marks a handler failure. Retryable only when its
	// category is listed in the step's retry_on.
	ErrActionFailed = apperrors.New("action execution failed", apperrors.CategoryHandler).
			WithTextCode(ErrCodeActionFailed)
	// ErrValidation marks a data-flow record failing validation. The record
	// is skipped and the sync continues.
	ErrValidation = apperrors.New("record validation failed", apperrors.CategoryValidation).
			WithTextCode(ErrCodeValidation)
	// ErrSyncConflict marks a manual-resolution conflict. The sync continues
	// and a notification is raised.
	ErrSyncConflict = apperrors.New("sync conflict requires manual resolution", apperrors.CategoryConflict).
			WithTextCode(ErrCodeSyncConflict)
	// ErrWorkflowInvalid marks a definition rejected at creation time.
	ErrWorkflowInvalid = apperrors.New("workflow definition invalid", apperrors.CategoryBadInput).
				WithTextCode(ErrCodeWorkflowInvalid)
	// ErrNotFound marks a missing workflow/dataflow/event id.
	ErrNotFound = apperrors.New("entity not found", apperrors.CategoryBadInput).
			WithTextCode(ErrCodeNotFound)
)

// NewError clones a sentinel with a specific message, source and metadata.
func NewError(base *apperrors.Error, message string, source error, metadata map[string]any) *apperrors.Error {
	if base == nil {
		base = ErrActionFailed
	}
	err := base.Clone()
	if text := strings.TrimSpace(message); text != "" {
		err.Message = text
	}
	if source != nil {
		err.Source = source
	}
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

// ErrorCode extracts the text code from any error in the chain.
func ErrorCode(err error) string {
	var ge *apperrors.Error
	if stderrors.As(err, &ge) {
		return ge.TextCode
	}
	return ""
}

// IsTimeout reports whether err is a step timeout.
func IsTimeout(err error) bool {
	return ErrorCode(err) == ErrCodeStepTimeout
}

// IsConfiguration reports whether err is a configuration error.
func IsConfiguration(err error) bool {
	return ErrorCode(err) == ErrCodeConfiguration
}

// Retryable categories recognized in a step's retry_on list. Text codes are
// matched as well so policies can name a specific failure class.
var retryCategories = map[string]string{
	"timeout":   ErrCodeStepTimeout,
	"execution": ErrCodeActionFailed,
	"external":  ErrCodeStepTimeout,
}

// IsRetryable reports whether err matches one of the step's retryable error
// categories. Configuration errors are never retryable. An empty retry_on
// list means any non-configuration failure is retryable.
func IsRetryable(err error, retryOn []string) bool {
	if err == nil {
		return false
	}
	code := ErrorCode(err)
	if code == ErrCodeConfiguration {
		return false
	}
	if len(retryOn) == 0 {
		return true
	}
	for _, category := range retryOn {
		if code == category {
			return true
		}
		if mapped, ok := retryCategories[strings.ToLower(category)]; ok && mapped == code {
			return true
		}
	}
	return false
}
