package models

import (
	"fmt"
	"time"
)

// ValidationError represents malformed input rejected before any state
// mutation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// ConflictError represents a duplicate active deployment, an IP collision, or
// an untracked live resource. Conflicts require a human decision and are never
// auto-resolved.
type ConflictError struct {
	Provider Provider
	Region   string
	Reason   string
	RecordID string // existing record involved in the conflict, if any
}

func (e *ConflictError) Error() string {
	if e.RecordID != "" {
		return fmt.Sprintf("conflict in %s/%s: %s (record %s)", e.Provider, e.Region, e.Reason, e.RecordID)
	}
	return fmt.Sprintf("conflict in %s/%s: %s", e.Provider, e.Region, e.Reason)
}

// BudgetExceededError aborts a deployment before any resources are touched.
type BudgetExceededError struct {
	Provider     Provider
	InstanceType string
	Estimated    float64 // USD per month
	Budget       float64 // USD per month
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("estimated monthly cost $%.2f for %s %s exceeds budget $%.2f",
		e.Estimated, e.Provider, e.InstanceType, e.Budget)
}

// LockTimeoutError is returned when the registry's exclusive lock could not
// be acquired within the bounded timeout. The condition is transient and the
// caller may retry.
type LockTimeoutError struct {
	Path    string
	Timeout time.Duration
}

func (e *LockTimeoutError) Error() string {
	return fmt.Sprintf("could not acquire exclusive lock on %s within %s", e.Path, e.Timeout)
}

// ProviderAPIError wraps a failure from an external provider tool or API.
// The provider's raw error text is preserved verbatim.
type ProviderAPIError struct {
	Provider Provider
	Region   string
	Op       string // e.g. "provision", "destroy", "describe-instances"
	RawText  string
	Cause    error
}

func (e *ProviderAPIError) Error() string {
	msg := fmt.Sprintf("%s API error during %s in %s", e.Provider, e.Op, e.Region)
	if e.RawText != "" {
		msg += ": " + e.RawText
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(" (%v)", e.Cause)
	}
	return msg
}

func (e *ProviderAPIError) Unwrap() error {
	return e.Cause
}

// ReconciliationDriftError reports a discrepancy between the registry and the
// live state of a provider. It is advisory: reconciliation proposes changes
// and never deletes records on its own.
type ReconciliationDriftError struct {
	Provider Provider
	Region   string
	RecordID string
	Detail   string
}

func (e *ReconciliationDriftError) Error() string {
	return fmt.Sprintf("drift detected for %s in %s/%s: %s", e.RecordID, e.Provider, e.Region, e.Detail)
}
