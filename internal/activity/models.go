// Package activity implements the activity/audit trail for the vault: every
// user- and system-initiated operation is recorded as a structured, queryable,
// exportable record with sub-step tracking and timing.
package activity

// Type classifies an activity by the operation it records.
type Type string

const (
	TypeIdentityCreated   Type = "identity_created"
	TypeIdentityImported  Type = "identity_imported"
	TypeIdentityExported  Type = "identity_exported"
	TypeDocumentCreated   Type = "document_created"
	TypeDocumentRead      Type = "document_read"
	TypeDocumentDeleted   Type = "document_deleted"
	TypePermissionGranted Type = "permission_granted"
	TypePermissionRevoked Type = "permission_revoked"
	TypeCollectionViewed  Type = "collection_viewed"
	TypeAppConnected      Type = "app_connected"
	TypeAppDisconnected   Type = "app_disconnected"
	TypeAutofillExecuted  Type = "autofill_executed"
	TypeDataExported      Type = "data_exported"
	TypeSecurityChanged   Type = "security_changed"
)

// Status is the terminal outcome of an activity.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusWarning Status = "warning"
)

// SubStepStatus tracks the state of one checkpoint inside an activity.
type SubStepStatus string

const (
	SubStepPending    SubStepStatus = "pending"
	SubStepInProgress SubStepStatus = "in_progress"
	SubStepCompleted  SubStepStatus = "completed"
	SubStepFailed     SubStepStatus = "failed"
)

// Log is one audit record. Records are immutable after creation except through
// the append-sub-step and complete operations; they are destroyed only by
// clearing the collection or retention eviction.
type Log struct {
	ID          string         `json:"id"`
	Timestamp   int64          `json:"timestamp"` // ms since epoch, set at creation
	Type        Type           `json:"type"`
	Description string         `json:"description"`
	Status      Status         `json:"status"`
	Details     map[string]any `json:"details,omitempty"`
	UserDID     string         `json:"userDid,omitempty"`
	SubSteps    []SubStep      `json:"subSteps,omitempty"`
	// Duration is absent until the activity is explicitly completed; it is
	// always measured from the creation timestamp, never from a prior
	// completion.
	Duration *int64    `json:"duration,omitempty"`
	Metadata *Metadata `json:"metadata,omitempty"`
}

// SubStep is a fine-grained checkpoint within an activity's execution, used to
// reconstruct causal and temporal detail after the fact.
type SubStep struct {
	// Order is 1-based, assigned as previous count + 1 at append time,
	// never reused or reordered.
	Order       int            `json:"order"`
	Description string         `json:"description"`
	Timestamp   int64          `json:"timestamp"`
	Status      SubStepStatus  `json:"status"`
	Details     map[string]any `json:"details,omitempty"`
}

// Metadata carries descriptive request context captured at creation.
type Metadata struct {
	Location  string `json:"location,omitempty"`
	Device    string `json:"device,omitempty"` // display name parsed from UserAgent
	UserAgent string `json:"userAgent,omitempty"`
	IPAddress string `json:"ipAddress,omitempty"`
}

// Valid reports whether a record read back from storage passes basic shape
// validation. Malformed records are skipped by the query and stats surfaces
// rather than aborting the whole read.
func (l Log) Valid() bool {
	return l.ID != "" && l.Type != ""
}

// Completed reports whether the activity has been closed with a duration.
func (l Log) Completed() bool {
	return l.Duration != nil
}
