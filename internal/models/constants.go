package models

// Maintenance task workflow states understood by the remote service.
const (
	TaskStatusPending    = "pending"
	TaskStatusInProgress = "in_progress"
	TaskStatusOnHold     = "on_hold"
	TaskStatusDone       = "done"
)

const (
	// DefaultBatchSize records fetched per kind in one sync pass
	DefaultBatchSize = 20

	// MaxNotesPhotos photos accepted by a notes/photos update
	MaxNotesPhotos = 3

	// DefaultPeriodicIntervalMinutes periodic pass interval
	DefaultPeriodicIntervalMinutes = 15

	// DefaultBackoffFloorSeconds minimum delay before a follow-up pass
	DefaultBackoffFloorSeconds = 10

	// DefaultPlainTimeoutSeconds timeout for calls without attachments
	DefaultPlainTimeoutSeconds = 30

	// DefaultMultipartTimeoutSeconds timeout for calls that upload photos
	DefaultMultipartTimeoutSeconds = 180
)

// IsTerminalStatus reports whether a task status finishes the workflow.
func IsTerminalStatus(status string) bool {
	return status == TaskStatusDone
}

func IsValidStatus(status string) bool {
	switch status {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusOnHold, TaskStatusDone:
		return true
	default:
		return false
	}
}
