package models

import (
	"strings"
	"time"
)

// WorkOrderPayload carries the form fields of a new work order.
type WorkOrderPayload struct {
	PropertyID string `json:"property_id"`
	Department string `json:"department"`
	Job        string `json:"job"`
	Location   string `json:"location,omitempty"`
	Priority   string `json:"priority,omitempty"`
	ReportedBy string `json:"reported_by"`
}

func (p WorkOrderPayload) Fields() map[string]string {
	return compactFields(map[string]string{
		"property_id": p.PropertyID,
		"department":  p.Department,
		"job":         p.Job,
		"location":    p.Location,
		"priority":    p.Priority,
		"reported_by": p.ReportedBy,
	})
}

// ProjectPayload carries the form fields of a new project entry.
type ProjectPayload struct {
	PropertyID  string `json:"property_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Department  string `json:"department,omitempty"`
	CreatedBy   string `json:"created_by"`
}

func (p ProjectPayload) Fields() map[string]string {
	return compactFields(map[string]string{
		"property_id": p.PropertyID,
		"name":        p.Name,
		"description": p.Description,
		"department":  p.Department,
		"created_by":  p.CreatedBy,
	})
}

// TaskStatusPayload moves a maintenance task to another workflow state.
type TaskStatusPayload struct {
	TaskID      string     `json:"task_id"`
	Status      string     `json:"status"`
	Actor       string     `json:"actor"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// TaskPendingDonePayload is a status update that carries completion data when Status is done.
type TaskPendingDonePayload struct {
	TaskID      string        `json:"task_id"`
	Status      string        `json:"status"`
	Actor       string        `json:"actor"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	TimeSpent   time.Duration `json:"time_spent,omitempty"`
}

// TaskNotesPayload attaches notes to a task without touching its status.
type TaskNotesPayload struct {
	TaskID string `json:"task_id"`
	Notes  string `json:"notes"`
}

func compactFields(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out[k] = v
		}
	}
	return out
}
