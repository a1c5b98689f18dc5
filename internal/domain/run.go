package domain

import "time"

// RunStatus is the lifecycle state of an analysis run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Run is the ledger record of one analysis. It is also the payload of the
// completion event.
type Run struct {
	ID           string    `json:"id"`
	OutputName   string    `json:"output_name"`
	Variant      Variant   `json:"variant"`
	Status       RunStatus `json:"status"`
	Progress     int       `json:"progress"`
	Message      string    `json:"message,omitempty"`
	VectorPath   string    `json:"vector_path,omitempty"`
	Features     int       `json:"features"`
	BurnedPixels int       `json:"burned_pixels"`
	BurnedAreaHa float64   `json:"burned_area_ha"`
	Error        string    `json:"error,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at,omitzero"`
}
