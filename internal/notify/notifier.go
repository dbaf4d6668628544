// Package notify pushes real-time pipeline progress to users. Delivery is
// fire-and-forget: the pipeline never blocks on, retries, or fails because
// of notification delivery.
package notify

import (
	"context"
	"time"
)

// Stage identifies which pipeline stage a notification refers to.
type Stage string

// Pipeline stages as seen by the user interface.
const (
	StageUpload        Stage = "upload"
	StageGroupCreation Stage = "group-creation"
	StageTraining      Stage = "training"
	StageSaving        Stage = "saving"
	StageComplete      Stage = "complete"
	StageError         Stage = "error"
)

// Status qualifies a stage notification.
type Status string

// Possible notification statuses.
const (
	StatusProgress Status = "progress"
	StatusSuccess  Status = "success"
	StatusError    Status = "error"
)

// Notifier is the progress-push collaborator, routed by user identifier.
// Implementations must swallow delivery failures; Notify has no error
// return so a notifier cannot abort the pipeline by contract.
type Notifier interface {
	Notify(ctx context.Context, userID string, stage Stage, status Status, payload map[string]any)
}

// Message is the wire format pushed to connected clients.
type Message struct {
	UserID    string         `json:"user_id"`
	Stage     Stage          `json:"stage"`
	Status    Status         `json:"status"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
