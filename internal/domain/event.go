package domain

// Routing tags for events produced by the change capture filter.
const (
	EventSourceScheduledContent = "scheduled.content"
	EventTypeScheduleCreated    = "ScheduleContentCreated"
)

// ContextScheduledPost marks a dispatch payload as belonging to the
// scheduled-post channel, distinguishing it from other dispatch channels.
const ContextScheduledPost = "scheduled-post"

// EventDetail carries the normalized record. No other row fields survive
// the capture filter.
type EventDetail struct {
	ScheduledContent ScheduledContentRecord `json:"scheduledContent"`
}

// Event is the normalized envelope the capture filter emits and the
// router consumes. Events are ephemeral and never persisted.
type Event struct {
	Source     string      `json:"source"`
	DetailType string      `json:"detail-type"`
	Detail     EventDetail `json:"detail"`
}
