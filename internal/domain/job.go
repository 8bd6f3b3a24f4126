package domain

// DisposalPolicy is the post-fire cleanup rule for a one-shot job.
type DisposalPolicy string

const (
	// DisposalPolicyDeleteAfterFire removes the job from the external
	// scheduler immediately after its single invocation.
	DisposalPolicyDeleteAfterFire DisposalPolicy = "DELETE_AFTER_FIRE"
)

// DispatchPayload is the invocation contract at fire time: the external
// scheduler stores it verbatim at registration and hands it back to the
// dispatch entry point when the job fires.
type DispatchPayload struct {
	ScheduledContent ScheduledContentRecord `json:"scheduledContent"`
	Context          string                 `json:"context"`
}

// ScheduleJob is the one-shot timer registered with the external
// scheduler. The scheduler owns the job from creation until it fires or
// is deleted; this pipeline never reads it back.
type ScheduleJob struct {
	Name           string
	Description    string
	TargetRef      string
	RoleRef        string
	GroupRef       string
	Payload        []byte
	FireExpression string
	DisposalPolicy DisposalPolicy
}
