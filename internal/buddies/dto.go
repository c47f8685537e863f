// internal/buddies/dto.go
package buddies

// DTOs for API requests

type RequestMatchDTO struct {
	TargetID string `json:"target_id" validate:"required,uuid"`
	// CompatibilityScore is the score the client displayed. The server
	// recomputes the stored value.
	CompatibilityScore *float64 `json:"compatibility_score,omitempty" validate:"omitempty,gte=0,lte=100"`
}

type RespondMatchDTO struct {
	Action string `json:"action" validate:"required,oneof=accept decline"`
}

const (
	ActionAccept  = "accept"
	ActionDecline = "decline"
)

// Status filters accepted by ListMyMatches besides the plain statuses.
const (
	FilterActive = "active"
	FilterAll    = "all"
)
