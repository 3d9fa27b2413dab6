package entity

// SyncTicketStatuses asks the service to run a synchronizer pass. UserID
// restricts the pass to one user when set.
type SyncTicketStatuses struct {
	Header EventHeader `json:"header"`
	UserID string      `json:"user_id,omitempty"`
}
