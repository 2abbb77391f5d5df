package domain

import "time"

// CompensationIncident records a reservation whose release could not be
// applied. Inventory for ResourceID undercounts by one until it is resolved.
type CompensationIncident struct {
	ID            string    `json:"incident_id"`
	CorrelationID string    `json:"correlation_id"`
	ResourceID    string    `json:"resource_id"`
	ReservationID string    `json:"reservation_id"`
	AccountID     int64     `json:"account_id"`
	Reason        string    `json:"reason"`
	Attempts      int       `json:"attempts"`
	DetectedAt    time.Time `json:"detected_at"`
}
