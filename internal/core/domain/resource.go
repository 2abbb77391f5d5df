package domain

import "errors"

var ErrInvalidResource = errors.New("invalid resource")

// Column widths of the booking ledger.
const (
	MaxResourceIDLen  = 64
	MaxDisplayNameLen = 255
)

// Resource is a bookable event and its unit counters.
type Resource struct {
	ID             string
	DisplayName    string
	TotalUnits     int
	AvailableUnits int
	Active         bool
}

func (r Resource) Validate() error {
	if r.ID == "" {
		return errors.Join(ErrInvalidResource, errors.New("empty resource id"))
	}
	if len(r.ID) > MaxResourceIDLen {
		return errors.Join(ErrInvalidResource, errors.New("resource id too long"))
	}
	if len(r.DisplayName) > MaxDisplayNameLen {
		return errors.Join(ErrInvalidResource, errors.New("display name too long"))
	}
	if r.TotalUnits < 1 {
		return errors.Join(ErrInvalidResource, errors.New("total units must be at least 1"))
	}
	if r.AvailableUnits < 0 || r.AvailableUnits > r.TotalUnits {
		return errors.Join(ErrInvalidResource, errors.New("available units out of range"))
	}
	return nil
}

// Reservation is one unit held against a resource. ID identifies the hold in
// the inventory store so compensation can be applied at most once.
type Reservation struct {
	ID          string
	ResourceID  string
	DisplayName string
}
