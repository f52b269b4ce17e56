package models

import "time"

// Reservation is one row of the reservation log sheet. Start and End are
// inclusive and always carry the original, unsplit range even when the
// booking spans several month sheets.
type Reservation struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	Name       string    `json:"name"`
	Extension  string    `json:"extension"`
	EmployeeID string    `json:"employee_id"`
	Device     string    `json:"device"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Status     string    `json:"status"` // StatusActive or StatusCancelled
}

func (r Reservation) Active() bool {
	return r.Status == StatusActive
}

// Matches reports whether the reservation belongs to the given user.
// Any one matching field is enough: identity is self-reported and only
// used to filter listings.
func (r Reservation) Matches(u UserInfo) bool {
	return (u.Name != "" && r.Name == u.Name) ||
		(u.Extension != "" && r.Extension == u.Extension) ||
		(u.EmployeeID != "" && r.EmployeeID == u.EmployeeID)
}
