package types

import "time"

type HourCount struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

// Report summarizes an inclusive window of civil dates.
type Report struct {
	Start      string         `json:"start"`
	End        string         `json:"end"`
	Authorized int            `json:"authorized"`
	Denied     int            `json:"denied"`
	Categories map[string]int `json:"categories"`
	PeakHours  []HourCount    `json:"peak_hours"`
}

const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Export struct {
	Filename    string
	ContentType string
	Data        []byte
}

// IdentityView is the API shape of a registry identity. Credentials never
// leave the service.
type IdentityView struct {
	ID          string        `json:"id"`
	DisplayName string        `json:"name"`
	Occupation  string        `json:"occupation"`
	Role        string        `json:"role"`
	Username    string        `json:"username,omitempty"`
	Vehicles    []VehicleView `json:"vehicles"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

type VehicleView struct {
	Plate  string `json:"plate"`
	Active bool   `json:"active"`
}

type IdentityRequest struct {
	DisplayName *string   `json:"name,omitempty"`
	Occupation  *string   `json:"occupation,omitempty"`
	Role        *string   `json:"role,omitempty"`
	Username    *string   `json:"username,omitempty"`
	Password    *string   `json:"password,omitempty"`
	Plates      *[]string `json:"plates,omitempty"`
}

type AlertView struct {
	ID             int64      `json:"id"`
	AccessEventID  int64      `json:"access_event_id"`
	Type           string     `json:"type"`
	Message        string     `json:"message"`
	CreatedAt      time.Time  `json:"created_at"`
	Acknowledged   bool       `json:"acknowledged"`
	AcknowledgedBy string     `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
}
