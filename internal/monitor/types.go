package monitor

import "time"

// Position is a 2D map coordinate, stored as a [lat, lng] pair.
type Position []float64

// Payload holds free-form sensor or alarm readings. Shape is decided by
// the reporting devices, not by the backend.
type Payload map[string]any

// Zone is a named region outlined by an ordered polygon of positions.
// SubzoneIDs is derived from the subzones' back-references.
type Zone struct {
	ID         string     `json:"id"`
	Company    string     `json:"company"`
	Name       string     `json:"name"`
	Positions  []Position `json:"positions"`
	SubzoneIDs []string   `json:"subzones"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Subzone is a named region inside a zone.
// SiteIDs is derived from the sites' back-references.
type Subzone struct {
	ID        string     `json:"id"`
	Company   string     `json:"company"`
	Name      string     `json:"name"`
	Positions []Position `json:"positions"`
	ZoneID    string     `json:"zone"`
	SiteIDs   []string   `json:"sites"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Site is a monitored point. Sensors, Alarms and Timestamp hold the
// latest reported state; earlier states live in the site's history.
type Site struct {
	ID        string    `json:"id"`
	Company   string    `json:"company"`
	Key       string    `json:"key"`
	Name      string    `json:"name"`
	Position  Position  `json:"position"`
	Sensors   Payload   `json:"sensors"`
	Alarms    Payload   `json:"alarms"`
	Timestamp time.Time `json:"timestamp"`
	ZoneID    string    `json:"zone"`
	SubzoneID string    `json:"subzone"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot is one historical reading of a site's state.
type Snapshot struct {
	Sensors   Payload   `json:"sensors"`
	Alarms    Payload   `json:"alarms"`
	Timestamp time.Time `json:"timestamp"`
}

// ReportSite identifies the site a report belongs to.
type ReportSite struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

// Report is a site's current state with its zone and subzone names
// resolved. Reports are what the API returns and what gets broadcast
// to websocket subscribers.
type Report struct {
	Site      ReportSite `json:"site"`
	Zone      string     `json:"zone"`
	Subzone   string     `json:"subzone"`
	Timestamp time.Time  `json:"timestamp"`
	Sensors   Payload    `json:"sensors"`
	Alarms    Payload    `json:"alarms"`
}
