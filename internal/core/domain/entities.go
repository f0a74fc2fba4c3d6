package domain

import (
	"time"
)

// Session is a client's most recent live position.
type Session struct {
	ID       string    `json:"session_id"`
	Position GeoPoint  `json:"position"`
	LastSeen time.Time `json:"last_seen"`
}

// Valid reports whether the record is structurally usable.
func (s Session) Valid() bool {
	return s.ID != "" && !s.LastSeen.IsZero() && s.Position.Finite()
}

// TestIdentity links a session to the test-run id issued for it.
type TestIdentity struct {
	SessionID string    `json:"session_id"`
	TestID    int64     `json:"test_id"`
	IssuedAt  time.Time `json:"issued_at"`
}

// LocationSample is a position persisted against a test id.
type LocationSample struct {
	TestID   int64     `json:"test_id"`
	Location GeoPoint  `json:"location"`
	SavedAt  time.Time `json:"saved_at"`
}

// SpeedResult is a speed-test result persisted against a test id.
type SpeedResult struct {
	TestID   int64     `json:"test_id"`
	Download float64   `json:"download"`
	Upload   float64   `json:"upload"`
	PingMs   float64   `json:"ping_ms"`
	SavedAt  time.Time `json:"saved_at"`
}

// MeasurementRecord is a speed result joined with its location by test id.
type MeasurementRecord struct {
	TestID   int64     `json:"test_id"`
	Download float64   `json:"download"`
	Upload   float64   `json:"upload"`
	PingMs   float64   `json:"ping_ms"`
	Location *GeoPoint `json:"location,omitempty"`
}

// HeatPoint is one measurement placed on the raster.
type HeatPoint struct {
	X     int     `json:"x"`
	Y     int     `json:"y"`
	Value float64 `json:"value"`
}

// ScalarField is a dense row-major grid: Values[y*Width+x].
type ScalarField struct {
	Width  int       `json:"width"`
	Height int       `json:"height"`
	Values []float64 `json:"values"`
	Max    float64   `json:"max"`
	Method string    `json:"method"`
	Points int       `json:"points"`
}

// At returns the value at (x, y).
func (f ScalarField) At(x, y int) float64 {
	return f.Values[y*f.Width+x]
}

// LiveLocation is the mapped view of a session's latest position.
type LiveLocation struct {
	Found    bool   `json:"found"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
	InBounds bool   `json:"in_bounds"`
	Reason   string `json:"reason,omitempty"`
}

// PositionEvent is broadcast whenever a session reports a position.
type PositionEvent struct {
	EventID   string       `json:"event_id"`
	SessionID string       `json:"session_id"`
	Position  GeoPoint     `json:"position"`
	Mapped    *MappedPoint `json:"mapped,omitempty"`
	Time      time.Time    `json:"time"`
}

// MeasurementEvent is broadcast after a speed result is persisted.
type MeasurementEvent struct {
	EventID  string    `json:"event_id"`
	TestID   int64     `json:"test_id"`
	Download float64   `json:"download"`
	Upload   float64   `json:"upload"`
	PingMs   float64   `json:"ping_ms"`
	Time     time.Time `json:"time"`
}

// HeatmapSnapshot describes a rendered heatmap image kept in the cache.
type HeatmapSnapshot struct {
	ID        string       `json:"id"`
	Extent    RasterExtent `json:"extent"`
	Max       float64      `json:"max"`
	Method    string       `json:"method"`
	Points    int          `json:"points"`
	CreatedAt time.Time    `json:"created_at"`
}
