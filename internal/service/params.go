package service

import "time"

// TrackParams drives a manual track command. Speed is a rate multiple for
// bench testing; 0 means sidereal.
type TrackParams struct {
	RA    float64 // degrees
	Dec   float64 // degrees
	Speed int
}

// LogFilter supports history filtering by time range and type.
type LogFilter struct {
	From time.Time // inclusive; zero means no lower bound
	To   time.Time // inclusive; zero means no upper bound
	Type string    // "", "START", "STOP", "TRACK", "STRATEGY", "ERROR"
}
