package models

import "time"

// Gen2 telemetry keys the actor subscribes to. The first nine are required
// by the normalizer; the lamp keys ride along in the baseline for logging.
const (
	KeyRACmd      = "FITS.SBR.RA_CMD"
	KeyDecCmd     = "FITS.SBR.DEC_CMD"
	KeyRA         = "FITS.SBR.RA"
	KeyDec        = "FITS.SBR.DEC"
	KeyRAOffset   = "STATL.RA_OFFSET"
	KeyDecOffset  = "STATL.DEC_OFFSET"
	KeyAltitude   = "FITS.SBR.ALTITUDE"
	KeyTelDrive   = "STATL.TELDRIVE"
	KeyShutterPos = "STATL.DOMESHUTTER_POS"

	KeyLamp     = "STATL.LAMP"
	KeyDomeFFA  = "TSCV.DomeFF_A"
	KeyDomeFF1B = "TSCV.DomeFF_1B"
	KeyCalHal1  = "STATL.CAL.HAL.LAMP1"
)

// RawStatus is one telescope status envelope: telemetry keys to values as
// delivered by Gen2. Values are strings or numbers depending on the key.
type RawStatus map[string]any

// Drive modes reported in STATL.TELDRIVE, after any parenthetical submode
// (e.g. "Guiding(HSC)") has been stripped.
const (
	DriveTracking = "Tracking"
	DriveGuiding  = "Guiding"
	DriveSlewing  = "Slewing"
	DrivePointing = "Pointing"
)

// ShutterOpen is the STATL.DOMESHUTTER_POS value for an open dome.
const ShutterOpen = "OPEN"

// StatusSnapshot is one normalized telescope status: angles in decimal
// degrees, drive mode canonicalized. Derived fresh from each RawStatus.
type StatusSnapshot struct {
	RACmd     float64 `json:"ra_cmd"`
	DecCmd    float64 `json:"dec_cmd"`
	RA        float64 `json:"ra"`
	Dec       float64 `json:"dec"`
	RAOffset  string  `json:"ra_offset"`
	DecOffset string  `json:"dec_offset"`
	Shutter   string  `json:"shutter"`
	Altitude  float64 `json:"alt"`
	DriveMode string  `json:"drive_mode"`
}

// SunSS run states owned by the active observing strategy.
const (
	SunssStopped  = "stopped"
	SunssRunning  = "running"
	SunssTracking = "tracking"
)

// ActorState is the persisted snapshot of the actor: which strategy is
// installed and what it last did.
type ActorState struct {
	ID         int       `json:"id"`
	Strategy   string    `json:"strategy"`          // idle | untracked | guiding
	SunssState string    `json:"sunss_state"`       // stopped | running | tracking
	RACmd      float64   `json:"ra_cmd,omitempty"`  // pointing at last start, degrees
	DecCmd     float64   `json:"dec_cmd,omitempty"` // pointing at last start, degrees
	UpdatedAt  time.Time `json:"updated_at"`
}

// TrackerEvent is a single entry in the persistent decision log.
type TrackerEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`        // START | STOP | TRACK | STRATEGY | ERROR
	Description string    `json:"description"` // human-readable
	Metadata    any       `json:"metadata,omitempty"`
}

// SunssStatus is the parsed reply of the stage controller's "status"
// command. Steps==-1 marks a degraded report from a malformed reply.
type SunssStatus struct {
	Tracking int   `json:"tracking"`
	Moving   int   `json:"moving"`
	StepTs   int64 `json:"step_ts"`
	Steps    int   `json:"steps"`
}

type User struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"` // never expose the hash
}
