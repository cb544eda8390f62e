package entities

import "time"

// StageManifest records the inputs fingerprint and output of a successful
// local stage so an unchanged stage can be skipped on the next run
type StageManifest struct {
	Stage       string    `json:"stage"`
	Fingerprint string    `json:"fingerprint"`
	Role        Role      `json:"role"`
	Path        string    `json:"path"`
	RecordedAt  time.Time `json:"recorded_at"`
}
