package models

import "time"

// AuditEventType enumerates the state transitions the engine reports to the
// external audit collaborator.
type AuditEventType string

const (
	EventSignalActive  AuditEventType = "signal_active"
	EventSignalExpired AuditEventType = "signal_expired"
	EventWindowReset   AuditEventType = "window_reset"
)

// AuditEvent is the structured record of an engine state transition. It is
// published fire-and-forget; the engine never blocks on its delivery.
type AuditEvent struct {
	Type       AuditEventType `json:"type"`
	Instrument string         `json:"instrument,omitempty"`
	Pair       string         `json:"pair,omitempty"`
	Signal     *Signal        `json:"signal,omitempty"`
	Reason     string         `json:"reason,omitempty"`
	At         time.Time      `json:"at"`
}
