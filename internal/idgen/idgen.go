// Package idgen generates compact sortable identifiers for file-transfer
// sessions, using github.com/rs/xid the way runZeroInc's sockstats/conniver
// tooling generates scan/run identifiers.
package idgen

import "github.com/rs/xid"

// SessionID is a file-transfer session identifier (§3: "session_id").
type SessionID string

// NewSessionID mints a new, time-sortable session identifier.
func NewSessionID() SessionID {
	return SessionID(xid.New().String())
}

func (s SessionID) String() string { return string(s) }
