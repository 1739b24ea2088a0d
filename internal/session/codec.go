package session

import (
	"encoding/json"
	"errors"
	"fmt"
)

var errCorrupt = errors.New("session record failed validation")

// encodeSession is the single serialization point for the persisted blob.
func encodeSession(s *Session) (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// decodeSession parses and structurally validates a persisted record. Any
// defect — wrong field types, missing arrays, unknown roles, zero
// timestamps — is reported as corruption; the caller replaces the record
// with defaults instead of propagating the error.
func decodeSession(raw string) (*Session, error) {
	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("%w: %v", errCorrupt, err)
	}
	if s.ID == "" || len(s.Threads) == 0 {
		return nil, errCorrupt
	}
	for _, t := range s.Threads {
		if t == nil || t.ID == "" || t.Messages == nil || len(t.Messages) == 0 {
			return nil, errCorrupt
		}
		switch t.Kind {
		case KindGeneral, KindStartup, KindTechnical, KindIntelligence:
		default:
			return nil, errCorrupt
		}
		for _, m := range t.Messages {
			if m.ID == "" || m.Timestamp.IsZero() {
				return nil, errCorrupt
			}
			if m.Role != RoleUser && m.Role != RoleAssistant {
				return nil, errCorrupt
			}
		}
	}
	return &s, nil
}
