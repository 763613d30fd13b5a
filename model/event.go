package model

import "time"

// Event kinds published on the console event bus.
const (
	// EventUnauthorized is raised when the backend rejects a session's
	// credentials (401) or privileges (403).
	EventUnauthorized = "unauthorized"
	// EventInvalidated is raised when a mutation invalidates cached reads of
	// a resource.
	EventInvalidated = "invalidated"
)

// Event is a console-wide notification. Unauthorized events carry the HTTP
// status and the offending session; invalidated events carry the tags that
// were dropped.
type Event struct {
	Kind      string    `json:"kind"`
	Status    int       `json:"status,omitempty"`
	SessionID string    `json:"-"`
	SubjectID string    `json:"-"`
	Tags      []Tag     `json:"tags,omitempty"`
	At        time.Time `json:"at"`
}

// Resources returns the distinct resource types named by the event's tags.
func (e Event) Resources() []string {
	seen := make(map[string]bool, len(e.Tags))
	var out []string
	for _, t := range e.Tags {
		if seen[t.Type] {
			continue
		}
		seen[t.Type] = true
		out = append(out, t.Type)
	}
	return out
}
