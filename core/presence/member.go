package presence

import "encoding/json"

// Member is one presence-channel participant record, tied to exactly one
// live connection. SocketID is set at join time and is not part of the
// identity: the same UserID may hold several entries, one per device.
type Member struct {
	SocketID string          `json:"socket_id,omitempty"`
	UserID   string          `json:"user_id"`
	UserInfo json.RawMessage `json:"user_info,omitempty"`
}

// WithoutSocket returns a copy of the member stripped of its connection id,
// the shape broadcast in joining/leaving events.
func (m Member) WithoutSocket() Member {
	m.SocketID = ""
	return m
}

// Dedupe collapses a member list to one representative per UserID, keeping
// the first occurrence and preserving order. It is pure and idempotent; pass
// a newest-first list to get the most-recent entry per identity.
func Dedupe(members []Member) []Member {
	seen := make(map[string]struct{}, len(members))
	out := make([]Member, 0, len(members))
	for _, m := range members {
		if _, ok := seen[m.UserID]; ok {
			continue
		}
		seen[m.UserID] = struct{}{}
		out = append(out, m)
	}
	return out
}

// newestFirst returns a reversed copy of a stored (append-ordered) list, so
// the most recently joined entry comes first.
func newestFirst(members []Member) []Member {
	out := make([]Member, len(members))
	for i, m := range members {
		out[len(members)-1-i] = m
	}
	return out
}
