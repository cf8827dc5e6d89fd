package authgate

import "encoding/json"

// Result is the opaque payload returned by the backend authorizer on
// success. For private channels it carries an implementation-defined grant;
// for presence channels it carries the member identity.
type Result struct {
	// Raw is the response body. When the body was valid JSON it is kept
	// verbatim; otherwise it is passed through as a JSON string.
	Raw json.RawMessage
}

// Identity is the presence member identity extracted from an auth result.
type Identity struct {
	UserID   string
	UserInfo json.RawMessage
}

func newResult(body []byte) Result {
	if json.Valid(body) {
		return Result{Raw: json.RawMessage(body)}
	}
	// Non-JSON bodies pass through as a string value.
	quoted, _ := json.Marshal(string(body))
	return Result{Raw: quoted}
}

// Identity extracts the presence member identity. Laravel-style responses
// wrap it in a JSON-encoded channel_data string; plain responses carry
// user_id and user_info at the top level. Numeric user ids are accepted and
// stringified.
func (r Result) Identity() (Identity, error) {
	var envelope struct {
		ChannelData json.RawMessage `json:"channel_data"`
		UserID      json.RawMessage `json:"user_id"`
		UserInfo    json.RawMessage `json:"user_info"`
	}
	if err := json.Unmarshal(r.Raw, &envelope); err != nil {
		return Identity{}, ErrMissingMemberData
	}

	userID := envelope.UserID
	userInfo := envelope.UserInfo

	if len(envelope.ChannelData) > 0 {
		data := envelope.ChannelData
		// channel_data is usually a string containing JSON.
		var inner string
		if err := json.Unmarshal(data, &inner); err == nil {
			data = json.RawMessage(inner)
		}
		var nested struct {
			UserID   json.RawMessage `json:"user_id"`
			UserInfo json.RawMessage `json:"user_info"`
		}
		if err := json.Unmarshal(data, &nested); err != nil {
			return Identity{}, ErrMissingMemberData
		}
		userID = nested.UserID
		userInfo = nested.UserInfo
	}

	id := stringifyID(userID)
	if id == "" {
		return Identity{}, ErrMissingMemberData
	}
	return Identity{UserID: id, UserInfo: userInfo}, nil
}

// stringifyID accepts both string and numeric user ids.
func stringifyID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
