// Package agentid implements the composite MQTT-style agent identifier
// used throughout the event service: an account (label + audience) plus
// a per-connection label, serialized as "label.account_label.audience".
package agentid

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// AccountID identifies a tenant account: a label scoped to an audience.
type AccountID struct {
	Label    string `json:"label"`
	Audience string `json:"audience"`
}

func (a AccountID) String() string {
	return a.Label + "." + a.Audience
}

// AgentID identifies one MQTT connection bound to an account. Two
// connections from the same account carry different Label values.
type AgentID struct {
	Label   string    `json:"label"`
	Account AccountID `json:"account_label"`
}

// Parse decodes "label.account_label.audience" into an AgentID.
// The label and account label never contain dots; the audience is
// everything after the second dot and may contain dots ("example.org").
func Parse(s string) (AgentID, error) {
	parts := strings.SplitN(s, ".", 3)
	if len(parts) != 3 {
		return AgentID{}, fmt.Errorf("agentid: malformed identifier %q", s)
	}
	if parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return AgentID{}, fmt.Errorf("agentid: empty component in %q", s)
	}
	return AgentID{
		Label: parts[0],
		Account: AccountID{
			Label:    parts[1],
			Audience: parts[2],
		},
	}, nil
}

func (a AgentID) String() string {
	return a.Label + "." + a.Account.Label + "." + a.Account.Audience
}

// IsZero reports whether a is the empty identifier.
func (a AgentID) IsZero() bool {
	return a.Label == "" && a.Account.Label == "" && a.Account.Audience == ""
}

// Value implements driver.Valuer so AgentID can be stored as a plain
// varchar column via GORM without a custom serializer type.
func (a AgentID) Value() (driver.Value, error) {
	if a.IsZero() {
		return nil, nil
	}
	return a.String(), nil
}

// Scan implements sql.Scanner for the reverse direction.
func (a *AgentID) Scan(value interface{}) error {
	if value == nil {
		*a = AgentID{}
		return nil
	}
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("agentid: unsupported scan type %T", value)
	}
	if s == "" {
		*a = AgentID{}
		return nil
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
