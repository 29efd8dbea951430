package ids

import "fmt"

// Trust classifies how far an observed association may override existing bindings.
type Trust int

const (
	// TrustLow observations may only fill empty identifier slots.
	TrustLow Trust = iota
	// TrustHigh observations (directory answers, sync messages from a linked
	// device) may move a phone number between recipients.
	TrustHigh
)

func (t Trust) String() string {
	if t == TrustHigh {
		return "high"
	}
	return "low"
}

// ParseTrust parses "high" or "low".
func ParseTrust(s string) (Trust, error) {
	switch s {
	case "high":
		return TrustHigh, nil
	case "low":
		return TrustLow, nil
	default:
		return TrustLow, fmt.Errorf("invalid trust level %q: must be high or low", s)
	}
}

// UnmarshalYAML lets fixtures spell trust as a string.
func (t *Trust) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseTrust(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
