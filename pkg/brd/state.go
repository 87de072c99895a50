package brd

// NodeState is the adoption state of a single node
type NodeState uint8

const (
	Untouched NodeState = iota
	Spreader
	Wise
)

func (s NodeState) String() string {
	switch s {
	case Untouched:
		return "untouched"
	case Spreader:
		return "spreader"
	case Wise:
		return "wise"
	default:
		return "unknown"
	}
}

// MarshalText lets states appear by name in JSON events
func (s NodeState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Seeds holds the initial spreader and wise sets. Seed nodes are locked for
// the whole run. A node listed in both sets starts Wise: wise seeding is
// applied after spreader seeding and overrides it.
type Seeds struct {
	Spreaders []int `json:"spreaders"`
	Wise      []int `json:"wise"`
}
