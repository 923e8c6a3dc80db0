package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Priority is the canonical three-level task priority.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
)

// DefaultPriority is used whenever a client sends a value we do not recognise.
// Older clients sent labels, newer ones send integers, and some sent values
// outside either set; all of them must keep working.
const DefaultPriority = PriorityNormal

var priorityLabels = map[string]Priority{
	"low":    PriorityLow,
	"normal": PriorityNormal,
	"high":   PriorityHigh,
}

// PriorityFromInt maps 0, 1 and 2 to themselves and anything else to DefaultPriority.
func PriorityFromInt(v int) Priority {
	p := Priority(v)
	if p.Valid() {
		return p
	}
	return DefaultPriority
}

// PriorityFromLabel maps "low", "normal" and "high" (any case, surrounding
// whitespace ignored) to their level and anything else to DefaultPriority.
func PriorityFromLabel(label string) Priority {
	if p, ok := priorityLabels[strings.ToLower(strings.TrimSpace(label))]; ok {
		return p
	}
	return DefaultPriority
}

func (p Priority) Valid() bool {
	return p >= PriorityLow && p <= PriorityHigh
}

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	default:
		return fmt.Sprintf("Priority(%d)", int(p))
	}
}

// PriorityValue is the wire form of a priority: either a JSON number or a JSON
// string. Decoding never fails on an unknown value, it yields DefaultPriority.
type PriorityValue struct {
	Priority Priority
}

func (v *PriorityValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		v.Priority = DefaultPriority
	case len(data) > 0 && data[0] == '"':
		var label string
		if err := json.Unmarshal(data, &label); err != nil {
			return err
		}
		v.Priority = PriorityFromLabel(label)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			v.Priority = DefaultPriority
			return nil
		}
		i, err := n.Int64()
		if err != nil {
			v.Priority = DefaultPriority
			return nil
		}
		v.Priority = PriorityFromInt(int(i))
	}
	return nil
}
