package attendance

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Status is the recorded outcome of one ledger cell.
type Status int

const (
	Unset Status = iota
	Present
	Absent
)

// Next advances the cycle Unset -> Present -> Absent -> Unset.
func (s Status) Next() Status {
	switch s {
	case Unset:
		return Present
	case Present:
		return Absent
	default:
		return Unset
	}
}

// String is the label used in exports.
func (s Status) String() string {
	switch s {
	case Present:
		return "Present"
	case Absent:
		return "Absent"
	default:
		return "Pending"
	}
}

// Code is the stored form: "P", "A" or "" for unset.
func (s Status) Code() string {
	switch s {
	case Present:
		return "P"
	case Absent:
		return "A"
	}
	return ""
}

// ParseStatus is the inverse of Code.
func ParseStatus(code string) (Status, error) {
	switch code {
	case "":
		return Unset, nil
	case "P":
		return Present, nil
	case "A":
		return Absent, nil
	}
	return Unset, errors.Errorf("unknown attendance status %q", code)
}

// MarshalJSON stores Unset as null.
func (s Status) MarshalJSON() ([]byte, error) {
	if s == Unset {
		return []byte("null"), nil
	}
	return json.Marshal(s.Code())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = Unset
		return nil
	}
	var code string
	if err := json.Unmarshal(data, &code); err != nil {
		return err
	}
	st, err := ParseStatus(code)
	if err != nil {
		return err
	}
	*s = st
	return nil
}
