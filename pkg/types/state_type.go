package types

import (
	"database/sql"
	"database/sql/driver"
	"encoding"
	"fmt"
	"strconv"
)

// StateType specifies a state's hardness.
type StateType uint8

const (
	StateSoft StateType = iota
	StateHard
)

// String implements the fmt.Stringer interface.
func (st StateType) String() string {
	if v, ok := stateTypes[st]; ok {
		return v
	}

	return strconv.FormatUint(uint64(st), 10)
}

// MarshalText implements the encoding.TextMarshaler interface.
func (st StateType) MarshalText() ([]byte, error) {
	if v, ok := stateTypes[st]; ok {
		return []byte(v), nil
	}

	return nil, BadStateType{st}
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
// Accepts both the textual representation and the numeric value.
func (st *StateType) UnmarshalText(bytes []byte) error {
	text := string(bytes)

	for k, v := range stateTypes {
		if v == text {
			*st = k
			return nil
		}
	}

	i, err := strconv.ParseUint(text, 10, 8)
	if err != nil {
		return BadStateType{text}
	}

	s := StateType(i)
	if _, ok := stateTypes[s]; !ok {
		return BadStateType{text}
	}

	*st = s
	return nil
}

// Scan implements the sql.Scanner interface.
func (st *StateType) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		return st.UnmarshalText([]byte(v))
	case []byte:
		return st.UnmarshalText(v)
	case int64:
		return st.UnmarshalText([]byte(strconv.FormatInt(v, 10)))
	default:
		return BadStateType{src}
	}
}

// Value implements the driver.Valuer interface.
func (st StateType) Value() (driver.Value, error) {
	if v, ok := stateTypes[st]; ok {
		return v, nil
	} else {
		return nil, BadStateType{st}
	}
}

// BadStateType complains about a syntactically, but not semantically valid StateType.
type BadStateType struct {
	Type interface{}
}

// Error implements the error interface.
func (bst BadStateType) Error() string {
	return fmt.Sprintf("bad state type: %#v", bst.Type)
}

// stateTypes maps all valid StateType values to their textual representation.
var stateTypes = map[StateType]string{
	StateSoft: "soft",
	StateHard: "hard",
}

// Assert interface compliance.
var (
	_ error                    = BadStateType{}
	_ encoding.TextMarshaler   = StateType(0)
	_ encoding.TextUnmarshaler = (*StateType)(nil)
	_ sql.Scanner              = (*StateType)(nil)
	_ driver.Valuer            = StateType(0)
)
