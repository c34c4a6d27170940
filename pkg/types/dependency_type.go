package types

import (
	"encoding"
	"fmt"
	"strconv"
)

// DependencyType specifies what a dependency edge suppresses.
type DependencyType uint8

const (
	DependencyExecution DependencyType = iota + 1
	DependencyNotification
)

// String implements the fmt.Stringer interface.
func (dt DependencyType) String() string {
	if v, ok := dependencyTypes[dt]; ok {
		return v
	}

	return strconv.FormatUint(uint64(dt), 10)
}

// MarshalText implements the encoding.TextMarshaler interface.
func (dt DependencyType) MarshalText() ([]byte, error) {
	if v, ok := dependencyTypes[dt]; ok {
		return []byte(v), nil
	}

	return nil, BadDependencyType{dt}
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (dt *DependencyType) UnmarshalText(bytes []byte) error {
	text := string(bytes)

	for k, v := range dependencyTypes {
		if v == text {
			*dt = k
			return nil
		}
	}

	return BadDependencyType{text}
}

// BadDependencyType complains about a syntactically, but not semantically valid DependencyType.
type BadDependencyType struct {
	Type interface{}
}

// Error implements the error interface.
func (bdt BadDependencyType) Error() string {
	return fmt.Sprintf("bad dependency type: %#v", bdt.Type)
}

// dependencyTypes maps all valid DependencyType values to their textual representation.
var dependencyTypes = map[DependencyType]string{
	DependencyExecution:    "execution",
	DependencyNotification: "notification",
}

// Assert interface compliance.
var (
	_ error                    = BadDependencyType{}
	_ encoding.TextMarshaler   = DependencyType(0)
	_ encoding.TextUnmarshaler = (*DependencyType)(nil)
)
