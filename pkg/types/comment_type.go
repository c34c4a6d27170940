package types

import (
	"database/sql"
	"database/sql/driver"
	"encoding"
	"fmt"
	"strconv"
)

// CommentType specifies a comment's origin's kind.
type CommentType uint8

const (
	CommentUser            CommentType = 1
	CommentDowntime        CommentType = 2
	CommentFlapping        CommentType = 3
	CommentAcknowledgement CommentType = 4
)

// String implements the fmt.Stringer interface.
func (ct CommentType) String() string {
	if v, ok := commentTypes[ct]; ok {
		return v
	}

	return strconv.FormatUint(uint64(ct), 10)
}

// MarshalText implements the encoding.TextMarshaler interface.
func (ct CommentType) MarshalText() ([]byte, error) {
	if v, ok := commentTypes[ct]; ok {
		return []byte(v), nil
	}

	return nil, BadCommentType{ct}
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (ct *CommentType) UnmarshalText(bytes []byte) error {
	text := string(bytes)

	for k, v := range commentTypes {
		if v == text {
			*ct = k
			return nil
		}
	}

	i, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		return err
	}

	c := CommentType(i)
	if uint64(c) != i {
		// Truncated due to above cast, obviously too high
		return BadCommentType{text}
	}

	if _, ok := commentTypes[c]; !ok {
		return BadCommentType{text}
	}

	*ct = c
	return nil
}

// Scan implements the sql.Scanner interface.
func (ct *CommentType) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		return ct.UnmarshalText([]byte(v))
	case []byte:
		return ct.UnmarshalText(v)
	default:
		return BadCommentType{src}
	}
}

// Value implements the driver.Valuer interface.
func (ct CommentType) Value() (driver.Value, error) {
	if v, ok := commentTypes[ct]; ok {
		return v, nil
	} else {
		return nil, BadCommentType{ct}
	}
}

// BadCommentType complains about a syntactically, but not semantically valid CommentType.
type BadCommentType struct {
	Type interface{}
}

// Error implements the error interface.
func (bct BadCommentType) Error() string {
	return fmt.Sprintf("bad comment type: %#v", bct.Type)
}

// commentTypes maps all valid CommentType values to their textual representation.
var commentTypes = map[CommentType]string{
	CommentUser:            "comment",
	CommentDowntime:        "downtime",
	CommentFlapping:        "flapping",
	CommentAcknowledgement: "ack",
}

// Assert interface compliance.
var (
	_ error                    = BadCommentType{}
	_ encoding.TextMarshaler   = CommentType(0)
	_ encoding.TextUnmarshaler = (*CommentType)(nil)
	_ sql.Scanner              = (*CommentType)(nil)
	_ driver.Valuer            = CommentType(0)
)
