package types

import (
	"encoding"
	"fmt"
	"strconv"
)

// NotificationType specifies the reason of a sent notification.
type NotificationType uint16

const (
	NotificationDowntimeStart    NotificationType = 1
	NotificationDowntimeEnd      NotificationType = 2
	NotificationDowntimeRemoved  NotificationType = 4
	NotificationCustom           NotificationType = 8
	NotificationAcknowledgement  NotificationType = 16
	NotificationProblem          NotificationType = 32
	NotificationRecovery         NotificationType = 64
	NotificationFlappingStart    NotificationType = 128
	NotificationFlappingEnd      NotificationType = 256
	NotificationFlappingDisabled NotificationType = 512
)

// String implements the fmt.Stringer interface.
func (nt NotificationType) String() string {
	if v, ok := notificationTypes[nt]; ok {
		return v
	}

	return strconv.FormatUint(uint64(nt), 10)
}

// MarshalText implements the encoding.TextMarshaler interface.
func (nt NotificationType) MarshalText() ([]byte, error) {
	if v, ok := notificationTypes[nt]; ok {
		return []byte(v), nil
	}

	return nil, BadNotificationType{nt}
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (nt *NotificationType) UnmarshalText(bytes []byte) error {
	text := string(bytes)

	i, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		return err
	}

	n := NotificationType(i)
	if uint64(n) != i {
		// Truncated due to above cast, obviously too high
		return BadNotificationType{text}
	}

	if _, ok := notificationTypes[n]; !ok {
		return BadNotificationType{text}
	}

	*nt = n
	return nil
}

// BadNotificationType complains about a syntactically, but not semantically valid NotificationType.
type BadNotificationType struct {
	Type interface{}
}

// Error implements the error interface.
func (bnt BadNotificationType) Error() string {
	return fmt.Sprintf("bad notification type: %#v", bnt.Type)
}

// notificationTypes maps all valid NotificationType values to their textual representation.
var notificationTypes = map[NotificationType]string{
	NotificationDowntimeStart:    "downtime_start",
	NotificationDowntimeEnd:      "downtime_end",
	NotificationDowntimeRemoved:  "downtime_removed",
	NotificationCustom:           "custom",
	NotificationAcknowledgement:  "acknowledgement",
	NotificationProblem:          "problem",
	NotificationRecovery:         "recovery",
	NotificationFlappingStart:    "flapping_start",
	NotificationFlappingEnd:      "flapping_end",
	NotificationFlappingDisabled: "flapping_disabled",
}

// Assert interface compliance.
var (
	_ error                    = BadNotificationType{}
	_ fmt.Stringer             = NotificationType(0)
	_ encoding.TextMarshaler   = NotificationType(0)
	_ encoding.TextUnmarshaler = (*NotificationType)(nil)
)
