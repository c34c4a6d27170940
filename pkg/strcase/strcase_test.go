package strcase

import (
	"github.com/stretchr/testify/require"
	"testing"
)

func TestSnake(t *testing.T) {
	subtests := []struct {
		input  string
		output string
	}{
		{"", ""},
		{"AnyKind of_string", "any_kind_of_string"},
		{" Test Case ", "test_case"},
		{"testCase", "test_case"},
		{"test_case", "test_case"},
		{"TestCase", "test_case"},
		{"ID", "id"},
		{"CommentID", "comment_id"},
		{"ScheduledDowntimeDepth", "scheduled_downtime_depth"},
		{"icinga2", "icinga_2"},
	}

	for _, st := range subtests {
		t.Run(st.input, func(t *testing.T) {
			require.Equal(t, st.output, Snake(st.input))
		})
	}
}

func TestScreamingSnake(t *testing.T) {
	subtests := []struct {
		input  string
		output string
	}{
		{"", ""},
		{"downtime_id", "DOWNTIME_ID"},
		{"nextCheck", "NEXT_CHECK"},
		{"host", "HOST"},
		{"percent-state-change", "PERCENT_STATE_CHANGE"},
		{"check.output", "CHECK_OUTPUT"},
		{"ID", "ID"},
		{"userID", "USER_ID"},
		{"icingacore", "ICINGACORE"},
	}

	for _, st := range subtests {
		t.Run(st.input, func(t *testing.T) {
			require.Equal(t, st.output, ScreamingSnake(st.input))
		})
	}
}

func BenchmarkSnake(b *testing.B) {
	for n := 0; n < b.N; n++ {
		Snake("ScheduledDowntimeDepth")
	}
}
