package types

import (
	"github.com/stretchr/testify/require"
	"testing"
)

func TestDependencyType_UnmarshalText(t *testing.T) {
	subtests := []struct {
		name   string
		input  string
		output DependencyType
		error  bool
	}{
		{name: "empty", input: "", error: true},
		{name: "numeric", input: "1", error: true},
		{name: "execution", input: "execution", output: DependencyExecution},
		{name: "notification", input: "notification", output: DependencyNotification},
	}

	for _, st := range subtests {
		t.Run(st.name, func(t *testing.T) {
			var dt DependencyType
			if err := dt.UnmarshalText([]byte(st.input)); st.error {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				require.Equal(t, st.output, dt)
				require.Equal(t, st.input, dt.String())
			}
		})
	}
}

func TestNotificationType_MarshalText(t *testing.T) {
	text, err := NotificationFlappingDisabled.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "flapping_disabled", string(text))

	_, err = NotificationType(3).MarshalText()
	require.Error(t, err)
}

func TestCommentType_UnmarshalText(t *testing.T) {
	var ct CommentType
	require.NoError(t, ct.UnmarshalText([]byte("downtime")))
	require.Equal(t, CommentDowntime, ct)

	require.NoError(t, ct.UnmarshalText([]byte("3")))
	require.Equal(t, CommentFlapping, ct)

	require.Error(t, ct.UnmarshalText([]byte("5")))
	require.Error(t, ct.UnmarshalText([]byte("256")))
}
