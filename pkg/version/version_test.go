package version

import (
	"bytes"
	"github.com/stretchr/testify/require"
	"runtime/debug"
	"strings"
	"testing"
)

func TestFromSettings(t *testing.T) {
	subtests := []struct {
		name     string
		settings []debug.BuildSetting
		expected Info
	}{
		{"none", nil, Info{Version: "1.0.0"}},
		{
			"clean",
			[]debug.BuildSetting{{Key: "vcs.revision", Value: "0123456789abcdef"}, {Key: "vcs.modified", Value: "false"}},
			Info{Version: "1.0.0-g0123456", Commit: "0123456789abcdef"},
		},
		{
			"dirty",
			[]debug.BuildSetting{{Key: "vcs.revision", Value: "0123456789abcdef"}, {Key: "vcs.modified", Value: "true"}},
			Info{Version: "1.0.0-g0123456-dirty", Commit: "0123456789abcdef (modified)"},
		},
		{"short", []debug.BuildSetting{{Key: "vcs.revision", Value: "0123"}}, Info{Version: "1.0.0", Commit: "0123"}},
	}

	for _, st := range subtests {
		t.Run(st.name, func(t *testing.T) {
			require.Equal(t, &st.expected, fromSettings("1.0.0", st.settings))
		})
	}
}

func TestParseOsRelease(t *testing.T) {
	subtests := []struct {
		name    string
		input   string
		os      string
		release string
	}{
		{"debian", "NAME=\"Debian GNU/Linux\"\nVERSION_ID=\"12\"\nVERSION=\"12 (bookworm)\"\n", "Debian GNU/Linux", "12 (bookworm)"},
		{"alpine", "NAME='Alpine Linux'\n# comment\nVERSION_ID=3.19.1\n", "Alpine Linux", "3.19.1"},
		{"arch", "NAME=\"Arch Linux\"\nBUILD_ID=rolling\n", "Arch Linux", "rolling"},
		{"empty", "", "Linux", "(unknown)"},
	}

	for _, st := range subtests {
		t.Run(st.name, func(t *testing.T) {
			name, release, err := parseOsRelease(strings.NewReader(st.input))
			require.NoError(t, err)
			require.Equal(t, st.os, name)
			require.Equal(t, st.release, release)
		})
	}
}

func TestInfo_Print(t *testing.T) {
	var buf bytes.Buffer
	(&Info{Version: "1.0.0", Commit: "abc"}).Print(&buf, "icingacore")

	require.Contains(t, buf.String(), "icingacore version: 1.0.0\n")
	require.Contains(t, buf.String(), "  Git commit: abc\n")
}
