// Package version reports the version of the running binary.
package version

import (
	"bufio"
	"fmt"
	"github.com/pkg/errors"
	"io"
	"os"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"
)

// hashLen is the commit hash length git describe uses.
const hashLen = 7

// Info holds version and commit information.
type Info struct {
	Version string
	Commit  string
}

// New returns the hardcoded version, augmented with the commit the binary was built from, if known.
func New(version string) *Info {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return &Info{Version: version}
	}

	return fromSettings(version, info.Settings)
}

func fromSettings(version string, settings []debug.BuildSetting) *Info {
	var commit string
	var modified bool

	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			commit = s.Value
		case "vcs.modified":
			modified, _ = strconv.ParseBool(s.Value)
		}
	}

	if len(commit) >= hashLen {
		version += "-g" + commit[:hashLen]

		if modified {
			version += "-dirty"
			commit += " (modified)"
		}
	}

	return &Info{Version: version, Commit: commit}
}

// Print writes verbose version output of the named program to w.
func (v *Info) Print(w io.Writer, name string) {
	_, _ = fmt.Fprintf(w, "%s version: %s\n\n", name, v.Version)
	_, _ = fmt.Fprintln(w, "Build information:")
	_, _ = fmt.Fprintf(w, "  Go version: %s (%s, %s)\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)

	if v.Commit != "" {
		_, _ = fmt.Fprintln(w, "  Git commit:", v.Commit)
	}

	if platform, release, err := readOsRelease(); err == nil {
		_, _ = fmt.Fprintf(w, "\nSystem information:\n  Platform: %s\n  Platform version: %s\n", platform, release)
	}
}

// readOsRelease returns the platform name and the most suitable version from the os-release file.
func readOsRelease() (string, string, error) {
	for _, path := range []string{"/etc/os-release", "/usr/lib/os-release"} {
		f, err := os.Open(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}

			return "", "", err
		}

		name, release, err := parseOsRelease(f)
		_ = f.Close()

		return name, release, err
	}

	return "", "", errors.New("os-release file not found")
}

// parseOsRelease parses KEY=value lines as described in os-release(5).
func parseOsRelease(r io.Reader) (string, string, error) {
	values := map[string]string{"NAME": "Linux"}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		key, val, ok := strings.Cut(scanner.Text(), "=")
		if !ok || strings.HasPrefix(key, "#") {
			continue
		}

		if len(val) >= 2 && (val[0] == '"' || val[0] == '\'') && val[0] == val[len(val)-1] {
			val = val[1 : len(val)-1]
		}

		values[key] = val
	}

	if err := scanner.Err(); err != nil {
		return "", "", errors.Wrap(err, "can't read os-release")
	}

	// Alpine only sets VERSION_ID, Arch only BUILD_ID.
	for _, key := range []string{"VERSION", "VERSION_ID", "BUILD_ID"} {
		if v := values[key]; v != "" {
			return values["NAME"], v, nil
		}
	}

	return values["NAME"], "(unknown)", nil
}
