package internal

import (
	"fmt"
	"strings"

	"github.com/coreos/go-semver/semver"
)

var (
	version      = "0.3.0"
	revision     = "$Format:%h$"
	revisionDate = "$Format:%as$"
)

// Version returns the build version, with the revision when it was stamped.
func Version() string {
	if strings.HasPrefix(revision, "$Format") {
		return version
	}
	return fmt.Sprintf("%s+%s.%s", version, revisionDate, revision)
}

// Parse accepts the v-prefixed and short (1, 1.2) spellings on top of
// strict semver and drops build metadata. It returns nil when s is not a
// version.
func Parse(s string) *semver.Version {
	s = strings.TrimPrefix(strings.TrimSpace(s), "v")
	core, suffix := s, ""
	if i := strings.IndexAny(s, "-+"); i >= 0 {
		core, suffix = s[:i], s[i:]
	}
	for strings.Count(core, ".") < 2 {
		core += ".0"
	}
	v, err := semver.NewVersion(core + suffix)
	if err != nil {
		return nil
	}
	v.Metadata = ""
	return v
}

// CompareVersions returns -1, 0 or 1. A pre-release sorts before its
// release.
func CompareVersions(v1, v2 *semver.Version) (int, error) {
	if v1 == nil || v2 == nil {
		return 0, fmt.Errorf("compare invalid version")
	}
	return v1.Compare(*v2), nil
}

// CheckMinVersion fails when the running build is older than min. An empty
// min always passes.
func CheckMinVersion(min string) error {
	if min == "" {
		return nil
	}
	want := Parse(min)
	if want == nil {
		return fmt.Errorf("invalid minimum version %q", min)
	}
	cur := Parse(version)
	if r, err := CompareVersions(cur, want); err != nil {
		return err
	} else if r < 0 {
		return fmt.Errorf("this store requires version %s or later, running %s", want, cur)
	}
	return nil
}
