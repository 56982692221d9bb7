// Package deps probes required external tools and installs the missing ones
// through whichever package manager the host actually has.
package deps

import (
	"regexp"
	"strconv"
	"strings"
)

var versionPattern = regexp.MustCompile(`\d+(?:\.\d+)*`)

// ExtractVersion pulls the first dotted numeric version out of arbitrary
// command output ("git version 2.39.2 (Apple Git-143)" yields "2.39.2").
// Returns an empty string when no version is present.
func ExtractVersion(output string) string {
	return versionPattern.FindString(output)
}

// CompareVersions compares two dotted numeric versions component-wise, with
// missing components treated as zero, so "2.0" equals "2.0.0" and "1.9.0"
// sorts before "1.10.0". Non-numeric components compare as zero. Returns
// -1, 0, or 1.
func CompareVersions(a, b string) int {
	as := strings.Split(strings.TrimSpace(a), ".")
	bs := strings.Split(strings.TrimSpace(b), ".")

	n := len(as)
	if len(bs) > n {
		n = len(bs)
	}
	for i := 0; i < n; i++ {
		av := componentValue(as, i)
		bv := componentValue(bs, i)
		if av < bv {
			return -1
		}
		if av > bv {
			return 1
		}
	}
	return 0
}

// VersionSatisfies reports whether have meets the minimum required version.
// An empty requirement is always satisfied; an empty detected version never
// is (unless nothing is required).
func VersionSatisfies(have, required string) bool {
	if required == "" {
		return true
	}
	if have == "" {
		return false
	}
	return CompareVersions(have, required) >= 0
}

func componentValue(parts []string, i int) int {
	if i >= len(parts) {
		return 0
	}
	v, err := strconv.Atoi(parts[i])
	if err != nil {
		return 0
	}
	return v
}
