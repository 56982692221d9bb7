package deps

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractVersion(t *testing.T) {
	tests := []struct {
		output string
		want   string
	}{
		{"git version 2.39.2 (Apple Git-143)", "2.39.2"},
		{"Docker version 24.0.7, build afdd53b", "24.0.7"},
		{"v18.17.1", "18.17.1"},
		{"Python 3.11.4", "3.11.4"},
		{"10.2.4", "10.2.4"},
		{"no digits here", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractVersion(tt.output), "input %q", tt.output)
	}
}

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.9.0", "1.10.0", -1},
		{"1.10.0", "1.9.0", 1},
		{"2.0", "2.0.0", 0},
		{"2.0.0", "2.0", 0},
		{"20.10.5", "20.10.5", 0},
		{"3.8", "3.8.1", -1},
		{"10.0.0", "9.99.99", 1},
		{"", "", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CompareVersions(tt.a, tt.b), "compare(%q, %q)", tt.a, tt.b)
	}
}

func TestCompareVersionsTotalOrder(t *testing.T) {
	ordered := []string{"1.9.0", "1.10.0", "2.0", "2.0.1", "10.0.0"}
	for i := 0; i < len(ordered); i++ {
		for j := 0; j < len(ordered); j++ {
			got := CompareVersions(ordered[i], ordered[j])
			switch {
			case i < j:
				assert.Equal(t, -1, got, "%s < %s", ordered[i], ordered[j])
			case i > j:
				assert.Equal(t, 1, got, "%s > %s", ordered[i], ordered[j])
			default:
				assert.Equal(t, 0, got)
			}
		}
	}
}

func TestVersionSatisfies(t *testing.T) {
	assert.True(t, VersionSatisfies("24.0.7", "20.0.0"))
	assert.True(t, VersionSatisfies("20.0.0", "20.0.0"))
	assert.False(t, VersionSatisfies("19.3.0", "20.0.0"))
	assert.True(t, VersionSatisfies("anything", ""))
	assert.True(t, VersionSatisfies("", ""))
	assert.False(t, VersionSatisfies("", "1.0.0"))
}
