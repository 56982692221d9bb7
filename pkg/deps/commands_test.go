package deps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noxsuite/noxinstall/pkg/platform"
)

func snapshot(osFamily string, elevated bool, managers ...string) *platform.CapabilitySnapshot {
	return &platform.CapabilitySnapshot{
		OSFamily:        osFamily,
		PackageManagers: managers,
		Elevated:        elevated,
	}
}

func TestCommandForWinget(t *testing.T) {
	cmd, ok := CommandFor(snapshot("windows", false, "winget"), "docker")
	require.True(t, ok)
	assert.Equal(t, "winget", cmd.Manager)
	assert.Contains(t, cmd.Args, "Docker.DockerDesktop")
	assert.Contains(t, cmd.Args, "--accept-package-agreements")
	assert.Equal(t, dockerInstallTimeout, cmd.Timeout)
}

func TestCommandForManagerOrderWins(t *testing.T) {
	// The probe reports managers in preference order; the first one with a
	// recipe is chosen.
	cmd, ok := CommandFor(snapshot("windows", false, "choco", "winget"), "node")
	require.True(t, ok)
	assert.Equal(t, "choco", cmd.Manager)
	assert.Contains(t, cmd.Args, "nodejs")
}

func TestCommandForAptAddsSudoAndUpdate(t *testing.T) {
	cmd, ok := CommandFor(snapshot("linux", false, "apt-get"), "docker")
	require.True(t, ok)
	assert.Equal(t, "sudo", cmd.Args[0])
	assert.Contains(t, cmd.Args, "docker.io")
	require.Len(t, cmd.Pre, 1)
	assert.Equal(t, []string{"sudo", "apt-get", "update"}, cmd.Pre[0])
}

func TestCommandForElevatedSkipsSudo(t *testing.T) {
	cmd, ok := CommandFor(snapshot("linux", true, "dnf"), "git")
	require.True(t, ok)
	assert.Equal(t, "dnf", cmd.Args[0])
}

func TestCommandForBrewCask(t *testing.T) {
	cmd, ok := CommandFor(snapshot("darwin", false, "brew"), "docker")
	require.True(t, ok)
	assert.Equal(t, []string{"brew", "install", "--cask", "docker"}, cmd.Args)
}

func TestCommandForNoManagerAvailable(t *testing.T) {
	_, ok := CommandFor(snapshot("linux", false), "docker")
	assert.False(t, ok)

	// scoop has no docker recipe
	_, ok = CommandFor(snapshot("windows", false, "scoop"), "docker")
	assert.False(t, ok)
}

func TestCommandForUnknownOSFallsBackToLinux(t *testing.T) {
	cmd, ok := CommandFor(snapshot("freebsd", true, "pacman"), "git")
	require.True(t, ok)
	assert.Equal(t, "pacman", cmd.Args[0])
}
