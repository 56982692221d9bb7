package deps

import (
	"time"

	"github.com/noxsuite/noxinstall/pkg/platform"
)

// InstallCommand is one fully resolved package manager invocation.
type InstallCommand struct {
	Manager string
	// Pre holds commands that must run before the install itself, such as
	// refreshing the apt package index.
	Pre     [][]string
	Args    []string
	Timeout time.Duration
}

type commandKey struct {
	os      string
	manager string
}

type recipe struct {
	pre      [][]string
	args     []string
	needRoot bool
}

const (
	installTimeout       = 120 * time.Second
	dockerInstallTimeout = 300 * time.Second
)

// commandTable is the static capability-indexed command table: one entry
// per (os family, package manager) pair mapping tool names to the exact
// invocation. Tools absent from an entry cannot be installed through that
// manager on that platform.
var commandTable = map[commandKey]map[string]recipe{
	{"windows", "winget"}: {
		"docker":  {args: []string{"winget", "install", "--id", "Docker.DockerDesktop", "--accept-package-agreements", "--accept-source-agreements"}},
		"git":     {args: []string{"winget", "install", "--id", "Git.Git", "--accept-package-agreements", "--accept-source-agreements"}},
		"node":    {args: []string{"winget", "install", "--id", "OpenJS.NodeJS", "--accept-package-agreements", "--accept-source-agreements"}},
		"npm":     {args: []string{"winget", "install", "--id", "OpenJS.NodeJS", "--accept-package-agreements", "--accept-source-agreements"}},
		"python3": {args: []string{"winget", "install", "--id", "Python.Python.3.12", "--accept-package-agreements", "--accept-source-agreements"}},
	},
	{"windows", "choco"}: {
		"docker":  {args: []string{"choco", "install", "-y", "docker-desktop"}},
		"git":     {args: []string{"choco", "install", "-y", "git"}},
		"node":    {args: []string{"choco", "install", "-y", "nodejs"}},
		"npm":     {args: []string{"choco", "install", "-y", "nodejs"}},
		"python3": {args: []string{"choco", "install", "-y", "python"}},
	},
	{"windows", "scoop"}: {
		"git":     {args: []string{"scoop", "install", "git"}},
		"node":    {args: []string{"scoop", "install", "nodejs"}},
		"npm":     {args: []string{"scoop", "install", "nodejs"}},
		"python3": {args: []string{"scoop", "install", "python"}},
	},
	{"darwin", "brew"}: {
		"docker":  {args: []string{"brew", "install", "--cask", "docker"}},
		"git":     {args: []string{"brew", "install", "git"}},
		"node":    {args: []string{"brew", "install", "node"}},
		"npm":     {args: []string{"brew", "install", "node"}},
		"python3": {args: []string{"brew", "install", "python@3.12"}},
		"pip":     {args: []string{"brew", "install", "python@3.12"}},
	},
	{"darwin", "port"}: {
		"git":     {args: []string{"port", "install", "git"}, needRoot: true},
		"node":    {args: []string{"port", "install", "nodejs20"}, needRoot: true},
		"python3": {args: []string{"port", "install", "python312"}, needRoot: true},
	},
	{"linux", "apt-get"}: {
		"docker":  {pre: [][]string{{"apt-get", "update"}}, args: []string{"apt-get", "install", "-y", "docker.io"}, needRoot: true},
		"git":     {pre: [][]string{{"apt-get", "update"}}, args: []string{"apt-get", "install", "-y", "git"}, needRoot: true},
		"node":    {pre: [][]string{{"apt-get", "update"}}, args: []string{"apt-get", "install", "-y", "nodejs"}, needRoot: true},
		"npm":     {pre: [][]string{{"apt-get", "update"}}, args: []string{"apt-get", "install", "-y", "npm"}, needRoot: true},
		"python3": {pre: [][]string{{"apt-get", "update"}}, args: []string{"apt-get", "install", "-y", "python3"}, needRoot: true},
		"pip":     {pre: [][]string{{"apt-get", "update"}}, args: []string{"apt-get", "install", "-y", "python3-pip"}, needRoot: true},
	},
	{"linux", "apt"}: {
		"docker":  {pre: [][]string{{"apt", "update"}}, args: []string{"apt", "install", "-y", "docker.io"}, needRoot: true},
		"git":     {pre: [][]string{{"apt", "update"}}, args: []string{"apt", "install", "-y", "git"}, needRoot: true},
		"node":    {pre: [][]string{{"apt", "update"}}, args: []string{"apt", "install", "-y", "nodejs"}, needRoot: true},
		"npm":     {pre: [][]string{{"apt", "update"}}, args: []string{"apt", "install", "-y", "npm"}, needRoot: true},
		"python3": {pre: [][]string{{"apt", "update"}}, args: []string{"apt", "install", "-y", "python3"}, needRoot: true},
		"pip":     {pre: [][]string{{"apt", "update"}}, args: []string{"apt", "install", "-y", "python3-pip"}, needRoot: true},
	},
	{"linux", "dnf"}: {
		"docker":  {args: []string{"dnf", "install", "-y", "docker"}, needRoot: true},
		"git":     {args: []string{"dnf", "install", "-y", "git"}, needRoot: true},
		"node":    {args: []string{"dnf", "install", "-y", "nodejs"}, needRoot: true},
		"npm":     {args: []string{"dnf", "install", "-y", "npm"}, needRoot: true},
		"python3": {args: []string{"dnf", "install", "-y", "python3"}, needRoot: true},
		"pip":     {args: []string{"dnf", "install", "-y", "python3-pip"}, needRoot: true},
	},
	{"linux", "yum"}: {
		"docker":  {args: []string{"yum", "install", "-y", "docker"}, needRoot: true},
		"git":     {args: []string{"yum", "install", "-y", "git"}, needRoot: true},
		"node":    {args: []string{"yum", "install", "-y", "nodejs"}, needRoot: true},
		"npm":     {args: []string{"yum", "install", "-y", "npm"}, needRoot: true},
		"python3": {args: []string{"yum", "install", "-y", "python3"}, needRoot: true},
		"pip":     {args: []string{"yum", "install", "-y", "python3-pip"}, needRoot: true},
	},
	{"linux", "pacman"}: {
		"docker":  {args: []string{"pacman", "-S", "--noconfirm", "docker"}, needRoot: true},
		"git":     {args: []string{"pacman", "-S", "--noconfirm", "git"}, needRoot: true},
		"node":    {args: []string{"pacman", "-S", "--noconfirm", "nodejs"}, needRoot: true},
		"npm":     {args: []string{"pacman", "-S", "--noconfirm", "npm"}, needRoot: true},
		"python3": {args: []string{"pacman", "-S", "--noconfirm", "python"}, needRoot: true},
		"pip":     {args: []string{"pacman", "-S", "--noconfirm", "python-pip"}, needRoot: true},
	},
	{"linux", "zypper"}: {
		"docker":  {args: []string{"zypper", "install", "-y", "docker"}, needRoot: true},
		"git":     {args: []string{"zypper", "install", "-y", "git"}, needRoot: true},
		"node":    {args: []string{"zypper", "install", "-y", "nodejs"}, needRoot: true},
		"python3": {args: []string{"zypper", "install", "-y", "python3"}, needRoot: true},
		"pip":     {args: []string{"zypper", "install", "-y", "python3-pip"}, needRoot: true},
	},
}

// CommandsFor resolves every install command for tool against the host's
// detected capabilities, one per capable manager, in the order the probe
// reported the managers. Empty when no detected manager can install the
// tool.
func CommandsFor(snapshot *platform.CapabilitySnapshot, tool string) []InstallCommand {
	osFamily := normalizeOS(snapshot.OSFamily)
	var cmds []InstallCommand
	for _, manager := range snapshot.PackageManagers {
		recipes, ok := commandTable[commandKey{osFamily, manager}]
		if !ok {
			continue
		}
		r, ok := recipes[tool]
		if !ok {
			continue
		}
		cmd := InstallCommand{
			Manager: manager,
			Args:    r.args,
			Timeout: installTimeout,
		}
		if tool == "docker" {
			cmd.Timeout = dockerInstallTimeout
		}
		if r.needRoot && !snapshot.Elevated {
			cmd.Args = append([]string{"sudo"}, r.args...)
			for _, pre := range r.pre {
				cmd.Pre = append(cmd.Pre, append([]string{"sudo"}, pre...))
			}
		} else {
			cmd.Pre = r.pre
		}
		cmds = append(cmds, cmd)
	}
	return cmds
}

// CommandFor returns the preferred install command for tool, the first of
// CommandsFor. Returns false when no detected manager can install the tool.
func CommandFor(snapshot *platform.CapabilitySnapshot, tool string) (InstallCommand, bool) {
	cmds := CommandsFor(snapshot, tool)
	if len(cmds) == 0 {
		return InstallCommand{}, false
	}
	return cmds[0], true
}

func normalizeOS(osFamily string) string {
	switch osFamily {
	case "windows", "darwin":
		return osFamily
	default:
		return "linux"
	}
}
