package sidecar

import (
	"fmt"
	"path/filepath"
	"strings"
)

// targetTriples maps GOOS/GOARCH to the release triple the companion
// binaries are published under.
var targetTriples = map[string]string{
	"windows/amd64": "x86_64-pc-windows-msvc",
	"windows/386":   "i686-pc-windows-msvc",
	"windows/arm64": "aarch64-pc-windows-msvc",
	"darwin/amd64":  "x86_64-apple-darwin",
	"darwin/arm64":  "aarch64-apple-darwin",
	"linux/amd64":   "x86_64-unknown-linux-gnu",
	"linux/arm64":   "aarch64-unknown-linux-gnu",
}

// BinaryPath resolves the on-disk path of a companion service binary for
// the given platform. binDir overrides the default install location.
func BinaryPath(service, goos, goarch, binDir string) string {
	triple, ok := targetTriples[goos+"/"+goarch]
	if !ok {
		// fallback: unsuffixed binary next to the others
		name := service
		if goos == "windows" {
			name += ".exe"
		}
		return filepath.Join(defaultBinDir(goos, binDir), service, name)
	}

	name := fmt.Sprintf("agentkube-%s-%s", service, triple)
	if goos == "windows" {
		name += ".exe"
	}
	return filepath.Join(defaultBinDir(goos, binDir), service, name)
}

func defaultBinDir(goos, binDir string) string {
	if binDir != "" {
		return binDir
	}
	if goos == "darwin" {
		return "/Applications/Agentkube.app/Contents/Resources/bin"
	}
	return "bin"
}

// LogDir resolves the platform log directory the companion services write
// their stdout/stderr into, matching the host application's log location.
func LogDir(goos, home, configDir string) string {
	if goos == "darwin" {
		return filepath.Join(home, "Library", "Logs", "platform.agentkube.app")
	}
	return filepath.Join(configDir, "platform.agentkube.app", "logs")
}

// WidenPath extends a PATH value with the locations desktop launches miss
// (homebrew, go, cargo, user-local bins). exists filters candidates to
// directories actually present; inject a stub in tests.
func WidenPath(existing, home string, exists func(string) bool) string {
	candidates := []string{
		"/usr/local/bin",
		"/opt/homebrew/bin",
		"/usr/bin",
		"/bin",
		"/usr/sbin",
		"/sbin",
		"/usr/local/sbin",
		"/opt/homebrew/sbin",
		"/usr/local/go/bin",
	}
	if home != "" {
		candidates = append(candidates,
			filepath.Join(home, "go", "bin"),
			filepath.Join(home, ".cargo", "bin"),
			filepath.Join(home, ".local", "bin"),
			filepath.Join(home, "bin"),
			filepath.Join(home, ".npm-global", "bin"),
		)
	}

	var all []string
	seen := make(map[string]bool)
	if existing != "" {
		for _, p := range strings.Split(existing, ":") {
			if !seen[p] {
				seen[p] = true
				all = append(all, p)
			}
		}
	}
	for _, p := range candidates {
		if !seen[p] && exists(p) {
			seen[p] = true
			all = append(all, p)
		}
	}
	return strings.Join(all, ":")
}
