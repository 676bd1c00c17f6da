// Package detect discovers which supported CLI runtimes are installed on the
// machine, resolving binaries from PATH and known install locations and
// probing each for its version.
package detect

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/stevehuang0115/agentmux/internal/runtimes"
)

const versionProbeTimeout = 1800 * time.Millisecond

var semverRE = regexp.MustCompile(`(?i)\bv?(\d+\.\d+(?:\.\d+)?(?:[-+][0-9A-Za-z.-]+)?)\b`)

// DetectedRuntime describes an installed runtime CLI discovered on the
// machine.
type DetectedRuntime struct {
	Type    runtimes.Type `json:"type"`
	Binary  string        `json:"binary"`
	Path    string        `json:"path"`
	Version string        `json:"version"`
}

// binaryCandidates maps each runtime to the binary names it may install as.
func binaryCandidates() map[runtimes.Type][]string {
	return map[runtimes.Type][]string{
		runtimes.ClaudeCode: {"claude"},
		runtimes.GeminiCLI:  {"gemini"},
		runtimes.CodexCLI:   {"codex"},
	}
}

// Scan discovers installed runtime CLIs from PATH and known install
// locations. Runtimes that are not installed are simply absent from the
// result.
func Scan() []DetectedRuntime {
	var found []DetectedRuntime
	for rt, binaries := range binaryCandidates() {
		for _, bin := range binaries {
			path, ok := resolveBinaryPath(bin)
			if !ok {
				continue
			}
			found = append(found, DetectedRuntime{
				Type:    rt,
				Binary:  bin,
				Path:    path,
				Version: detectVersion(path),
			})
			break
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].Type < found[j].Type })
	return found
}

// Installed reports whether the given runtime's binary is present, without a
// version probe.
func Installed(rt runtimes.Type) bool {
	for _, bin := range binaryCandidates()[rt] {
		if _, ok := resolveBinaryPath(bin); ok {
			return true
		}
	}
	return false
}

func resolveBinaryPath(binary string) (string, bool) {
	candidates := make([]string, 0, 1+len(knownInstallDirs()))
	if p, err := exec.LookPath(binary); err == nil {
		candidates = append(candidates, p)
	}

	for _, dir := range knownInstallDirs() {
		candidates = append(candidates, filepath.Join(dir, binary))
	}

	for _, path := range candidates {
		if real, ok := executablePath(path); ok {
			return real, true
		}
	}

	return "", false
}

func knownInstallDirs() []string {
	dirs := []string{
		"/usr/local/bin",
		"/usr/bin",
		"/opt/homebrew/bin",
		"/opt/local/bin",
	}

	home, err := os.UserHomeDir()
	if err == nil && home != "" {
		dirs = append(dirs,
			filepath.Join(home, ".local", "bin"),
			filepath.Join(home, "bin"),
			filepath.Join(home, ".npm-global", "bin"),
		)
	}

	uniq := make(map[string]struct{}, len(dirs))
	out := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		dir = strings.TrimSpace(dir)
		if dir == "" {
			continue
		}
		if _, exists := uniq[dir]; exists {
			continue
		}
		uniq[dir] = struct{}{}
		out = append(out, dir)
	}
	return out
}

func executablePath(path string) (string, bool) {
	if path == "" {
		return "", false
	}
	if runtime.GOOS == "windows" {
		if !strings.HasSuffix(strings.ToLower(path), ".exe") {
			if _, err := os.Stat(path + ".exe"); err == nil {
				path += ".exe"
			}
		}
	}

	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() {
		return "", false
	}
	if runtime.GOOS != "windows" && fi.Mode()&0111 == 0 {
		return "", false
	}

	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		resolved = path
	}
	abs, err := filepath.Abs(resolved)
	if err != nil {
		abs = resolved
	}
	return abs, true
}

func detectVersion(commandPath string) string {
	attempts := [][]string{{"--version"}, {"-v"}, {"version"}}

	for _, args := range attempts {
		out, err := runVersionProbe(commandPath, args)
		if err != nil && out == "" {
			continue
		}
		if version := parseVersion(out); version != "" {
			return version
		}
	}

	return "unknown"
}

func runVersionProbe(commandPath string, args []string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), versionProbeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, commandPath, args...)
	output, err := cmd.CombinedOutput()
	out := strings.TrimSpace(string(output))

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return out, ctx.Err()
	}
	return out, err
}

func parseVersion(output string) string {
	output = strings.TrimSpace(output)
	if output == "" {
		return ""
	}

	if matches := semverRE.FindStringSubmatch(output); len(matches) > 1 {
		return matches[1]
	}

	line := output
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return ""
	}
	if len(line) > 48 {
		line = line[:48]
	}
	return line
}
