// Package hostfile manages the OS host-resolution entry that points
// the vendor discovery hostname at localhost. Unrelated entries and
// comments are preserved on both install and removal.
package hostfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"strings"

	"github.com/PocketRelay/PocketArkClient/internal/proto"
)

// redirectValue is where the vendor hostname is pointed.
const redirectValue = "127.0.0.1"

var (
	// ErrMissing indicates the hosts file does not exist.
	ErrMissing = errors.New("hosts file missing")
	// ErrPermission indicates the process lacks the elevated
	// permissions the hosts file requires.
	ErrPermission = errors.New("missing permission to modify hosts file; run elevated")
)

// Hosts edits one hosts file. Path defaults to the platform location;
// tests point it at a temp file.
type Hosts struct {
	Path string
}

func New() *Hosts {
	return &Hosts{Path: defaultPath()}
}

func defaultPath() string {
	if runtime.GOOS == "windows" {
		return `C:\Windows\System32\drivers\etc\hosts`
	}
	return "/etc/hosts"
}

// Install idempotently adds the vendor redirect: any previous redirect
// lines for the hostname are dropped first, then a single fresh entry
// is appended.
func (h *Hosts) Install() error {
	contents, err := h.read()
	if err != nil {
		return err
	}
	lines := filterRedirectLines(contents)
	lines = append(lines, fmt.Sprintf("%s %s", redirectValue, proto.VendorHost))
	return h.write(lines)
}

// Remove drops only the redirect lines for the vendor hostname,
// restoring prior resolution.
func (h *Hosts) Remove() error {
	contents, err := h.read()
	if err != nil {
		return err
	}
	return h.write(filterRedirectLines(contents))
}

func (h *Hosts) read() (string, error) {
	data, err := os.ReadFile(h.Path)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return "", ErrMissing
		case errors.Is(err, fs.ErrPermission):
			return "", ErrPermission
		default:
			return "", fmt.Errorf("read hosts file: %w", err)
		}
	}
	return string(data), nil
}

func (h *Hosts) write(lines []string) error {
	out := strings.Join(lines, "\n")
	if err := os.WriteFile(h.Path, []byte(out), 0o644); err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return ErrPermission
		}
		return fmt.Errorf("write hosts file: %w", err)
	}
	return nil
}

// filterRedirectLines returns every line that is not a resolution
// entry for the vendor hostname. Comment-only lines, blanks and
// unrelated entries pass through untouched; trailing comments on an
// entry line do not hide it.
func filterRedirectLines(contents string) []string {
	var out []string
	for _, line := range strings.Split(contents, "\n") {
		if !isRedirectLine(line) {
			out = append(out, line)
		}
	}
	return out
}

func isRedirectLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return false
	}
	// Only the uncommented portion counts.
	if before, _, found := strings.Cut(trimmed, "#"); found {
		trimmed = strings.TrimSpace(before)
	}
	fields := strings.Fields(trimmed)
	if len(fields) < 2 {
		return false
	}
	// fields[0] is the address; any mapped hostname may match.
	for _, host := range fields[1:] {
		if strings.EqualFold(host, proto.VendorHost) {
			return true
		}
	}
	return false
}
