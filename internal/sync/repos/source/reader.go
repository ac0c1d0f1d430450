// Package source loads the local plain-text blocklist: one hostname per
// line, '#' comments and blank lines ignored, duplicates dropped while
// preserving first-seen order.
package source

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	logpkg "github.com/haukened/blocksync/internal/sync/common/log"
	"github.com/haukened/blocksync/internal/sync/domain"
)

// Reader loads and normalizes the raw domain list from a local file.
type Reader struct {
	path   string
	logger logpkg.Logger
}

// New constructs a Reader for the given file path.
func New(path string, logger logpkg.Logger) *Reader {
	return &Reader{path: path, logger: logger}
}

// Load reads the backing file and returns the ordered unique domain
// sequence. A missing or unreadable file is ErrSourceUnavailable: the
// pass must abort before any external call rather than reconcile
// against an empty list.
func (r *Reader) Load() ([]domain.Hostname, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrSourceUnavailable, r.path, err)
	}
	defer f.Close()

	domains, err := Parse(f, r.logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrSourceUnavailable, r.path, err)
	}
	r.logger.Info(map[string]any{"path": r.path, "count": len(domains)}, "source_loaded")
	return domains, nil
}

// Parse transforms raw blocklist text into a deduplicated Hostname
// sequence. Pure with respect to its input; errors only surface from
// the underlying reader.
//
// Behavior:
// - Skips empty lines and whole-line '#' comments
// - Strips inline '#' comments and surrounding whitespace
// - Strips a UTF-8 BOM on the first token
// - Skips entries that fail hostname validation (logged at debug)
// - De-duplicates while preserving first-seen order
// - Skips the placeholder sentinel if the feed happens to contain it
func Parse(r io.Reader, logger logpkg.Logger) ([]domain.Hostname, error) {
	scanner := bufio.NewScanner(r)

	seen := make(map[domain.Hostname]struct{})
	out := make([]domain.Hostname, 0, 256)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		line = strings.TrimPrefix(line, "\uFEFF")

		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = line[:idx]
		}

		name, err := domain.NewHostname(line)
		if err != nil {
			logger.Debug(map[string]any{"line": lineNum, "raw": strings.TrimSpace(line)}, "skip_invalid_hostname")
			continue
		}
		if name == domain.Placeholder {
			// the sentinel is reserved for empty slots and must never
			// enter the real block set
			logger.Warn(map[string]any{"line": lineNum}, "skip_placeholder_in_source")
			continue
		}
		if _, ok := seen[name]; ok {
			logger.Debug(map[string]any{"line": lineNum, "name": name.String()}, "skip_duplicate")
			continue
		}
		out = append(out, name)
		seen[name] = struct{}{}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
