// Package storage persists small line-oriented data files under the
// configured data directory.
package storage

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const maxHits = 500

// Hit records one DNSBL listing we acted on.
type Hit struct {
	IP        string
	Blacklist string
	Mask      string
	When      time.Time
}

// LoadHits reads the DNSBL hit log from file.
// Returns hits in reverse chronological order (newest first).
func LoadHits(dataDir string) ([]Hit, error) {
	path := filepath.Join(dataDir, "dnsbl.txt")
	lines, err := readLines(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Hit{}, nil
		}
		return nil, err
	}

	hits := make([]Hit, 0, len(lines))
	for _, line := range lines {
		if h, ok := parseHit(line); ok {
			hits = append(hits, h)
		}
	}
	// Reverse so newest is first (file stores oldest first)
	return reverse(hits), nil
}

// SaveHits writes the DNSBL hit log to file (max 500 entries).
// Expects hits in reverse chronological order (newest first).
func SaveHits(dataDir string, hits []Hit) error {
	path := filepath.Join(dataDir, "dnsbl.txt")
	if len(hits) > maxHits {
		hits = hits[:maxHits]
	}
	return writeHits(path, reverse(hits))
}

// AddHit prepends a new hit (keeping newest first in memory).
func AddHit(hits []Hit, h Hit) []Hit {
	hits = append([]Hit{h}, hits...)
	if len(hits) > maxHits {
		hits = hits[:maxHits]
	}
	return hits
}

func parseHit(line string) (Hit, bool) {
	parts := strings.SplitN(line, "\t", 4)
	if len(parts) != 4 {
		return Hit{}, false
	}
	ts, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return Hit{}, false
	}
	return Hit{
		IP:        parts[0],
		Blacklist: parts[1],
		Mask:      parts[2],
		When:      time.Unix(ts, 0).UTC(),
	}, true
}

func readLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}

func writeHits(path string, hits []Hit) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	for _, h := range hits {
		_, err := fmt.Fprintf(file, "%s\t%s\t%s\t%d\n",
			h.IP, h.Blacklist, h.Mask, h.When.Unix())
		if err != nil {
			return err
		}
	}
	return nil
}

func reverse(s []Hit) []Hit {
	result := make([]Hit, len(s))
	for i, v := range s {
		result[len(s)-1-i] = v
	}
	return result
}
