// Package seeds loads the pipeline's starting URL list.
package seeds

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/BenjaminSRussell/Scrapy-sub002/internal/pipeline"
)

// Load reads a flat seed file: one URL per line, blank lines and #
// comments ignored. Entries are normalized and de-duplicated in order;
// a line that does not normalize is an error, since a bad seed means a
// misconfigured run rather than a noisy source.
func Load(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	var urls []string
	seen := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		normalized, err := pipeline.NormalizeURL(line)
		if err != nil {
			return nil, fmt.Errorf("seed file line %d: %w", lineNo, err)
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		urls = append(urls, normalized)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("seed file %s contains no URLs", path)
	}
	return urls, nil
}
