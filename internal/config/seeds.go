package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"unicode"

	"github.com/maltedev/refurb-crawler/internal/models"
	"github.com/maltedev/refurb-crawler/internal/urlutil"
)

var ErrNoSeeds = errors.New("no start URLs available")

// DefaultSeeds returns the built-in refurbished store listings, one per region.
func DefaultSeeds() []models.Seed {
	return []models.Seed{
		{Tag: "US", URL: "https://www.apple.com/shop/refurbished"},
		{Tag: "CA", URL: "https://www.apple.com/ca/shop/refurbished"},
		{Tag: "MX", URL: "https://www.apple.com/mx/shop/refurbished"},
		{Tag: "GB", URL: "https://www.apple.com/uk/shop/refurbished"},
		{Tag: "DE", URL: "https://www.apple.com/de/shop/refurbished"},
		{Tag: "FR", URL: "https://www.apple.com/fr/shop/refurbished"},
		{Tag: "ES", URL: "https://www.apple.com/es/shop/refurbished"},
		{Tag: "IT", URL: "https://www.apple.com/it/shop/refurbished"},
		{Tag: "NL", URL: "https://www.apple.com/nl/shop/refurbished"},
		{Tag: "SE", URL: "https://www.apple.com/se/shop/refurbished"},
		{Tag: "IE", URL: "https://www.apple.com/ie/shop/refurbished"},
		{Tag: "CH-DE", URL: "https://www.apple.com/ch-de/shop/refurbished"},
	}
}

// ParseSeeds reads one seed per line. Accepted forms are "TAG<TAB>URL",
// "TAG URL" for a short alphabetic tag, and a bare URL tagged with the first
// label of its host. Lines without a usable http(s) URL are skipped. A repeated
// tag replaces the earlier URL but keeps its position.
func ParseSeeds(r io.Reader) ([]models.Seed, error) {
	var seeds []models.Seed
	index := make(map[string]int)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		tag, raw := splitSeedLine(line)
		if _, ok := urlutil.Normalize(raw); !ok {
			continue
		}
		seed := models.Seed{Tag: strings.ToUpper(tag), URL: raw}

		if i, dup := index[seed.Tag]; dup {
			seeds[i] = seed
			continue
		}
		index[seed.Tag] = len(seeds)
		seeds = append(seeds, seed)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read seeds: %w", err)
	}

	return seeds, nil
}

func splitSeedLine(line string) (tag, raw string) {
	if before, after, ok := strings.Cut(line, "\t"); ok {
		return strings.TrimSpace(before), strings.TrimSpace(after)
	}

	if fields := strings.Fields(line); len(fields) > 1 && isShortTag(fields[0]) {
		return fields[0], strings.TrimSpace(strings.TrimPrefix(line, fields[0]))
	}

	host := "unknown"
	if u, err := url.Parse(line); err == nil && u.Host != "" {
		host = u.Host
	}
	label, _, _ := strings.Cut(host, ".")
	return label, line
}

func isShortTag(s string) bool {
	if len(s) > 3 {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// FilterSeeds keeps the seeds whose tag appears in the comma separated list.
// An empty list keeps everything.
func FilterSeeds(seeds []models.Seed, tags string) ([]models.Seed, error) {
	wanted := make(map[string]struct{})
	for _, t := range strings.Split(tags, ",") {
		if t = strings.TrimSpace(t); t != "" {
			wanted[strings.ToUpper(t)] = struct{}{}
		}
	}

	out := seeds
	if len(wanted) > 0 {
		out = make([]models.Seed, 0, len(wanted))
		for _, s := range seeds {
			if _, ok := wanted[strings.ToUpper(s.Tag)]; ok {
				out = append(out, s)
			}
		}
	}

	if len(out) == 0 {
		return nil, ErrNoSeeds
	}
	return out, nil
}
