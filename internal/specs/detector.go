package specs

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Storage is a detected storage capacity such as 512 GB or 2 TB.
type Storage struct {
	Amount int
	Unit   string
}

func (s Storage) String() string {
	return fmt.Sprintf("%d%s", s.Amount, s.Unit)
}

// Result bundles the three hardware attributes found in one text.
type Result struct {
	Chip    *string
	RAM     *string
	Storage *string
}

// Any reports whether at least one attribute was detected.
func (r Result) Any() bool {
	return r.Chip != nil || r.RAM != nil || r.Storage != nil
}

// Detector finds chip, memory and storage values in free text using an
// injected HardwareTable. It holds no mutable state and is safe for
// concurrent use.
type Detector struct {
	table           *HardwareTable
	qualifierSuffix *regexp.Regexp
	ramPatterns     []*regexp.Regexp
	storagePatterns []*regexp.Regexp
	memoryTrailer   *regexp.Regexp
}

func NewDetector(table *HardwareTable) *Detector {
	if table == nil {
		table = DefaultHardwareTable()
	}

	return &Detector{
		table:           table,
		qualifierSuffix: regexp.MustCompile(`(?i)^[\s\-]?(?:` + strings.Join(chipQualifiers[:3], "|") + `)\b`),
		ramPatterns: []*regexp.Regexp{
			// en
			regexp.MustCompile(`(?i)\b(\d{1,3})\s?GB\s+(?:of\s+)?(?:unified\s+memory|memory|RAM)\b`),
			regexp.MustCompile(`(?i)\b(?:memory|RAM)\s*[:\-]\s*(\d{1,3})\s?GB\b`),
			// de
			regexp.MustCompile(`(?i)\b(\d{1,3})\s?GB\s+(?:gemeinsamer\s+)?Arbeitsspeicher`),
			regexp.MustCompile(`(?i)Arbeitsspeicher\s*[:\-]\s*(\d{1,3})\s?GB\b`),
			// fr
			regexp.MustCompile(`(?i)\b(\d{1,3})\s?(?:Go|GB)\s+de\s+(?:mémoire|RAM)`),
			// es / it
			regexp.MustCompile(`(?i)\b(\d{1,3})\s?GB\s+(?:de|di)\s+(?:memoria|RAM)`),
			// nl
			regexp.MustCompile(`(?i)\b(\d{1,3})\s?GB\s+(?:geïntegreerd\s+|gedeeld\s+)?(?:werkgeheugen|geheugen)`),
			// sv
			regexp.MustCompile(`(?i)\b(\d{1,3})\s?GB\s+(?:enhetligt\s+)?(?:minne|RAM-minne)`),
		},
		storagePatterns: []*regexp.Regexp{
			regexp.MustCompile(`\b(\d{1,4})\s?(GB|Gb|gb|Go|TB|Tb|tb|To)\s+(?i:SSD|flash|storage|of\s+storage|de\s+stockage|stockage|Speicher|Speicherplatz|de\s+almacenamiento|almacenamiento|di\s+archiviazione|archiviazione|opslag|opslagruimte|lagring|lagringsutrymme)`),
			regexp.MustCompile(`(?i:SSD|storage|capacity|Speicher|Kapazität|stockage|capacité|almacenamiento|capacidad|archiviazione|capacità|opslag|lagring)\s*[:\-]?\s*(\d{1,4})\s?(GB|Gb|gb|Go|TB|Tb|tb|To)\b`),
			regexp.MustCompile(`\b(\d{1,4})\s?(GB|Gb|gb|Go|TB|Tb|tb|To)\b`),
		},
		memoryTrailer: regexp.MustCompile(`(?i)^\s*(?:(?:of|de|di)\s+)?(?:unified\s+memory|gemeinsamer\s+arbeitsspeicher|arbeitsspeicher|ram\b|memory|mémoire|memoria|geïntegreerd|gedeeld|werkgeheugen|geheugen|enhetligt|minne)`),
	}
}

// Table returns the hardware table this detector was built with.
func (d *Detector) Table() *HardwareTable {
	return d.table
}

// DetectChip returns the canonical chip id with the newest generation among
// all matches, ties broken by table declaration order.
func (d *Detector) DetectChip(text string) (string, bool) {
	text = cleanText(text)
	if text == "" {
		return "", false
	}

	var best *chipEntry
	for i := range d.table.chips {
		entry := &d.table.chips[i]
		if !d.chipMatches(entry, text) {
			continue
		}
		if best == nil || entry.generation > best.generation {
			best = entry
		}
	}

	if best == nil {
		return "", false
	}
	return best.id, true
}

func (d *Detector) chipMatches(entry *chipEntry, text string) bool {
	for _, re := range entry.patterns {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			if entry.bare && d.qualifierSuffix.MatchString(text[loc[1]:]) {
				continue
			}
			return true
		}
	}
	return false
}

// DetectRAM returns the largest plausible memory size in GB.
func (d *Detector) DetectRAM(text string) (int, bool) {
	text = cleanText(text)

	best := 0
	for _, re := range d.ramPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			gb, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			if gb < d.table.minRAMGB || gb > d.table.maxRAMGB {
				continue
			}
			if gb > best {
				best = gb
			}
		}
	}

	return best, best > 0
}

// DetectStorage returns the first plausible storage capacity, trying the
// storage-vocabulary patterns before the bare size pattern. Sizes followed by
// memory vocabulary are skipped.
func (d *Detector) DetectStorage(text string) (Storage, bool) {
	text = cleanText(text)

	for _, re := range d.storagePatterns {
		for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
			amount, err := strconv.Atoi(text[loc[2]:loc[3]])
			if err != nil {
				continue
			}
			unit := normalizeUnit(text[loc[4]:loc[5]])
			if d.memoryTrailer.MatchString(text[loc[5]:]) {
				continue
			}
			if !d.plausibleStorage(amount, unit) {
				continue
			}
			return Storage{Amount: amount, Unit: unit}, true
		}
	}

	return Storage{}, false
}

func (d *Detector) plausibleStorage(amount int, unit string) bool {
	switch unit {
	case "GB":
		return amount >= d.table.minStorageGB && amount < 1024*d.table.maxStorageTB
	case "TB":
		return amount >= 1 && amount <= d.table.maxStorageTB
	}
	return false
}

// Detect runs all three detectors. When suppressChip is set the chip is
// never reported, which keeps accessories from inheriting a chip mentioned
// in compatibility copy.
func (d *Detector) Detect(text string, suppressChip bool) Result {
	var res Result

	if !suppressChip {
		if chip, ok := d.DetectChip(text); ok {
			res.Chip = &chip
		}
	}
	if gb, ok := d.DetectRAM(text); ok {
		ram := fmt.Sprintf("%dGB", gb)
		res.RAM = &ram
	}
	if s, ok := d.DetectStorage(text); ok {
		storage := s.String()
		res.Storage = &storage
	}

	return res
}

func normalizeUnit(u string) string {
	switch strings.ToUpper(u) {
	case "TB", "TO":
		return "TB"
	default:
		return "GB"
	}
}

var spaceReplacer = strings.NewReplacer("\u00a0", " ", "\u202f", " ", "\u2009", " ")

func cleanText(s string) string {
	return strings.TrimSpace(spaceReplacer.Replace(s))
}
