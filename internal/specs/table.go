package specs

import (
	"fmt"
	"regexp"
	"strings"
)

// ChipDefinition describes one valid chip identifier.
// Generation orders chips across families; higher is newer.
type ChipDefinition struct {
	ID         string
	Generation int
	// Aliases are extra surface forms matched besides the generated ones.
	Aliases []string
}

type chipEntry struct {
	id         string
	generation int
	order      int
	patterns   []*regexp.Regexp
	// bare entries must not claim a match that continues with a qualifier
	// belonging to a sibling entry ("M2" inside "M2 Pro").
	bare bool
}

// HardwareTable is the closed set of chips plus the plausible ranges for
// memory and storage. It is built once and never mutated.
type HardwareTable struct {
	chips        []chipEntry
	minRAMGB     int
	maxRAMGB     int
	minStorageGB int
	maxStorageTB int
}

// TableOptions bounds the accepted memory and storage values.
type TableOptions struct {
	MinRAMGB     int
	MaxRAMGB     int
	MinStorageGB int
	MaxStorageTB int
}

func DefaultTableOptions() TableOptions {
	return TableOptions{
		MinRAMGB:     4,
		MaxRAMGB:     192,
		MinStorageGB: 32,
		MaxStorageTB: 8,
	}
}

var chipQualifiers = []string{"pro", "max", "ultra", "bionic", "sip"}

// NewHardwareTable compiles the chip definitions in declaration order.
func NewHardwareTable(chips []ChipDefinition, opts TableOptions) (*HardwareTable, error) {
	if opts.MinRAMGB <= 0 || opts.MaxRAMGB < opts.MinRAMGB {
		return nil, fmt.Errorf("invalid RAM range %d-%d", opts.MinRAMGB, opts.MaxRAMGB)
	}
	if opts.MinStorageGB <= 0 || opts.MaxStorageTB <= 0 {
		return nil, fmt.Errorf("invalid storage bounds %dGB/%dTB", opts.MinStorageGB, opts.MaxStorageTB)
	}

	t := &HardwareTable{
		minRAMGB:     opts.MinRAMGB,
		maxRAMGB:     opts.MaxRAMGB,
		minStorageGB: opts.MinStorageGB,
		maxStorageTB: opts.MaxStorageTB,
	}

	seen := make(map[string]bool)
	for i, def := range chips {
		id := strings.TrimSpace(def.ID)
		if id == "" {
			return nil, fmt.Errorf("chip %d has empty id", i)
		}
		if seen[strings.ToLower(id)] {
			return nil, fmt.Errorf("duplicate chip id %q", id)
		}
		seen[strings.ToLower(id)] = true

		patterns, err := chipPatterns(id, def.Aliases)
		if err != nil {
			return nil, fmt.Errorf("failed to compile chip %q: %w", id, err)
		}
		t.chips = append(t.chips, chipEntry{
			id:         id,
			generation: def.Generation,
			order:      i,
			patterns:   patterns,
			bare:       len(strings.Fields(id)) == 1,
		})
	}

	return t, nil
}

// MustHardwareTable panics on an invalid table; used for the built-in defaults.
func MustHardwareTable(chips []ChipDefinition, opts TableOptions) *HardwareTable {
	t, err := NewHardwareTable(chips, opts)
	if err != nil {
		panic(err)
	}
	return t
}

// ChipIDs lists the canonical identifiers in declaration order.
func (t *HardwareTable) ChipIDs() []string {
	ids := make([]string, len(t.chips))
	for i, c := range t.chips {
		ids[i] = c.id
	}
	return ids
}

// chipPatterns builds the surface forms for an id such as "M2 Pro":
// the bare token ("M2 Pro", "M2Pro", "M2-Pro"), the vendor form
// ("Apple M2 Pro") and the chip form ("M2 Pro chip", "Puce M2 Pro").
func chipPatterns(id string, aliases []string) ([]*regexp.Regexp, error) {
	parts := strings.Fields(id)
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = regexp.QuoteMeta(p)
	}
	token := strings.Join(quoted, `[\s\-]?`)

	exprs := []string{
		`(?i)\b` + token + `\b`,
		`(?i)\bapple\s+` + token + `\b`,
		`(?i)\b` + token + `[\s\-]+(?:chip|chipset)\b`,
		`(?i)\b(?:chip|puce|procesador|processore)\s+(?:apple\s+)?` + token + `\b`,
	}
	for _, alias := range aliases {
		exprs = append(exprs, `(?i)\b`+regexp.QuoteMeta(alias)+`\b`)
	}

	patterns := make([]*regexp.Regexp, 0, len(exprs))
	for _, expr := range exprs {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, re)
	}
	return patterns, nil
}

// DefaultChips is the shipped chip table. Generation is the release year,
// so a newer family member outranks an older one across product lines.
func DefaultChips() []ChipDefinition {
	return []ChipDefinition{
		{ID: "M5", Generation: 2025},
		{ID: "M4 Ultra", Generation: 2024},
		{ID: "M4 Max", Generation: 2024},
		{ID: "M4 Pro", Generation: 2024},
		{ID: "M4", Generation: 2024},
		{ID: "M3 Ultra", Generation: 2023},
		{ID: "M3 Max", Generation: 2023},
		{ID: "M3 Pro", Generation: 2023},
		{ID: "M3", Generation: 2023},
		{ID: "M2 Ultra", Generation: 2022},
		{ID: "M2 Max", Generation: 2022},
		{ID: "M2 Pro", Generation: 2022},
		{ID: "M2", Generation: 2022},
		{ID: "M1 Ultra", Generation: 2021},
		{ID: "M1 Max", Generation: 2021},
		{ID: "M1 Pro", Generation: 2021},
		{ID: "M1", Generation: 2020},
		{ID: "A18 Pro", Generation: 2024},
		{ID: "A18", Generation: 2024},
		{ID: "A17 Pro", Generation: 2023},
		{ID: "A16 Bionic", Generation: 2022, Aliases: []string{"A16"}},
		{ID: "A15 Bionic", Generation: 2021, Aliases: []string{"A15"}},
		{ID: "A14 Bionic", Generation: 2020, Aliases: []string{"A14"}},
		{ID: "A13 Bionic", Generation: 2019, Aliases: []string{"A13"}},
		{ID: "A12 Bionic", Generation: 2018, Aliases: []string{"A12"}},
		{ID: "S10 SiP", Generation: 2024, Aliases: []string{"S10"}},
		{ID: "S9 SiP", Generation: 2023, Aliases: []string{"S9"}},
		{ID: "S8 SiP", Generation: 2022, Aliases: []string{"S8"}},
		{ID: "S7 SiP", Generation: 2021, Aliases: []string{"S7"}},
		{ID: "S6 SiP", Generation: 2020, Aliases: []string{"S6"}},
	}
}

// DefaultHardwareTable returns the table built from DefaultChips.
func DefaultHardwareTable() *HardwareTable {
	return MustHardwareTable(DefaultChips(), DefaultTableOptions())
}
