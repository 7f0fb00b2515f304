package family

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document families sharing the submission lifecycle. Each has its own
// required-field set but identical state handling.
const (
	Invoice       = "invoice"
	CreditNote    = "credit_note"
	DebitNote     = "debit_note"
	DispatchGuide = "dispatch_guide" // outbound waybill
	CarrierGuide  = "carrier_guide"  // carrier-issued waybill
)

// Entry describes how one family maps onto the gateway.
type Entry struct {
	Display      string `yaml:"display" json:"display"`
	Code         string `yaml:"code" json:"code"`
	SeriesPrefix string `yaml:"series_prefix" json:"series_prefix"`
}

type Catalog struct {
	Families map[string]Entry `yaml:"families" json:"families"`
}

// Load reads a catalog from path. The returned catalog is always usable:
// an unreadable, malformed or empty file yields the built-in defaults
// together with the error describing what was wrong.
func Load(path string) (Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultCatalog(), err
	}
	var cat Catalog
	if err := yaml.Unmarshal(content, &cat); err != nil {
		return DefaultCatalog(), err
	}
	if len(cat.Families) == 0 {
		return DefaultCatalog(), fmt.Errorf("family catalog empty")
	}
	return cat, nil
}

func (c Catalog) Lookup(name string) (Entry, bool) {
	if c.Families == nil {
		return Entry{}, false
	}
	entry, ok := c.Families[strings.ToLower(strings.TrimSpace(name))]
	return entry, ok
}

// Names returns the catalog's family names, used to derive the per-family
// broker channels.
func (c Catalog) Names() []string {
	names := make([]string, 0, len(c.Families))
	for name := range c.Families {
		names = append(names, name)
	}
	return names
}

// Topic builds a per-family channel name, e.g. "invoice-requests".
func Topic(family, stage string) string {
	return fmt.Sprintf("%s-%s", family, stage)
}

const (
	StageRequests   = "requests"
	StageProcessing = "processing"
	StageResponses  = "responses"
	StageFailed     = "failed"
)

func DefaultCatalog() Catalog {
	return Catalog{Families: map[string]Entry{
		Invoice: {
			Display:      "Invoice",
			Code:         "01",
			SeriesPrefix: "F",
		},
		CreditNote: {
			Display:      "Credit Note",
			Code:         "07",
			SeriesPrefix: "F",
		},
		DebitNote: {
			Display:      "Debit Note",
			Code:         "08",
			SeriesPrefix: "F",
		},
		DispatchGuide: {
			Display:      "Dispatch Guide",
			Code:         "09",
			SeriesPrefix: "T",
		},
		CarrierGuide: {
			Display:      "Carrier Guide",
			Code:         "31",
			SeriesPrefix: "V",
		},
	}}
}
