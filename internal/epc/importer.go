package epc

import (
	"errors"
	"io"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/travelsearch/internal/model"
)

// PeriodStats is one row of an import file: raw click and revenue totals
// for a provider, vertical and period.
type PeriodStats struct {
	Provider    string    `yaml:"provider"`
	Vertical    string    `yaml:"vertical"`
	PeriodStart time.Time `yaml:"period_start"`
	PeriodEnd   time.Time `yaml:"period_end"`
	Clicks      int64     `yaml:"clicks"`
	Conversions int64     `yaml:"conversions"`
	Revenue     float64   `yaml:"revenue"`
}

// ReadImportFile loads period stats from a YAML file and derives records.
func ReadImportFile(path string) ([]model.EPCRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "epc: open %s", path)
	}
	defer f.Close() //nolint:errcheck
	return ParseImport(f)
}

// ParseImport decodes a YAML list of period stats into records.
//
//	- provider: kiwi
//	  vertical: flights
//	  period_start: 2026-09-01T00:00:00Z
//	  period_end: 2026-09-30T23:59:59Z
//	  clicks: 1200
//	  conversions: 31
//	  revenue: 84.50
func ParseImport(r io.Reader) ([]model.EPCRecord, error) {
	var stats []PeriodStats
	if err := yaml.NewDecoder(r).Decode(&stats); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "epc: decode import")
	}

	recs := make([]model.EPCRecord, 0, len(stats))
	for i, st := range stats {
		v, err := model.ParseVertical(st.Vertical)
		if err != nil {
			return nil, eris.Wrapf(err, "epc: import row %d", i+1)
		}
		if st.Clicks < 0 || st.Conversions < 0 || st.Revenue < 0 {
			return nil, eris.Errorf("epc: import row %d: negative totals", i+1)
		}
		recs = append(recs, model.NewEPCRecord(st.Provider, v, st.PeriodStart, st.PeriodEnd, st.Clicks, st.Conversions, st.Revenue))
	}
	return recs, nil
}
