package batch

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
)

// mappingColumns is the header of the mapping CSV written after every run
// and consumed by the status and download commands.
var mappingColumns = []string{
	"local_batch",
	"local_run_number",
	"local_sample_name",
	"gpas_batch",
	"gpas_run_number",
	"gpas_sample_name",
}

// MappingRecord links one sample's local identity to the identifiers it was
// submitted under.
type MappingRecord struct {
	LocalBatch      string
	LocalRunNumber  string
	LocalSampleName string
	BatchGUID       string
	RunNumber       string
	SampleGUID      string
}

// Mapping is the parsed content of a mapping CSV.
type Mapping struct {
	Records []MappingRecord
}

// GUIDs returns the remote sample identifiers in file order.
func (m *Mapping) GUIDs() []string {
	guids := make([]string, 0, len(m.Records))
	for _, r := range m.Records {
		guids = append(guids, r.SampleGUID)
	}
	return guids
}

// Names maps each remote sample identifier to its local sample name.
func (m *Mapping) Names() map[string]string {
	names := make(map[string]string, len(m.Records))
	for _, r := range m.Records {
		names[r.SampleGUID] = r.LocalSampleName
	}
	return names
}

// ParseMappingCSV reads a mapping CSV written by a previous upload run.
// Extra columns are tolerated; missing expected columns are not.
func ParseMappingCSV(path string) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening mapping CSV: %w", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing mapping CSV: %w", err)
	}
	if len(rows) == 0 {
		return nil, errors.New("parsing mapping CSV: empty file")
	}

	index := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		index[name] = i
	}
	for _, name := range mappingColumns {
		if _, ok := index[name]; !ok {
			return nil, errors.New("one or more expected columns missing from mapping CSV")
		}
	}

	mapping := &Mapping{}
	for _, row := range rows[1:] {
		mapping.Records = append(mapping.Records, MappingRecord{
			LocalBatch:      row[index["local_batch"]],
			LocalRunNumber:  row[index["local_run_number"]],
			LocalSampleName: row[index["local_sample_name"]],
			BatchGUID:       row[index["gpas_batch"]],
			RunNumber:       row[index["gpas_run_number"]],
			SampleGUID:      row[index["gpas_sample_name"]],
		})
	}
	return mapping, nil
}

// WriteMappingCSV writes records to path under the canonical header.
func WriteMappingCSV(path string, records []MappingRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating mapping CSV: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(mappingColumns); err != nil {
		return fmt.Errorf("writing mapping CSV: %w", err)
	}
	for _, r := range records {
		row := []string{
			r.LocalBatch,
			r.LocalRunNumber,
			r.LocalSampleName,
			r.BatchGUID,
			r.RunNumber,
			r.SampleGUID,
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("writing mapping CSV: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("writing mapping CSV: %w", err)
	}
	return nil
}
