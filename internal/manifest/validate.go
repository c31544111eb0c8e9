package manifest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"
)

// Character set accepted for the upload CSV's own path; anything else is
// rejected before the file is opened.
var csvPathPattern = regexp.MustCompile(`^[A-Za-z0-9\\\s:./_-]+$`)

// Failure is a single validation finding. SampleName is empty for failures
// that concern the CSV as a whole rather than one row.
type Failure struct {
	SampleName string `json:"sample_name,omitempty"`
	Message    string `json:"error"`
}

// ValidationError carries every failure found in one upload CSV, sorted by
// sample name then message.
type ValidationError struct {
	Failures []Failure
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "failed to validate upload CSV (%d errors):", len(e.Failures))
	for _, f := range e.Failures {
		b.WriteString("\n  ")
		if f.SampleName != "" {
			b.WriteString(f.SampleName)
			b.WriteString(": ")
		}
		b.WriteString(f.Message)
	}
	return b.String()
}

// Report is the JSON document describing a validation outcome.
type Report struct {
	Validation ReportBody `json:"validation"`
}

type ReportBody struct {
	Status  string         `json:"status"`
	Samples []ReportSample `json:"samples,omitempty"`
	Errors  []Failure      `json:"errors,omitempty"`
}

type ReportSample struct {
	SampleName string   `json:"sample_name"`
	Files      []string `json:"files"`
}

// Report renders the failures as a validation report.
func (e *ValidationError) Report() Report {
	return Report{Validation: ReportBody{Status: "failure", Errors: e.Failures}}
}

// Report renders a successful validation, listing each sample and its files.
func (m *Manifest) Report() Report {
	samples := make([]ReportSample, 0, len(m.Samples))
	for _, s := range m.Samples {
		samples = append(samples, ReportSample{SampleName: s.SampleName, Files: s.Files()})
	}
	return Report{Validation: ReportBody{Status: "success", Samples: samples}}
}

// Validator checks upload CSVs against the manifest schemas.
type Validator struct {
	countries countryData
	now       func() time.Time
}

// NewValidator loads the country dataset, preferring dataPath when set.
func NewValidator(dataPath string) (*Validator, error) {
	countries, err := loadCountries(dataPath)
	if err != nil {
		return nil, err
	}
	return &Validator{countries: countries, now: time.Now}, nil
}

// Validate parses the upload CSV at csvPath and checks every row against the
// inferred schema. Violations are collected rather than short-circuited and
// returned together as a *ValidationError. When permittedTags is non-empty,
// every tag in the CSV must appear in it. On success the returned manifest
// holds one sample per row with file paths resolved against the CSV's
// directory.
func (v *Validator) Validate(csvPath string, permittedTags []string) (*Manifest, error) {
	if !csvPathPattern.MatchString(csvPath) {
		return nil, &ValidationError{Failures: []Failure{
			{Message: "upload csv path contains illegal characters"},
		}}
	}

	header, rows, err := readCSV(csvPath)
	if err != nil {
		return nil, &ValidationError{Failures: []Failure{
			{Message: fmt.Sprintf("failed to parse upload CSV (%v)", err)},
		}}
	}

	columns := make(map[string]bool, len(header))
	index := make(map[string]int, len(header))
	for i, name := range header {
		columns[name] = true
		index[name] = i
	}
	cell := func(row []string, name string) string {
		i, ok := index[name]
		if !ok {
			return ""
		}
		return row[i]
	}

	var platforms []string
	if columns["instrument_platform"] {
		for _, row := range rows {
			platforms = append(platforms, cell(row, "instrument_platform"))
		}
	}

	schema, err := SelectSchema(columns, platforms)
	if err != nil {
		return nil, &ValidationError{Failures: []Failure{{Message: err.Error()}}}
	}

	var failures []Failure
	fail := func(sample, format string, args ...any) {
		failures = append(failures, Failure{SampleName: sample, Message: fmt.Sprintf(format, args...)})
	}

	for _, name := range header {
		if _, ok := schema.Column(name); !ok {
			fail("", "unexpected column %s", name)
		}
	}
	for _, c := range schema.Columns {
		if !columns[c.Name] {
			fail("", "missing column %s", c.Name)
		}
	}

	csvDir := filepath.Dir(csvPath)
	for _, row := range rows {
		name := cell(row, "sample_name")

		for _, c := range schema.Columns {
			if !columns[c.Name] {
				continue
			}
			value := cell(row, c.Name)
			if value == "" {
				if c.Required {
					fail(name, "%s cannot be empty", c.Name)
				}
				continue
			}
			if c.Pattern != nil && !c.Pattern.MatchString(value) {
				fail(name, "%s can only contain characters (%s)", c.Name, c.AllowedChars())
			}
			if len(c.Enum) > 0 && !slices.Contains(c.Enum, value) {
				fail(name, "%s", enumMessage(c.Name, value))
			}
			switch c.Type {
			case TypeDate:
				if !v.dateInRange(value) {
					fail(name, "%s must be in format YYYY-MM-DD between 2019-01-01 and %s",
						c.Name, v.now().Format("2006-01-02"))
				}
			case TypeTags:
				trimmed := strings.Trim(value, ":")
				if trimmed == "" {
					fail(name, "%s cannot be empty", c.Name)
				} else if hasDuplicates(strings.Split(trimmed, ":")) {
					fail(name, "%s cannot be repeated", c.Name)
				}
			case TypeFile:
				if !strings.HasSuffix(value, c.Suffix) {
					fail(name, "%s must end with .fastq.gz or .bam as appropriate", c.Name)
				}
				path := value
				if !filepath.IsAbs(path) {
					path = filepath.Join(csvDir, path)
				}
				switch info, err := os.Stat(path); {
				case err != nil:
					fail(name, "%s file does not exist", c.Name)
				case info.Size() == 0:
					fail(name, "%s file is empty", c.Name)
				}
			}
			switch c.Name {
			case "country":
				if !v.countries.HasCountry(value) {
					fail(name, "%s is not a valid ISO 3166-1 alpha-3 country code", value)
				}
			case "region":
				if !v.countries.HasSubdivision(value) {
					fail(name, "%s is not a valid ISO 3166-2 subdivision name", value)
				}
			}
		}

		// A region must belong to the row's country, not just to some country.
		if region := cell(row, "region"); region != "" {
			if !slices.Contains(v.countries[cell(row, "country")], region) {
				fail(name, "invalid region (ISO 3166-2 subdivision) for specified country")
			}
		}

		if schema.Paired && columns["fastq1"] && columns["fastq2"] {
			if f1 := cell(row, "fastq1"); f1 != "" && f1 == cell(row, "fastq2") {
				fail(name, "fastq1 and fastq2 cannot be the same")
			}
		}
	}

	v.checkUniqueness(schema, rows, columns, cell, fail)

	distinct := make(map[string]bool)
	for _, p := range platforms {
		if p != "" {
			distinct[p] = true
		}
	}
	if len(distinct) > 1 {
		fail("", "instrument_platform must be the same for all samples in a submission")
	}

	if len(permittedTags) > 0 && columns["tags"] {
		if bad := unauthorisedTags(rows, cell, permittedTags); len(bad) > 0 {
			fail("", "tag(s) %s are unauthorised for this user", strings.Join(bad, ", "))
		}
	}

	if len(failures) > 0 {
		slices.SortStableFunc(failures, func(a, b Failure) int {
			if c := strings.Compare(a.SampleName, b.SampleName); c != 0 {
				return c
			}
			return strings.Compare(a.Message, b.Message)
		})
		return nil, &ValidationError{Failures: slices.Compact(failures)}
	}

	absCSV, err := filepath.Abs(csvPath)
	if err != nil {
		return nil, fmt.Errorf("resolving upload CSV path: %w", err)
	}
	absDir := filepath.Dir(absCSV)
	resolve := func(p string) string {
		if p == "" {
			return ""
		}
		if filepath.IsAbs(p) {
			return filepath.Clean(p)
		}
		return filepath.Join(absDir, p)
	}

	samples := make([]Sample, 0, len(rows))
	for _, row := range rows {
		samples = append(samples, Sample{
			Batch:              cell(row, "batch"),
			RunNumber:          cell(row, "run_number"),
			SampleName:         cell(row, "sample_name"),
			Control:            cell(row, "control"),
			CollectionDate:     cell(row, "collection_date"),
			Tags:               SplitTags(cell(row, "tags")),
			Country:            cell(row, "country"),
			Region:             cell(row, "region"),
			District:           cell(row, "district"),
			SpecimenOrganism:   cell(row, "specimen_organism"),
			Host:               cell(row, "host"),
			InstrumentPlatform: cell(row, "instrument_platform"),
			PrimerScheme:       cell(row, "primer_scheme"),
			Fastq:              resolve(cell(row, "fastq")),
			Fastq1:             resolve(cell(row, "fastq1")),
			Fastq2:             resolve(cell(row, "fastq2")),
			Bam:                resolve(cell(row, "bam")),
		})
	}
	return &Manifest{Path: absCSV, Schema: schema, Samples: samples}, nil
}

// checkUniqueness flags duplicated sample names, duplicated file paths within
// a column and duplicated fastq1/fastq2 pairs. A duplicated sample name is
// reported once per name; duplicated files once per offending row.
func (v *Validator) checkUniqueness(schema *Schema, rows [][]string, columns map[string]bool,
	cell func([]string, string) string, fail func(string, string, ...any)) {

	names := make(map[string]int)
	for _, row := range rows {
		if name := cell(row, "sample_name"); name != "" {
			names[name]++
		}
	}
	for name, n := range names {
		if n > 1 {
			fail(name, "sample_name must be unique")
		}
	}

	for _, c := range schema.FileColumns() {
		if !columns[c.Name] {
			continue
		}
		seen := make(map[string]int)
		for _, row := range rows {
			if value := cell(row, c.Name); value != "" {
				seen[value]++
			}
		}
		for _, row := range rows {
			if value := cell(row, c.Name); value != "" && seen[value] > 1 {
				fail(cell(row, "sample_name"), "%s must be unique", c.Name)
			}
		}
	}

	if schema.Paired && columns["fastq1"] && columns["fastq2"] {
		seen := make(map[[2]string]int)
		for _, row := range rows {
			pair := [2]string{cell(row, "fastq1"), cell(row, "fastq2")}
			if pair != ([2]string{}) {
				seen[pair]++
			}
		}
		for _, row := range rows {
			pair := [2]string{cell(row, "fastq1"), cell(row, "fastq2")}
			if pair != ([2]string{}) && seen[pair] > 1 {
				fail(cell(row, "sample_name"), "fastq1 and fastq2 must be jointly unique")
			}
		}
	}
}

func unauthorisedTags(rows [][]string, cell func([]string, string) string, permitted []string) []string {
	bad := make(map[string]bool)
	for _, row := range rows {
		for _, t := range SplitTags(cell(row, "tags")) {
			if !slices.Contains(permitted, t) {
				bad[t] = true
			}
		}
	}
	names := make([]string, 0, len(bad))
	for t := range bad {
		names = append(names, t)
	}
	slices.Sort(names)
	return names
}

// dateInRange accepts ISO dates after 2019-01-01 and no later than today.
func (v *Validator) dateInRange(value string) bool {
	d, err := time.Parse("2006-01-02", value)
	if err != nil || d.Format("2006-01-02") != value {
		return false
	}
	now := v.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return d.After(time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)) && !d.After(today)
}

func enumMessage(column, value string) string {
	switch column {
	case "control":
		return value + " in the control field is not valid; field must be either empty or contain one of the keywords negative, positive"
	case "host":
		return "host can only contain the keyword human"
	case "specimen_organism":
		return "specimen_organism can only contain the keyword SARS-CoV-2"
	case "primer_scheme":
		return "primer_scheme can only contain the keyword auto"
	case "instrument_platform":
		return "instrument_platform can only contain one of Illumina, Nanopore"
	}
	return column + " has an invalid value"
}

func hasDuplicates(parts []string) bool {
	seen := make(map[string]bool, len(parts))
	for _, p := range parts {
		if seen[p] {
			return true
		}
		seen[p] = true
	}
	return false
}

// SplitTags splits a colon-separated tag cell into its non-empty tags.
func SplitTags(value string) []string {
	var tags []string
	for _, t := range strings.Split(strings.Trim(value, " :"), ":") {
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func readCSV(path string) (header []string, rows [][]string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, errors.New("empty file")
	}
	header = records[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	return header, records[1:], nil
}
