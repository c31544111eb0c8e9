// Package manifest parses and validates batch upload CSVs.
package manifest

import (
	"fmt"
	"regexp"
	"strings"
)

// Allowed values for enumerated manifest columns.
var (
	Controls      = []string{"negative", "positive"}
	Hosts         = []string{"human"}
	Instruments   = []string{"Illumina", "Nanopore"}
	Organisms     = []string{"SARS-CoV-2"}
	PrimerSchemes = []string{"auto"}
)

var (
	namePattern     = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)
	tagsPattern     = regexp.MustCompile(`^[A-Za-z0-9:_-]+$`)
	districtPattern = regexp.MustCompile(`^[\sA-Za-z0-9:_-]+$`)
	filePattern     = regexp.MustCompile(`^[A-Za-z0-9 /._-]+$`)
)

// ColumnType tells the validator which checks apply to a column beyond
// pattern and enumeration.
type ColumnType int

const (
	// TypeString columns are checked against Pattern and Enum only.
	TypeString ColumnType = iota
	// TypeDate columns must hold an ISO date within the accepted range.
	TypeDate
	// TypeTags columns hold a colon-separated tag list.
	TypeTags
	// TypeFile columns hold a read file path, resolved relative to the CSV.
	TypeFile
)

// Column describes one manifest column: its name, type, whether a value is
// required, the permitted character set and the permitted values.
type Column struct {
	Name     string
	Type     ColumnType
	Required bool
	Unique   bool
	Pattern  *regexp.Regexp
	Enum     []string
	// Suffix is the required filename suffix for TypeFile columns.
	Suffix string
}

// AllowedChars returns the character class of the column's pattern for use
// in error messages, e.g. "A-Za-z0-9._-".
func (c Column) AllowedChars() string {
	if c.Pattern == nil {
		return ""
	}
	expr := c.Pattern.String()
	start := strings.Index(expr, "[")
	end := strings.Index(expr, "]")
	if start < 0 || end < start {
		return expr
	}
	return expr[start+1 : end]
}

// Schema is an ordered description of the columns one manifest layout
// accepts. The validator interprets it row by row, collecting every
// violation rather than stopping at the first.
type Schema struct {
	Name    string
	Paired  bool
	Columns []Column
}

// Column looks up a column description by name.
func (s *Schema) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// FileColumns returns the columns holding read file paths.
func (s *Schema) FileColumns() []Column {
	var cols []Column
	for _, c := range s.Columns {
		if c.Type == TypeFile {
			cols = append(cols, c)
		}
	}
	return cols
}

func baseColumns() []Column {
	return []Column{
		{Name: "batch", Type: TypeString, Pattern: namePattern},
		{Name: "run_number", Type: TypeString, Pattern: namePattern},
		{Name: "sample_name", Type: TypeString, Required: true, Unique: true, Pattern: namePattern},
		{Name: "control", Type: TypeString, Enum: Controls},
		{Name: "collection_date", Type: TypeDate, Required: true},
		{Name: "tags", Type: TypeTags, Required: true, Pattern: tagsPattern},
		{Name: "country", Type: TypeString, Required: true},
		{Name: "region", Type: TypeString},
		{Name: "district", Type: TypeString, Pattern: districtPattern},
		{Name: "specimen_organism", Type: TypeString, Required: true, Enum: Organisms},
		{Name: "host", Type: TypeString, Required: true, Enum: Hosts},
		{Name: "instrument_platform", Type: TypeString, Required: true, Enum: Instruments},
		{Name: "primer_scheme", Type: TypeString, Required: true, Enum: PrimerSchemes},
	}
}

func newSchema(name string, paired bool, fileCols ...Column) *Schema {
	return &Schema{
		Name:    name,
		Paired:  paired,
		Columns: append(baseColumns(), fileCols...),
	}
}

// The four manifest layouts: unpaired FASTQ (Nanopore), paired FASTQ
// (Illumina) and BAM for either platform.
var (
	FastqSchema = newSchema("FastqSchema", false,
		Column{Name: "fastq", Type: TypeFile, Required: true, Unique: true, Pattern: filePattern, Suffix: ".fastq.gz"})

	PairedFastqSchema = newSchema("PairedFastqSchema", true,
		Column{Name: "fastq1", Type: TypeFile, Required: true, Unique: true, Pattern: filePattern, Suffix: ".fastq.gz"},
		Column{Name: "fastq2", Type: TypeFile, Required: true, Unique: true, Pattern: filePattern, Suffix: ".fastq.gz"})

	BamSchema = newSchema("BamSchema", false,
		Column{Name: "bam", Type: TypeFile, Required: true, Unique: true, Pattern: filePattern, Suffix: ".bam"})

	PairedBamSchema = newSchema("PairedBamSchema", true,
		Column{Name: "bam", Type: TypeFile, Required: true, Unique: true, Pattern: filePattern, Suffix: ".bam"})
)

const schemaInferenceError = "could not infer upload CSV schema." +
	" For Nanopore samples, column 'instrument_platform' must be 'Nanopore'," +
	" and either column 'fastq' or column 'bam' must be valid paths." +
	" For Illumina samples, column 'instrument_platform' must be 'Illumina'" +
	" and either columns 'bam' or 'fastq1' and 'fastq2' must be valid paths."

// SelectSchema chooses the manifest layout from the header set and the
// values of the instrument_platform column.
func SelectSchema(columns map[string]bool, platforms []string) (*Schema, error) {
	has := func(names ...string) bool {
		for _, n := range names {
			if columns[n] {
				return true
			}
		}
		return false
	}
	platform := func(name string) bool {
		for _, p := range platforms {
			if p == name {
				return true
			}
		}
		return false
	}

	switch {
	case has("bam") && !has("fastq", "fastq1", "fastq2"):
		if platform("Illumina") {
			return PairedBamSchema, nil
		}
		return BamSchema, nil
	case has("fastq") && !has("fastq1", "fastq2", "bam") && platform("Nanopore"):
		return FastqSchema, nil
	case has("fastq1") && has("fastq2") && !has("fastq", "bam") && platform("Illumina"):
		return PairedFastqSchema, nil
	}
	return nil, fmt.Errorf("%s", schemaInferenceError)
}
