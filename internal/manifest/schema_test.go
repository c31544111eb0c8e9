package manifest

import (
	"strings"
	"testing"
)

func TestSelectSchema(t *testing.T) {
	tests := []struct {
		name      string
		columns   []string
		platforms []string
		want      string
		wantErr   bool
	}{
		{
			name:      "fastq nanopore",
			columns:   []string{"sample_name", "fastq"},
			platforms: []string{"Nanopore"},
			want:      "FastqSchema",
		},
		{
			name:      "paired fastq illumina",
			columns:   []string{"sample_name", "fastq1", "fastq2"},
			platforms: []string{"Illumina"},
			want:      "PairedFastqSchema",
		},
		{
			name:      "bam nanopore",
			columns:   []string{"sample_name", "bam"},
			platforms: []string{"Nanopore"},
			want:      "BamSchema",
		},
		{
			name:      "bam illumina",
			columns:   []string{"sample_name", "bam"},
			platforms: []string{"Illumina"},
			want:      "PairedBamSchema",
		},
		{
			name:      "fastq illumina is ambiguous",
			columns:   []string{"sample_name", "fastq"},
			platforms: []string{"Illumina"},
			wantErr:   true,
		},
		{
			name:      "paired fastq nanopore is ambiguous",
			columns:   []string{"sample_name", "fastq1", "fastq2"},
			platforms: []string{"Nanopore"},
			wantErr:   true,
		},
		{
			name:      "fastq and bam together",
			columns:   []string{"sample_name", "fastq", "bam"},
			platforms: []string{"Nanopore"},
			wantErr:   true,
		},
		{
			name:      "fastq1 without fastq2",
			columns:   []string{"sample_name", "fastq1"},
			platforms: []string{"Illumina"},
			wantErr:   true,
		},
		{
			name:      "no file columns",
			columns:   []string{"sample_name"},
			platforms: []string{"Nanopore"},
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			columns := make(map[string]bool, len(tt.columns))
			for _, c := range tt.columns {
				columns[c] = true
			}

			schema, err := SelectSchema(columns, tt.platforms)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("SelectSchema() = %v, want error", schema.Name)
				}
				if !strings.Contains(err.Error(), "could not infer upload CSV schema") {
					t.Errorf("SelectSchema() error = %q, want schema inference message", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("SelectSchema() error = %v", err)
			}
			if schema.Name != tt.want {
				t.Errorf("SelectSchema() = %q, want %q", schema.Name, tt.want)
			}
		})
	}
}

func TestSchemaColumnLookup(t *testing.T) {
	if _, ok := FastqSchema.Column("fastq"); !ok {
		t.Error("FastqSchema should have a fastq column")
	}
	if _, ok := FastqSchema.Column("fastq1"); ok {
		t.Error("FastqSchema should not have a fastq1 column")
	}

	cols := PairedFastqSchema.FileColumns()
	if len(cols) != 2 || cols[0].Name != "fastq1" || cols[1].Name != "fastq2" {
		t.Errorf("PairedFastqSchema.FileColumns() = %v, want fastq1 and fastq2", cols)
	}
}

func TestColumnAllowedChars(t *testing.T) {
	c, ok := FastqSchema.Column("sample_name")
	if !ok {
		t.Fatal("sample_name column missing")
	}
	if got := c.AllowedChars(); got != "A-Za-z0-9._-" {
		t.Errorf("AllowedChars() = %q, want %q", got, "A-Za-z0-9._-")
	}
}
