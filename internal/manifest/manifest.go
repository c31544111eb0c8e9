package manifest

// Sample is one validated row of an upload CSV. File paths are absolute,
// resolved against the directory containing the CSV.
type Sample struct {
	Batch              string
	RunNumber          string
	SampleName         string
	Control            string
	CollectionDate     string
	Tags               []string
	Country            string
	Region             string
	District           string
	SpecimenOrganism   string
	Host               string
	InstrumentPlatform string
	PrimerScheme       string

	// Exactly one layout is populated, matching the manifest schema.
	Fastq  string
	Fastq1 string
	Fastq2 string
	Bam    string
}

// Files returns the sample's read file paths in schema order.
func (s Sample) Files() []string {
	switch {
	case s.Fastq != "":
		return []string{s.Fastq}
	case s.Fastq1 != "":
		return []string{s.Fastq1, s.Fastq2}
	case s.Bam != "":
		return []string{s.Bam}
	}
	return nil
}

// Manifest is a fully validated upload CSV.
type Manifest struct {
	// Path is the absolute path of the source CSV.
	Path string

	// Schema is the layout the CSV matched.
	Schema *Schema

	// Samples holds one entry per CSV row, in file order.
	Samples []Sample
}

// Batch returns the batch name shared by all samples.
func (m *Manifest) Batch() string {
	if len(m.Samples) == 0 {
		return ""
	}
	return m.Samples[0].Batch
}

// Platform returns the instrument platform shared by all samples.
func (m *Manifest) Platform() string {
	if len(m.Samples) == 0 {
		return ""
	}
	return m.Samples[0].InstrumentPlatform
}
