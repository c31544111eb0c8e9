package batch

import (
	"github.com/gpas-dev/gpas-go/internal/decontam"
	"github.com/gpas-dev/gpas-go/internal/manifest"
)

// State tracks a sample through the pipeline.
type State string

const (
	StatePending         State = "pending"
	StateConverting      State = "converting"
	StateDecontaminating State = "decontaminating"
	StateReady           State = "ready"
	StateSubmitted       State = "submitted"
	StateFailed          State = "failed"
)

// Sample is one manifest row moving through a batch run. Workers own their
// sample exclusively while it is on the queue; after the pool drains the
// orchestrator is the only reader.
type Sample struct {
	Row       manifest.Sample
	GUID      string
	RunNumber string
	State     State
	Err       error

	workDir  string
	clean1   string
	clean2   string
	md5One   string
	md5Two   string
	stats    decontam.Stats
	uploaded bool
}

// cleanFiles returns the cleaned read paths in upload order.
func (s *Sample) cleanFiles() []string {
	if s.clean2 != "" {
		return []string{s.clean1, s.clean2}
	}
	if s.clean1 != "" {
		return []string{s.clean1}
	}
	return nil
}

// cleanNames returns the identifier-based file names the cleaned reads are
// renamed to before upload. The second name is empty for unpaired samples.
func (s *Sample) cleanNames(paired bool) (string, string) {
	if paired {
		return s.GUID + ".reads_1.fastq.gz", s.GUID + ".reads_2.fastq.gz"
	}
	return s.GUID + ".reads.fastq.gz", ""
}
