// Package batch orchestrates one upload run: decontaminating every sample
// of a validated manifest, writing the mapping CSV and submitting the
// cleaned reads to the remote service.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/gpas-dev/gpas-go/internal/client"
	"github.com/gpas-dev/gpas-go/internal/decontam"
	"github.com/gpas-dev/gpas-go/internal/manifest"
	"github.com/gpas-dev/gpas-go/internal/progress"
)

// Uploader is the remote surface the orchestrator needs. *client.Client
// implements it; tests substitute a recorder.
type Uploader interface {
	UploadTarget(ctx context.Context) (*client.UploadTarget, error)
	UploadReads(ctx context.Context, url, path string) error
	SubmitBatch(ctx context.Context, sub *client.Submission) error
	FinishUpload(ctx context.Context, target *client.UploadTarget, batchGUID string) error
}

// Options configures one batch run.
type Options struct {
	Manifest *manifest.Manifest
	Runner   *decontam.Runner

	// Remote is nil when no credential was supplied; the run then stops
	// after the mapping CSV with no network calls.
	Remote       Uploader
	User         string
	Organisation string

	// WorkingDir holds per-run scratch space; empty means the system temp
	// directory. OutDir receives the mapping CSV; empty means the current
	// directory.
	WorkingDir string
	OutDir     string

	Workers     int // 0 means runtime.NumCPU
	DryRun      bool
	SaveCleaned bool

	Logger *slog.Logger
}

// Batch is one upload run over a validated manifest.
type Batch struct {
	guid         string
	samples      []*Sample
	paired       bool
	runner       *decontam.Runner
	remote       Uploader
	user         string
	organisation string
	runDir       string
	outDir       string
	workers      int
	dryRun       bool
	saveCleaned  bool
	uploadedOn   string
	mappingPath  string
	submitted    bool
	logger       *slog.Logger
	events       chan progress.Event
	processed    atomic.Int32
}

// New prepares a run: assigns the batch and per-sample identifiers and
// renumbers runs. No filesystem or network work happens until Run.
func New(opts Options) (*Batch, error) {
	if opts.Manifest == nil || len(opts.Manifest.Samples) == 0 {
		return nil, errors.New("manifest has no samples")
	}
	if opts.Runner == nil {
		return nil, errors.New("decontamination runner is required")
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workingDir := opts.WorkingDir
	if workingDir == "" {
		workingDir = os.TempDir()
	}
	outDir := opts.OutDir
	if outDir == "" {
		outDir = "."
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	b := &Batch{
		guid:         uuid.NewString(),
		paired:       opts.Manifest.Schema.Paired,
		runner:       opts.Runner,
		remote:       opts.Remote,
		user:         opts.User,
		organisation: opts.Organisation,
		outDir:       outDir,
		workers:      workers,
		dryRun:       opts.DryRun,
		saveCleaned:  opts.SaveCleaned,
		uploadedOn:   oracleTimestamp(time.Now()),
		logger:       logger,
	}
	b.runDir = filepath.Join(workingDir, b.guid)
	for _, row := range opts.Manifest.Samples {
		b.samples = append(b.samples, &Sample{
			Row:     row,
			GUID:    uuid.NewString(),
			State:   StatePending,
			workDir: filepath.Join(b.runDir, row.SampleName),
		})
	}
	numberRuns(b.samples)
	b.events = make(chan progress.Event, len(b.samples)*8+8)
	return b, nil
}

// GUID returns the identifier assigned to this run.
func (b *Batch) GUID() string { return b.guid }

// Events returns the progress stream. It is closed when Run returns; the
// buffer is sized so an absent reader never blocks the pipeline.
func (b *Batch) Events() <-chan progress.Event { return b.events }

// Summary reports the outcome of one run.
type Summary struct {
	BatchGUID   string
	MappingPath string
	Submitted   bool
	Succeeded   []string
	Failed      []SampleFailure
}

// SampleFailure pairs a failed sample with the error that stopped it.
type SampleFailure struct {
	SampleName string
	Err        error
}

// Run executes the pipeline: decontaminate all samples through the worker
// pool, write the mapping CSV, then submit unless running dry or offline.
// Per-sample failures are collected in the summary; the returned error is
// non-nil only when the whole batch failed.
func (b *Batch) Run(ctx context.Context) (*Summary, error) {
	defer close(b.events)

	b.logger.Info("processing batch", "batch", b.guid, "samples", len(b.samples), "workers", b.workers)
	b.process(ctx)
	if err := ctx.Err(); err != nil {
		return b.summary(), err
	}

	ready := b.inState(StateReady)
	if len(ready) == 0 {
		return b.summary(), errors.New("no samples survived decontamination")
	}

	if err := os.MkdirAll(b.outDir, 0o755); err != nil {
		return b.summary(), fmt.Errorf("creating output directory: %w", err)
	}
	path := filepath.Join(b.outDir, b.guid+".mapping.csv")
	if err := WriteMappingCSV(path, b.mappingRecords(ready)); err != nil {
		return b.summary(), err
	}
	b.mappingPath = path
	b.logger.Info("saved mapping CSV", "path", path)

	if b.dryRun {
		b.logger.Info("dry run, stopping before submission")
		return b.summary(), nil
	}
	if b.remote == nil {
		b.logger.Warn("no token provided, stopping after decontamination")
		for _, s := range ready {
			b.logger.Info("cleaned reads", "sample", s.Row.SampleName, "files", strings.Join(s.cleanFiles(), " "))
		}
		return b.summary(), nil
	}

	if err := b.submit(ctx, ready); err != nil {
		return b.summary(), err
	}
	b.submitted = true
	if !b.saveCleaned {
		if err := os.RemoveAll(b.runDir); err != nil {
			b.logger.Warn("could not remove working directory", "dir", b.runDir, "error", err)
		}
	}
	return b.summary(), nil
}

// process drains every sample through the decontamination pool.
func (b *Batch) process(ctx context.Context) {
	tasks := make(chan *Sample, len(b.samples))
	var wg sync.WaitGroup

	for i := 0; i < b.workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for s := range tasks {
				if ctx.Err() != nil {
					return
				}
				processed := b.processed.Add(1)
				b.logger.Info("processing sample", "worker", workerID, "sample", s.Row.SampleName, "progress", fmt.Sprintf("%d/%d", processed, len(b.samples)))
				b.processSample(ctx, s)
			}
		}(i)
	}

	for _, s := range b.samples {
		tasks <- s
	}
	close(tasks)
	wg.Wait()
}

func (b *Batch) processSample(ctx context.Context, s *Sample) {
	if err := os.MkdirAll(s.workDir, 0o755); err != nil {
		b.fail(s, progress.ActionDecontamination, fmt.Errorf("creating working directory: %w", err))
		return
	}
	in := decontam.Input{
		SampleName: s.Row.SampleName,
		Organism:   s.Row.SpecimenOrganism,
		Paired:     b.paired,
		Fastq:      s.Row.Fastq,
		Fastq1:     s.Row.Fastq1,
		Fastq2:     s.Row.Fastq2,
		Bam:        s.Row.Bam,
		WorkDir:    s.workDir,
	}

	reads1, reads2 := in.Fastq, ""
	if b.paired {
		reads1, reads2 = in.Fastq1, in.Fastq2
	}
	if in.Bam != "" {
		s.State = StateConverting
		b.emit(progress.Event{Action: progress.ActionConversion, Status: progress.StatusStarted, Sample: s.Row.SampleName})
		var err error
		reads1, reads2, err = b.runner.ConvertBam(ctx, in)
		if err != nil {
			b.fail(s, progress.ActionConversion, err)
			return
		}
		b.emit(progress.Event{Action: progress.ActionConversion, Status: progress.StatusFinished, Sample: s.Row.SampleName})
	}

	s.State = StateDecontaminating
	b.emit(progress.Event{Action: progress.ActionDecontamination, Status: progress.StatusStarted, Sample: s.Row.SampleName})
	out, err := b.runner.Decontaminate(ctx, in, reads1, reads2)
	if err != nil {
		b.fail(s, progress.ActionDecontamination, err)
		return
	}
	s.stats = out.Stats
	b.emit(progress.Event{Action: progress.ActionDecontamination, Status: progress.StatusFinished, Sample: s.Row.SampleName})

	b.emit(progress.Event{Action: progress.ActionChecksum, Status: progress.StatusStarted, Sample: s.Row.SampleName})
	if err := b.checksumAndRename(s, out); err != nil {
		b.fail(s, progress.ActionChecksum, err)
		return
	}
	b.emit(progress.Event{Action: progress.ActionChecksum, Status: progress.StatusFinished, Sample: s.Row.SampleName})
	s.State = StateReady
}

// checksumAndRename hashes the cleaned reads, then renames them to their
// identifier-based upload names.
func (b *Batch) checksumAndRename(s *Sample, out *decontam.Output) error {
	md5One, err := decontam.ChecksumFile(out.CleanReads1)
	if err != nil {
		return err
	}
	s.md5One = md5One
	if b.paired {
		md5Two, err := decontam.ChecksumFile(out.CleanReads2)
		if err != nil {
			return err
		}
		s.md5Two = md5Two
	}

	name1, name2 := s.cleanNames(b.paired)
	s.clean1 = filepath.Join(s.workDir, name1)
	if err := os.Rename(out.CleanReads1, s.clean1); err != nil {
		return fmt.Errorf("renaming cleaned reads: %w", err)
	}
	if b.paired {
		s.clean2 = filepath.Join(s.workDir, name2)
		if err := os.Rename(out.CleanReads2, s.clean2); err != nil {
			return fmt.Errorf("renaming cleaned reads: %w", err)
		}
	}
	return nil
}

func (b *Batch) fail(s *Sample, action progress.Action, err error) {
	s.State = StateFailed
	s.Err = err
	b.emit(progress.Event{Action: action, Status: progress.StatusFailed, Sample: s.Row.SampleName, Err: err.Error()})
	b.logger.Error("sample failed", "sample", s.Row.SampleName, "action", string(action), "error", err)
}

func (b *Batch) emit(ev progress.Event) {
	select {
	case b.events <- ev:
	default:
		b.logger.Debug("dropped progress event", "action", string(ev.Action), "status", string(ev.Status))
	}
}

func (b *Batch) inState(state State) []*Sample {
	var matched []*Sample
	for _, s := range b.samples {
		if s.State == state {
			matched = append(matched, s)
		}
	}
	return matched
}

func (b *Batch) mappingRecords(samples []*Sample) []MappingRecord {
	records := make([]MappingRecord, 0, len(samples))
	for _, s := range samples {
		records = append(records, MappingRecord{
			LocalBatch:      s.Row.Batch,
			LocalRunNumber:  s.Row.RunNumber,
			LocalSampleName: s.Row.SampleName,
			BatchGUID:       b.guid,
			RunNumber:       s.RunNumber,
			SampleGUID:      s.GUID,
		})
	}
	return records
}

func (b *Batch) summary() *Summary {
	sum := &Summary{BatchGUID: b.guid, MappingPath: b.mappingPath, Submitted: b.submitted}
	for _, s := range b.samples {
		switch s.State {
		case StateFailed:
			sum.Failed = append(sum.Failed, SampleFailure{SampleName: s.Row.SampleName, Err: s.Err})
		case StateReady, StateSubmitted:
			sum.Succeeded = append(sum.Succeeded, s.Row.SampleName)
		}
	}
	return sum
}
