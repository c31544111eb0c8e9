package batch

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/gpas-dev/gpas-go/internal/client"
	"github.com/gpas-dev/gpas-go/internal/progress"
)

// submit uploads every ready sample's cleaned reads and posts the batch
// metadata. Per-sample upload failures are tolerated; the submission covers
// whatever made it into the bucket.
func (b *Batch) submit(ctx context.Context, ready []*Sample) error {
	target, err := b.remote.UploadTarget(ctx)
	if err != nil {
		return err
	}
	batchURL := target.BatchURL(b.guid)

	b.uploadSamples(ctx, ready, batchURL)
	if err := ctx.Err(); err != nil {
		return err
	}

	var uploaded []*Sample
	for _, s := range ready {
		if s.uploaded {
			uploaded = append(uploaded, s)
		}
	}
	if len(uploaded) == 0 {
		return errors.New("no samples uploaded")
	}

	b.emit(progress.Event{Action: progress.ActionSubmission, Status: progress.StatusStarted})
	if err := b.remote.SubmitBatch(ctx, b.buildSubmission(target, uploaded)); err != nil {
		b.emit(progress.Event{Action: progress.ActionSubmission, Status: progress.StatusFailed, Err: err.Error()})
		return err
	}
	if err := b.remote.FinishUpload(ctx, target, b.guid); err != nil {
		b.emit(progress.Event{Action: progress.ActionSubmission, Status: progress.StatusFailed, Err: err.Error()})
		return err
	}
	for _, s := range uploaded {
		s.State = StateSubmitted
	}
	b.emit(progress.Event{Action: progress.ActionSubmission, Status: progress.StatusFinished})
	b.logger.Info("finished uploading batch", "batch", b.guid)
	return nil
}

// uploadSamples drains the ready samples through the upload pool.
func (b *Batch) uploadSamples(ctx context.Context, samples []*Sample, batchURL string) {
	tasks := make(chan *Sample, len(samples))
	var wg sync.WaitGroup

	for i := 0; i < b.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for s := range tasks {
				if ctx.Err() != nil {
					return
				}
				b.uploadSample(ctx, s, batchURL)
			}
		}()
	}

	for _, s := range samples {
		tasks <- s
	}
	close(tasks)
	wg.Wait()
}

func (b *Batch) uploadSample(ctx context.Context, s *Sample, batchURL string) {
	b.emit(progress.Event{Action: progress.ActionUpload, Status: progress.StatusStarted, Sample: s.Row.SampleName})
	for _, path := range s.cleanFiles() {
		if err := b.remote.UploadReads(ctx, batchURL+filepath.Base(path), path); err != nil {
			b.fail(s, progress.ActionUpload, err)
			return
		}
	}
	s.uploaded = true
	b.emit(progress.Event{Action: progress.ActionUpload, Status: progress.StatusFinished, Sample: s.Row.SampleName})
	b.logger.Info("uploaded sample", "sample", s.Row.SampleName, "guid", s.GUID)
}

// buildSubmission assembles the metadata payload for the uploaded samples.
func (b *Batch) buildSubmission(target *client.UploadTarget, samples []*Sample) *client.Submission {
	subSamples := make([]client.SubmissionSample, 0, len(samples))
	for _, s := range samples {
		sample := client.SubmissionSample{
			Name:           s.GUID,
			RunNumber:      s.RunNumber,
			Tags:           s.Row.Tags,
			Control:        s.Row.Control,
			CollectionDate: s.Row.CollectionDate,
			Country:        s.Row.Country,
			Region:         s.Row.Region,
			District:       s.Row.District,
			Specimen:       s.Row.SpecimenOrganism,
			Host:           s.Row.Host,
			Instrument:     client.Instrument{Platform: s.Row.InstrumentPlatform},
			PrimerScheme:   s.Row.PrimerScheme,
		}
		if b.paired {
			sample.PairedReads = &client.PairedReads{
				R1URI: s.clean1,
				R1MD5: s.md5One,
				R2URI: s.clean2,
				R2MD5: s.md5Two,
			}
		} else {
			sample.SingleReads = &client.SingleReads{URI: s.clean1, MD5: s.md5One}
		}
		subSamples = append(subSamples, sample)
	}

	return &client.Submission{
		Status: "completed",
		Batch: client.SubmissionBatch{
			FileName:     b.guid,
			BucketName:   target.Bucket,
			UploadedOn:   b.uploadedOn,
			UploadedBy:   b.user,
			Organisation: b.organisation,
			Samples:      subSamples,
		},
	}
}

// numberRuns maps each distinct run_number value to its ordinal in sorted
// order, starting at 1. Samples without a run number keep an empty one.
func numberRuns(samples []*Sample) {
	var names []string
	for _, s := range samples {
		if s.Row.RunNumber != "" {
			names = append(names, s.Row.RunNumber)
		}
	}
	slices.Sort(names)
	names = slices.Compact(names)

	numbers := make(map[string]string, len(names))
	for i, name := range names {
		numbers[name] = strconv.Itoa(i + 1)
	}
	for _, s := range samples {
		s.RunNumber = numbers[s.Row.RunNumber]
	}
}

// oracleTimestamp renders t the way the submission endpoint expects:
// ISO 8601 with milliseconds and a "Z" wedged in front of the numeric
// offset.
func oracleTimestamp(t time.Time) string {
	s := t.Format("2006-01-02T15:04:05.000-07:00")
	return s[:len(s)-6] + "Z" + s[len(s)-6:]
}
