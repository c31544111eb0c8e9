package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/gpas-dev/gpas-go/internal/batch"
	"github.com/gpas-dev/gpas-go/internal/decontam"
	"github.com/gpas-dev/gpas-go/internal/manifest"
	"github.com/gpas-dev/gpas-go/internal/progress"
)

var (
	uploadWorkingDir string
	uploadOutDir     string
	uploadThreads    int
	uploadDryRun     bool
	uploadSaveReads  bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload <upload-csv>",
	Short: "Validate, decontaminate and upload a batch of samples",
	Long: `Validate an upload CSV, strip host reads from every sample on this
machine, and upload the cleaned reads to the analysis service.

A mapping CSV linking local sample names to the submitted identifiers is
written to --out-dir. Without --token the run stops after decontamination;
with --dry-run it stops after writing the mapping CSV.

Examples:
  gpas upload --token token.json samples.csv
  gpas upload --dry-run samples.csv
  gpas upload --token token.json --threads 4 --json-messages samples.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().StringVar(&uploadWorkingDir, "working-dir", "", "path of directory in which to make intermediate files (default: system temp)")
	uploadCmd.Flags().StringVar(&uploadOutDir, "out-dir", ".", "path of directory in which to save the mapping CSV")
	uploadCmd.Flags().IntVar(&uploadThreads, "threads", 0, "number of samples to process in parallel (0 = all cores)")
	uploadCmd.Flags().BoolVar(&uploadDryRun, "dry-run", false, "exit before uploading anything")
	uploadCmd.Flags().BoolVar(&uploadSaveReads, "save-reads", false, "keep decontaminated reads after upload")
}

func runUpload(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	token, err := loadToken()
	if err != nil {
		return err
	}
	var (
		remote       batch.Uploader
		user         string
		organisation string
		permitted    []string
	)
	if token != nil {
		c := newClient(token)
		details, err := c.UserDetails(ctx)
		if err != nil {
			return err
		}
		remote, user, organisation, permitted = c, details.User, details.Organisation, details.PermittedTags
		logger.Info("authenticated", "user", user, "organisation", organisation)
	}

	validator, err := manifest.NewValidator(cfg.DataPath)
	if err != nil {
		return err
	}
	m, err := validator.Validate(args[0], permitted)
	if err != nil {
		var vErr *manifest.ValidationError
		if errors.As(err, &vErr) && jsonMessages {
			if err := printJSON(vErr.Report()); err != nil {
				return err
			}
			return fmt.Errorf("validation failed (%d errors)", len(vErr.Failures))
		}
		return err
	}
	if jsonMessages {
		if err := printJSON(m.Report()); err != nil {
			return err
		}
	}

	runner, err := decontam.NewRunner(decontam.RunnerOptions{
		ReadItAndKeepPath: cfg.ReadItAndKeepPath,
		SamtoolsPath:      cfg.SamtoolsPath,
		DataPath:          cfg.DataPath,
		Logger:            logger,
	})
	if err != nil {
		return err
	}

	b, err := batch.New(batch.Options{
		Manifest:     m,
		Runner:       runner,
		Remote:       remote,
		User:         user,
		Organisation: organisation,
		WorkingDir:   uploadWorkingDir,
		OutDir:       uploadOutDir,
		Workers:      uploadThreads,
		DryRun:       uploadDryRun,
		SaveCleaned:  uploadSaveReads,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	summary, err := runWithProgress(ctx, cancel, b, len(m.Samples))
	if summary != nil {
		reportSummary(summary)
	}
	return err
}

// runWithProgress runs the batch while rendering its event stream: JSON
// messages, an interactive progress bar on a terminal, or a silent drain.
func runWithProgress(ctx context.Context, cancel context.CancelFunc, b *batch.Batch, total int) (*batch.Summary, error) {
	var (
		summary *batch.Summary
		runErr  error
		done    = make(chan struct{})
	)
	go func() {
		defer close(done)
		summary, runErr = b.Run(ctx)
	}()

	switch {
	case jsonMessages:
		emitter := progress.NewEmitter(os.Stdout)
		for ev := range b.Events() {
			_ = emitter.Emit(ev)
		}
	case term.IsTerminal(int(os.Stdout.Fd())):
		if quit := runBatchProgress(b.Events(), total); quit {
			cancel()
		}
	default:
		for range b.Events() {
		}
	}

	<-done
	return summary, runErr
}

func reportSummary(sum *batch.Summary) {
	if jsonMessages {
		if sum.Submitted {
			_ = progress.NewEmitter(os.Stdout).EmitResult(progress.Result{
				Status:  "success",
				Batch:   sum.BatchGUID,
				Samples: sum.Succeeded,
			})
		}
		return
	}

	if sum.MappingPath != "" {
		fmt.Printf("Mapping CSV: %s\n", sum.MappingPath)
	}
	switch {
	case sum.Submitted:
		fmt.Printf("Uploaded %d samples as batch %s\n", len(sum.Succeeded), sum.BatchGUID)
	case len(sum.Succeeded) > 0:
		fmt.Printf("Processed %d samples\n", len(sum.Succeeded))
	}
	for _, f := range sum.Failed {
		fmt.Printf("Failed %s: %v\n", f.SampleName, f.Err)
	}
}
