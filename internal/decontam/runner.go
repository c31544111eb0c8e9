// Package decontam runs the external read decontamination and BAM conversion
// binaries and parses their output.
package decontam

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
)

// RunnerOptions configures binary and data resolution. Empty paths fall back
// to a $PATH lookup (binaries) or the executable-adjacent data directory.
type RunnerOptions struct {
	ReadItAndKeepPath string
	SamtoolsPath      string
	DataPath          string
	Logger            *slog.Logger
}

// Runner executes the decontamination pipeline for single samples. It is
// safe for concurrent use: each call writes only inside the given working
// directory.
type Runner struct {
	riak     string
	samtools string
	dataPath string
	logger   *slog.Logger
}

// NewRunner resolves both external binaries and the data directory up front
// so a misconfigured environment fails before any sample is processed.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	riak, err := resolveBinary("readItAndKeep", opts.ReadItAndKeepPath)
	if err != nil {
		return nil, err
	}
	samtools, err := resolveBinary("samtools", opts.SamtoolsPath)
	if err != nil {
		return nil, err
	}
	dataPath, err := DataPath(opts.DataPath)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{riak: riak, samtools: samtools, dataPath: dataPath, logger: logger}, nil
}

func resolveBinary(name, override string) (string, error) {
	if override != "" {
		if _, err := os.Stat(override); err != nil {
			return "", fmt.Errorf("could not find %s binary at %s: %w", name, override, err)
		}
		return override, nil
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("could not find %s binary", name)
	}
	return path, nil
}

// Input describes one sample's reads. Exactly one layout is set: Fastq,
// Fastq1+Fastq2, or Bam. WorkDir is the sample's scratch directory and is
// created if missing.
type Input struct {
	SampleName string
	Organism   string
	Paired     bool
	Fastq      string
	Fastq1     string
	Fastq2     string
	Bam        string
	WorkDir    string
}

// Output holds the cleaned read paths produced by a decontamination run.
// CleanReads2 is empty for unpaired layouts.
type Output struct {
	CleanReads1 string
	CleanReads2 string
	Stats       Stats
}

// Run converts BAM input to FASTQ when needed, then decontaminates the
// sample's reads. Failures are per-sample: callers decide whether to
// continue with the rest of a batch.
func (r *Runner) Run(ctx context.Context, in Input) (*Output, error) {
	if err := os.MkdirAll(in.WorkDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating working directory: %w", err)
	}

	reads1, reads2 := in.Fastq, ""
	if in.Paired {
		reads1, reads2 = in.Fastq1, in.Fastq2
	}
	if in.Bam != "" {
		var err error
		reads1, reads2, err = r.ConvertBam(ctx, in)
		if err != nil {
			return nil, err
		}
	}
	return r.Decontaminate(ctx, in, reads1, reads2)
}

// ConvertBam extracts FASTQ reads from a BAM file into the sample's working
// directory. Paired layouts are name-collated first: samtools sort streamed
// into samtools fastq.
func (r *Runner) ConvertBam(ctx context.Context, in Input) (reads1, reads2 string, err error) {
	prefix := filepath.Join(in.WorkDir, in.SampleName)

	if !in.Paired {
		reads1 = prefix + ".fastq.gz"
		if _, err := r.runCommand(ctx, r.samtools, "fastq", "-0", reads1, in.Bam); err != nil {
			return "", "", err
		}
		if err := checkOutputs(reads1); err != nil {
			return "", "", err
		}
		return reads1, "", nil
	}

	reads1 = prefix + "_1.fastq.gz"
	reads2 = prefix + "_2.fastq.gz"
	if err := r.runPipeline(ctx,
		[]string{"sort", in.Bam},
		[]string{"fastq", "-N", "-1", reads1, "-2", reads2},
	); err != nil {
		return "", "", err
	}
	if err := checkOutputs(reads1, reads2); err != nil {
		return "", "", err
	}
	return reads1, reads2, nil
}

// Decontaminate runs the decontamination binary over one sample's reads and
// parses the kept and discarded read counts from its stdout.
func (r *Runner) Decontaminate(ctx context.Context, in Input, reads1, reads2 string) (*Output, error) {
	ref, err := ReferencePath(r.dataPath, in.Organism)
	if err != nil {
		return nil, err
	}

	tech := "ont"
	if in.Paired {
		tech = "illumina"
	}
	prefix := filepath.Join(in.WorkDir, in.SampleName)
	args := []string{
		"--tech", tech,
		"--enumerate_names",
		"--ref_fasta", ref,
		"--reads1", reads1,
	}
	if in.Paired {
		args = append(args, "--reads2", reads2)
	}
	args = append(args, "--outprefix", prefix)

	stdout, err := r.runCommand(ctx, r.riak, args...)
	if err != nil {
		return nil, err
	}
	stats, err := ParseStats(stdout)
	if err != nil {
		return nil, err
	}

	out := &Output{Stats: stats}
	if in.Paired {
		out.CleanReads1 = prefix + ".reads_1.fastq.gz"
		out.CleanReads2 = prefix + ".reads_2.fastq.gz"
	} else {
		out.CleanReads1 = prefix + ".reads.fastq.gz"
	}
	if err := checkOutputs(out.CleanReads1, out.CleanReads2); err != nil {
		return nil, err
	}

	r.logger.Info("decontaminated sample",
		"sample", in.SampleName,
		"reads_in", stats.ReadsIn,
		"reads_out", stats.ReadsOut,
		"fraction_removed", stats.Fraction)
	return out, nil
}

func (r *Runner) runCommand(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debug("running command", "cmd", cmd.String())
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", &RunError{Cmd: cmd.String(), ExitCode: exitErr.ExitCode(), Stderr: stderr.String()}
		}
		return "", fmt.Errorf("running %s: %w", filepath.Base(name), err)
	}
	return stdout.String(), nil
}

// runPipeline runs two samtools invocations with the first's stdout streamed
// into the second's stdin.
func (r *Runner) runPipeline(ctx context.Context, first, second []string) error {
	src := exec.CommandContext(ctx, r.samtools, first...)
	dst := exec.CommandContext(ctx, r.samtools, second...)

	pipe, err := src.StdoutPipe()
	if err != nil {
		return fmt.Errorf("connecting samtools pipeline: %w", err)
	}
	dst.Stdin = pipe

	var srcErr, dstErr bytes.Buffer
	src.Stderr = &srcErr
	dst.Stderr = &dstErr

	r.logger.Debug("running pipeline", "src", src.String(), "dst", dst.String())
	if err := src.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", src.String(), err)
	}
	if err := dst.Start(); err != nil {
		_ = src.Process.Kill()
		_ = src.Wait()
		return fmt.Errorf("starting %s: %w", dst.String(), err)
	}

	srcWaitErr := src.Wait()
	dstWaitErr := dst.Wait()
	if srcWaitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(srcWaitErr, &exitErr) {
			return &RunError{Cmd: src.String(), ExitCode: exitErr.ExitCode(), Stderr: srcErr.String()}
		}
		return fmt.Errorf("running %s: %w", src.String(), srcWaitErr)
	}
	if dstWaitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(dstWaitErr, &exitErr) {
			return &RunError{Cmd: dst.String(), ExitCode: exitErr.ExitCode(), Stderr: dstErr.String()}
		}
		return fmt.Errorf("running %s: %w", dst.String(), dstWaitErr)
	}
	return nil
}

// checkOutputs verifies each expected output file exists and is non-empty.
// Empty paths are skipped.
func checkOutputs(paths ...string) error {
	for _, p := range paths {
		if p == "" {
			continue
		}
		info, err := os.Stat(p)
		if err != nil {
			return fmt.Errorf("expected output %s missing: %w", p, err)
		}
		if info.Size() == 0 {
			return fmt.Errorf("expected output %s is empty", p)
		}
	}
	return nil
}
