package decontam_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpas-dev/gpas-go/internal/decontam"
)

// fakeRiak mimics the decontamination binary: it records its arguments,
// writes the expected cleaned read files and prints plausible counts.
const fakeRiak = `echo "$@" > "$(dirname "$0")/riak.args"
prefix=""
reads2=""
prev=""
for a in "$@"; do
	case "$prev" in
	--outprefix) prefix="$a" ;;
	--reads2) reads2="$a" ;;
	esac
	prev="$a"
done
if [ -n "$reads2" ]; then
	printf x > "$prefix.reads_1.fastq.gz"
	printf x > "$prefix.reads_2.fastq.gz"
	printf 'Input reads file 1\t100\nInput reads file 2\t100\nKept reads 1\t90\nKept reads 2\t90\n'
else
	printf x > "$prefix.reads.fastq.gz"
	printf 'Input reads file 1\t1000\nInput reads file 2\t0\nKept reads 1\t950\nKept reads 2\t0\n'
fi
`

// fakeSamtools handles the two invocations the runner makes: "sort", which
// streams its input file to stdout, and "fastq", which writes whichever
// output files were requested.
const fakeSamtools = `mode="$1"
out=""
r1=""
r2=""
prev=""
for a in "$@"; do
	case "$prev" in
	-0) out="$a" ;;
	-1) r1="$a" ;;
	-2) r2="$a" ;;
	esac
	prev="$a"
done
case "$mode" in
sort)
	cat "$2"
	;;
fastq)
	cat > /dev/null
	if [ -n "$out" ]; then printf x > "$out"; fi
	if [ -n "$r1" ]; then printf x > "$r1"; fi
	if [ -n "$r2" ]; then printf x > "$r2"; fi
	;;
esac
`

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func writeInput(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("@r1\nACGT\n+\nIIII\n"), 0o644))
	return path
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// newTestRunner builds a runner backed by fake binaries. The returned dir
// holds the binaries, the data directory and the recorded riak arguments.
func newTestRunner(t *testing.T, riakBody string) (*decontam.Runner, string) {
	t.Helper()
	dir := t.TempDir()
	r, err := decontam.NewRunner(decontam.RunnerOptions{
		ReadItAndKeepPath: writeScript(t, dir, "readItAndKeep", riakBody),
		SamtoolsPath:      writeScript(t, dir, "samtools", fakeSamtools),
		DataPath:          dir,
		Logger:            testLogger(),
	})
	require.NoError(t, err)
	return r, dir
}

func riakArgs(t *testing.T, dir string) string {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join(dir, "riak.args"))
	require.NoError(t, err)
	return string(raw)
}

func TestNewRunnerMissingBinary(t *testing.T) {
	dir := t.TempDir()
	_, err := decontam.NewRunner(decontam.RunnerOptions{
		ReadItAndKeepPath: filepath.Join(dir, "absent"),
		SamtoolsPath:      writeScript(t, dir, "samtools", fakeSamtools),
		DataPath:          dir,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not find readItAndKeep binary")
}

func TestRunUnpairedFastq(t *testing.T) {
	r, dir := newTestRunner(t, fakeRiak)
	work := filepath.Join(t.TempDir(), "s1")
	reads := writeInput(t, t.TempDir(), "s1.fastq.gz")

	out, err := r.Run(context.Background(), decontam.Input{
		SampleName: "s1",
		Organism:   "SARS-CoV-2",
		Fastq:      reads,
		WorkDir:    work,
	})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(work, "s1.reads.fastq.gz"), out.CleanReads1)
	assert.Empty(t, out.CleanReads2)
	assert.Equal(t, 1000, out.Stats.ReadsIn)
	assert.Equal(t, 950, out.Stats.ReadsOut)
	assert.InDelta(t, 0.05, out.Stats.Fraction, 1e-9)
	assert.FileExists(t, out.CleanReads1)

	args := riakArgs(t, dir)
	assert.Contains(t, args, "--tech ont")
	assert.Contains(t, args, "--enumerate_names")
	assert.Contains(t, args, "--ref_fasta "+filepath.Join(dir, "refs", "MN908947_no_polyA.fasta"))
	assert.Contains(t, args, "--reads1 "+reads)
	assert.Contains(t, args, "--outprefix "+filepath.Join(work, "s1"))
	assert.NotContains(t, args, "--reads2")
}

func TestRunPairedFastq(t *testing.T) {
	r, dir := newTestRunner(t, fakeRiak)
	work := filepath.Join(t.TempDir(), "s1")
	inDir := t.TempDir()
	r1 := writeInput(t, inDir, "s1_1.fastq.gz")
	r2 := writeInput(t, inDir, "s1_2.fastq.gz")

	out, err := r.Run(context.Background(), decontam.Input{
		SampleName: "s1",
		Organism:   "SARS-CoV-2",
		Paired:     true,
		Fastq1:     r1,
		Fastq2:     r2,
		WorkDir:    work,
	})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(work, "s1.reads_1.fastq.gz"), out.CleanReads1)
	assert.Equal(t, filepath.Join(work, "s1.reads_2.fastq.gz"), out.CleanReads2)
	assert.Equal(t, 200, out.Stats.ReadsIn)
	assert.Equal(t, 180, out.Stats.ReadsOut)
	assert.FileExists(t, out.CleanReads1)
	assert.FileExists(t, out.CleanReads2)

	args := riakArgs(t, dir)
	assert.Contains(t, args, "--tech illumina")
	assert.Contains(t, args, "--reads2 "+r2)
}

func TestRunUnpairedBam(t *testing.T) {
	r, dir := newTestRunner(t, fakeRiak)
	work := filepath.Join(t.TempDir(), "s1")
	bam := writeInput(t, t.TempDir(), "s1.bam")

	out, err := r.Run(context.Background(), decontam.Input{
		SampleName: "s1",
		Organism:   "SARS-CoV-2",
		Bam:        bam,
		WorkDir:    work,
	})
	require.NoError(t, err)

	// Conversion writes the intermediate FASTQ which then feeds riak.
	converted := filepath.Join(work, "s1.fastq.gz")
	assert.FileExists(t, converted)
	assert.Contains(t, riakArgs(t, dir), "--reads1 "+converted)
	assert.Equal(t, filepath.Join(work, "s1.reads.fastq.gz"), out.CleanReads1)
}

func TestRunPairedBam(t *testing.T) {
	r, dir := newTestRunner(t, fakeRiak)
	work := filepath.Join(t.TempDir(), "s1")
	bam := writeInput(t, t.TempDir(), "s1.bam")

	out, err := r.Run(context.Background(), decontam.Input{
		SampleName: "s1",
		Organism:   "SARS-CoV-2",
		Paired:     true,
		Bam:        bam,
		WorkDir:    work,
	})
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(work, "s1_1.fastq.gz"))
	assert.FileExists(t, filepath.Join(work, "s1_2.fastq.gz"))
	assert.Contains(t, riakArgs(t, dir), "--tech illumina")
	assert.Equal(t, filepath.Join(work, "s1.reads_1.fastq.gz"), out.CleanReads1)
	assert.Equal(t, filepath.Join(work, "s1.reads_2.fastq.gz"), out.CleanReads2)
}

func TestRunCommandFailure(t *testing.T) {
	r, _ := newTestRunner(t, "echo 'library failure' >&2\nexit 3\n")
	work := filepath.Join(t.TempDir(), "s1")
	reads := writeInput(t, t.TempDir(), "s1.fastq.gz")

	_, err := r.Run(context.Background(), decontam.Input{
		SampleName: "s1",
		Organism:   "SARS-CoV-2",
		Fastq:      reads,
		WorkDir:    work,
	})
	require.Error(t, err)

	var runErr *decontam.RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, 3, runErr.ExitCode)
	assert.Contains(t, runErr.Stderr, "library failure")
	assert.Contains(t, err.Error(), "exited with code 3")
}

func TestRunMissingOutputs(t *testing.T) {
	// Prints plausible counts but never writes the cleaned reads.
	r, _ := newTestRunner(t, "printf '100\\n0\\n90\\n0\\n'\n")
	work := filepath.Join(t.TempDir(), "s1")
	reads := writeInput(t, t.TempDir(), "s1.fastq.gz")

	_, err := r.Run(context.Background(), decontam.Input{
		SampleName: "s1",
		Organism:   "SARS-CoV-2",
		Fastq:      reads,
		WorkDir:    work,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestRunUnknownOrganism(t *testing.T) {
	r, _ := newTestRunner(t, fakeRiak)
	work := filepath.Join(t.TempDir(), "s1")
	reads := writeInput(t, t.TempDir(), "s1.fastq.gz")

	_, err := r.Run(context.Background(), decontam.Input{
		SampleName: "s1",
		Organism:   "Ebola",
		Fastq:      reads,
		WorkDir:    work,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no decontamination reference")
}

func TestRunCancelledContext(t *testing.T) {
	r, _ := newTestRunner(t, fakeRiak)
	work := filepath.Join(t.TempDir(), "s1")
	reads := writeInput(t, t.TempDir(), "s1.fastq.gz")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Run(ctx, decontam.Input{
		SampleName: "s1",
		Organism:   "SARS-CoV-2",
		Fastq:      reads,
		WorkDir:    work,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled), "error should wrap context.Canceled, got %v", err)
}
