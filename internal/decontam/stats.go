package decontam

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Stats summarises one decontamination run.
type Stats struct {
	// ReadsIn and ReadsOut are the read counts before and after
	// host read removal, summed over both mates for paired input.
	ReadsIn  int
	ReadsOut int
	// Fraction is the share of reads removed, rounded to 4 decimal places.
	Fraction float64
}

// ParseStats reads kept and discarded read counts from the decontamination
// binary's stdout. The binary prints one count per line after a tab: input
// reads (one line per mate) followed by kept reads (one line per mate);
// unpaired runs print zeros for the second mate.
func ParseStats(stdout string) (Stats, error) {
	var counts []int
	for _, line := range strings.Split(strings.TrimSpace(stdout), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		value := line
		if i := strings.LastIndex(line, "\t"); i >= 0 {
			value = line[i+1:]
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			return Stats{}, fmt.Errorf("parsing decontamination stats: unexpected line %q", line)
		}
		counts = append(counts, n)
	}
	if len(counts) < 4 {
		return Stats{}, fmt.Errorf("parsing decontamination stats: expected 4 counts, got %d", len(counts))
	}

	in := counts[0] + counts[1]
	out := counts[2] + counts[3]
	if in == 0 || out > in {
		return Stats{}, fmt.Errorf("parsing decontamination stats: implausible counts in=%d out=%d", in, out)
	}
	return Stats{
		ReadsIn:  in,
		ReadsOut: out,
		Fraction: math.Round(float64(in-out)/float64(in)*10000) / 10000,
	}, nil
}
