package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/gpas-dev/gpas-go/internal/client"
)

// validFormat reports whether name is a supported output format.
func validFormat(name string) bool {
	switch name {
	case "table", "csv", "json":
		return true
	}
	return false
}

// renderRecords writes status records in the requested format.
func renderRecords(w io.Writer, format string, records []client.StatusRecord) error {
	switch format {
	case "json":
		b, err := json.MarshalIndent(records, "", "    ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(b))
		return err

	case "csv":
		cw := csv.NewWriter(w)
		if err := cw.Write([]string{"sample", "status"}); err != nil {
			return err
		}
		for _, r := range records {
			if err := cw.Write([]string{r.Sample, r.Status}); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()

	default: // table
		width := len("sample")
		for _, r := range records {
			if len(r.Sample) > width {
				width = len(r.Sample)
			}
		}
		if _, err := fmt.Fprintf(w, "%-*s  %s\n", width, "sample", "status"); err != nil {
			return err
		}
		for _, r := range records {
			if _, err := fmt.Fprintf(w, "%-*s  %s\n", width, r.Sample, r.Status); err != nil {
				return err
			}
		}
		return nil
	}
}

// printJSON writes v to stdout as indented JSON, matching the shape of the
// progress messages.
func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, string(b))
	return err
}
