package cli

import (
	"context"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gpas-dev/gpas-go/internal/batch"
	"github.com/gpas-dev/gpas-go/internal/client"
)

var (
	statusMappingCSV string
	statusGUIDs      string
	statusFormat     string
	statusRename     bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the status of uploaded samples",
	Long: `Check the processing status of uploaded samples, identified either
by the mapping CSV written at upload time or by an explicit list of sample
identifiers.

Examples:
  gpas status --token token.json --mapping-csv b-123.mapping.csv
  gpas status --token token.json --guids 6e024eb1,a01e7bdd --format json
  gpas status --token token.json --mapping-csv b-123.mapping.csv --rename`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusMappingCSV, "mapping-csv", "", "path of mapping CSV generated at upload time")
	statusCmd.Flags().StringVar(&statusGUIDs, "guids", "", "comma-separated list of sample identifiers")
	statusCmd.Flags().StringVar(&statusFormat, "format", "table", "output format (table, csv or json)")
	statusCmd.Flags().BoolVar(&statusRename, "rename", false, "report local sample names (requires --mapping-csv)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	if !validFormat(statusFormat) {
		return usageErrorf("invalid format %q (expected table, csv or json)", statusFormat)
	}
	guids, names, err := resolveSamples(statusMappingCSV, statusGUIDs, statusRename)
	if err != nil {
		return err
	}
	token, err := loadToken()
	if err != nil {
		return err
	}
	if token == nil {
		return usageErrorf("a token is required (--token)")
	}

	ctx := context.Background()
	c := newClient(token)
	if _, err := c.UserDetails(ctx); err != nil {
		return err
	}

	records, err := c.Statuses(ctx, guids)
	if err != nil {
		return err
	}
	for i, r := range records {
		if name := names[r.Sample]; name != "" {
			records[i].Sample = name
		}
		if !slices.Contains(client.GoodStatuses, r.Status) {
			logger.Warn("sample not ready", "sample", records[i].Sample, "status", r.Status)
		}
	}
	return renderRecords(os.Stdout, statusFormat, records)
}

// resolveSamples turns the --mapping-csv / --guids flags into the sample
// identifiers to query. Names maps identifiers to local sample names and is
// nil unless renaming was requested.
func resolveSamples(mappingCSV, guidList string, rename bool) (guids []string, names map[string]string, err error) {
	switch {
	case mappingCSV != "" && guidList != "":
		return nil, nil, usageErrorf("specify either --mapping-csv or --guids, not both")
	case mappingCSV == "" && guidList == "":
		return nil, nil, usageErrorf("neither a mapping CSV nor guids were specified")
	case rename && mappingCSV == "":
		return nil, nil, usageErrorf("--rename requires --mapping-csv")
	}

	if guidList != "" {
		return splitCommaList(guidList), nil, nil
	}
	mapping, err := batch.ParseMappingCSV(mappingCSV)
	if err != nil {
		return nil, nil, err
	}
	if rename {
		names = mapping.Names()
	}
	return mapping.GUIDs(), names, nil
}

// splitCommaList splits a comma-separated flag value, dropping empty parts.
func splitCommaList(value string) []string {
	var parts []string
	for _, p := range strings.Split(strings.Trim(value, ","), ",") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}
