package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gpas-dev/gpas-go/internal/client"
)

var (
	downloadMappingCSV string
	downloadGUIDs      string
	downloadFileTypes  string
	downloadOutDir     string
	downloadRename     bool
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download analysis outputs for uploaded samples",
	Long: `Download analysis outputs for samples identified either by the
mapping CSV written at upload time or by an explicit list of sample
identifiers.

Outputs that are not ready yet are skipped with a warning. With --rename,
files are saved under their local sample names and FASTA headers are
rewritten to include them.

Examples:
  gpas download --token token.json --mapping-csv b-123.mapping.csv
  gpas download --token token.json --guids 6e024eb1 --file-types fasta,vcf
  gpas download --token token.json --mapping-csv b-123.mapping.csv --rename`,
	RunE: runDownload,
}

func init() {
	downloadCmd.Flags().StringVar(&downloadMappingCSV, "mapping-csv", "", "path of mapping CSV generated at upload time")
	downloadCmd.Flags().StringVar(&downloadGUIDs, "guids", "", "comma-separated list of sample identifiers")
	downloadCmd.Flags().StringVar(&downloadFileTypes, "file-types", "fasta", "comma-separated list of outputs to download (json, fasta, bam, vcf)")
	downloadCmd.Flags().StringVar(&downloadOutDir, "out-dir", ".", "path of directory in which to save downloads")
	downloadCmd.Flags().BoolVar(&downloadRename, "rename", false, "name downloads after local sample names (requires --mapping-csv)")
}

func runDownload(cmd *cobra.Command, args []string) error {
	guids, names, err := resolveSamples(downloadMappingCSV, downloadGUIDs, downloadRename)
	if err != nil {
		return err
	}
	fileTypes := splitCommaList(downloadFileTypes)
	if len(fileTypes) == 0 {
		return usageErrorf("no file types specified")
	}
	for _, t := range fileTypes {
		if !client.ValidFileType(t) {
			return usageErrorf("unexpected file type %q (expected %s)", t, strings.Join(client.FileTypes(), ", "))
		}
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

	return c.Download(ctx, client.DownloadRequest{
		GUIDs:     guids,
		Names:     names,
		FileTypes: fileTypes,
		OutDir:    downloadOutDir,
	})
}
