package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gpas-dev/gpas-go/internal/manifest"
)

var validateCmd = &cobra.Command{
	Use:   "validate <upload-csv>",
	Short: "Validate an upload CSV",
	Long: `Validate an upload CSV without processing or uploading anything.

Every violation is reported, not just the first. With --token, the tags in
the CSV are additionally checked against the tags your user is authorised
for.

Examples:
  gpas validate samples.csv
  gpas validate --token token.json samples.csv
  gpas validate --json-messages samples.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	token, err := loadToken()
	if err != nil {
		return err
	}
	var permittedTags []string
	if token != nil {
		details, err := newClient(token).UserDetails(ctx)
		if err != nil {
			return err
		}
		permittedTags = details.PermittedTags
	}

	validator, err := manifest.NewValidator(cfg.DataPath)
	if err != nil {
		return err
	}
	m, err := validator.Validate(args[0], permittedTags)
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
		return printJSON(m.Report())
	}
	fmt.Printf("Validation passed: %d samples (%s)\n", len(m.Samples), m.Schema.Name)
	return nil
}
