package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"cargoledger/internal/bootstrap"
	"cargoledger/internal/bootstrap/logging"
	"cargoledger/internal/domain/manifest"
	"cargoledger/internal/errs"
	"cargoledger/internal/usecase/ingest"
)

var masterCmd = &cobra.Command{
	Use:   "master",
	Short: "Inspect, export or reset the master list",
}

type masterItem struct {
	Identifier          string       `json:"identifier" yaml:"identifier"`
	Fields              manifest.Row `json:"fields" yaml:"fields"`
	FirstSeenUploadID   string       `json:"first_seen_upload_id,omitempty" yaml:"first_seen_upload_id,omitempty"`
	LastUpdatedUploadID string       `json:"last_updated_upload_id,omitempty" yaml:"last_updated_upload_id,omitempty"`
	LastUpdateReason    string       `json:"last_update_reason,omitempty" yaml:"last_update_reason,omitempty"`
	UpdatedAt           time.Time    `json:"updated_at" yaml:"updated_at"`
}

var masterListCmd = &cobra.Command{
	Use:   "list",
	Short: "List master entries grouped by their group column",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *ingest.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		input, err := masterListInput(cmd)
		if err != nil {
			return err
		}
		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}
		if err := requireSchema(ctx, app); err != nil {
			return err
		}
		shape, err := svc.Shape(input.Kind)
		if err != nil {
			return err
		}

		entries, err := svc.MasterList(ctx, input)
		if err != nil {
			logging.Error(ctx, "list master entries failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "list master entries")
		}

		items := make([]masterItem, 0, len(entries))
		for _, entry := range entries {
			items = append(items, masterItem{
				Identifier:          entry.Identifier,
				Fields:              entry.Fields,
				FirstSeenUploadID:   derefOrEmpty(entry.FirstSeenUploadID),
				LastUpdatedUploadID: derefOrEmpty(entry.LastUpdatedUploadID),
				LastUpdateReason:    entry.LastUpdateReason,
				UpdatedAt:           entry.UpdatedAt,
			})
		}

		return render(cmd.OutOrStdout(), format, items, func(tw *tabwriter.Writer) error {
			if len(items) == 0 {
				_, err := fmt.Fprintln(tw, "no master entries")
				return errs.Wrap(err, "write master output")
			}
			if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\tLAST UPDATE\tREASON\n", shape.GroupColumn, shape.IdentifierColumn, shape.ReleaseColumn); err != nil {
				return errs.Wrap(err, "write master header")
			}
			for _, item := range items {
				if _, err := fmt.Fprintf(
					tw,
					"%s\t%s\t%s\t%s\t%s\n",
					dash(shape.Group(item.Fields)),
					item.Identifier,
					dash(shape.Release(item.Fields)),
					dash(item.LastUpdatedUploadID),
					dash(item.LastUpdateReason),
				); err != nil {
					return errs.Wrap(err, "write master row")
				}
			}
			return nil
		})
	}),
}

var masterExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the master list to a .xlsx or .csv file",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *ingest.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		input, err := masterListInput(cmd)
		if err != nil {
			return err
		}
		outPath, _ := cmd.Flags().GetString("out")
		if err := requireSchema(ctx, app); err != nil {
			return err
		}

		sheet, err := svc.MasterSheet(ctx, input)
		if err != nil {
			logging.Error(ctx, "build master sheet failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "build master sheet")
		}
		return exportSheet(cmd, outPath, sheet)
	}),
}

var masterResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Remove every master entry of a kind (upload history is kept)",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *ingest.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		kindRaw, _ := cmd.Flags().GetString("kind")
		confirmed, _ := cmd.Flags().GetBool("yes")
		kind, err := manifest.ParseKind(kindRaw)
		if err != nil {
			return err
		}
		if !confirmed {
			return errors.New("refusing to reset the master list without --yes")
		}
		if err := requireSchema(ctx, app); err != nil {
			return err
		}

		removed, err := svc.ResetMasterList(ctx, kind)
		if err != nil {
			logging.Error(ctx, "reset master list failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "reset master list")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "master list reset: kind=%s removed=%d\n", kind, removed); err != nil {
			return errs.Wrap(err, "write reset output")
		}
		return nil
	}),
}

func masterListInput(cmd *cobra.Command) (ingest.MasterListInput, error) {
	kindRaw, _ := cmd.Flags().GetString("kind")
	filterRaw, _ := cmd.Flags().GetString("filter")
	search, _ := cmd.Flags().GetString("search")
	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")

	kind, err := manifest.ParseKind(kindRaw)
	if err != nil {
		return ingest.MasterListInput{}, err
	}
	filter, err := ingest.ParseRowFilter(filterRaw)
	if err != nil {
		return ingest.MasterListInput{}, err
	}
	if limit < 0 || offset < 0 {
		return ingest.MasterListInput{}, errors.New("--limit and --offset must not be negative")
	}
	return ingest.MasterListInput{
		Kind:    kind,
		Release: filter,
		Search:  search,
		Limit:   limit,
		Offset:  offset,
	}, nil
}

func derefOrEmpty(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func init() {
	rootCmd.AddCommand(masterCmd)
	masterCmd.AddCommand(masterListCmd)
	masterCmd.AddCommand(masterExportCmd)
	masterCmd.AddCommand(masterResetCmd)

	for _, c := range []*cobra.Command{masterListCmd, masterExportCmd} {
		c.Flags().String("kind", "", "Manifest kind: ocean|air")
		c.Flags().String("filter", "all", "Release filter: all|with_frl|without_frl")
		c.Flags().String("search", "", "Match identifier or group reference")
		_ = c.MarkFlagRequired("kind")
	}
	masterListCmd.Flags().Int("limit", 0, "Max entries to show (0: all)")
	masterListCmd.Flags().Int("offset", 0, "Entries to skip")
	masterListCmd.Flags().StringP("output", "o", "table", "Output format: table|json|yaml")

	masterExportCmd.Flags().String("out", "", "Output file path (.xlsx or .csv)")
	_ = masterExportCmd.MarkFlagRequired("out")

	masterResetCmd.Flags().String("kind", "", "Manifest kind: ocean|air")
	masterResetCmd.Flags().Bool("yes", false, "Confirm the reset")
	_ = masterResetCmd.MarkFlagRequired("kind")
}
