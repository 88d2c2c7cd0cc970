package cmd

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"cargoledger/internal/bootstrap"
	"cargoledger/internal/bootstrap/logging"
	"cargoledger/internal/domain/manifest"
	"cargoledger/internal/errs"
	"cargoledger/internal/infrastructure/spreadsheet"
	"cargoledger/internal/usecase/ingest"
)

var uploadsCmd = &cobra.Command{
	Use:   "uploads",
	Short: "Inspect and manage upload history",
}

type uploadItem struct {
	ID         string                   `json:"id" yaml:"id"`
	Kind       string                   `json:"kind" yaml:"kind"`
	Filename   string                   `json:"filename" yaml:"filename"`
	RowCount   int                      `json:"row_count" yaml:"row_count"`
	UploadDate time.Time                `json:"upload_date" yaml:"upload_date"`
	Comparison ingest.ComparisonSummary `json:"comparison" yaml:"comparison"`
}

var uploadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List uploads of a kind, newest first",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *ingest.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		kindRaw, _ := cmd.Flags().GetString("kind")
		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}
		kind, err := manifest.ParseKind(kindRaw)
		if err != nil {
			return err
		}
		if err := requireSchema(ctx, app); err != nil {
			return err
		}

		summaries, err := svc.ListUploads(ctx, kind)
		if err != nil {
			logging.Error(ctx, "list uploads failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "list uploads")
		}

		items := make([]uploadItem, 0, len(summaries))
		for _, s := range summaries {
			items = append(items, uploadItem{
				ID:         s.Upload.ID,
				Kind:       string(s.Upload.Kind),
				Filename:   s.Upload.Filename,
				RowCount:   s.Upload.RowCount,
				UploadDate: s.Upload.UploadDate,
				Comparison: s.Summary,
			})
		}

		return render(cmd.OutOrStdout(), format, items, func(tw *tabwriter.Writer) error {
			if len(items) == 0 {
				_, err := fmt.Fprintln(tw, "no uploads")
				return errs.Wrap(err, "write uploads output")
			}
			if _, err := fmt.Fprintln(tw, "ID\tUPLOAD DATE\tFILE\tROWS\tNEW\tREMOVED\tRELEASED"); err != nil {
				return errs.Wrap(err, "write uploads header")
			}
			for _, item := range items {
				if _, err := fmt.Fprintf(
					tw,
					"%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
					item.ID,
					item.UploadDate.Format(time.RFC3339),
					item.Filename,
					item.RowCount,
					item.Comparison.NewItems,
					item.Comparison.RemovedItems,
					item.Comparison.NewlyReleased,
				); err != nil {
					return errs.Wrap(err, "write uploads row")
				}
			}
			return nil
		})
	}),
}

var uploadsRowsCmd = &cobra.Command{
	Use:   "rows",
	Short: "Show or export the rows of one upload",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *ingest.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		uploadID, _ := cmd.Flags().GetString("id")
		filterRaw, _ := cmd.Flags().GetString("filter")
		exportPath, _ := cmd.Flags().GetString("export")

		filter, err := ingest.ParseRowFilter(filterRaw)
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

		sheet, err := svc.ReportSheet(ctx, uploadID, filter)
		if err != nil {
			logging.Error(ctx, "load upload rows failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "load upload rows")
		}
		if strings.TrimSpace(exportPath) != "" {
			return exportSheet(cmd, exportPath, sheet)
		}
		return renderSheet(cmd, format, sheet)
	}),
}

type comparisonReport struct {
	Summary       ingest.ComparisonSummary `json:"summary" yaml:"summary"`
	NewItems      []manifest.Row           `json:"new_items" yaml:"new_items"`
	RemovedItems  []manifest.Row           `json:"removed_items" yaml:"removed_items"`
	NewlyReleased []manifest.Row           `json:"newly_released" yaml:"newly_released"`
}

var uploadsCompareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare an upload with the previous upload of its kind",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *ingest.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		uploadID, _ := cmd.Flags().GetString("id")
		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}
		if err := requireSchema(ctx, app); err != nil {
			return err
		}

		comparison, err := svc.Compare(ctx, uploadID)
		if err != nil {
			logging.Error(ctx, "compare upload failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "compare upload")
		}
		shape, err := svc.Shape(comparison.Upload.Kind)
		if err != nil {
			return err
		}

		report := comparisonReport{
			Summary:       comparison.Summary,
			NewItems:      comparison.NewItems,
			RemovedItems:  comparison.RemovedItems,
			NewlyReleased: comparison.NewlyReleased,
		}
		return render(cmd.OutOrStdout(), format, report, func(tw *tabwriter.Writer) error {
			if _, err := fmt.Fprintf(tw, "upload\t%s\nprevious\t%s\n", report.Summary.UploadID, dash(report.Summary.PreviousUploadID)); err != nil {
				return errs.Wrap(err, "write compare output")
			}
			sections := []struct {
				name string
				rows []manifest.Row
			}{
				{"new", report.NewItems},
				{"removed", report.RemovedItems},
				{"newly released", report.NewlyReleased},
			}
			for _, section := range sections {
				if _, err := fmt.Fprintf(tw, "\n%s (%d)\n", section.name, len(section.rows)); err != nil {
					return errs.Wrap(err, "write compare section")
				}
				for _, row := range section.rows {
					if _, err := fmt.Fprintf(tw, "  %s\t%s\t%s\n", shape.Identifier(row), dash(shape.Group(row)), dash(shape.Release(row))); err != nil {
						return errs.Wrap(err, "write compare row")
					}
				}
			}
			return nil
		})
	}),
}

var uploadsDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete an upload and its rows",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *ingest.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		uploadID, _ := cmd.Flags().GetString("id")
		policyRaw, _ := cmd.Flags().GetString("orphans")
		policy, err := ingest.ParseOrphanPolicy(policyRaw)
		if err != nil {
			return err
		}
		if err := requireSchema(ctx, app); err != nil {
			return err
		}

		result, err := svc.DeleteUpload(ctx, ingest.DeleteUploadInput{UploadID: uploadID, Policy: policy})
		if err != nil {
			logging.Error(ctx, "delete upload failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "delete upload")
		}

		if _, err := fmt.Fprintf(
			cmd.OutOrStdout(),
			"deleted upload: %s rows=%d orphans=%s entries_deleted=%d entries_detached=%d\n",
			result.Upload.ID,
			result.RowsDeleted,
			result.Policy,
			result.EntriesDeleted,
			result.EntriesDetached,
		); err != nil {
			return errs.Wrap(err, "write delete output")
		}
		return nil
	}),
}

func renderSheet(cmd *cobra.Command, format string, sheet ingest.Sheet) error {
	records := make([]map[string]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		record := make(map[string]string, len(sheet.Header))
		for idx, column := range sheet.Header {
			if idx < len(row) && row[idx] != "" {
				record[column] = row[idx]
			}
		}
		records = append(records, record)
	}

	return render(cmd.OutOrStdout(), format, records, func(tw *tabwriter.Writer) error {
		if _, err := fmt.Fprintln(tw, strings.Join(sheet.Header, "\t")); err != nil {
			return errs.Wrap(err, "write sheet header")
		}
		for _, row := range sheet.Rows {
			if _, err := fmt.Fprintln(tw, strings.Join(row, "\t")); err != nil {
				return errs.Wrap(err, "write sheet row")
			}
		}
		return nil
	})
}

// exportSheet writes sheet to path, as XLSX when the extension says so and
// CSV otherwise.
func exportSheet(cmd *cobra.Command, path string, sheet ingest.Sheet) error {
	writer, closeFn, err := resolveOutputWriter(cmd, path)
	if err != nil {
		return err
	}

	out := spreadsheet.Sheet{Name: sheet.Name, Header: sheet.Header, Rows: sheet.Rows}
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		err = spreadsheet.WriteXLSX(writer, out)
	} else {
		err = spreadsheet.WriteCSV(writer, out)
	}
	if err != nil {
		_ = closeFn()
		return errs.Wrapf(err, "export %s", path)
	}
	if err := closeFn(); err != nil {
		return errs.Wrapf(err, "close %s", path)
	}

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "exported %d rows to %s\n", len(sheet.Rows), path)
	return errs.Wrap(err, "write export output")
}

func init() {
	rootCmd.AddCommand(uploadsCmd)
	uploadsCmd.AddCommand(uploadsListCmd)
	uploadsCmd.AddCommand(uploadsRowsCmd)
	uploadsCmd.AddCommand(uploadsCompareCmd)
	uploadsCmd.AddCommand(uploadsDeleteCmd)

	uploadsListCmd.Flags().String("kind", "", "Manifest kind: ocean|air")
	uploadsListCmd.Flags().StringP("output", "o", "table", "Output format: table|json|yaml")
	_ = uploadsListCmd.MarkFlagRequired("kind")

	uploadsRowsCmd.Flags().String("id", "", "Upload id")
	uploadsRowsCmd.Flags().String("filter", "all", "Row filter: all|with_frl|without_frl")
	uploadsRowsCmd.Flags().String("export", "", "Write rows to a .csv or .xlsx file instead of stdout")
	uploadsRowsCmd.Flags().StringP("output", "o", "table", "Output format: table|json|yaml")
	_ = uploadsRowsCmd.MarkFlagRequired("id")

	uploadsCompareCmd.Flags().String("id", "", "Upload id")
	uploadsCompareCmd.Flags().StringP("output", "o", "table", "Output format: table|json|yaml")
	_ = uploadsCompareCmd.MarkFlagRequired("id")

	uploadsDeleteCmd.Flags().String("id", "", "Upload id")
	uploadsDeleteCmd.Flags().String("orphans", "", "Orphan policy for entries first seen in the upload: null|delete (default: config)")
	_ = uploadsDeleteCmd.MarkFlagRequired("id")
}
