package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"cargoledger/internal/bootstrap"
	"cargoledger/internal/bootstrap/logging"
	"cargoledger/internal/domain/manifest"
	"cargoledger/internal/errs"
	"cargoledger/internal/usecase/ingest"
)

type ingestReport struct {
	UploadID      string    `json:"upload_id" yaml:"upload_id"`
	Kind          string    `json:"kind" yaml:"kind"`
	Filename      string    `json:"filename" yaml:"filename"`
	UploadDate    time.Time `json:"upload_date" yaml:"upload_date"`
	RowCount      int       `json:"row_count" yaml:"row_count"`
	ItemsAdded    int       `json:"items_added" yaml:"items_added"`
	ItemsUpdated  int       `json:"items_updated" yaml:"items_updated"`
	SkippedRows   int       `json:"skipped_rows" yaml:"skipped_rows"`
	PreviousID    string    `json:"previous_upload_id,omitempty" yaml:"previous_upload_id,omitempty"`
	NewItems      int       `json:"new_items" yaml:"new_items"`
	RemovedItems  int       `json:"removed_items" yaml:"removed_items"`
	NewlyReleased int       `json:"newly_released" yaml:"newly_released"`
}

func newIngestReport(result ingest.IngestResult) ingestReport {
	return ingestReport{
		UploadID:      result.Upload.ID,
		Kind:          string(result.Upload.Kind),
		Filename:      result.Upload.Filename,
		UploadDate:    result.Upload.UploadDate,
		RowCount:      result.Upload.RowCount,
		ItemsAdded:    result.ItemsAdded,
		ItemsUpdated:  result.ItemsUpdated,
		SkippedRows:   result.SkippedRows,
		PreviousID:    result.Comparison.PreviousUploadID,
		NewItems:      result.Comparison.NewItems,
		RemovedItems:  result.Comparison.RemovedItems,
		NewlyReleased: result.Comparison.NewlyReleased,
	}
}

func (r ingestReport) writeTable(tw *tabwriter.Writer) error {
	rows := [][2]string{
		{"upload", r.UploadID},
		{"kind", r.Kind},
		{"file", r.Filename},
		{"upload_date", r.UploadDate.Format(time.RFC3339)},
		{"rows", fmt.Sprint(r.RowCount)},
		{"items_added", fmt.Sprint(r.ItemsAdded)},
		{"items_updated", fmt.Sprint(r.ItemsUpdated)},
		{"skipped_rows", fmt.Sprint(r.SkippedRows)},
		{"previous_upload", dash(r.PreviousID)},
		{"new_items", fmt.Sprint(r.NewItems)},
		{"removed_items", fmt.Sprint(r.RemovedItems)},
		{"newly_released", fmt.Sprint(r.NewlyReleased)},
	}
	for _, row := range rows {
		if _, err := fmt.Fprintf(tw, "%s\t%s\n", row[0], row[1]); err != nil {
			return errs.Wrap(err, "write ingest output")
		}
	}
	return nil
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest a CSV or XLSX manifest into the master list",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *ingest.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		kindRaw, _ := cmd.Flags().GetString("kind")
		filePath, _ := cmd.Flags().GetString("file")
		uploadDateRaw, _ := cmd.Flags().GetString("upload-date")

		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}
		kind, err := manifest.ParseKind(kindRaw)
		if err != nil {
			return err
		}
		uploadDate, err := parseUploadDate(uploadDateRaw)
		if err != nil {
			return err
		}
		if err := requireSchema(ctx, app); err != nil {
			return err
		}

		payload, err := os.ReadFile(filePath)
		if err != nil {
			return errs.Wrapf(err, "read manifest %q", filePath)
		}

		result, err := svc.IngestFile(ctx, ingest.IngestFileInput{
			Kind:       kind,
			Filename:   filepath.Base(filePath),
			Payload:    payload,
			UploadDate: uploadDate,
		})
		var partial *ingest.PartialWriteError
		if err != nil && !errors.As(err, &partial) {
			logging.Error(ctx, "ingest manifest failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "ingest manifest")
		}

		report := newIngestReport(result)
		if renderErr := render(cmd.OutOrStdout(), format, report, report.writeTable); renderErr != nil {
			return renderErr
		}
		if partial != nil {
			return errs.Wrap(err, "ingest manifest")
		}
		return nil
	}),
}

func parseUploadDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, time.DateOnly} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid --upload-date %q: expected RFC3339 or YYYY-MM-DD", raw)
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().String("kind", "", "Manifest kind: ocean|air")
	ingestCmd.Flags().String("file", "", "Path to the CSV or XLSX manifest")
	ingestCmd.Flags().String("upload-date", "", "Upload date (RFC3339 or YYYY-MM-DD, default: now)")
	ingestCmd.Flags().StringP("output", "o", "table", "Output format: table|json|yaml")
	_ = ingestCmd.MarkFlagRequired("kind")
	_ = ingestCmd.MarkFlagRequired("file")
}
