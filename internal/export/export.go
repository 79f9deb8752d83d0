// Package export renders persisted match records as CSV or XLSX for
// download from the API and CLI.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ledgermatch/ledgermatch-backend/internal/infrastructure/storage"
)

var columns = []string{
	"Date",
	"Description",
	"Amount",
	"Type",
	"Check Number",
	"Matched",
	"Feed Transaction ID",
	"Score",
	"Vendor ID",
	"Has Check Image",
	"Attachment Uploaded",
	"Reasons",
}

func recordRow(r *storage.MatchRecord) []string {
	return []string{
		r.TxnDate.Format("2006-01-02"),
		r.Description,
		fmt.Sprintf("%.2f", r.Amount),
		r.TxnType,
		r.CheckNumber,
		fmt.Sprintf("%t", r.Matched),
		r.FeedTransactionID,
		fmt.Sprintf("%.1f", r.Score),
		r.VendorID,
		fmt.Sprintf("%t", r.HasCheckImage),
		fmt.Sprintf("%t", r.AttachmentUploaded),
		strings.Join(r.Reasons, "; "),
	}
}

// WriteCSV writes records as CSV with a header row.
func WriteCSV(w io.Writer, records []*storage.MatchRecord) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range records {
		if err := cw.Write(recordRow(r)); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes records as a single-sheet workbook.
func WriteXLSX(w io.Writer, records []*storage.MatchRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Reconciliation"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write xlsx header: %w", err)
	}

	for i, r := range records {
		row := make([]any, 0, len(columns))
		row = append(row,
			r.TxnDate.Format("2006-01-02"),
			r.Description,
			r.Amount,
			r.TxnType,
			r.CheckNumber,
			r.Matched,
			r.FeedTransactionID,
			r.Score,
			r.VendorID,
			r.HasCheckImage,
			r.AttachmentUploaded,
			strings.Join(r.Reasons, "; "),
		)
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write xlsx row %d: %w", i+2, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
