// Package export renders snapshot history as CSV and XLSX downloads for
// offline review, matching the monitoring column layout.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Sapang3/vision-crowd/internal/contracts"
)

var columns = []string{
	"timestamp", "zone", "phase",
	"CAI", "CDI", "THI", "TI", "EI",
	"ATI", "SNI", "PCI", "BI",
	"Risk", "RiskExtended", "Alert", "Degraded",
}

// WriteCSV streams the snapshots as CSV, oldest first.
func WriteCSV(w io.Writer, snapshots []contracts.RiskSnapshot) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, s := range snapshots {
		if err := cw.Write(row(s)); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// BuildWorkbook renders the snapshots into a single-sheet XLSX workbook.
// The caller owns closing the file.
func BuildWorkbook(snapshots []contracts.RiskSnapshot) (*excelize.File, error) {
	f := excelize.NewFile()
	const sheet = "History"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header row: %w", err)
	}

	for i, s := range snapshots {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("row coordinates: %w", err)
		}
		values := row(s)
		rowValues := make([]any, len(values))
		for j, v := range values {
			rowValues[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &rowValues); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	return f, nil
}

func row(s contracts.RiskSnapshot) []string {
	return []string{
		s.Timestamp.UTC().Format(time.RFC3339),
		s.Zone,
		s.Phase,
		f3(s.CAI), f3(s.CDI), f3(s.THI), f3(s.TI), f3(s.EI),
		f3(s.ATI), f3(s.SNI), f3(s.PCI), f3(s.BI),
		f3(s.PhysicalRisk), f3(s.ExtendedRisk),
		s.Alert.String(),
		strconv.FormatBool(s.Degraded),
	}
}

func f3(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
