// Package export writes the result set to an XLSX workbook for audit.
package export

import (
	"fmt"
	"path/filepath"
	"slices"

	"github.com/xuri/excelize/v2"

	"github.com/MeKo-Tech/bibwatch/internal/result"
)

// Sheet names.
const (
	ResultsSheet = "Results"
	NumbersSheet = "Numbers"
)

// Options filters the exported results.
type Options struct {
	// States keeps only results in these states; empty keeps all.
	States []result.State
}

// Keep reports whether s passes the state filter.
func (o Options) Keep(s result.Snapshot) bool {
	return len(o.States) == 0 || slices.Contains(o.States, s.State)
}

// XLSX renders snaps into a workbook with one row per result and one row per
// confirmed number.
func XLSX(snaps []result.Snapshot, opts Options) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	// A new file starts with "Sheet1"; rename it instead of adding a sheet.
	if err := f.SetSheetName("Sheet1", ResultsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(NumbersSheet); err != nil {
		return nil, err
	}

	setRow := func(sheet string, row int, values ...any) error {
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		return f.SetSheetRow(sheet, cell, &values)
	}

	if err := setRow(ResultsSheet, 1, "Identity", "File", "Category", "State", "Numbers", "Capture Time"); err != nil {
		return nil, err
	}
	if err := setRow(NumbersSheet, 1, "Number", "Timestamp", "Category", "File"); err != nil {
		return nil, err
	}

	resRow, numRow := 2, 2
	for _, s := range snaps {
		if !opts.Keep(s) {
			continue
		}
		captured := ""
		if !s.CaptureTime.IsZero() {
			captured = s.CaptureTime.UTC().Format(result.UploadTimeLayout)
		}
		err := setRow(ResultsSheet, resRow,
			s.Identity, filepath.Base(s.Identity), s.Category.Name(), s.State.String(),
			result.FormatNumbers(s.Numbers), captured)
		if err != nil {
			return nil, fmt.Errorf("write result %s: %w", s.Identity, err)
		}
		resRow++

		for _, n := range s.Numbers {
			if err := setRow(NumbersSheet, numRow, n, captured, s.Category.Name(), filepath.Base(s.Identity)); err != nil {
				return nil, fmt.Errorf("write number %d: %w", n, err)
			}
			numRow++
		}
	}

	_ = f.SetColWidth(ResultsSheet, "A", "A", 60)
	_ = f.SetColWidth(ResultsSheet, "B", "B", 28)
	_ = f.SetColWidth(ResultsSheet, "C", "D", 20)
	_ = f.SetColWidth(ResultsSheet, "E", "F", 22)
	_ = f.SetColWidth(NumbersSheet, "B", "B", 22)
	_ = f.SetColWidth(NumbersSheet, "D", "D", 28)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}
