package export

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	summarySheet   = "Summary"
	receiptsSheet  = "Receipts"
	breakdownSheet = "Category Breakdown"
)

// ExportReceiptsXLSX returns a workbook with Summary, Receipts and Category
// Breakdown sheets for the user's processed receipts in w.
func (s *Service) ExportReceiptsXLSX(ctx context.Context, userID string, w Window) ([]byte, error) {
	start := time.Now()
	recs, err := s.load(ctx, userID, w)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}
	for _, name := range []string{receiptsSheet, breakdownSheet} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("xlsx sheet: %w", err)
		}
	}
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"E0E0E0"}},
	})
	if err != nil {
		return nil, fmt.Errorf("xlsx style: %w", err)
	}

	all, byCategory := summarize(recs)

	// Summary
	rows := [][]any{
		{"Metric", "Value"},
		{"Total Receipts", all.count},
		{"Total Spent (RM)", all.spent.StringFixed(2)},
		{"Tax Eligible Receipts", all.eligible},
		{"Tax Eligible Amount (RM)", all.eligibleAmt.StringFixed(2)},
		{"Average per Receipt (RM)", all.average().StringFixed(2)},
	}
	if err := writeRows(f, summarySheet, rows, header, len(rows[0])); err != nil {
		return nil, err
	}
	_ = f.SetColWidth(summarySheet, "A", "A", 30)
	_ = f.SetColWidth(summarySheet, "B", "B", 20)

	// Receipts
	rows = rows[:0]
	rows = append(rows, toAny(receiptHeaders))
	for _, r := range recs {
		row := toAny(receiptRow(r))
		row[2] = r.Amount.InexactFloat64()
		rows = append(rows, row)
	}
	if err := writeRows(f, receiptsSheet, rows, header, len(receiptHeaders)); err != nil {
		return nil, err
	}
	_ = f.SetColWidth(receiptsSheet, "A", "A", 12) // date
	_ = f.SetColWidth(receiptsSheet, "B", "B", 30) // merchant
	_ = f.SetColWidth(receiptsSheet, "C", "G", 15)
	_ = f.SetColWidth(receiptsSheet, "H", "H", 40) // items

	// Category Breakdown
	rows = [][]any{{"Category", "Count", "Total (RM)", "Tax Eligible (RM)"}}
	for _, c := range byCategory {
		rows = append(rows, []any{string(c.category), c.count, c.spent.StringFixed(2), c.eligibleAmt.StringFixed(2)})
	}
	if err := writeRows(f, breakdownSheet, rows, header, 4); err != nil {
		return nil, err
	}
	_ = f.SetColWidth(breakdownSheet, "A", "A", 20)
	_ = f.SetColWidth(breakdownSheet, "B", "D", 18)

	f.SetActiveSheet(0)
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"user_id", userID,
		"rows", len(recs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// writeRows writes rows from A1 down and styles the first one as a header.
func writeRows(f *excelize.File, sheet string, rows [][]any, headerStyle, cols int) error {
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("xlsx %s row %d: %w", sheet, i+1, err)
		}
	}
	last, _ := excelize.CoordinatesToCellName(cols, 1)
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("xlsx %s header style: %w", sheet, err)
	}
	return nil
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
