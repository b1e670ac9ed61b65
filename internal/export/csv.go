package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"time"
)

// ExportReceiptsCSV writes one row per processed receipt, ordered by date.
func (s *Service) ExportReceiptsCSV(ctx context.Context, userID string, w Window) ([]byte, error) {
	start := time.Now()
	recs, err := s.load(ctx, userID, w)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(receiptHeaders); err != nil {
		return nil, fmt.Errorf("csv write: %w", err)
	}
	for _, r := range recs {
		if err := cw.Write(receiptRow(r)); err != nil {
			return nil, fmt.Errorf("csv write: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, fmt.Errorf("csv flush: %w", err)
	}

	s.logger.Info("export.csv.ok",
		"user_id", userID,
		"rows", len(recs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}
