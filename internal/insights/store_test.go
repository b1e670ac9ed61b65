package insights

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/relief-tracker/constants"
	"github.com/joseph-ayodele/relief-tracker/internal/entity"
	"github.com/joseph-ayodele/relief-tracker/internal/repository"
)

func TestGenerate_SQLiteCountsPendingUploads(t *testing.T) {
	ctx := context.Background()
	db, err := repository.OpenSQLite(ctx, ":memory:", quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(quietLogger()) })
	require.NoError(t, repository.Migrate(ctx, db, quietLogger()))

	receipts := repository.NewReceiptRepository(db, quietLogger())
	summaries := repository.NewSummaryRepository(db, quietLogger())

	done := processed(constants.Medical, "120.00", "2024-03-05")
	done.Source = constants.SourceUpload
	done.StorageRef = "/inbox/u1/a.jpg"
	done.CreatedAt = time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC)
	_, err = receipts.Create(ctx, done)
	require.NoError(t, err)

	for _, created := range []time.Time{
		time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 28, 12, 0, 0, 0, time.UTC), // previous month
		time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),   // next month
	} {
		_, err := receipts.Create(ctx, &entity.Receipt{
			UserID:     "u1",
			Source:     constants.SourceUpload,
			StorageRef: "/inbox/u1/" + created.Format("0102") + ".jpg",
			CreatedAt:  created,
		})
		require.NoError(t, err)
	}

	gen := NewGenerator(receipts, summaries, quietLogger(), WithClock(func() time.Time { return midMarch }))
	doc, err := gen.GenerateCurrent(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, doc)

	assert.Equal(t, 2, doc.Summary.TotalReceipts)
	assert.True(t, doc.Summary.TotalSpent.Equal(dec("120")))

	var processing *entity.Alert
	for i := range doc.Alerts {
		if doc.Alerts[i].Type == entity.AlertProcessing {
			processing = &doc.Alerts[i]
		}
	}
	require.NotNil(t, processing)
	assert.Equal(t, 1, processing.Count)
}
