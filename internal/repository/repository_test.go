package repository

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/relief-tracker/constants"
	"github.com/joseph-ayodele/relief-tracker/internal/common"
	"github.com/joseph-ayodele/relief-tracker/internal/entity"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()
	db, err := OpenSQLite(ctx, ":memory:", quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(quietLogger()) })
	require.NoError(t, Migrate(ctx, db, quietLogger()))
	return db
}

func date(s string) time.Time {
	t, err := time.Parse(entity.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func seed(t *testing.T, repo ReceiptRepository, userID, merchant, amount, day string) *entity.Receipt {
	t.Helper()
	rec, err := repo.Create(context.Background(), &entity.Receipt{
		UserID:     userID,
		Source:     constants.SourceUpload,
		StorageRef: "/tmp/" + uuid.NewString() + ".jpg",
		Merchant:   merchant,
		Amount:     dec(amount),
		TxDate:     date(day),
	})
	require.NoError(t, err)
	return rec
}

func TestMigrate_Idempotent(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, Migrate(context.Background(), db, quietLogger()))

	v, err := schemaVersion(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, migrations[len(migrations)-1].Version, v)
}

func TestReceipt_CreateGet(t *testing.T) {
	repo := NewReceiptRepository(openTestDB(t), quietLogger())
	ctx := context.Background()

	created, err := repo.Create(ctx, &entity.Receipt{
		UserID:      "u1",
		Source:      constants.SourceForwarded,
		StorageRef:  "s3://bucket/r.jpg",
		ContentHash: "abc",
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, created.ID)

	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, constants.SourceForwarded, got.Source)
	assert.Equal(t, "abc", got.ContentHash)
	assert.True(t, got.TxDate.IsZero())
	assert.Empty(t, got.Items)
	assert.Nil(t, got.ProcessedAt)
	assert.Equal(t, constants.StatusPending, got.Status())
	assert.Equal(t, constants.Others, got.EffectiveCategory())

	_, err = repo.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestReceipt_ApplyProcessingAndFail(t *testing.T) {
	repo := NewReceiptRepository(openTestDB(t), quietLogger())
	ctx := context.Background()
	rec := seed(t, repo, "u1", "", "0", "2024-03-01")

	at := time.Date(2024, 3, 12, 8, 30, 0, 0, time.UTC)
	require.NoError(t, repo.ApplyProcessing(ctx, rec.ID, entity.ProcessingUpdate{
		Merchant:          "ABC CLINIC",
		Amount:            dec("200.00"),
		TxDate:            date("2024-03-05"),
		PaymentMethod:     "CASH",
		Items:             []entity.LineItem{{Name: "Consultation", Price: dec("200.00")}},
		FullText:          "ABC CLINIC\nConsultation 200.00",
		PredictedCategory: constants.Medical,
		Confidence:        0.7,
		TaxEligible:       true,
		Reasoning:         "keyword",
		Anomalies: []entity.AnomalyFinding{{
			Type: constants.AnomalyZeroAmount, Severity: constants.SeverityHigh, Message: "x",
		}},
		ProcessedAt: at,
	}))

	got, err := repo.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "ABC CLINIC", got.Merchant)
	assert.True(t, got.Amount.Equal(dec("200")))
	assert.Equal(t, "2024-03-05", got.TxDate.Format(entity.DateLayout))
	assert.Equal(t, constants.Medical, got.PredictedCategory)
	assert.InDelta(t, 0.7, got.Confidence, 1e-9)
	assert.True(t, got.TaxEligible)
	require.Len(t, got.Items, 1)
	assert.True(t, got.Items[0].Price.Equal(dec("200")))
	require.Len(t, got.Anomalies, 1)
	require.NotNil(t, got.ProcessedAt)
	assert.True(t, got.ProcessedAt.Equal(at))
	assert.Equal(t, constants.StatusProcessed, got.Status())

	require.NoError(t, repo.MarkFailed(ctx, rec.ID, "unreadable image", at))
	got, err = repo.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusFailed, got.Status())
	assert.Equal(t, "unreadable image", got.ProcessingError)
	assert.False(t, got.TaxEligible)

	found, err := repo.Find(ctx, entity.ReceiptFilter{UserID: "u1", ProcessedOnly: true})
	require.NoError(t, err)
	assert.Empty(t, found)

	assert.ErrorIs(t, repo.MarkFailed(ctx, uuid.New(), "x", at), common.ErrNotFound)
}

func TestReceipt_Find(t *testing.T) {
	repo := NewReceiptRepository(openTestDB(t), quietLogger())
	ctx := context.Background()

	a := seed(t, repo, "u1", "ABC CLINIC", "200.00", "2024-03-05")
	b := seed(t, repo, "u1", "ABC CLINIC", "200.00", "2024-03-05")
	c := seed(t, repo, "u1", "ABC CLINIC", "15.50", "2024-03-05")
	d := seed(t, repo, "u1", "Guardian", "200.00", "2024-03-20")
	seed(t, repo, "u2", "ABC CLINIC", "200.00", "2024-03-05")

	day := date("2024-03-05")
	merchant := "ABC CLINIC"
	amount := dec("200")

	got, err := repo.Find(ctx, entity.ReceiptFilter{
		UserID: "u1", From: &day, To: &day, Merchant: &merchant, Amount: &amount, ExcludeID: a.ID, Limit: 5,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, b.ID, got[0].ID)

	from, to := date("2024-03-01"), date("2024-03-31")
	got, err = repo.Find(ctx, entity.ReceiptFilter{UserID: "u1", From: &from, To: &to})
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, d.ID, got[3].ID)
	assert.ElementsMatch(t, []uuid.UUID{a.ID, b.ID, c.ID}, []uuid.UUID{got[0].ID, got[1].ID, got[2].ID})

	got, err = repo.Find(ctx, entity.ReceiptFilter{UserID: "u1", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = repo.Find(ctx, entity.ReceiptFilter{UserID: "u1", TaxEligibleOnly: true})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReceipt_FindByContentHash(t *testing.T) {
	repo := NewReceiptRepository(openTestDB(t), quietLogger())
	ctx := context.Background()
	_, err := repo.Create(ctx, &entity.Receipt{UserID: "u1", Source: constants.SourceUpload, StorageRef: "a", ContentHash: "h1"})
	require.NoError(t, err)

	got, err := repo.Find(ctx, entity.ReceiptFilter{UserID: "u1", ContentHash: "h1", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = repo.Find(ctx, entity.ReceiptFilter{UserID: "u2", ContentHash: "h1", Limit: 1})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReceipt_SetManualCategory(t *testing.T) {
	repo := NewReceiptRepository(openTestDB(t), quietLogger())
	ctx := context.Background()
	rec := seed(t, repo, "u1", "MPH", "50.00", "2024-01-10")

	got, err := repo.SetManualCategory(ctx, rec.ID, constants.Books)
	require.NoError(t, err)
	assert.Equal(t, constants.Books, got.EffectiveCategory())
	assert.True(t, got.TaxEligible)

	got, err = repo.SetManualCategory(ctx, rec.ID, constants.Others)
	require.NoError(t, err)
	assert.Equal(t, constants.Others, got.ManualCategory)
	assert.False(t, got.TaxEligible)

	_, err = repo.SetManualCategory(ctx, uuid.New(), constants.Books)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestReceipt_ListRecentAndUsers(t *testing.T) {
	repo := NewReceiptRepository(openTestDB(t), quietLogger())
	ctx := context.Background()

	first := seed(t, repo, "u2", "A", "1.00", "2024-01-01")
	time.Sleep(2 * time.Millisecond)
	second := seed(t, repo, "u2", "B", "2.00", "2023-01-01")
	seed(t, repo, "u1", "C", "3.00", "2024-01-01")

	recent, err := repo.ListRecent(ctx, "u2", 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, second.ID, recent[0].ID)
	assert.Equal(t, first.ID, recent[1].ID)

	users, err := repo.ListUserIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, users)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestSummary_TaxSummaryUpsert(t *testing.T) {
	repo := NewSummaryRepository(openTestDB(t), quietLogger())
	ctx := context.Background()

	_, err := repo.GetTaxSummary(ctx, "u1", 2024)
	require.ErrorIs(t, err, common.ErrNotFound)

	s := &entity.TaxSummary{
		UserID:           "u1",
		Year:             2024,
		CategoryTotals:   map[constants.Category]decimal.Decimal{constants.Medical: dec("9000")},
		ClaimableAmounts: map[constants.Category]decimal.Decimal{constants.Medical: dec("8000")},
		TotalSpent:       dec("9000"),
		TotalClaimable:   dec("8000"),
		ReceiptCount:     3,
	}
	require.NoError(t, repo.PutTaxSummary(ctx, s))

	s.ReceiptCount = 4
	require.NoError(t, repo.PutTaxSummary(ctx, s))

	got, err := repo.GetTaxSummary(ctx, "u1", 2024)
	require.NoError(t, err)
	assert.Equal(t, 4, got.ReceiptCount)
	assert.True(t, got.ClaimableAmounts[constants.Medical].Equal(dec("8000")))
}

func TestSummary_InsightsUpsert(t *testing.T) {
	repo := NewSummaryRepository(openTestDB(t), quietLogger())
	ctx := context.Background()
	m := entity.Month{Year: 2024, Month: time.March}

	_, err := repo.GetInsights(ctx, "u1", m)
	require.ErrorIs(t, err, common.ErrNotFound)

	in := &entity.MonthlyInsights{UserID: "u1", Month: m.String(), Summary: entity.InsightsSummary{TotalReceipts: 2}}
	require.NoError(t, repo.PutInsights(ctx, in))
	in.Summary.TotalReceipts = 5
	require.NoError(t, repo.PutInsights(ctx, in))

	got, err := repo.GetInsights(ctx, "u1", m)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Summary.TotalReceipts)
	assert.Equal(t, "2024-03", got.Month)
}

func TestReceipt_FindPendingByCreation(t *testing.T) {
	repo := NewReceiptRepository(openTestDB(t), quietLogger())
	ctx := context.Background()

	create := func(created time.Time) *entity.Receipt {
		rec, err := repo.Create(ctx, &entity.Receipt{
			UserID: "u1", Source: constants.SourceUpload, StorageRef: uuid.NewString(), CreatedAt: created,
		})
		require.NoError(t, err)
		return rec
	}
	inMonth := create(time.Date(2024, 3, 31, 23, 59, 0, 0, time.UTC))
	create(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC))
	done := create(time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, repo.ApplyProcessing(ctx, done.ID, entity.ProcessingUpdate{
		Amount: dec("10"), TxDate: date("2024-03-02"), ProcessedAt: time.Date(2024, 3, 2, 1, 0, 0, 0, time.UTC),
	}))

	from, before := date("2024-03-01"), date("2024-04-01")
	got, err := repo.Find(ctx, entity.ReceiptFilter{UserID: "u1", PendingOnly: true, CreatedFrom: &from, CreatedBefore: &before})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, inMonth.ID, got[0].ID)

	got, err = repo.Find(ctx, entity.ReceiptFilter{UserID: "u1", ProcessedOnly: true})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, done.ID, got[0].ID)
}
