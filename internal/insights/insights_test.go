package insights

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
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

type fakeReceipts struct {
	mu      sync.Mutex
	byUser  map[string][]*entity.Receipt
	failFor map[string]error
	filters []entity.ReceiptFilter
	userErr error
}

func (f *fakeReceipts) Find(_ context.Context, filter entity.ReceiptFilter) ([]*entity.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters = append(f.filters, filter)
	if err := f.failFor[filter.UserID]; err != nil {
		return nil, err
	}
	var out []*entity.Receipt
	for _, r := range f.byUser[filter.UserID] {
		if filter.From != nil && r.TxDate.Before(*filter.From) {
			continue
		}
		if filter.To != nil && r.TxDate.After(*filter.To) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeReceipts) ListUserIDs(context.Context) ([]string, error) {
	if f.userErr != nil {
		return nil, f.userErr
	}
	var out []string
	for u := range f.byUser {
		out = append(out, u)
	}
	for u := range f.failFor {
		out = append(out, u)
	}
	return out, nil
}

type fakeStore struct {
	mu   sync.Mutex
	docs map[string]*entity.MonthlyInsights
	puts int
}

func (f *fakeStore) GetInsights(_ context.Context, userID string, m entity.Month) (*entity.MonthlyInsights, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.docs[entity.InsightsKey(userID, m)]; ok {
		return d, nil
	}
	return nil, common.ErrNotFound
}

func (f *fakeStore) PutInsights(_ context.Context, in *entity.MonthlyInsights) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.docs == nil {
		f.docs = map[string]*entity.MonthlyInsights{}
	}
	f.puts++
	m, err := entity.ParseMonth(in.Month)
	if err != nil {
		return err
	}
	f.docs[entity.InsightsKey(in.UserID, m)] = in
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var march = entity.Month{Year: 2024, Month: time.March}

// midMarch is "now" for most tests: day 10 of the target month.
var midMarch = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

func processed(c constants.Category, amount, day string) *entity.Receipt {
	d, err := time.Parse(entity.DateLayout, day)
	if err != nil {
		panic(err)
	}
	at := d.Add(time.Hour)
	return &entity.Receipt{
		ID:                uuid.New(),
		UserID:            "u1",
		Amount:            dec(amount),
		TxDate:            d,
		PredictedCategory: c,
		Confidence:        0.8,
		TaxEligible:       c != constants.Others,
		ProcessedAt:       &at,
	}
}

func prevDoc(total string, breakdown map[constants.Category]string) *entity.MonthlyInsights {
	doc := &entity.MonthlyInsights{
		UserID:            "u1",
		Month:             "2024-02",
		Summary:           entity.InsightsSummary{TotalSpent: dec(total)},
		CategoryBreakdown: map[constants.Category]entity.CategoryStats{},
	}
	for c, v := range breakdown {
		doc.CategoryBreakdown[c] = entity.CategoryStats{Count: 1, Total: dec(v)}
	}
	return doc
}

func trendTypes(ts []entity.Trend) []entity.TrendType {
	out := make([]entity.TrendType, len(ts))
	for i, t := range ts {
		out[i] = t.Type
	}
	return out
}

func recTypes(rs []entity.Recommendation) []entity.RecommendationType {
	out := make([]entity.RecommendationType, len(rs))
	for i, r := range rs {
		out[i] = r.Type
	}
	return out
}

func TestBuild_Summary(t *testing.T) {
	doc := Build("u1", march, []*entity.Receipt{
		processed(constants.Medical, "100.00", "2024-03-01"),
		processed(constants.Others, "20.50", "2024-03-02"),
		processed(constants.Medical, "79.50", "2024-03-03"),
	}, nil, midMarch)

	s := doc.Summary
	assert.Equal(t, "2024-03", doc.Month)
	assert.Equal(t, 3, s.TotalReceipts)
	assert.True(t, s.TotalSpent.Equal(dec("200")))
	assert.Equal(t, 2, s.TaxEligibleReceipts)
	assert.True(t, s.TaxEligibleAmount.Equal(dec("179.50")))
	assert.True(t, s.AveragePerReceipt.Equal(dec("66.67")))
	assert.True(t, s.HighestTransaction.Equal(dec("100")))
	assert.True(t, s.LowestTransaction.Equal(dec("20.50")))

	med := doc.CategoryBreakdown[constants.Medical]
	assert.Equal(t, 2, med.Count)
	assert.True(t, med.Total.Equal(dec("179.50")))
	assert.True(t, med.TaxEligible.Equal(dec("179.50")))
	others := doc.CategoryBreakdown[constants.Others]
	assert.True(t, others.TaxEligible.IsZero())

	assert.NotNil(t, doc.Trends)
	assert.Empty(t, doc.Trends)
	assert.NotNil(t, doc.Alerts)
}

func TestBuild_SpendingChangeBoundary(t *testing.T) {
	tests := []struct {
		name      string
		current   string
		wantTrend bool
		direction string
		message   string
	}{
		{name: "exactly 20 percent", current: "120.00"},
		{name: "just above 20 percent", current: "120.10", wantTrend: true, direction: "INCREASE",
			message: "Spending increased by 20.1% compared to last month"},
		{name: "exactly minus 20 percent", current: "80.00"},
		{name: "large decrease", current: "50.00", wantTrend: true, direction: "DECREASE",
			message: "Spending decreased by 50.0% compared to last month"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := Build("u1", march,
				[]*entity.Receipt{processed(constants.Others, tt.current, "2024-03-02")},
				prevDoc("100.00", nil), midMarch)

			if !tt.wantTrend {
				assert.Empty(t, doc.Trends)
				return
			}
			require.Len(t, doc.Trends, 1)
			tr := doc.Trends[0]
			assert.Equal(t, entity.TrendSpendingChange, tr.Type)
			assert.Equal(t, tt.direction, tr.Direction)
			assert.Equal(t, tt.message, tr.Message)
		})
	}
}

func TestBuild_CategorySpike(t *testing.T) {
	receipts := []*entity.Receipt{
		processed(constants.Medical, "151.00", "2024-03-01"),
		processed(constants.Books, "150.00", "2024-03-02"),
		processed(constants.Gadget, "10.00", "2024-03-03"),
		processed(constants.Sports, "999.00", "2024-03-04"),
	}
	prev := prevDoc("1310.00", map[constants.Category]string{
		constants.Medical: "100.00",
		constants.Books:   "100.00",
		constants.Gadget:  "1000.00",
		constants.Sports:  "0",
	})

	doc := Build("u1", march, receipts, prev, midMarch)

	require.Equal(t, []entity.TrendType{entity.TrendCategorySpike}, trendTypes(doc.Trends))
	assert.Equal(t, constants.Medical, doc.Trends[0].Category)
	assert.Equal(t, "51.0", doc.Trends[0].Percentage)
	assert.Equal(t, "Medical spending spiked by 51.0%", doc.Trends[0].Message)
}

func TestBuild_Recommendations(t *testing.T) {
	receipts := []*entity.Receipt{
		processed(constants.Medical, "45.00", "2024-03-01"),
		processed(constants.Books, "10.00", "2024-03-02"),
		processed(constants.Books, "10.00", "2024-03-03"),
		processed(constants.Books, "10.00", "2024-03-04"),
	}
	doc := Build("u1", march, receipts, nil, midMarch)

	require.Equal(t, []entity.RecommendationType{entity.RecommendTaxOpportunity}, recTypes(doc.Recommendations))
	rec := doc.Recommendations[0]
	assert.Equal(t, constants.Medical, rec.Category)
	require.NotNil(t, rec.Amount)
	assert.True(t, rec.Amount.Equal(dec("45")))
	assert.Equal(t, "You have RM 45.00 in Medical. Keep more receipts in this category to maximize tax relief.", rec.Message)
}

func TestBuild_SpendingAlertDivisor(t *testing.T) {
	receipts := []*entity.Receipt{processed(constants.Others, "1500.00", "2024-03-02")}

	current := Build("u1", march, receipts, nil, midMarch)
	require.Contains(t, recTypes(current.Recommendations), entity.RecommendSpendingAlert)
	for _, r := range current.Recommendations {
		if r.Type == entity.RecommendSpendingAlert {
			assert.Equal(t, "You're spending an average of RM 150.00 per day. Consider reviewing your expenses.", r.Message)
		}
	}

	// a closed month divides by its length: 1500 / 31 < 100
	later := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	past := Build("u1", march, receipts, nil, later)
	assert.NotContains(t, recTypes(past.Recommendations), entity.RecommendSpendingAlert)
}

func TestBuild_Categorization(t *testing.T) {
	low := processed(constants.Others, "5.00", "2024-03-01")
	low.Confidence = 0.3
	missing := processed(constants.Others, "5.00", "2024-03-02")
	missing.PredictedCategory = ""
	ok := processed(constants.Others, "5.00", "2024-03-03")

	// 2 of 3 need review
	doc := Build("u1", march, []*entity.Receipt{low, missing, ok}, nil, midMarch)
	require.Contains(t, recTypes(doc.Recommendations), entity.RecommendCategorization)
	last := doc.Recommendations[len(doc.Recommendations)-1]
	assert.Equal(t, 2, last.Count)
	assert.Equal(t, "2 receipts need manual categorization for better tax tracking.", last.Message)

	// 3 of 10 is exactly 30 percent
	receipts := []*entity.Receipt{low, missing}
	for i := 0; i < 7; i++ {
		receipts = append(receipts, processed(constants.Others, "5.00", "2024-03-04"))
	}
	receipts = append(receipts, processed(constants.Others, "5.00", "2024-03-05"))
	receipts[9].Confidence = 0.1
	doc = Build("u1", march, receipts, nil, midMarch)
	assert.NotContains(t, recTypes(doc.Recommendations), entity.RecommendCategorization)
}

func TestBuild_Alerts(t *testing.T) {
	flagged := processed(constants.Others, "0", "2024-03-01")
	flagged.Anomalies = []entity.AnomalyFinding{{Type: constants.AnomalyZeroAmount, Severity: constants.SeverityHigh}}
	lowOnly := processed(constants.Others, "600", "2024-03-02")
	lowOnly.Anomalies = []entity.AnomalyFinding{{Type: constants.AnomalyRoundAmount, Severity: constants.SeverityLow}}
	pending := &entity.Receipt{ID: uuid.New(), UserID: "u1", TxDate: time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC)}

	doc := Build("u1", march, []*entity.Receipt{flagged, lowOnly, pending}, nil, midMarch)

	require.Len(t, doc.Alerts, 2)
	assert.Equal(t, entity.Alert{
		Type: entity.AlertAnomaly, Severity: constants.SeverityHigh, Count: 1,
		Message: "1 receipt(s) have high-priority anomalies that need review",
	}, doc.Alerts[0])
	assert.Equal(t, entity.Alert{
		Type: entity.AlertProcessing, Severity: constants.SeverityMedium, Count: 1,
		Message: "1 receipt(s) are still being processed",
	}, doc.Alerts[1])
}

func TestGenerate_NoReceiptsStoresNothing(t *testing.T) {
	store := &fakeStore{}
	gen := NewGenerator(&fakeReceipts{}, store, quietLogger(), WithClock(func() time.Time { return midMarch }))

	doc, err := gen.GenerateCurrent(context.Background(), "u1")
	require.NoError(t, err)
	assert.Nil(t, doc)
	assert.Equal(t, 0, store.puts)
}

func TestGenerate_UsesPreviousMonthAcrossYearBoundary(t *testing.T) {
	jan := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	receipts := &fakeReceipts{byUser: map[string][]*entity.Receipt{
		"u1": {processed(constants.Others, "300.00", "2024-01-05")},
	}}
	store := &fakeStore{docs: map[string]*entity.MonthlyInsights{
		"u1_2023-12": {UserID: "u1", Month: "2023-12", Summary: entity.InsightsSummary{TotalSpent: dec("100")}},
	}}
	gen := NewGenerator(receipts, store, quietLogger(), WithClock(func() time.Time { return jan }))

	doc, err := gen.GenerateCurrent(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "2024-01", doc.Month)
	require.Len(t, doc.Trends, 1)
	assert.Equal(t, "Spending increased by 200.0% compared to last month", doc.Trends[0].Message)

	stored, err := store.GetInsights(context.Background(), "u1", entity.Month{Year: 2024, Month: time.January})
	require.NoError(t, err)
	assert.Same(t, doc, stored)

	f := receipts.filters[0]
	assert.Equal(t, "2024-01-01", f.From.Format(entity.DateLayout))
	assert.Equal(t, "2024-01-31", f.To.Format(entity.DateLayout))
}

func TestGenerate_OverwritesOnRerun(t *testing.T) {
	receipts := &fakeReceipts{byUser: map[string][]*entity.Receipt{
		"u1": {processed(constants.Books, "30.00", "2024-03-05")},
	}}
	store := &fakeStore{}
	gen := NewGenerator(receipts, store, quietLogger(), WithClock(func() time.Time { return midMarch }))

	_, err := gen.Generate(context.Background(), "u1", march)
	require.NoError(t, err)
	_, err = gen.Generate(context.Background(), "u1", march)
	require.NoError(t, err)
	assert.Equal(t, 2, store.puts)
	assert.Len(t, store.docs, 1)
}

func TestGenerate_PropagatesLoadError(t *testing.T) {
	boom := errors.New("boom")
	gen := NewGenerator(&fakeReceipts{failFor: map[string]error{"u1": boom}}, &fakeStore{}, quietLogger())

	_, err := gen.Generate(context.Background(), "u1", march)
	assert.ErrorIs(t, err, boom)
}

func TestBatch_ContinuesPastFailures(t *testing.T) {
	receipts := &fakeReceipts{
		byUser: map[string][]*entity.Receipt{
			"alice": {processed(constants.Medical, "10.00", "2024-03-05")},
			"bob":   {processed(constants.Books, "20.00", "2024-03-06")},
			"carol": {processed(constants.Books, "20.00", "2024-01-06")},
		},
		failFor: map[string]error{"dave": errors.New("timeout")},
	}
	store := &fakeStore{}
	gen := NewGenerator(receipts, store, quietLogger(), WithClock(func() time.Time { return midMarch }))

	report, err := NewBatch(receipts, gen, 2, quietLogger()).Run(context.Background(), march)
	require.NoError(t, err)
	assert.Equal(t, "2024-03", report.Month)
	assert.Equal(t, []string{"alice", "bob"}, report.Generated)
	assert.Equal(t, []string{"carol"}, report.Skipped)
	require.Contains(t, report.Failed, "dave")
	assert.Contains(t, report.Failed["dave"], "timeout")
	assert.Equal(t, 2, store.puts)
}

func TestBatch_ListError(t *testing.T) {
	receipts := &fakeReceipts{userErr: errors.New("db down")}
	gen := NewGenerator(receipts, &fakeStore{}, quietLogger())

	_, err := NewBatch(receipts, gen, 0, quietLogger()).Run(context.Background(), march)
	require.Error(t, err)
}

func TestScheduler_FirstOfMonthRunsPrevious(t *testing.T) {
	receipts := &fakeReceipts{byUser: map[string][]*entity.Receipt{
		"u1": {processed(constants.Books, "20.00", "2024-02-20")},
	}}
	store := &fakeStore{}
	firstOfMarch := time.Date(2024, 3, 1, 1, 0, 0, 0, time.UTC)
	gen := NewGenerator(receipts, store, quietLogger(), WithClock(func() time.Time { return firstOfMarch }))
	s := NewScheduler(NewBatch(receipts, gen, 1, quietLogger()), time.Hour, quietLogger())
	s.now = func() time.Time { return firstOfMarch }

	reports := s.Tick(context.Background())
	require.Len(t, reports, 2)
	assert.Equal(t, "2024-02", reports[0].Month)
	assert.Equal(t, []string{"u1"}, reports[0].Generated)
	assert.Equal(t, "2024-03", reports[1].Month)
	assert.Equal(t, []string{"u1"}, reports[1].Skipped)

	s.now = func() time.Time { return midMarch }
	reports = s.Tick(context.Background())
	require.Len(t, reports, 1)
	assert.Equal(t, "2024-03", reports[0].Month)
}
