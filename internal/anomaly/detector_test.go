package anomaly

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/relief-tracker/constants"
	"github.com/joseph-ayodele/relief-tracker/internal/entity"
)

// memFinder applies ReceiptFilter over an in-memory slice.
type memFinder struct {
	receipts []*entity.Receipt
	err      error
}

func (m *memFinder) Find(_ context.Context, f entity.ReceiptFilter) ([]*entity.Receipt, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*entity.Receipt
	for _, r := range m.receipts {
		switch {
		case r.UserID != f.UserID,
			f.From != nil && r.TxDate.Before(*f.From),
			f.To != nil && r.TxDate.After(*f.To),
			f.Merchant != nil && r.Merchant != *f.Merchant,
			f.Amount != nil && !r.Amount.Equal(*f.Amount),
			f.ExcludeID != uuid.Nil && r.ID == f.ExcludeID:
			continue
		}
		out = append(out, r)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func receipt(user, merchant, amount, day string) *entity.Receipt {
	d, err := time.Parse(entity.DateLayout, day)
	if err != nil {
		panic(err)
	}
	return &entity.Receipt{
		ID:       uuid.New(),
		UserID:   user,
		Merchant: merchant,
		Amount:   decimal.RequireFromString(amount),
		TxDate:   d,
	}
}

func types(fs []entity.AnomalyFinding) []constants.AnomalyType {
	out := make([]constants.AnomalyType, len(fs))
	for i, f := range fs {
		out[i] = f.Type
	}
	return out
}

func TestDetect_SameDayDuplicate(t *testing.T) {
	a := receipt("u1", "ABC CLINIC", "200.00", "2024-03-05")
	b := receipt("u1", "ABC CLINIC", "200.00", "2024-03-05")
	c := receipt("u1", "ABC CLINIC", "200.00", "2024-03-05")
	other := receipt("u2", "ABC CLINIC", "200.00", "2024-03-05")
	det := NewDetector(&memFinder{receipts: []*entity.Receipt{a, b, c, other}}, quietLogger())

	findings := det.Detect(context.Background(), "u1", a)

	require.NotEmpty(t, findings)
	dup := findings[0]
	assert.Equal(t, constants.AnomalyPossibleDuplicate, dup.Type)
	assert.Equal(t, constants.SeverityHigh, dup.Severity)
	assert.Equal(t, "Found 2 similar receipt(s) on the same day", dup.Message)
	assert.ElementsMatch(t, []string{b.ID.String(), c.ID.String()}, dup.RelatedIDs)
	assert.NotContains(t, dup.RelatedIDs, a.ID.String())
}

func TestDetect_ZeroAmountOnly(t *testing.T) {
	r := receipt("u1", "Unknown", "0", "2024-03-05")
	det := NewDetector(&memFinder{receipts: []*entity.Receipt{r}}, quietLogger())

	findings := det.Detect(context.Background(), "u1", r)

	require.Len(t, findings, 1)
	assert.Equal(t, constants.AnomalyZeroAmount, findings[0].Type)
	assert.Equal(t, constants.SeverityHigh, findings[0].Severity)
	assert.Equal(t, "Receipt has zero amount", findings[0].Message)
}

func TestDetect_NoHistoryNoFindings(t *testing.T) {
	r := receipt("u1", "STARBUCKS COFFEE", "15.50", "2024-03-12")
	det := NewDetector(&memFinder{receipts: []*entity.Receipt{r}}, quietLogger())

	findings := det.Detect(context.Background(), "u1", r)
	assert.NotNil(t, findings)
	assert.Empty(t, findings)
}

func TestDetect_LookupErrorYieldsEmpty(t *testing.T) {
	r := receipt("u1", "X", "0", "2024-03-05")
	det := NewDetector(&memFinder{err: errors.New("db down")}, quietLogger())

	findings := det.Detect(context.Background(), "u1", r)
	assert.NotNil(t, findings)
	assert.Empty(t, findings)
}

func TestDetect_FindingsAccumulate(t *testing.T) {
	r := receipt("u1", "Harvey Norman", "12000.00", "2024-03-20")
	history := []*entity.Receipt{r}
	for _, day := range []string{"2024-03-01", "2024-03-02", "2024-03-03", "2024-03-04", "2024-03-05", "2024-03-06"} {
		history = append(history, receipt("u1", "Kedai", "12.30", day))
	}
	det := NewDetector(&memFinder{receipts: history}, quietLogger())

	got := types(det.Detect(context.Background(), "u1", r))
	assert.Equal(t, []constants.AnomalyType{
		constants.AnomalyUnusualAmount,
		constants.AnomalyRoundAmount,
		constants.AnomalyHighValue,
	}, got)
}

func TestCheckRepeatedWithinWeek(t *testing.T) {
	r := receipt("u1", "Shell", "50.00", "2024-03-10")
	one := receipt("u1", "Shell", "50.00", "2024-03-08")
	two := receipt("u1", "Shell", "50.00", "2024-03-15")
	otherMerchant := receipt("u1", "Petronas", "50.00", "2024-03-11")

	assert.Empty(t, CheckRepeatedWithinWeek(r, []*entity.Receipt{one, otherMerchant}))
	assert.Empty(t, CheckRepeatedWithinWeek(r, []*entity.Receipt{r, one}), "receipt never matches itself")

	got := CheckRepeatedWithinWeek(r, []*entity.Receipt{one, two, otherMerchant})
	require.Len(t, got, 1)
	assert.Equal(t, constants.SeverityMedium, got[0].Severity)
	assert.Equal(t, "Found 2 identical transactions within a week", got[0].Message)
	assert.Equal(t, []string{one.ID.String(), two.ID.String()}, got[0].RelatedIDs)
}

func TestCheckRepeatedWithinWeek_Window(t *testing.T) {
	r := receipt("u1", "Shell", "50.00", "2024-03-10")
	inside := receipt("u1", "Shell", "50.00", "2024-03-03")
	edge := receipt("u1", "Shell", "50.00", "2024-03-17")
	outside := receipt("u1", "Shell", "50.00", "2024-03-18")
	det := NewDetector(&memFinder{receipts: []*entity.Receipt{r, inside, edge, outside}}, quietLogger())

	findings := det.Detect(context.Background(), "u1", r)
	require.Contains(t, types(findings), constants.AnomalyRepeatedTransaction)
	for _, f := range findings {
		if f.Type == constants.AnomalyRepeatedTransaction {
			assert.ElementsMatch(t, []string{inside.ID.String(), edge.ID.String()}, f.RelatedIDs)
		}
	}
}

func TestCheckStatisticalOutlier(t *testing.T) {
	month := []*entity.Receipt{
		receipt("u1", "A", "10.00", "2024-03-01"),
		receipt("u1", "B", "20.00", "2024-03-02"),
		receipt("u1", "C", "30.00", "2024-03-03"),
	}
	// mean 20, population std dev ~8.16, threshold ~44.49
	assert.Empty(t, CheckStatisticalOutlier(receipt("u1", "D", "44.00", "2024-03-04"), month))

	got := CheckStatisticalOutlier(receipt("u1", "D", "45.00", "2024-03-04"), month)
	require.Len(t, got, 1)
	assert.Equal(t, constants.SeverityLow, got[0].Severity)
	assert.Equal(t, "20.00", got[0].Details["average"])
	assert.Equal(t, "8.16", got[0].Details["std_dev"])
	assert.Equal(t, "Amount (RM 45.00) is significantly higher than your average (RM 20.00)", got[0].Message)

	assert.Empty(t, CheckStatisticalOutlier(receipt("u1", "D", "9999", "2024-03-04"), nil))
}

func TestCheckRoundAmount(t *testing.T) {
	plain := []*entity.Receipt{
		receipt("u1", "A", "12.50", "2024-03-01"),
		receipt("u1", "B", "7.80", "2024-03-02"),
		receipt("u1", "C", "33.10", "2024-03-03"),
		receipt("u1", "D", "41.00", "2024-03-04"),
		receipt("u1", "E", "9.90", "2024-03-05"),
		receipt("u1", "F", "100.00", "2024-03-06"),
	}
	tests := []struct {
		name   string
		amount string
		month  []*entity.Receipt
		fires  bool
	}{
		{"round above 500", "600.00", plain, true},
		{"exactly 500", "500.00", plain, false},
		{"not a multiple of 100", "650.00", plain, false},
		{"no other receipts", "600.00", nil, false},
		{"round receipts are common", "600.00", plain[4:], false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CheckRoundAmount(receipt("u1", "X", tt.amount, "2024-03-10"), tt.month)
			if !tt.fires {
				assert.Empty(t, got)
				return
			}
			require.Len(t, got, 1)
			assert.Equal(t, "Unusually round amount: RM "+tt.amount, got[0].Message)
		})
	}
}

func TestCheckHighValue(t *testing.T) {
	assert.Empty(t, CheckHighValue(receipt("u1", "X", "10000.00", "2024-03-10")))
	got := CheckHighValue(receipt("u1", "X", "10000.01", "2024-03-10"))
	require.Len(t, got, 1)
	assert.Equal(t, constants.SeverityMedium, got[0].Severity)
	assert.Equal(t, "High value transaction: RM 10000.01", got[0].Message)
}
