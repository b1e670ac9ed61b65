package anomaly

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/relief-tracker/constants"
	"github.com/joseph-ayodele/relief-tracker/internal/entity"
)

var (
	hundred        = decimal.NewFromInt(100)
	roundFloor     = decimal.NewFromInt(500)
	highValueFloor = decimal.NewFromInt(10000)
	outlierSigmas  = decimal.NewFromInt(3)
)

// CheckSameDayDuplicate fires when any other receipt shares the date,
// merchant and amount.
func CheckSameDayDuplicate(matches []*entity.Receipt) []entity.AnomalyFinding {
	if len(matches) == 0 {
		return nil
	}
	return []entity.AnomalyFinding{{
		Type:       constants.AnomalyPossibleDuplicate,
		Severity:   constants.SeverityHigh,
		Message:    fmt.Sprintf("Found %d similar receipt(s) on the same day", len(matches)),
		RelatedIDs: ids(matches),
	}}
}

// CheckRepeatedWithinWeek fires when more than one other receipt within the
// window has the same merchant and amount. nearby never contains r itself.
func CheckRepeatedWithinWeek(r *entity.Receipt, nearby []*entity.Receipt) []entity.AnomalyFinding {
	var exact []*entity.Receipt
	for _, o := range nearby {
		if o.ID != r.ID && o.Merchant == r.Merchant && o.Amount.Equal(r.Amount) {
			exact = append(exact, o)
		}
	}
	if len(exact) <= 1 {
		return nil
	}
	return []entity.AnomalyFinding{{
		Type:       constants.AnomalyRepeatedTransaction,
		Severity:   constants.SeverityMedium,
		Message:    fmt.Sprintf("Found %d identical transactions within a week", len(exact)),
		RelatedIDs: ids(exact),
	}}
}

// CheckStatisticalOutlier fires when the amount exceeds mean + 3 population
// standard deviations of the month's other receipts.
func CheckStatisticalOutlier(r *entity.Receipt, month []*entity.Receipt) []entity.AnomalyFinding {
	if len(month) == 0 {
		return nil
	}
	mean, std := meanStdDev(month)
	threshold := mean.Add(std.Mul(outlierSigmas))
	if !r.Amount.GreaterThan(threshold) {
		return nil
	}
	return []entity.AnomalyFinding{{
		Type:     constants.AnomalyUnusualAmount,
		Severity: constants.SeverityLow,
		Message: fmt.Sprintf("Amount (RM %s) is significantly higher than your average (RM %s)",
			r.Amount.StringFixed(2), mean.StringFixed(2)),
		Details: map[string]string{
			"average":   mean.StringFixed(2),
			"std_dev":   std.StringFixed(2),
			"threshold": threshold.StringFixed(2),
		},
	}}
}

// CheckRoundAmount fires for multiples of 100 above 500 when fewer than 20%
// of the month's other receipts are also round.
func CheckRoundAmount(r *entity.Receipt, month []*entity.Receipt) []entity.AnomalyFinding {
	if len(month) == 0 || !isRound(r.Amount) || !r.Amount.GreaterThan(roundFloor) {
		return nil
	}
	round := 0
	for _, o := range month {
		if isRound(o.Amount) {
			round++
		}
	}
	if round*5 >= len(month) {
		return nil
	}
	return []entity.AnomalyFinding{{
		Type:     constants.AnomalyRoundAmount,
		Severity: constants.SeverityLow,
		Message:  fmt.Sprintf("Unusually round amount: RM %s", r.Amount.StringFixed(2)),
		Details:  map[string]string{"amount": r.Amount.StringFixed(2)},
	}}
}

func CheckZeroAmount(r *entity.Receipt) []entity.AnomalyFinding {
	if !r.Amount.IsZero() {
		return nil
	}
	return []entity.AnomalyFinding{{
		Type:     constants.AnomalyZeroAmount,
		Severity: constants.SeverityHigh,
		Message:  "Receipt has zero amount",
		Details:  map[string]string{"amount": r.Amount.StringFixed(2)},
	}}
}

func CheckHighValue(r *entity.Receipt) []entity.AnomalyFinding {
	if !r.Amount.GreaterThan(highValueFloor) {
		return nil
	}
	return []entity.AnomalyFinding{{
		Type:     constants.AnomalyHighValue,
		Severity: constants.SeverityMedium,
		Message:  fmt.Sprintf("High value transaction: RM %s", r.Amount.StringFixed(2)),
		Details:  map[string]string{"amount": r.Amount.StringFixed(2)},
	}}
}

func isRound(d decimal.Decimal) bool {
	return d.Mod(hundred).IsZero()
}

func meanStdDev(rs []*entity.Receipt) (decimal.Decimal, decimal.Decimal) {
	n := decimal.NewFromInt(int64(len(rs)))
	sum := decimal.Zero
	for _, r := range rs {
		sum = sum.Add(r.Amount)
	}
	mean := sum.DivRound(n, 8)

	sq := decimal.Zero
	for _, r := range rs {
		diff := r.Amount.Sub(mean)
		sq = sq.Add(diff.Mul(diff))
	}
	variance, _ := sq.DivRound(n, 8).Float64()
	return mean, decimal.NewFromFloat(math.Sqrt(variance))
}
