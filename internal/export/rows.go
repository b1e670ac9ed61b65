package export

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/relief-tracker/constants"
	"github.com/joseph-ayodele/relief-tracker/internal/entity"
)

// receiptHeaders is shared by the CSV file and the Receipts sheet.
var receiptHeaders = []string{
	"Date",
	"Merchant",
	"Amount (RM)",
	"Category",
	"Payment Method",
	"Tax Eligible",
	"Confidence Score",
	"Items",
}

func receiptRow(r *entity.Receipt) []string {
	date := ""
	if !r.TxDate.IsZero() {
		date = r.TxDate.Format(entity.DateLayout)
	}
	return []string{
		date,
		r.Merchant,
		r.Amount.StringFixed(2),
		string(r.EffectiveCategory()),
		r.PaymentMethod,
		yesNo(r.TaxEligible),
		confidence(r.Confidence),
		itemNames(r.Items),
	}
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// confidence renders a [0,1] score as a percentage; zero renders empty.
func confidence(c float64) string {
	if c <= 0 {
		return ""
	}
	return fmt.Sprintf("%.1f%%", c*100)
}

func itemNames(items []entity.LineItem) string {
	names := make([]string, 0, len(items))
	for _, it := range items {
		names = append(names, it.Name)
	}
	return strings.Join(names, "; ")
}

type totals struct {
	count       int
	spent       decimal.Decimal
	eligible    int
	eligibleAmt decimal.Decimal
}

func (t totals) average() decimal.Decimal {
	if t.count == 0 {
		return decimal.Zero
	}
	return t.spent.Div(decimal.NewFromInt(int64(t.count)))
}

type categoryRow struct {
	category constants.Category
	totals
}

// summarize totals the receipts overall and per effective category. Category
// rows follow the relief table order and omit categories with no receipts.
func summarize(recs []*entity.Receipt) (totals, []categoryRow) {
	var all totals
	byCat := map[constants.Category]*totals{}
	for _, r := range recs {
		c := r.EffectiveCategory()
		t, ok := byCat[c]
		if !ok {
			t = &totals{}
			byCat[c] = t
		}
		for _, acc := range []*totals{&all, t} {
			acc.count++
			acc.spent = acc.spent.Add(r.Amount)
			if r.TaxEligible {
				acc.eligible++
				acc.eligibleAmt = acc.eligibleAmt.Add(r.Amount)
			}
		}
	}

	var rows []categoryRow
	for _, c := range constants.Categories() {
		if t, ok := byCat[c]; ok {
			rows = append(rows, categoryRow{category: c, totals: *t})
		}
	}
	return all, rows
}
