// Package parser turns raw OCR text into structured receipt fields.
package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/relief-tracker/constants"
	"github.com/joseph-ayodele/relief-tracker/internal/entity"
)

const (
	UnknownMerchant = "Unknown"
	merchantLines   = 5
)

var (
	reMerchant = regexp.MustCompile(`^[A-Z][A-Za-z\s&'-]{2,50}`)
	reAmount   = regexp.MustCompile(`(?i)(?:RM|MYR|TOTAL|Amount)\s*:?\s*(\d{1,6}(?:\.\d{2})?)`)
	reDate     = regexp.MustCompile(`(\d{1,2}[-/]\d{1,2}[-/]\d{2,4})|(\d{4}[-/]\d{1,2}[-/]\d{1,2})`)
	reDateDMY  = regexp.MustCompile(`^(\d{1,2})[-/](\d{1,2})[-/](\d{2,4})$`)
	reDateYMD  = regexp.MustCompile(`^(\d{4})[-/](\d{1,2})[-/](\d{1,2})$`)
	reLineItem = regexp.MustCompile(`^([A-Za-z][A-Za-z\s\-']{2,40})\s+(\d{1,6}(?:\.\d{2})?)`)
)

// Fields is the structured result of parsing one receipt's text.
type Fields struct {
	Merchant      string            `json:"merchant"`
	Amount        decimal.Decimal   `json:"amount"`
	Date          time.Time         `json:"date"`
	DateFound     bool              `json:"-"`
	PaymentMethod string            `json:"payment_method"`
	Items         []entity.LineItem `json:"items"`
	FullText      string            `json:"full_text"`
}

// Parse extracts fields from text. now supplies the fallback date when no
// valid date is present.
func Parse(text string, now time.Time) Fields {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := nonBlankLines(text)

	date, found := ParseDate(text)
	if !found {
		date = entity.DateOnly(now)
	}

	return Fields{
		Merchant:      Merchant(lines),
		Amount:        Amount(text),
		Date:          date,
		DateFound:     found,
		PaymentMethod: PaymentMethod(text),
		Items:         LineItems(lines),
		FullText:      text,
	}
}

func nonBlankLines(text string) []string {
	raw := strings.Split(text, "\n")
	out := make([]string, 0, len(raw))
	for _, l := range raw {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}

// Merchant returns the first of the leading non-blank lines that looks like
// a business name.
func Merchant(lines []string) string {
	n := min(len(lines), merchantLines)
	for _, l := range lines[:n] {
		l = strings.TrimSpace(l)
		if reMerchant.MatchString(l) {
			return l
		}
	}
	return UnknownMerchant
}

// Amount is the largest currency-marked number in text, or zero. Receipts
// list subtotal, tax and total; the total is assumed to be the largest.
func Amount(text string) decimal.Decimal {
	best := decimal.Zero
	for _, m := range reAmount.FindAllStringSubmatch(text, -1) {
		v, err := decimal.NewFromString(m[1])
		if err != nil {
			continue
		}
		if v.GreaterThan(best) {
			best = v
		}
	}
	return best
}

// ParseDate returns the first date-shaped token in text as a calendar date.
// The bool is false when no token exists or the first one is not a real date.
func ParseDate(text string) (time.Time, bool) {
	tok := reDate.FindString(text)
	if tok == "" {
		return time.Time{}, false
	}

	var y, m, d int
	if g := reDateYMD.FindStringSubmatch(tok); g != nil {
		y, m, d = atoi(g[1]), atoi(g[2]), atoi(g[3])
	} else if g := reDateDMY.FindStringSubmatch(tok); g != nil {
		d, m = atoi(g[1]), atoi(g[2])
		switch len(g[3]) {
		case 2:
			y = 2000 + atoi(g[3])
		case 3:
			// read as a two-digit year followed by a stray digit
			y = 2000 + atoi(g[3][:2])
		case 4:
			y = atoi(g[3])
		default:
			return time.Time{}, false
		}
	} else {
		return time.Time{}, false
	}

	if m < 1 || m > 12 || d < 1 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	// reject overflow such as 31/02
	if t.Day() != d || int(t.Month()) != m {
		return time.Time{}, false
	}
	return t, true
}

// PaymentMethod returns the first known token (in priority order) found
// anywhere in text, ignoring case.
func PaymentMethod(text string) string {
	upper := strings.ToUpper(text)
	for _, method := range constants.PaymentMethods {
		if strings.Contains(upper, method) {
			return method
		}
	}
	return constants.PaymentUnknown
}

// LineItems turns every "name  price" line into an item. Subtotal-like lines
// may match too.
func LineItems(lines []string) []entity.LineItem {
	items := make([]entity.LineItem, 0)
	for _, l := range lines {
		m := reLineItem.FindStringSubmatch(l)
		if m == nil {
			continue
		}
		price, err := decimal.NewFromString(m[2])
		if err != nil {
			continue
		}
		items = append(items, entity.LineItem{Name: strings.TrimSpace(m[1]), Price: price})
	}
	return items
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
