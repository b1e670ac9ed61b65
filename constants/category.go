package constants

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Category is a Malaysian personal tax-relief category.
type Category string

const (
	Medical   Category = "Medical"
	Education Category = "Education"
	Lifestyle Category = "Lifestyle"
	Books     Category = "Books"
	Sports    Category = "Sports"
	Gadget    Category = "Gadget"
	Internet  Category = "Internet"
	Parenting Category = "Parenting"
	Insurance Category = "Insurance"
	PRS       Category = "PRS"
	Others    Category = "Others"
)

// Definition is one row of the relief table. Limit is the annual statutory
// cap in RM; zero means the category is not eligible for relief.
type Definition struct {
	Name     Category
	Limit    decimal.Decimal
	Keywords []string
}

// definitions is the single relief table. Order matters: keyword ties
// resolve to the earlier entry.
var definitions = []Definition{
	{Name: Medical, Limit: decimal.NewFromInt(8000), Keywords: []string{"clinic", "hospital", "pharmacy", "doctor", "medicine"}},
	{Name: Education, Limit: decimal.NewFromInt(7000), Keywords: []string{"university", "college", "school", "course", "tuition"}},
	{Name: Lifestyle, Limit: decimal.NewFromInt(2500), Keywords: []string{"gym", "fitness", "sports equipment"}},
	{Name: Books, Limit: decimal.NewFromInt(2500), Keywords: []string{"bookstore", "books", "magazine", "journal"}},
	{Name: Sports, Limit: decimal.NewFromInt(500), Keywords: []string{"sports", "equipment", "gear"}},
	{Name: Gadget, Limit: decimal.NewFromInt(2500), Keywords: []string{"computer", "laptop", "smartphone", "tablet"}},
	{Name: Internet, Limit: decimal.NewFromInt(2500), Keywords: []string{"broadband", "internet", "wifi", "telco"}},
	{Name: Parenting, Limit: decimal.NewFromInt(2000), Keywords: []string{"childcare", "nursery", "daycare", "baby"}},
	{Name: Insurance, Limit: decimal.NewFromInt(3000), Keywords: []string{"insurance", "premium", "policy"}},
	{Name: PRS, Limit: decimal.NewFromInt(3000), Keywords: []string{"prs", "retirement", "pension"}},
	{Name: Others, Limit: decimal.Zero, Keywords: nil},
}

var byName = func() map[Category]Definition {
	m := make(map[Category]Definition, len(definitions))
	for _, d := range definitions {
		m[d.Name] = d
	}
	return m
}()

// Definitions returns a copy of the relief table in definition order.
func Definitions() []Definition {
	out := make([]Definition, len(definitions))
	for i, d := range definitions {
		d.Keywords = append([]string(nil), d.Keywords...)
		out[i] = d
	}
	return out
}

// Categories lists every category name in definition order.
func Categories() []Category {
	out := make([]Category, len(definitions))
	for i, d := range definitions {
		out[i] = d.Name
	}
	return out
}

func AsStringSlice() []string {
	result := make([]string, len(definitions))
	for i, d := range definitions {
		result[i] = string(d.Name)
	}
	return result
}

// Lookup returns the definition for c.
func Lookup(c Category) (Definition, bool) {
	d, ok := byName[c]
	return d, ok
}

// Limit returns the annual cap for c, or zero for unknown categories.
func Limit(c Category) decimal.Decimal {
	if d, ok := byName[c]; ok {
		return d.Limit
	}
	return decimal.Zero
}

// IsKnown reports whether c is one of the table's categories.
func IsKnown(c Category) bool {
	_, ok := byName[c]
	return ok
}

// Canonicalize maps free-form input (user overrides, model output) onto a
// category. The bool is false when nothing matched; the category is then Others.
func Canonicalize(input string) (Category, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return Others, false
	}

	// synonyms map
	synonyms := map[string]Category{
		"medical expenses":   Medical,
		"healthcare":         Medical,
		"self education":     Education,
		"books & magazines":  Books,
		"sport":              Sports,
		"sports equipment":   Sports,
		"gadgets":            Gadget,
		"electronics":        Gadget,
		"broadband":          Internet,
		"childcare":          Parenting,
		"life insurance":     Insurance,
		"medical insurance":  Insurance,
		"private retirement": PRS,
		"other":              Others,
	}
	if cat, ok := synonyms[normalized]; ok {
		return cat, true
	}

	for _, d := range definitions {
		if normalized == strings.ToLower(string(d.Name)) {
			return d.Name, true
		}
	}
	return Others, false
}
