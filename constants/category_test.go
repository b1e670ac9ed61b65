package constants

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReliefTable(t *testing.T) {
	want := map[Category]int64{
		Medical:   8000,
		Education: 7000,
		Lifestyle: 2500,
		Books:     2500,
		Sports:    500,
		Gadget:    2500,
		Internet:  2500,
		Parenting: 2000,
		Insurance: 3000,
		PRS:       3000,
		Others:    0,
	}

	defs := Definitions()
	require.Len(t, defs, 11)
	assert.Equal(t, Medical, defs[0].Name)
	assert.Equal(t, Others, defs[len(defs)-1].Name)
	assert.Empty(t, defs[len(defs)-1].Keywords)

	for cat, limit := range want {
		d, ok := Lookup(cat)
		require.True(t, ok, cat)
		assert.True(t, d.Limit.Equal(Limit(cat)), cat)
		assert.Equal(t, limit, d.Limit.IntPart(), cat)
	}
	assert.True(t, Limit("Groceries").IsZero())
}

func TestDefinitionsReturnsCopy(t *testing.T) {
	defs := Definitions()
	defs[0].Keywords[0] = "mutated"

	d, _ := Lookup(Medical)
	assert.Equal(t, "clinic", d.Keywords[0])
}

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		in     string
		want   Category
		wantOK bool
	}{
		{"Medical", Medical, true},
		{"  prs ", PRS, true},
		{"healthcare", Medical, true},
		{"electronics", Gadget, true},
		{"Groceries", Others, false},
		{"", Others, false},
	}
	for _, tt := range tests {
		got, ok := Canonicalize(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.wantOK, ok, tt.in)
	}
}
