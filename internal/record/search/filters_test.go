package search_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentwallet/internal/record/search"
	"agentwallet/internal/wallet"
)

func TestParseFilters(t *testing.T) {
	tests := []struct {
		name   string
		equal  []string
		after  []string
		before []string
		want   string
	}{
		{name: "nothing is all", want: `{}`},
		{name: "single equal", equal: []string{"state=Connected"}, want: `{"state":"Connected"}`},
		{name: "value may contain =", equal: []string{"q=a=b"}, want: `{"q":"a=b"}`},
		{
			name:  "after and before",
			after: []string{"created_at=2024-01-02T03:04:05Z"}, before: []string{"created_at=2024-02-01T00:00:00+01:00"},
			want: `{"$and":[{"created_at":{"$gt":"2024-01-02T03:04:05.000000000Z"}},{"created_at":{"$lt":"2024-01-31T23:00:00.000000000Z"}}]}`,
		},
		{
			name:  "equal plus after",
			equal: []string{"state=Issued"}, after: []string{"updated_at=2024-01-01T00:00:00Z"},
			want: `{"$and":[{"state":"Issued"},{"updated_at":{"$gt":"2024-01-01T00:00:00.000000000Z"}}]}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := search.ParseFilters(tt.equal, tt.after, tt.before)
			require.NoError(t, err)
			raw, err := search.Compile(q)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(raw))
		})
	}
}

func TestParseFiltersRejectsMalformedPairs(t *testing.T) {
	_, err := search.ParseFilters([]string{"novalue"}, nil, nil)
	assert.ErrorIs(t, err, search.ErrInvalidQuery)

	_, err = search.ParseFilters(nil, []string{"=x"}, nil)
	assert.ErrorIs(t, err, search.ErrInvalidQuery)

	_, err = search.ParseFilters(nil, []string{"created_at=yesterday"}, nil)
	assert.ErrorIs(t, err, search.ErrInvalidQuery)
}

func TestParseSort(t *testing.T) {
	assert.Equal(t, []wallet.SortField{
		{Tag: "created_at", Descending: true},
		{Tag: "alias"},
	}, search.ParseSort([]string{"-created_at", " alias ", ""}))
	assert.Empty(t, search.ParseSort(nil))
}
