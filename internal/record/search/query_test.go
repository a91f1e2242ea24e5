package search_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentwallet/internal/record"
	"agentwallet/internal/record/search"
	"agentwallet/internal/wallet/wql"
)

func TestCompile(t *testing.T) {
	cutoff := time.Date(2024, 2, 3, 4, 5, 6, 7, time.UTC)

	tests := []struct {
		name  string
		query search.Query
		want  string
	}{
		{name: "nil is all", query: nil, want: `{}`},
		{name: "all", query: search.All(), want: `{}`},
		{name: "equal", query: search.Equal("state", "Connected"), want: `{"state":"Connected"}`},
		{name: "not equal", query: search.NotEqual("state", "Error"), want: `{"state":{"$neq":"Error"}}`},
		{name: "greater", query: search.Greater("n", "5"), want: `{"n":{"$gt":"5"}}`},
		{name: "greater or equal", query: search.GreaterOrEqual("n", "5"), want: `{"n":{"$gte":"5"}}`},
		{name: "less", query: search.Less("n", "5"), want: `{"n":{"$lt":"5"}}`},
		{name: "less or equal", query: search.LessOrEqual("n", "5"), want: `{"n":{"$lte":"5"}}`},
		{name: "like", query: search.Like("alias", "Fab%"), want: `{"alias":{"$like":"Fab%"}}`},
		{name: "in", query: search.In("state", "Invited", "Negotiating"), want: `{"state":{"$in":["Invited","Negotiating"]}}`},
		{name: "after", query: search.After(record.TagCreatedAt, cutoff), want: `{"created_at":{"$gt":"2024-02-03T04:05:06.000000007Z"}}`},
		{name: "before", query: search.Before(record.TagUpdatedAt, cutoff), want: `{"updated_at":{"$lt":"2024-02-03T04:05:06.000000007Z"}}`},
		{
			name:  "and",
			query: search.And(search.Equal("a", "1"), search.Greater("b", "2")),
			want:  `{"$and":[{"a":"1"},{"b":{"$gt":"2"}}]}`,
		},
		{name: "empty or", query: search.Or(), want: `{"$or":[]}`},
		{
			name:  "nested",
			query: search.Or(search.Not(search.Equal("a", "1")), search.And()),
			want:  `{"$or":[{"$not":{"a":"1"}},{}]}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := search.Compile(tt.query)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))

			_, err = wql.Parse(got)
			assert.NoError(t, err, "compiled query must parse as WQL")
		})
	}
}

func TestCompileIsDeterministic(t *testing.T) {
	q := search.And(
		search.In("state", "b", "a"),
		search.Or(search.Less("x", "1"), search.Not(search.Like("y", "%z"))),
	)
	first, err := search.Compile(q)
	require.NoError(t, err)
	for range 20 {
		again, err := search.Compile(q)
		require.NoError(t, err)
		assert.Equal(t, string(first), string(again))
	}
}

func TestCompileRejectsInvalidTrees(t *testing.T) {
	tests := []struct {
		name  string
		query search.Query
	}{
		{name: "empty tag", query: search.Equal("", "x")},
		{name: "reserved tag", query: search.Equal("$and", "x")},
		{name: "empty in", query: search.In("state")},
		{name: "nil not operand", query: search.Not(nil)},
		{name: "nil and operand", query: search.And(search.Equal("a", "1"), nil)},
		{name: "nested invalid", query: search.Or(search.Not(search.Less("", "1")))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := search.Compile(tt.query)
			assert.ErrorIs(t, err, search.ErrInvalidQuery)
		})
	}
}

func TestCompiledQueriesMatchTags(t *testing.T) {
	tags := map[string]string{"state": "Connected", "created_at": "2024-02-03T04:05:06.000000008Z"}
	cutoff := time.Date(2024, 2, 3, 4, 5, 6, 7, time.UTC)

	match := func(q search.Query) bool {
		raw, err := search.Compile(q)
		require.NoError(t, err)
		e, err := wql.Parse(raw)
		require.NoError(t, err)
		return wql.Match(e, tags)
	}

	assert.True(t, match(search.After(record.TagCreatedAt, cutoff)))
	assert.False(t, match(search.Before(record.TagCreatedAt, cutoff)))
	assert.True(t, match(search.And(search.Equal("state", "Connected"), search.All())))
	assert.False(t, match(search.Or()))
	assert.False(t, match(search.Equal("missing", "")))
	assert.True(t, match(search.Not(search.Equal("missing", ""))))
}
