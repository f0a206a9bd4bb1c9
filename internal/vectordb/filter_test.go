package vectordb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterValidate(t *testing.T) {
	tests := []struct {
		name    string
		filter  Filter
		wantErr bool
	}{
		{name: "equality", filter: Eq("team", "platform")},
		{name: "numeric comparison", filter: Filter{Field: "score", Operator: OpGt, Value: 5}},
		{name: "in with string slice", filter: Filter{Field: "env", Operator: OpIn, Value: []string{"dev", "prod"}}},
		{name: "in with any slice", filter: Filter{Field: "env", Operator: OpIn, Value: []any{"dev", 2}}},
		{name: "missing field", filter: Filter{Operator: OpEq, Value: "x"}, wantErr: true},
		{name: "unknown operator", filter: Filter{Field: "a", Operator: "~=", Value: "x"}, wantErr: true},
		{name: "in with scalar", filter: Filter{Field: "env", Operator: OpIn, Value: "dev"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.filter.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidFilter)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCompileExpr(t *testing.T) {
	tests := []struct {
		name    string
		filters []Filter
		want    string
	}{
		{
			name:    "empty",
			filters: nil,
			want:    "",
		},
		{
			name:    "single equality",
			filters: []Filter{Eq("record_type", "collection_metadata")},
			want:    `record_type == "collection_metadata"`,
		},
		{
			name: "conjunction",
			filters: []Filter{
				Eq("team", "platform"),
				{Field: "priority", Operator: OpGe, Value: 3},
			},
			want: `team == "platform" && priority >= 3`,
		},
		{
			name:    "in list",
			filters: []Filter{{Field: "env", Operator: OpIn, Value: []string{"dev", "prod"}}},
			want:    `env in ["dev", "prod"]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := CompileExpr(tt.filters)
			require.NoError(t, err)
			assert.Equal(t, tt.want, expr)
		})
	}
}

func TestCompileExprRejectsInvalidFilter(t *testing.T) {
	_, err := CompileExpr([]Filter{{Operator: OpEq, Value: "x"}})
	assert.ErrorIs(t, err, ErrInvalidFilter)
}

func TestMatches(t *testing.T) {
	attrs := map[string]any{
		"team":     "platform",
		"priority": 3,
		"ratio":    0.5,
		"env":      "prod",
		"archived": false,
	}

	tests := []struct {
		name    string
		filters []Filter
		want    bool
	}{
		{name: "no filters matches everything", filters: nil, want: true},
		{name: "equality hit", filters: []Filter{Eq("team", "platform")}, want: true},
		{name: "equality miss", filters: []Filter{Eq("team", "infra")}, want: false},
		{name: "missing field", filters: []Filter{Eq("owner", "anyone")}, want: false},
		{name: "not equal", filters: []Filter{{Field: "env", Operator: OpNe, Value: "dev"}}, want: true},
		{name: "greater than int", filters: []Filter{{Field: "priority", Operator: OpGt, Value: 2}}, want: true},
		{name: "less or equal float", filters: []Filter{{Field: "ratio", Operator: OpLe, Value: 0.5}}, want: true},
		{name: "numeric operator over non-numeric", filters: []Filter{{Field: "team", Operator: OpGt, Value: 1}}, want: false},
		{name: "in hit", filters: []Filter{{Field: "env", Operator: OpIn, Value: []string{"dev", "prod"}}}, want: true},
		{name: "in miss", filters: []Filter{{Field: "env", Operator: OpIn, Value: []string{"dev", "staging"}}}, want: false},
		{name: "like substring", filters: []Filter{{Field: "team", Operator: OpLike, Value: "%latfo%"}}, want: true},
		{name: "bool equality", filters: []Filter{Eq("archived", false)}, want: true},
		{
			name: "conjunction short-circuits on miss",
			filters: []Filter{
				Eq("team", "platform"),
				Eq("env", "dev"),
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(attrs, tt.filters))
		})
	}
}
