package vectordb

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCollectionName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "simple lowercase", input: "documents", wantErr: false},
		{name: "with underscores and digits", input: "team_docs_v2", wantErr: false},
		{name: "single character", input: "a", wantErr: false},
		{name: "max length", input: strings.Repeat("a", 64), wantErr: false},
		{name: "empty", input: "", wantErr: true},
		{name: "too long", input: strings.Repeat("a", 65), wantErr: true},
		{name: "uppercase", input: "Documents", wantErr: true},
		{name: "hyphen", input: "team-docs", wantErr: true},
		{name: "space", input: "team docs", wantErr: true},
		{name: "path traversal", input: "../etc", wantErr: true},
		{name: "dot", input: "docs.v1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCollectionName(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidCollectionName)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStandardSchema(t *testing.T) {
	schema := StandardSchema(768)

	require.Len(t, schema.Fields, 4)
	assert.Equal(t, 768, schema.VectorDim())

	pk := schema.Fields[0]
	assert.Equal(t, "id", pk.Name)
	assert.Equal(t, FieldTypeInt64, pk.Type)
	assert.True(t, pk.PrimaryKey)
	assert.True(t, pk.AutoID)

	vec := schema.Fields[1]
	assert.Equal(t, "embedding", vec.Name)
	assert.Equal(t, FieldTypeFloatVector, vec.Type)
	assert.Equal(t, 768, vec.Dim)
}

func TestSchemaVectorDimWithoutVectorField(t *testing.T) {
	schema := Schema{Fields: []Field{{Name: "id", Type: FieldTypeInt64}}}
	assert.Equal(t, 0, schema.VectorDim())
}

func TestRecordValidate(t *testing.T) {
	tests := []struct {
		name    string
		record  Record
		dim     int
		wantErr bool
	}{
		{
			name:   "valid",
			record: Record{Embedding: []float32{0.1, 0.2, 0.3}, Text: "hello"},
			dim:    3,
		},
		{
			name:    "dimension mismatch",
			record:  Record{Embedding: []float32{0.1, 0.2}},
			dim:     3,
			wantErr: true,
		},
		{
			name:    "empty embedding",
			record:  Record{},
			dim:     3,
			wantErr: true,
		},
		{
			name:    "NaN component",
			record:  Record{Embedding: []float32{0.1, float32(math.NaN()), 0.3}},
			dim:     3,
			wantErr: true,
		},
		{
			name:    "infinite component",
			record:  Record{Embedding: []float32{0.1, float32(math.Inf(1)), 0.3}},
			dim:     3,
			wantErr: true,
		},
		{
			name: "reserved attribute key",
			record: Record{
				Embedding:  []float32{0.1, 0.2, 0.3},
				Attributes: map[string]any{"embedding": "nope"},
			},
			dim:     3,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.record.Validate(tt.dim)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidRecord)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
