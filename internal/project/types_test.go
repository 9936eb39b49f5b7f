package project

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaRoundTripsThroughJSON(t *testing.T) {
	schema := Schema{Columns: []Column{
		TextualColumn{base: base{Name: "review", Active: true}, Language: "en"},
		ContinuousColumn{base: base{Name: "rating"}},
		CategoricalColumn{base: base{Name: "store"}},
	}}

	data, err := json.Marshal(schema)
	require.NoError(t, err)

	var decoded Schema
	require.NoError(t, json.Unmarshal(data, &decoded))

	require.Len(t, decoded.Columns, 3)
	assert.Equal(t, ColumnTextual, decoded.Columns[0].ColumnType())
	assert.Equal(t, "review", decoded.Columns[0].ColumnName())
	assert.Equal(t, ColumnContinuous, decoded.Columns[1].ColumnType())
	assert.Equal(t, ColumnCategorical, decoded.Columns[2].ColumnType())
}

func TestFindReturnsMissingColumnForUnknownName(t *testing.T) {
	schema := Schema{Columns: []Column{ContinuousColumn{base: base{Name: "rating"}}}}

	_, err := schema.Find("nonexistent")

	assert.Error(t, err)
}

func TestUnmarshalColumnRejectsUnknownType(t *testing.T) {
	_, err := UnmarshalColumn([]byte(`{"type":"bogus","name":"x"}`))

	assert.Error(t, err)
}

func TestTextualColumnCompanionNames(t *testing.T) {
	c := TextualColumn{base: base{Name: "review"}}

	assert.Equal(t, "review (Preprocessed)", c.PreprocessedColumnName())
	assert.Equal(t, "review (Topic)", c.TopicColumnName())
}
