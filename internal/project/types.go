// Package project holds the project/schema/workspace data model (§3)
// and the per-project cache Manager (C3) that wires the generic
// internal/cache.Adapter to concrete on-disk artifact kinds via
// internal/paths and internal/lock.
package project

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ternarybob/analysisd/internal/apperr"
)

// ColumnType discriminates the schema column variants. Column is a
// tagged union expressed as a Go interface plus one concrete struct
// per variant, the way the teacher hand-rolls its config sub-structs
// rather than reaching for a schema/ORM library.
type ColumnType string

const (
	ColumnTextual            ColumnType = "textual"
	ColumnContinuous         ColumnType = "continuous"
	ColumnOrderedCategorical ColumnType = "ordered_categorical"
	ColumnCategorical        ColumnType = "categorical"
	ColumnMultiCategorical   ColumnType = "multi_categorical"
	ColumnTemporal           ColumnType = "temporal"
	ColumnGeospatial         ColumnType = "geospatial"
	ColumnUnique             ColumnType = "unique"
	ColumnBoolean            ColumnType = "boolean"
	ColumnTopic              ColumnType = "topic"
)

// Column is implemented by every schema column variant.
type Column interface {
	ColumnName() string
	ColumnType() ColumnType
}

type base struct {
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

func (b base) ColumnName() string { return b.Name }

// TextualColumn is a free-text column eligible for topic modeling.
type TextualColumn struct {
	base
	// RemoveStopwords and MinWordLength drive the Preprocess stage
	// (§4.7 stage 2); Language selects the stopword list.
	Language        string `json:"language"`
	RemoveStopwords bool   `json:"remove_stopwords"`
	MinWordLength   int    `json:"min_word_length"`
	// OutlierReduction, from original_source: how topic assignments
	// for outlier documents are reduced before postprocess (§12).
	OutlierReduction string        `json:"outlier_reduction"`
	TopicModeling    TopicModeling `json:"topic_modeling"`
	// LabelOverrides maps a topic id to a user-supplied label that
	// wins over the top-3 c-TF-IDF term fallback (§12).
	LabelOverrides map[int]string `json:"label_overrides,omitempty"`
}

// TopicModeling carries the clustering hyperparameters the Model
// Builder (§4.7 stage 3) turns into a configured clusterer and
// vectorizer. Field names and defaults are grounded on
// original_source's BERTopicModelBuilder.
type TopicModeling struct {
	// MinTopicSize is an absolute document count; MaxTopicSize is a
	// fraction of the corpus, resolved against corpus size at build
	// time.
	MinTopicSize               int     `json:"min_topic_size"`
	MaxTopicSize               float64 `json:"max_topic_size"`
	ClusteringConservativeness float64 `json:"clustering_conservativeness"`
	// MaxTopics caps the number of topics after reduction; nil means
	// unbounded.
	MaxTopics  *int  `json:"max_topics,omitempty"`
	TopNWords  int   `json:"top_n_words"`
	NGramRange [2]int `json:"n_gram_range"`
}

func (c TextualColumn) ColumnType() ColumnType { return ColumnTextual }

// PreprocessedColumnName returns the companion workspace column
// holding cleaned documents for this textual column.
func (c TextualColumn) PreprocessedColumnName() string {
	return c.Name + " (Preprocessed)"
}

// TopicColumnName returns the companion workspace column holding the
// assigned topic id per row for this textual column.
func (c TextualColumn) TopicColumnName() string {
	return c.Name + " (Topic)"
}

// ContinuousColumn holds a real-valued measurement.
type ContinuousColumn struct {
	base
}

func (c ContinuousColumn) ColumnType() ColumnType { return ColumnContinuous }

// OrderedCategoricalColumn is a categorical column with a meaningful
// category order (e.g. a Likert scale).
type OrderedCategoricalColumn struct {
	base
	CategoryOrder []string `json:"category_order"`
}

func (c OrderedCategoricalColumn) ColumnType() ColumnType { return ColumnOrderedCategorical }

// CategoricalColumn is an unordered categorical column.
type CategoricalColumn struct {
	base
}

func (c CategoricalColumn) ColumnType() ColumnType { return ColumnCategorical }

// MultiCategoricalColumn holds a delimited or JSON-encoded set of
// categories per row.
type MultiCategoricalColumn struct {
	base
	MinFrequency int    `json:"min_frequency"`
	Delimiter    string `json:"delimiter"`
	IsJSON       bool   `json:"is_json"`
}

func (c MultiCategoricalColumn) ColumnType() ColumnType { return ColumnMultiCategorical }

// TemporalColumn holds a date or datetime value.
type TemporalColumn struct {
	base
	DatetimeFormat string `json:"datetime_format,omitempty"`
}

func (c TemporalColumn) ColumnType() ColumnType { return ColumnTemporal }

// GeospatialRole distinguishes latitude from longitude columns.
type GeospatialRole string

const (
	RoleLatitude  GeospatialRole = "latitude"
	RoleLongitude GeospatialRole = "longitude"
)

// GeospatialColumn holds a latitude or longitude value.
type GeospatialColumn struct {
	base
	Role GeospatialRole `json:"role"`
}

func (c GeospatialColumn) ColumnType() ColumnType { return ColumnGeospatial }

// UniqueColumn holds a per-row identifier, excluded from aggregation.
type UniqueColumn struct {
	base
}

func (c UniqueColumn) ColumnType() ColumnType { return ColumnUnique }

// BooleanColumn holds a true/false value.
type BooleanColumn struct {
	base
}

func (c BooleanColumn) ColumnType() ColumnType { return ColumnBoolean }

// TopicColumn is a derived column populated by a prior topic-modeling
// run over a textual column, usable as a categorical filter.
type TopicColumn struct {
	base
	SourceColumn string `json:"source_column"`
}

func (c TopicColumn) ColumnType() ColumnType { return ColumnTopic }

// MarshalColumn encodes a Column with its type discriminator.
func MarshalColumn(c Column) ([]byte, error) {
	body, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(body, &merged); err != nil {
		return nil, err
	}
	typeJSON, _ := json.Marshal(c.ColumnType())
	merged["type"] = typeJSON
	return json.Marshal(merged)
}

// UnmarshalColumn decodes a Column from its JSON envelope, dispatching
// on the "type" discriminator.
func UnmarshalColumn(data []byte) (Column, error) {
	var disc struct {
		Type ColumnType `json:"type"`
	}
	if err := json.Unmarshal(data, &disc); err != nil {
		return nil, fmt.Errorf("decode column envelope: %w", apperr.ErrCorruptedFile)
	}

	switch disc.Type {
	case ColumnTextual:
		var c TextualColumn
		return c, unmarshalInto(data, &c)
	case ColumnContinuous:
		var c ContinuousColumn
		return c, unmarshalInto(data, &c)
	case ColumnOrderedCategorical:
		var c OrderedCategoricalColumn
		return c, unmarshalInto(data, &c)
	case ColumnCategorical:
		var c CategoricalColumn
		return c, unmarshalInto(data, &c)
	case ColumnMultiCategorical:
		var c MultiCategoricalColumn
		return c, unmarshalInto(data, &c)
	case ColumnTemporal:
		var c TemporalColumn
		return c, unmarshalInto(data, &c)
	case ColumnGeospatial:
		var c GeospatialColumn
		return c, unmarshalInto(data, &c)
	case ColumnUnique:
		var c UniqueColumn
		return c, unmarshalInto(data, &c)
	case ColumnBoolean:
		var c BooleanColumn
		return c, unmarshalInto(data, &c)
	case ColumnTopic:
		var c TopicColumn
		return c, unmarshalInto(data, &c)
	default:
		return nil, fmt.Errorf("unknown column type %q: %w", disc.Type, apperr.ErrWrongColumnType)
	}
}

func unmarshalInto[T any](data []byte, out *T) error {
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode column body: %w", apperr.ErrCorruptedFile)
	}
	return nil
}

// Schema is the ordered list of columns bound to a project's data
// source.
type Schema struct {
	Columns []Column `json:"-"`
}

// Find returns the column with the given name.
func (s Schema) Find(name string) (Column, error) {
	for _, c := range s.Columns {
		if c.ColumnName() == name {
			return c, nil
		}
	}
	return nil, fmt.Errorf("column %q: %w", name, apperr.ErrMissingColumn)
}

// MarshalJSON encodes the schema as {"columns": [...]} with each
// column carrying its type discriminator.
func (s Schema) MarshalJSON() ([]byte, error) {
	raw := make([]json.RawMessage, 0, len(s.Columns))
	for _, c := range s.Columns {
		encoded, err := MarshalColumn(c)
		if err != nil {
			return nil, err
		}
		raw = append(raw, encoded)
	}
	return json.Marshal(struct {
		Columns []json.RawMessage `json:"columns"`
	}{Columns: raw})
}

// UnmarshalJSON decodes the schema from its {"columns": [...]} shape.
func (s *Schema) UnmarshalJSON(data []byte) error {
	var wire struct {
		Columns []json.RawMessage `json:"columns"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("decode schema: %w", apperr.ErrCorruptedFile)
	}
	s.Columns = make([]Column, 0, len(wire.Columns))
	for _, raw := range wire.Columns {
		c, err := UnmarshalColumn(raw)
		if err != nil {
			return err
		}
		s.Columns = append(s.Columns, c)
	}
	return nil
}

// Metadata is free-form project description.
type Metadata struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// SourceKind discriminates how a project's tabular data was imported.
type SourceKind string

const (
	SourceCSV     SourceKind = "csv"
	SourceParquet SourceKind = "parquet"
	SourceJSON    SourceKind = "json"
)

// Source describes where a project's data came from. Reading it is a
// Non-goal; only enough is kept to report provenance.
type Source struct {
	Kind SourceKind `json:"kind"`
	Path string     `json:"path"`
}

// Project is the persisted project record (config.json, §6).
type Project struct {
	Version   int       `json:"version"`
	ProjectID string    `json:"project_id"`
	Metadata  Metadata  `json:"metadata"`
	Source    Source    `json:"source"`
	Schema    Schema    `json:"data_schema"`
	CreatedAt time.Time `json:"created_at"`
}

// TextualColumns returns every textual column in the schema.
func (p *Project) TextualColumns() []TextualColumn {
	var out []TextualColumn
	for _, c := range p.Schema.Columns {
		if tc, ok := c.(TextualColumn); ok {
			out = append(out, tc)
		}
	}
	return out
}
