// Package dataset turns raw header-and-rows data into core tables according
// to a per-dataset schema.
package dataset

import (
	"errors"
	"fmt"
	"slices"
)

// Dataset names.
const (
	Avocado = "avocado"
	Movies  = "movies"
	Ratings = "ratings"
)

// Kind says how a column's cells are stored on a Record.
type Kind int

const (
	// Dim columns are kept as opaque strings.
	Dim Kind = iota
	// Value columns must parse as finite numbers.
	Value
)

// Column is one expected column.
type Column struct {
	Name string
	Kind Kind
	// Required columns must appear in the header.
	Required bool
}

// TimeSpec says where a row's timestamp comes from. Exactly one of Column
// (with Layout or Epoch) or the Year/Month/Day triple is used.
type TimeSpec struct {
	Column string
	Layout string
	Epoch  bool

	Year, Month, Day string
}

func (t TimeSpec) fromParts() bool { return t.Year != "" }

// Schema describes one dataset.
type Schema struct {
	Name    string
	Columns []Column
	Time    TimeSpec
	// KeepExtra stores unknown columns too: numeric cells as values, the
	// rest as dims.
	KeepExtra bool
}

var (
	ErrMissingColumn = errors.New("missing required column")
	ErrUnknownSchema = errors.New("unknown dataset")
	ErrEmptyInput    = errors.New("no header row")
)

// Column returns the named column.
func (s Schema) Column(name string) (Column, bool) {
	i := slices.IndexFunc(s.Columns, func(c Column) bool { return c.Name == name })
	if i < 0 {
		return Column{}, false
	}
	return s.Columns[i], true
}

var schemas = map[string]Schema{
	Avocado: {
		Name: Avocado,
		Columns: []Column{
			{Name: "date", Kind: Dim, Required: true},
			{Name: "average_price", Kind: Value, Required: true},
			{Name: "type", Kind: Dim, Required: true},
			{Name: "geography", Kind: Dim, Required: true},
		},
		Time:      TimeSpec{Column: "date", Layout: "2006-01-02"},
		KeepExtra: true,
	},
	Movies: {
		Name: Movies,
		Columns: []Column{
			{Name: "movieId", Kind: Dim, Required: true},
			{Name: "title", Kind: Dim},
			{Name: "genres", Kind: Dim},
			{Name: "userId", Kind: Dim},
			{Name: "rating", Kind: Value, Required: true},
			{Name: "year", Kind: Value},
			{Name: "month", Kind: Value},
			{Name: "day", Kind: Value},
		},
		Time: TimeSpec{Year: "year", Month: "month", Day: "day"},
	},
	Ratings: {
		Name: Ratings,
		Columns: []Column{
			{Name: "userId", Kind: Dim, Required: true},
			{Name: "movieId", Kind: Dim, Required: true},
			{Name: "rating", Kind: Value, Required: true},
			{Name: "timestamp", Kind: Value},
		},
		Time: TimeSpec{Column: "timestamp", Epoch: true},
	},
}

// Lookup returns the schema registered for a dataset name.
func Lookup(name string) (Schema, error) {
	s, ok := schemas[name]
	if !ok {
		return Schema{}, fmt.Errorf("%w: %q", ErrUnknownSchema, name)
	}
	return s, nil
}

// Names lists every known dataset.
func Names() []string {
	return []string{Avocado, Movies, Ratings}
}
