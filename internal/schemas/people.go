// Package schemas holds the Arrow schemas shared by the generator, the
// converters, the ingest backends and the engines.
package schemas

import (
	"github.com/apache/arrow/go/v17/arrow"
)

// Column names of the synthetic people dataset. Everything downstream (DDL
// generation, the fixed analytical query, the export projection) refers to
// these instead of repeating string literals.
const (
	PeopleID       = "id"
	PeopleName     = "name"
	PeopleEmail    = "email"
	PeopleAge      = "age"
	PeopleScore    = "score"
	PeopleSignedUp = "signed_up"
)

// PeopleSchema returns the schema every synthetic file is written with and
// every reader expects: a flat record of identifiers, faker strings, and
// numeric/date columns. Dates travel as days-since-epoch in memory and as
// ISO "2006-01-02" text in CSV and JSON.
func PeopleSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: PeopleID, Type: arrow.PrimitiveTypes.Int64},
		{Name: PeopleName, Type: arrow.BinaryTypes.String},
		{Name: PeopleEmail, Type: arrow.BinaryTypes.String},
		{Name: PeopleAge, Type: arrow.PrimitiveTypes.Int64},
		{Name: PeopleScore, Type: arrow.PrimitiveTypes.Float64},
		{Name: PeopleSignedUp, Type: arrow.FixedWidthTypes.Date32},
	}, nil)
}

// ResultSchema returns the shape of the fixed query's answer: one row per
// surviving group with its averaged age.
func ResultSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: PeopleName, Type: arrow.BinaryTypes.String},
		{Name: "avg_age", Type: arrow.PrimitiveTypes.Float64},
	}, nil)
}

// ExportSchema returns the projection written by the optional export step.
func ExportSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: PeopleName, Type: arrow.BinaryTypes.String},
		{Name: PeopleEmail, Type: arrow.BinaryTypes.String},
		{Name: PeopleAge, Type: arrow.PrimitiveTypes.Int64},
	}, nil)
}
