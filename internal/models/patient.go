// Package models declares the medical registry records and their mappings.
package models

import (
	"time"

	"mini_orm/internal/codec"
	"mini_orm/internal/orm"
	"mini_orm/internal/schema"
)

type Patient struct {
	PatientID   int64
	FirstName   string
	LastName    string
	OIB         string
	DateOfBirth time.Time
	Gender      string
	Phone       *string
	Email       *string
	Address     *string

	Diseases    []*Disease
	Medications []*Medication
}

// FullName joins first and last name.
func (p *Patient) FullName() string { return p.FirstName + " " + p.LastName }

var Patients = &orm.Model[Patient]{
	Schema: schema.Descriptor{
		Name:  "Patient",
		Table: "custom_patients",
		Columns: []schema.Column{
			{Field: "PatientID", Name: "patient_id", Type: schema.Integer, PrimaryKey: true, AutoIncrement: true},
			{Field: "FirstName", Name: "first_name", Type: schema.Text, SQLType: "VARCHAR(100)"},
			{Field: "LastName", Name: "last_name", Type: schema.Text, SQLType: "VARCHAR(100)"},
			{Field: "OIB", Name: "oib", Type: schema.Text, SQLType: "VARCHAR(11)", Unique: true},
			{Field: "DateOfBirth", Name: "date_of_birth", Type: schema.Timestamp},
			{Field: "Gender", Name: "gender", Type: schema.Text, SQLType: "VARCHAR(1)"},
			{Field: "Phone", Name: "phone", Type: schema.Text, SQLType: "VARCHAR(20)", Nullable: true},
			{Field: "Email", Name: "email", Type: schema.Text, SQLType: "VARCHAR(100)", Nullable: true},
			{Field: "Address", Name: "address", Type: schema.Text, SQLType: "TEXT", Nullable: true},
		},
		Relations: []schema.Relation{
			{Name: "Diseases", Target: "Disease", ForeignKey: "PatientID", Cardinality: schema.Many},
			{Name: "Medications", Target: "Medication", ForeignKey: "PatientID", Cardinality: schema.Many},
		},
	},
	Fields: []orm.Field[Patient]{
		{Name: "PatientID", Get: func(p *Patient) any { return p.PatientID }, Set: func(p *Patient, v any) { p.PatientID = codec.Int64(v) }},
		{Name: "FirstName", Get: func(p *Patient) any { return p.FirstName }, Set: func(p *Patient, v any) { p.FirstName = codec.String(v) }},
		{Name: "LastName", Get: func(p *Patient) any { return p.LastName }, Set: func(p *Patient, v any) { p.LastName = codec.String(v) }},
		{Name: "OIB", Get: func(p *Patient) any { return p.OIB }, Set: func(p *Patient, v any) { p.OIB = codec.String(v) }},
		{Name: "DateOfBirth", Get: func(p *Patient) any { return p.DateOfBirth }, Set: func(p *Patient, v any) { p.DateOfBirth = codec.Time(v) }},
		{Name: "Gender", Get: func(p *Patient) any { return p.Gender }, Set: func(p *Patient, v any) { p.Gender = codec.String(v) }},
		{Name: "Phone", Get: func(p *Patient) any { return p.Phone }, Set: func(p *Patient, v any) { p.Phone = codec.StringPtr(v) }},
		{Name: "Email", Get: func(p *Patient) any { return p.Email }, Set: func(p *Patient, v any) { p.Email = codec.StringPtr(v) }},
		{Name: "Address", Get: func(p *Patient) any { return p.Address }, Set: func(p *Patient, v any) { p.Address = codec.StringPtr(v) }},
	},
	Links: []orm.Link[Patient]{
		{Name: "Diseases", Assign: func(p *Patient, rel []any) { p.Diseases = orm.Many[Disease](rel) }},
		{Name: "Medications", Assign: func(p *Patient, rel []any) { p.Medications = orm.Many[Medication](rel) }},
	},
}
