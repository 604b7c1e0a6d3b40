package models

import (
	"time"

	"mini_orm/internal/codec"
	"mini_orm/internal/orm"
	"mini_orm/internal/schema"
)

type Disease struct {
	DiseaseID     int64
	PatientID     int64
	Name          string
	DiagnosisDate time.Time
	RecoveryDate  *time.Time
	Notes         *string

	Patient *Patient
}

// Active reports whether the patient has not recovered yet.
func (d *Disease) Active() bool { return d.RecoveryDate == nil }

var Diseases = &orm.Model[Disease]{
	Schema: schema.Descriptor{
		Name:  "Disease",
		Table: "custom_diseases",
		Columns: []schema.Column{
			{Field: "DiseaseID", Name: "disease_id", Type: schema.Integer, PrimaryKey: true, AutoIncrement: true},
			{Field: "PatientID", Name: "patient_id", Type: schema.Integer},
			{Field: "Name", Name: "name", Type: schema.Text, SQLType: "VARCHAR(200)"},
			{Field: "DiagnosisDate", Name: "diagnosis_date", Type: schema.Timestamp},
			{Field: "RecoveryDate", Name: "recovery_date", Type: schema.OptionalTimestamp, Nullable: true},
			{Field: "Notes", Name: "notes", Type: schema.Text, SQLType: "TEXT", Nullable: true},
		},
		Relations: []schema.Relation{
			{Name: "Patient", Target: "Patient", ForeignKey: "PatientID", Cardinality: schema.One},
		},
	},
	Fields: []orm.Field[Disease]{
		{Name: "DiseaseID", Get: func(d *Disease) any { return d.DiseaseID }, Set: func(d *Disease, v any) { d.DiseaseID = codec.Int64(v) }},
		{Name: "PatientID", Get: func(d *Disease) any { return d.PatientID }, Set: func(d *Disease, v any) { d.PatientID = codec.Int64(v) }},
		{Name: "Name", Get: func(d *Disease) any { return d.Name }, Set: func(d *Disease, v any) { d.Name = codec.String(v) }},
		{Name: "DiagnosisDate", Get: func(d *Disease) any { return d.DiagnosisDate }, Set: func(d *Disease, v any) { d.DiagnosisDate = codec.Time(v) }},
		{Name: "RecoveryDate", Get: func(d *Disease) any { return d.RecoveryDate }, Set: func(d *Disease, v any) { d.RecoveryDate = codec.TimePtr(v) }},
		{Name: "Notes", Get: func(d *Disease) any { return d.Notes }, Set: func(d *Disease, v any) { d.Notes = codec.StringPtr(v) }},
	},
	Links: []orm.Link[Disease]{
		{Name: "Patient", Assign: func(d *Disease, rel []any) { d.Patient = orm.One[Patient](rel) }},
	},
}
