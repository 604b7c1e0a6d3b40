package models

import (
	"time"

	"mini_orm/internal/codec"
	"mini_orm/internal/orm"
	"mini_orm/internal/schema"
)

type Medication struct {
	MedicationID int64
	PatientID    int64
	Name         string
	Dosage       string
	Frequency    string
	StartDate    time.Time
	EndDate      *time.Time
	Notes        *string

	Patient *Patient
}

var Medications = &orm.Model[Medication]{
	Schema: schema.Descriptor{
		Name:  "Medication",
		Table: "custom_medications",
		Columns: []schema.Column{
			{Field: "MedicationID", Name: "medication_id", Type: schema.Integer, PrimaryKey: true, AutoIncrement: true},
			{Field: "PatientID", Name: "patient_id", Type: schema.Integer},
			{Field: "Name", Name: "name", Type: schema.Text, SQLType: "VARCHAR(200)"},
			{Field: "Dosage", Name: "dosage", Type: schema.Text, SQLType: "VARCHAR(100)"},
			{Field: "Frequency", Name: "frequency", Type: schema.Text, SQLType: "VARCHAR(100)"},
			{Field: "StartDate", Name: "start_date", Type: schema.Timestamp},
			{Field: "EndDate", Name: "end_date", Type: schema.OptionalTimestamp, Nullable: true},
			{Field: "Notes", Name: "notes", Type: schema.Text, SQLType: "TEXT", Nullable: true},
		},
		Relations: []schema.Relation{
			{Name: "Patient", Target: "Patient", ForeignKey: "PatientID", Cardinality: schema.One},
		},
	},
	Fields: []orm.Field[Medication]{
		{Name: "MedicationID", Get: func(m *Medication) any { return m.MedicationID }, Set: func(m *Medication, v any) { m.MedicationID = codec.Int64(v) }},
		{Name: "PatientID", Get: func(m *Medication) any { return m.PatientID }, Set: func(m *Medication, v any) { m.PatientID = codec.Int64(v) }},
		{Name: "Name", Get: func(m *Medication) any { return m.Name }, Set: func(m *Medication, v any) { m.Name = codec.String(v) }},
		{Name: "Dosage", Get: func(m *Medication) any { return m.Dosage }, Set: func(m *Medication, v any) { m.Dosage = codec.String(v) }},
		{Name: "Frequency", Get: func(m *Medication) any { return m.Frequency }, Set: func(m *Medication, v any) { m.Frequency = codec.String(v) }},
		{Name: "StartDate", Get: func(m *Medication) any { return m.StartDate }, Set: func(m *Medication, v any) { m.StartDate = codec.Time(v) }},
		{Name: "EndDate", Get: func(m *Medication) any { return m.EndDate }, Set: func(m *Medication, v any) { m.EndDate = codec.TimePtr(v) }},
		{Name: "Notes", Get: func(m *Medication) any { return m.Notes }, Set: func(m *Medication, v any) { m.Notes = codec.StringPtr(v) }},
	},
	Links: []orm.Link[Medication]{
		{Name: "Patient", Assign: func(m *Medication, rel []any) { m.Patient = orm.One[Patient](rel) }},
	},
}
