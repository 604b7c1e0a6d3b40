package models

import (
	"mini_orm/internal/codec"
	"mini_orm/internal/orm"
	"mini_orm/internal/schema"
)

type Doctor struct {
	DoctorID       int64
	FirstName      string
	LastName       string
	Specialization string
	Email          *string
	Phone          *string
	LicenseNumber  string
}

var Doctors = &orm.Model[Doctor]{
	Schema: schema.Descriptor{
		Name:  "Doctor",
		Table: "custom_doctors",
		Columns: []schema.Column{
			{Field: "DoctorID", Name: "doctor_id", Type: schema.Integer, PrimaryKey: true, AutoIncrement: true},
			{Field: "FirstName", Name: "first_name", Type: schema.Text, SQLType: "VARCHAR(100)"},
			{Field: "LastName", Name: "last_name", Type: schema.Text, SQLType: "VARCHAR(100)"},
			{Field: "Specialization", Name: "specialization", Type: schema.Text, SQLType: "VARCHAR(100)"},
			{Field: "Email", Name: "email", Type: schema.Text, SQLType: "VARCHAR(100)", Nullable: true, Unique: true},
			{Field: "Phone", Name: "phone", Type: schema.Text, SQLType: "VARCHAR(20)", Nullable: true},
			{Field: "LicenseNumber", Name: "license_number", Type: schema.Text, SQLType: "VARCHAR(50)", Unique: true},
		},
	},
	Fields: []orm.Field[Doctor]{
		{Name: "DoctorID", Get: func(d *Doctor) any { return d.DoctorID }, Set: func(d *Doctor, v any) { d.DoctorID = codec.Int64(v) }},
		{Name: "FirstName", Get: func(d *Doctor) any { return d.FirstName }, Set: func(d *Doctor, v any) { d.FirstName = codec.String(v) }},
		{Name: "LastName", Get: func(d *Doctor) any { return d.LastName }, Set: func(d *Doctor, v any) { d.LastName = codec.String(v) }},
		{Name: "Specialization", Get: func(d *Doctor) any { return d.Specialization }, Set: func(d *Doctor, v any) { d.Specialization = codec.String(v) }},
		{Name: "Email", Get: func(d *Doctor) any { return d.Email }, Set: func(d *Doctor, v any) { d.Email = codec.StringPtr(v) }},
		{Name: "Phone", Get: func(d *Doctor) any { return d.Phone }, Set: func(d *Doctor, v any) { d.Phone = codec.StringPtr(v) }},
		{Name: "LicenseNumber", Get: func(d *Doctor) any { return d.LicenseNumber }, Set: func(d *Doctor, v any) { d.LicenseNumber = codec.String(v) }},
	},
}
