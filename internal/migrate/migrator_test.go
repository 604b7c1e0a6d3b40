package migrate

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mini_orm/internal/db"
	"mini_orm/internal/schema"
	"mini_orm/internal/statement"
)

var columnNames = []string{"column_name", "data_type", "character_maximum_length", "numeric_precision", "numeric_scale", "is_nullable", "column_default"}

func newIntrospector(t *testing.T) (*Introspector, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return NewIntrospector(db.OpenDB(sqlDB), ""), mock
}

func TestIntrospectorRebuildsFullTypes(t *testing.T) {
	intro, mock := newIntrospector(t)
	mock.ExpectQuery(columnsQuery).WithArgs("public", "custom_patients").
		WillReturnRows(sqlmock.NewRows(columnNames).
			AddRow("patient_id", "integer", nil, int64(32), int64(0), "NO", "nextval('custom_patients_patient_id_seq'::regclass)").
			AddRow("first_name", "character varying", int64(100), nil, nil, "NO", nil).
			AddRow("gender", "character", int64(1), nil, nil, "NO", nil).
			AddRow("balance", "numeric", nil, int64(18), int64(2), "YES", nil).
			AddRow("notes", "text", nil, nil, nil, "YES", nil))
	mock.ExpectQuery(primaryKeyQuery).WithArgs("public", "custom_patients").
		WillReturnRows(sqlmock.NewRows([]string{"column_name"}).AddRow("patient_id"))

	tbl, err := intro.Table(context.Background(), "custom_patients")
	require.NoError(t, err)
	require.NotNil(t, tbl)
	assert.Equal(t, []string{"patient_id"}, tbl.PrimaryKey)

	var types []string
	for _, c := range tbl.Columns {
		types = append(types, c.DataType)
	}
	assert.Equal(t, []string{"integer", "character varying(100)", "character(1)", "numeric(18,2)", "text"}, types)

	id, ok := tbl.Column("patient_id")
	require.True(t, ok)
	assert.False(t, id.IsNullable)
	assert.True(t, id.DefaultValue.Valid)
	notes, _ := tbl.Column("notes")
	assert.True(t, notes.IsNullable)
	assert.False(t, notes.DefaultValue.Valid)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIntrospectorMissingTable(t *testing.T) {
	intro, mock := newIntrospector(t)
	mock.ExpectQuery(columnsQuery).WithArgs("public", "custom_doctors").
		WillReturnRows(sqlmock.NewRows(columnNames))

	tbl, err := intro.Table(context.Background(), "custom_doctors")
	require.NoError(t, err)
	assert.Nil(t, tbl)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGenerateCombinesTables(t *testing.T) {
	reg := schema.NewRegistry()
	patients := reg.MustRegister(schema.Descriptor{
		Name:  "Patient",
		Table: "custom_patients",
		Columns: []schema.Column{
			{Name: "patient_id", Type: schema.Integer, PrimaryKey: true, AutoIncrement: true},
			{Name: "first_name", Type: schema.Text, SQLType: "VARCHAR(100)"},
			{Name: "email", Type: schema.Text, SQLType: "VARCHAR(100)", Nullable: true},
		},
	})
	diseases := reg.MustRegister(schema.Descriptor{
		Name:  "Disease",
		Table: "custom_diseases",
		Columns: []schema.Column{
			{Name: "disease_id", Type: schema.Integer, PrimaryKey: true, AutoIncrement: true},
			{Name: "name", Type: schema.Text, SQLType: "VARCHAR(200)"},
		},
	})

	intro, mock := newIntrospector(t)
	mock.ExpectQuery(columnsQuery).WithArgs("public", "custom_patients").
		WillReturnRows(sqlmock.NewRows(columnNames).
			AddRow("patient_id", "integer", nil, int64(32), int64(0), "NO", nil).
			AddRow("first_name", "character varying", int64(100), nil, nil, "NO", nil))
	mock.ExpectQuery(primaryKeyQuery).WithArgs("public", "custom_patients").
		WillReturnRows(sqlmock.NewRows([]string{"column_name"}).AddRow("patient_id"))
	mock.ExpectQuery(columnsQuery).WithArgs("public", "custom_diseases").
		WillReturnRows(sqlmock.NewRows(columnNames))

	g := NewGenerator(intro)
	g.now = func() time.Time { return time.Date(2026, 2, 9, 15, 36, 44, 0, time.FixedZone("CET", 3600)) }

	m, err := g.Generate(context.Background(), []*schema.Descriptor{patients, diseases}, "Add email & diseases")
	require.NoError(t, err)
	assert.Equal(t, "20260209143644_add_email_diseases", m.ID)
	assert.Equal(t, "Add email & diseases", m.Description)
	assert.False(t, m.Empty())
	assert.Equal(t, `ALTER TABLE "custom_patients" ADD COLUMN "email" VARCHAR(100);

`+statement.CreateTable(diseases)+`;`, m.Up)
	assert.Equal(t, `DROP TABLE IF EXISTS "custom_diseases";

ALTER TABLE "custom_patients" DROP COLUMN "email";`, m.Down)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGenerateWithoutChangesIsEmpty(t *testing.T) {
	d := schema.NewRegistry().MustRegister(schema.Descriptor{
		Name:    "Doctor",
		Table:   "custom_doctors",
		Columns: []schema.Column{{Name: "doctor_id", Type: schema.Integer, PrimaryKey: true, AutoIncrement: true}},
	})
	intro, mock := newIntrospector(t)
	mock.ExpectQuery(columnsQuery).WithArgs("public", "custom_doctors").
		WillReturnRows(sqlmock.NewRows(columnNames).AddRow("doctor_id", "integer", nil, int64(32), int64(0), "NO", nil))
	mock.ExpectQuery(primaryKeyQuery).WithArgs("public", "custom_doctors").
		WillReturnRows(sqlmock.NewRows([]string{"column_name"}).AddRow("doctor_id"))

	m, err := NewGenerator(intro).Generate(context.Background(), []*schema.Descriptor{d}, "noop")
	require.NoError(t, err)
	assert.True(t, m.Empty())
	assert.Empty(t, m.Up)
	assert.Empty(t, m.Down)
}

func TestNewID(t *testing.T) {
	at := time.Date(2026, 2, 9, 14, 36, 44, 0, time.UTC)
	tests := []struct {
		description, want string
	}{
		{"Initial", "20260209143644_initial"},
		{"Add patient e-mail", "20260209143644_add_patient_e_mail"},
		{"  --  ", "20260209143644_migration"},
	}
	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			assert.Equal(t, tt.want, NewID(tt.description, at))
		})
	}
}
