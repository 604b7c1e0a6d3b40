package models

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mini_orm/internal/db"
	"mini_orm/internal/orm"
	"mini_orm/internal/predicate"
	"mini_orm/internal/statement"
)

func TestCatalogRegistersEveryModel(t *testing.T) {
	cat, err := Catalog()
	require.NoError(t, err)

	var tables []string
	for _, d := range cat.Descriptors() {
		tables = append(tables, d.Table)
	}
	assert.Equal(t, []string{"custom_patients", "custom_doctors", "custom_diseases", "custom_medications"}, tables)

	patients, err := cat.Registry().Describe("Patient")
	require.NoError(t, err)
	assert.Equal(t, `CREATE TABLE IF NOT EXISTS "custom_patients" (
    "patient_id" SERIAL PRIMARY KEY,
    "first_name" VARCHAR(100) NOT NULL,
    "last_name" VARCHAR(100) NOT NULL,
    "oib" VARCHAR(11) NOT NULL UNIQUE,
    "date_of_birth" TIMESTAMP NOT NULL,
    "gender" VARCHAR(1) NOT NULL,
    "phone" VARCHAR(20),
    "email" VARCHAR(100),
    "address" TEXT
)`, statement.CreateTable(patients))
}

func TestDiseaseIncludesPatient(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer sqlDB.Close()
	cat, err := Catalog()
	require.NoError(t, err)
	s := orm.NewSession(db.OpenDB(sqlDB), cat)

	diagnosed := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT "disease_id", "patient_id", "name", "diagnosis_date", "recovery_date", "notes" FROM "custom_diseases" WHERE ("recovery_date" IS NULL)`).
		WillReturnRows(sqlmock.NewRows([]string{"disease_id", "patient_id", "name", "diagnosis_date", "recovery_date", "notes"}).
			AddRow(int64(5), int64(2), "Flu", diagnosed, nil, nil))
	mock.ExpectQuery(`SELECT "patient_id", "first_name", "last_name", "oib", "date_of_birth", "gender", "phone", "email", "address" FROM "custom_patients" WHERE ("patient_id" = $1)`).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"patient_id", "first_name", "last_name", "oib", "date_of_birth", "gender", "phone", "email", "address"}).
			AddRow(int64(2), "Ana", "Horvat", "12345678901", time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC), "F", nil, "ana@example.com", nil))

	active, err := orm.Set(s, Diseases).Where(predicate.Eq("RecoveryDate", nil)).Include("Patient").ToList(context.Background())
	require.NoError(t, err)
	require.Len(t, active, 1)
	d := active[0]
	assert.True(t, d.Active())
	assert.Equal(t, diagnosed, d.DiagnosisDate)
	require.NotNil(t, d.Patient)
	assert.Equal(t, "Ana Horvat", d.Patient.FullName())
	require.NotNil(t, d.Patient.Email)
	assert.Equal(t, "ana@example.com", *d.Patient.Email)
	assert.Nil(t, d.Patient.Phone)
	require.NoError(t, mock.ExpectationsWereMet())
}
