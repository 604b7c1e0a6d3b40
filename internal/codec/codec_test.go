package codec

import (
	"math/big"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mini_orm/internal/schema"
)

func TestToStorage(t *testing.T) {
	ts := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	score := int64(10)
	tests := []struct {
		name string
		in   any
		typ  schema.Type
		want any
	}{
		{"int widened", 7, schema.Integer, int64(7)},
		{"int64 pointer", &score, schema.Integer, int64(10)},
		{"nil pointer", (*int64)(nil), schema.Integer, nil},
		{"text", "Ana", schema.Text, "Ana"},
		{"bool", true, schema.Boolean, true},
		{"timestamp", ts, schema.Timestamp, ts},
		{"optional timestamp", &ts, schema.OptionalTimestamp, ts},
		{"decimal text", "12.50", schema.Decimal, "12.50"},
		{"decimal float", 1.25, schema.Decimal, "1.25"},
		{"double from int", int64(3), schema.Double, float64(3)},
		{"nil", nil, schema.Text, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToStorage(tt.in, tt.typ)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToStorageErrors(t *testing.T) {
	_, err := ToStorage("x", schema.Type(0))
	var unsupported *UnsupportedTypeError
	require.ErrorAs(t, err, &unsupported)

	_, err = ToStorage("seven", schema.Integer)
	var conv *ConversionError
	require.ErrorAs(t, err, &conv)
	assert.Equal(t, schema.Integer, conv.Type)

	_, err = ToStorage("12,5", schema.Decimal)
	assert.ErrorAs(t, err, &conv)

	_, err = ToStorage("NaN", schema.Decimal)
	assert.ErrorAs(t, err, &conv)
}

func TestFromStorage(t *testing.T) {
	ts := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

	got, err := FromStorage(int32(5), schema.Integer)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got)

	got, err = FromStorage([]byte("42"), schema.BigInt)
	require.NoError(t, err)
	assert.Equal(t, int64(42), got)

	got, err = FromStorage([]byte("Ana"), schema.Text)
	require.NoError(t, err)
	assert.Equal(t, "Ana", got)

	got, err = FromStorage("t", schema.Boolean)
	require.NoError(t, err)
	assert.Equal(t, true, got)

	got, err = FromStorage(ts, schema.OptionalTimestamp)
	require.NoError(t, err)
	assert.Equal(t, &ts, got)

	got, err = FromStorage("2024-03-01 09:30:00", schema.Timestamp)
	require.NoError(t, err)
	assert.True(t, ts.Equal(Time(got)))

	got, err = FromStorage([]byte("18.20"), schema.Decimal)
	require.NoError(t, err)
	assert.Equal(t, "18.20", got)

	got, err = FromStorage("2.5", schema.Double)
	require.NoError(t, err)
	assert.Equal(t, 2.5, got)

	got, err = FromStorage(nil, schema.OptionalTimestamp)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Nil(t, TimePtr(got))
	assert.Nil(t, Int64Ptr(got))

	_, err = FromStorage(true, schema.Timestamp)
	var conv *ConversionError
	assert.ErrorAs(t, err, &conv)

	_, err = FromStorage(1, schema.Type(77))
	var unsupported *UnsupportedTypeError
	assert.ErrorAs(t, err, &unsupported)
}

func TestDecimalFromNumericIsExact(t *testing.T) {
	var scanned pgtype.Numeric
	require.NoError(t, scanned.Scan("12345678901234567.89"))

	tests := []struct {
		name string
		in   pgtype.Numeric
		want any
	}{
		{"wide scanned", scanned, "12345678901234567.89"},
		{"wide built", pgtype.Numeric{Int: big.NewInt(1234567890123456789), Exp: -2, Valid: true}, "12345678901234567.89"},
		{"trailing zero kept", pgtype.Numeric{Int: big.NewInt(1850), Exp: -2, Valid: true}, "18.50"},
		{"null", pgtype.Numeric{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromStorage(tt.in, schema.Decimal)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := FromStorage(pgtype.Numeric{NaN: true, Valid: true}, schema.Decimal)
	var conv *ConversionError
	assert.ErrorAs(t, err, &conv)
}

func TestDeref(t *testing.T) {
	name := "Ana"
	assert.Equal(t, "Ana", Deref(&name))
	assert.Nil(t, Deref((*string)(nil)))
	assert.Nil(t, Deref((*time.Time)(nil)))
	assert.Equal(t, 3, Deref(3))
}
