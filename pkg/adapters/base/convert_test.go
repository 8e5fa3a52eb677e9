package base

import (
	"bytes"
	"context"
	"math"
	"math/big"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

func TestNormalizeValueNil(t *testing.T) {
	if got := NormalizeValue(nil, ""); got != nil {
		t.Errorf("NormalizeValue(nil) = %v, want nil", got)
	}
}

func TestNormalizeValueTextBytes(t *testing.T) {
	got := NormalizeValue([]byte("hello"), "VARCHAR")
	if got != "hello" {
		t.Errorf("NormalizeValue(text bytes) = %v (%T), want \"hello\"", got, got)
	}
}

func TestNormalizeValueBinaryBytes(t *testing.T) {
	src := []byte{0x01, 0x02, 0x03}
	got := NormalizeValue(src, "BLOB")

	b, ok := got.([]byte)
	if !ok {
		t.Fatalf("NormalizeValue(blob) returned %T, want []byte", got)
	}
	if !bytes.Equal(b, src) {
		t.Errorf("NormalizeValue(blob) = %v, want %v", b, src)
	}

	// Результат не должен разделять память с буфером драйвера
	src[0] = 0xFF
	if b[0] == 0xFF {
		t.Error("NormalizeValue(blob) shares memory with the driver buffer")
	}
}

func TestNormalizeValueUUID(t *testing.T) {
	raw := [16]byte{
		0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc, 0xde, 0xf0,
		0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88,
	}
	want := "12345678-9abc-def0-1122-334455667788"

	if got := NormalizeValue(raw, ""); got != want {
		t.Errorf("NormalizeValue([16]byte) = %v, want %v", got, want)
	}
	if got := NormalizeValue(raw[:], "UUID"); got != want {
		t.Errorf("NormalizeValue(uuid bytes) = %v, want %v", got, want)
	}
}

func TestNormalizeValueNumeric(t *testing.T) {
	num := pgtype.Numeric{Int: big.NewInt(12345), Exp: -2, Valid: true}

	got := NormalizeValue(num, "NUMERIC")
	d, ok := got.(decimal.Decimal)
	if !ok {
		t.Fatalf("NormalizeValue(numeric) returned %T, want decimal.Decimal", got)
	}
	if d.String() != "123.45" {
		t.Errorf("NormalizeValue(numeric) = %s, want 123.45", d.String())
	}
}

func TestNormalizeValueNumericSpecial(t *testing.T) {
	if got := NormalizeValue(pgtype.Numeric{Valid: false}, "NUMERIC"); got != nil {
		t.Errorf("NormalizeValue(invalid numeric) = %v, want nil", got)
	}

	got := NormalizeValue(pgtype.Numeric{NaN: true, Valid: true}, "NUMERIC")
	f, ok := got.(float64)
	if !ok || !math.IsNaN(f) {
		t.Errorf("NormalizeValue(NaN numeric) = %v (%T), want NaN", got, got)
	}

	got = NormalizeValue(pgtype.Numeric{InfinityModifier: pgtype.Infinity, Valid: true}, "NUMERIC")
	f, ok = got.(float64)
	if !ok || !math.IsInf(f, 1) {
		t.Errorf("NormalizeValue(infinity numeric) = %v (%T), want +Inf", got, got)
	}
}

func TestNormalizeValueJSON(t *testing.T) {
	got := NormalizeValue(map[string]any{"a": 1}, "JSONB")
	if got != `{"a":1}` {
		t.Errorf("NormalizeValue(map) = %v, want {\"a\":1}", got)
	}

	got = NormalizeValue([]any{1, 2}, "JSONB")
	if got != `[1,2]` {
		t.Errorf("NormalizeValue(array) = %v, want [1,2]", got)
	}
}

func TestNormalizeValuePassthrough(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

	cases := []struct {
		name  string
		value any
	}{
		{"bool", true},
		{"string", "plain"},
		{"int64", int64(42)},
		{"float64", 3.5},
		{"time", ts},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeValue(tc.value, ""); got != tc.value {
				t.Errorf("NormalizeValue(%v) = %v, want unchanged", tc.value, got)
			}
		})
	}
}

type stringerValue struct{}

func (stringerValue) String() string { return "stringer" }

func TestNormalizeValueStringerFallback(t *testing.T) {
	if got := NormalizeValue(stringerValue{}, ""); got != "stringer" {
		t.Errorf("NormalizeValue(stringer) = %v, want \"stringer\"", got)
	}
}

func TestIsBinaryType(t *testing.T) {
	cases := []struct {
		dbType string
		want   bool
	}{
		{"BLOB", true},
		{"blob", true},
		{"VARBINARY", true},
		{"BYTEA", true},
		{"VARCHAR", false},
		{"", false},
	}

	for _, tc := range cases {
		if got := isBinaryType(tc.dbType); got != tc.want {
			t.Errorf("isBinaryType(%q) = %v, want %v", tc.dbType, got, tc.want)
		}
	}
}

func TestWithTimeout(t *testing.T) {
	ctx, cancel := WithTimeout(context.Background(), 0)
	defer cancel()
	if _, ok := ctx.Deadline(); ok {
		t.Error("WithTimeout(0) set a deadline, want none")
	}

	ctx, cancel = WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if _, ok := ctx.Deadline(); !ok {
		t.Error("WithTimeout(1m) did not set a deadline")
	}
}
