package model

import (
	"testing"
	"time"
)

func TestCoerce(t *testing.T) {
	cases := []struct {
		typ  string
		raw  string
		want any
		ok   bool
	}{
		{TypeInteger, "42", int64(42), true},
		{TypeRef, "x", nil, false},
		{TypeNumber, "12.5", 12.5, true},
		{TypeNumber, "abc", nil, false},
		{TypeBoolean, "1", true, true},
		{TypeBoolean, "false", false, true},
		{TypeBoolean, "maybe", nil, false},
		{TypeDate, "2023-01-01", time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), true},
		{TypeDate, "01/02/2023", nil, false},
		{TypeText, "anything", "anything", true},
	}
	for _, tc := range cases {
		f := &Field{Name: "f", Type: tc.typ}
		got, ok := f.Coerce(tc.raw)
		if ok != tc.ok {
			t.Fatalf("%s %q: ok=%v want %v", tc.typ, tc.raw, ok, tc.ok)
		}
		if ok && got != tc.want {
			t.Fatalf("%s %q: got %v (%T) want %v", tc.typ, tc.raw, got, got, tc.want)
		}
	}
}

func TestCoerceUpperCoversWholeDay(t *testing.T) {
	f := &Field{Name: "created_at", Type: TypeTimestamp}
	v, ok := f.CoerceUpper("2024-03-01")
	if !ok {
		t.Fatalf("expected ok")
	}
	got := v.(time.Time)
	if got.Day() != 1 || got.Hour() != 23 {
		t.Fatalf("expected end of day, got %v", got)
	}
}

func TestNormalize(t *testing.T) {
	n := &Field{Type: TypeInteger}
	if v, err := n.Normalize(float64(3)); err != nil || v != int64(3) {
		t.Fatalf("integer normalize: %v %v", v, err)
	}
	if _, err := n.Normalize(3.5); err == nil {
		t.Fatalf("fractional integer should fail")
	}
	b := &Field{Type: TypeBoolean}
	if _, err := b.Normalize("nope"); err == nil {
		t.Fatalf("bad boolean should fail")
	}
	d := &Field{Type: TypeDate}
	if v, err := d.Normalize(nil); err != nil || v != nil {
		t.Fatalf("nil passes through: %v %v", v, err)
	}
}

func TestFromDB(t *testing.T) {
	num := &Field{Type: TypeNumber}
	if v := num.FromDB([]byte("12.50")); v != 12.5 {
		t.Fatalf("numeric: %v", v)
	}
	date := &Field{Type: TypeDate}
	if v := date.FromDB(time.Date(2023, 5, 6, 0, 0, 0, 0, time.UTC)); v != "2023-05-06" {
		t.Fatalf("date: %v", v)
	}
}
