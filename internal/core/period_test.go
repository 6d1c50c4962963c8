package core

import (
	"testing"
	"time"
)

func TestPeriodValidate(t *testing.T) {
	tests := []struct {
		name    string
		period  Period
		wantErr error
	}{
		{"valid", Period{2026, 1}, nil},
		{"december", Period{2025, 12}, nil},
		{"month zero", Period{2026, 0}, ErrInvalidMonth},
		{"month thirteen", Period{2026, 13}, ErrInvalidMonth},
		{"negative month", Period{2026, -3}, ErrInvalidMonth},
		{"year zero", Period{0, 5}, ErrInvalidYear},
		{"negative year", Period{-2026, 5}, ErrInvalidYear},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.period.Validate()
			if err != tt.wantErr {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPeriodKeyOrdering(t *testing.T) {
	// January must sort above December of the previous year.
	jan := Period{2026, 1}
	dec := Period{2025, 12}

	if jan.Key() != 202601 {
		t.Errorf("Key() = %d, want 202601", jan.Key())
	}
	if !dec.Before(jan) {
		t.Error("2025-12 should be before 2026-01")
	}
	if !jan.After(dec) {
		t.Error("2026-01 should be after 2025-12")
	}
}

func TestPeriodPrev(t *testing.T) {
	tests := []struct {
		name string
		in   Period
		want Period
	}{
		{"mid year", Period{2026, 7}, Period{2026, 6}},
		{"january rolls over", Period{2026, 1}, Period{2025, 12}},
		{"february", Period{2026, 2}, Period{2026, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.Prev(); got != tt.want {
				t.Errorf("Prev() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPeriodFirstDay(t *testing.T) {
	got := Period{2026, 3}.FirstDay()
	want := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("FirstDay() = %v, want %v", got, want)
	}
}

func TestPeriodOf(t *testing.T) {
	p := PeriodOf(time.Date(2025, time.December, 31, 23, 59, 0, 0, time.UTC))
	if p != (Period{2025, 12}) {
		t.Errorf("PeriodOf() = %v, want 2025-12", p)
	}
}

func TestPeriodString(t *testing.T) {
	if s := (Period{2026, 4}).String(); s != "2026-04" {
		t.Errorf("String() = %q, want %q", s, "2026-04")
	}
}
