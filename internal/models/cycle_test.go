// ABOUTME: Tests for CyclePeriod date expansion.
// ABOUTME: Covers single-day, multi-day, month-crossing and invalid ranges.
package models

import (
	"errors"
	"testing"
	"time"
)

func TestCyclePeriodDates(t *testing.T) {
	tests := []struct {
		name  string
		start string
		end   string
		want  []string
	}{
		{
			name:  "single day",
			start: "2026-02-01",
			end:   "2026-02-01",
			want:  []string{"2026-02-01"},
		},
		{
			name:  "three days",
			start: "2026-02-01",
			end:   "2026-02-03",
			want:  []string{"2026-02-01", "2026-02-02", "2026-02-03"},
		},
		{
			name:  "crosses month end",
			start: "2026-02-27",
			end:   "2026-03-02",
			want:  []string{"2026-02-27", "2026-02-28", "2026-03-01", "2026-03-02"},
		},
		{
			name:  "leap day",
			start: "2028-02-28",
			end:   "2028-03-01",
			want:  []string{"2028-02-28", "2028-02-29", "2028-03-01"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParseCyclePeriod(tt.start, tt.end)
			if err != nil {
				t.Fatalf("ParseCyclePeriod: %v", err)
			}
			got := p.Dates()
			if len(got) != len(tt.want) {
				t.Fatalf("Dates() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Dates()[%d] = %s, want %s", i, got[i], tt.want[i])
				}
			}
			if p.Days() != len(tt.want) {
				t.Errorf("Days() = %d, want %d", p.Days(), len(tt.want))
			}
		})
	}
}

func TestParseCyclePeriodErrors(t *testing.T) {
	tests := []struct {
		name  string
		start string
		end   string
	}{
		{"end before start", "2026-02-03", "2026-02-01"},
		{"bad start", "02/01/2026", "2026-02-03"},
		{"bad end", "2026-02-01", "tomorrow"},
		{"empty", "", ""},
		{"impossible date", "2026-02-30", "2026-03-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseCyclePeriod(tt.start, tt.end); err == nil {
				t.Errorf("ParseCyclePeriod(%q, %q) expected error", tt.start, tt.end)
			}
		})
	}
}

func TestNewCyclePeriodDropsClock(t *testing.T) {
	loc := time.FixedZone("UTC+11", 11*3600)
	start := time.Date(2026, 2, 1, 23, 30, 0, 0, loc)
	end := time.Date(2026, 2, 2, 0, 15, 0, 0, loc)

	p, err := NewCyclePeriod(start, end)
	if err != nil {
		t.Fatalf("NewCyclePeriod: %v", err)
	}
	if p.StartDate() != "2026-02-01" || p.EndDate() != "2026-02-02" {
		t.Errorf("got %s..%s, want 2026-02-01..2026-02-02", p.StartDate(), p.EndDate())
	}
	if p.Days() != 2 {
		t.Errorf("Days() = %d, want 2", p.Days())
	}
}

func TestNewCyclePeriodLengthLimit(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	p, err := NewCyclePeriod(start, start.AddDate(0, 0, MaxPeriodDays-1))
	if err != nil {
		t.Fatalf("NewCyclePeriod at the limit: %v", err)
	}
	if p.Days() != MaxPeriodDays {
		t.Errorf("Days() = %d, want %d", p.Days(), MaxPeriodDays)
	}

	_, err = NewCyclePeriod(start, start.AddDate(0, 0, MaxPeriodDays))
	if !errors.Is(err, ErrPeriodTooLong) {
		t.Errorf("NewCyclePeriod past the limit: got %v, want ErrPeriodTooLong", err)
	}

	_, err = ParseCyclePeriod("0001-01-01", "9999-12-31")
	if !errors.Is(err, ErrPeriodTooLong) {
		t.Errorf("ParseCyclePeriod over the whole calendar: got %v, want ErrPeriodTooLong", err)
	}
}
