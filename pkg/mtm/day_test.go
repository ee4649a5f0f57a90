package mtm

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestIndex(t *testing.T) {
	p := New(time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC))
	tests := []struct {
		day  string
		want int
	}{
		{"2023-01-01", 1},
		{"2023-01-02", 2},
		{"2023-12-31", 365},
		{"2024-03-01", 426}, // across a leap day
	}

	for _, tt := range tests {
		t.Run(tt.day, func(t *testing.T) {
			got, err := p.Index(tt.day)
			if err != nil {
				t.Fatalf("Index(%q) error = %v", tt.day, err)
			}
			if got != tt.want {
				t.Errorf("Index(%q) = %d, want %d", tt.day, got, tt.want)
			}
		})
	}
}

func TestIndexDefaultEpoch(t *testing.T) {
	got, err := Default().Index("2025-02-20")
	if err != nil || got != 1 {
		t.Fatalf("Index(epoch) = %d, %v; want 1", got, err)
	}
}

func TestIndexIsSequential(t *testing.T) {
	p := Default()
	prev, err := p.IndexOf(p.Epoch)
	if err != nil {
		t.Fatal(err)
	}
	for d := p.Epoch.AddDate(0, 0, 1); d.Before(p.Epoch.AddDate(2, 0, 0)); d = d.AddDate(0, 0, 1) {
		got, err := p.Index(FormatDay(d))
		if err != nil {
			t.Fatalf("Index(%s) error = %v", FormatDay(d), err)
		}
		if got != prev+1 {
			t.Fatalf("Index(%s) = %d, want %d", FormatDay(d), got, prev+1)
		}
		prev = got
	}
}

func TestIndexErrors(t *testing.T) {
	p := Default()
	tests := []struct {
		name       string
		day        string
		wantDomain bool
	}{
		{name: "before epoch", day: "2025-02-19", wantDomain: true},
		{name: "long before epoch", day: "1999-01-01", wantDomain: true},
		{name: "slashes", day: "2025/02/20"},
		{name: "short month", day: "2025-2-20"},
		{name: "trailing text", day: "2025-02-20x"},
		{name: "impossible date", day: "2025-02-30"},
		{name: "empty", day: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Index(tt.day)
			if err == nil {
				t.Fatalf("Index(%q) expected error", tt.day)
			}
			var domainErr *DomainError
			var validationErr *ValidationError
			if tt.wantDomain && !errors.As(err, &domainErr) {
				t.Errorf("Index(%q) error = %T, want *DomainError", tt.day, err)
			}
			if !tt.wantDomain && !errors.As(err, &validationErr) {
				t.Errorf("Index(%q) error = %T, want *ValidationError", tt.day, err)
			}
		})
	}
}

func TestDateFor(t *testing.T) {
	p := Default()
	got, err := p.DateFor(10)
	if err != nil {
		t.Fatal(err)
	}
	if FormatDay(got) != "2025-03-01" {
		t.Errorf("DateFor(10) = %s, want 2025-03-01", FormatDay(got))
	}
	back, _ := p.IndexOf(got)
	if back != 10 {
		t.Errorf("IndexOf(DateFor(10)) = %d", back)
	}
	if _, err := p.DateFor(0); err == nil {
		t.Error("DateFor(0) expected error")
	}
}

func TestTitle(t *testing.T) {
	p := Default()
	tests := []struct {
		day      string
		wantPart string
		index    int
	}{
		{"2025-02-23", "(Full version, Sunday)", 4}, // Sunday
		{"2025-02-24", "(½ version)", 5},
		{"2025-02-20", "(½ version)", 1},
		{"2025-03-02", "(Full version, Sunday)", 11},
	}

	for _, tt := range tests {
		t.Run(tt.day, func(t *testing.T) {
			got, err := p.Title(tt.day)
			if err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(got, tt.wantPart) {
				t.Errorf("Title(%q) = %q, want it to contain %q", tt.day, got, tt.wantPart)
			}
			if !strings.Contains(got, DayCaption(tt.index)) {
				t.Errorf("Title(%q) = %q, want it to contain %q", tt.day, got, DayCaption(tt.index))
			}
			if !strings.HasPrefix(got, "Master’s Touch Meditation") {
				t.Errorf("Title(%q) = %q has wrong prefix", tt.day, got)
			}
		})
	}
}

func TestTitleEveryDayOfWeek(t *testing.T) {
	p := Default()
	for i := range 14 {
		d := p.Epoch.AddDate(0, 0, i)
		got, err := p.Title(FormatDay(d))
		if err != nil {
			t.Fatal(err)
		}
		sunday := strings.Contains(got, "Full version, Sunday")
		half := strings.Contains(got, "½ version")
		if sunday == half {
			t.Fatalf("Title(%s) = %q: exactly one variant expected", FormatDay(d), got)
		}
		if sunday != (d.Weekday() == time.Sunday) {
			t.Errorf("Title(%s) = %q on %s", FormatDay(d), got, d.Weekday())
		}
	}
}

func TestFacebookMessage(t *testing.T) {
	want := "Master's touch meditation, day 42.\nMeditación del toque del Maestro, día 42."
	if got := FacebookMessage(42); got != want {
		t.Errorf("FacebookMessage(42) = %q, want %q", got, want)
	}
}

func TestDescription(t *testing.T) {
	d := Description()
	if strings.Contains(d, "  ") || !strings.HasPrefix(d, "#YogiBhajan") || !strings.HasSuffix(d, "#MeditationLife") {
		t.Errorf("Description() = %q", d)
	}
}
