package reading

import (
	"testing"
	"time"

	"fortuna/internal/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

// TestAgeFromBirthdate checks the calendar-age rule: year difference,
// decremented when the birthday has not yet occurred this year.
func TestAgeFromBirthdate(t *testing.T) {
	tests := []struct {
		name      string
		birthdate string
		now       time.Time
		want      int
	}{
		{"birthday already passed", "1990-05-15", date(2025, time.August, 28), 35},
		{"birthday not yet reached", "1990-12-01", date(2025, time.August, 28), 34},
		{"birthday today", "1990-08-28", date(2025, time.August, 28), 35},
		{"future date same year", "2025-08-29", date(2025, time.August, 28), 0},
		{"born this year", "2025-01-01", date(2025, time.August, 28), 0},
		{"unparseable", "15.05.1990", date(2025, time.August, 28), 0},
		{"empty-ish garbage", "not-a-date", date(2025, time.August, 28), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ageFromBirthdate(tt.birthdate, tt.now)
			if got != tt.want {
				t.Errorf("ageFromBirthdate(%q) = %d, want %d", tt.birthdate, got, tt.want)
			}
		})
	}
}

// TestNormalizeAttributes verifies extraction from a full reading
func TestNormalizeAttributes(t *testing.T) {
	r := &models.Reading{
		Name:               "Mina",
		Birthdate:          "1990-05-15",
		RelationshipStatus: "single",
		EmploymentStatus:   "employed",
	}

	attrs := NormalizeAttributes(r, date(2025, time.August, 28))

	if attrs.Name != "Mina" {
		t.Errorf("Expected name 'Mina', got %q", attrs.Name)
	}
	if attrs.Age != 35 {
		t.Errorf("Expected age 35, got %d", attrs.Age)
	}
	if attrs.RelationshipStatus != "single" {
		t.Errorf("Expected relationship 'single', got %q", attrs.RelationshipStatus)
	}
	if attrs.EmploymentStatus != "employed" {
		t.Errorf("Expected employment 'employed', got %q", attrs.EmploymentStatus)
	}
}

// TestNormalizeAttributesEmptyReading verifies that absent fields stay
// absent instead of becoming placeholder values
func TestNormalizeAttributesEmptyReading(t *testing.T) {
	attrs := NormalizeAttributes(&models.Reading{}, date(2025, time.August, 28))

	if attrs.Name != "" || attrs.RelationshipStatus != "" || attrs.EmploymentStatus != "" {
		t.Errorf("Expected empty attributes, got %+v", attrs)
	}
	if attrs.Age != 0 {
		t.Errorf("Expected absent age, got %d", attrs.Age)
	}
}

// TestNormalizeAttributesBadBirthdate verifies a malformed birthdate never
// aborts normalization
func TestNormalizeAttributesBadBirthdate(t *testing.T) {
	r := &models.Reading{Name: "Jae", Birthdate: "yesterday"}

	attrs := NormalizeAttributes(r, date(2025, time.August, 28))

	if attrs.Age != 0 {
		t.Errorf("Expected absent age for bad birthdate, got %d", attrs.Age)
	}
	if attrs.Name != "Jae" {
		t.Errorf("Other attributes should survive a bad birthdate, got %q", attrs.Name)
	}
}
