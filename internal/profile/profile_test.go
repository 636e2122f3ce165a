package profile

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

const samplePayload = `{
	"success": true,
	"person": {
		"firstName": "Alice",
		"lastName": "Smith",
		"headline": "Platform Engineer",
		"summary": "Builds infrastructure.",
		"location": "Berlin, Germany",
		"linkedInUrl": "https://linkedin.com/in/alicesmith",
		"skills": ["Go", "Kubernetes"],
		"positions": {
			"positionHistory": [
				{
					"title": "Staff Engineer",
					"companyName": "Acme",
					"description": "Owns the platform.",
					"startEndDate": {"start": {"year": 2021, "month": 3}}
				},
				{
					"title": "Engineer",
					"companyName": "Initech",
					"startEndDate": {"start": {"year": 2018}, "end": {"year": 2021, "month": 2}}
				}
			]
		},
		"schools": {
			"educationHistory": [
				{"schoolName": "TU Berlin", "degreeName": "BSc", "fieldOfStudy": "CS",
				 "startEndDate": {"start": {"year": 2014}, "end": {"year": 2018}}}
			]
		},
		"certifications": {
			"certificationHistory": [{"name": "CKA"}, {"name": ""}]
		}
	}
}`

func TestNormalize(t *testing.T) {
	rec, err := Normalize([]byte(samplePayload))
	if err != nil {
		t.Fatal(err)
	}
	if rec.Name != "Alice Smith" {
		t.Errorf("expected name 'Alice Smith', got %q", rec.Name)
	}
	if rec.ProfileURL != "https://linkedin.com/in/alicesmith" {
		t.Errorf("unexpected profile URL: %q", rec.ProfileURL)
	}
	if len(rec.Skills) != 2 {
		t.Errorf("expected 2 skills, got %v", rec.Skills)
	}
	if len(rec.Positions) != 2 {
		t.Fatalf("expected 2 positions, got %d", len(rec.Positions))
	}
	// Provider-reported order is preserved.
	if rec.Positions[0].Title != "Staff Engineer" {
		t.Errorf("position order not preserved: %+v", rec.Positions[0])
	}
	if rec.Positions[0].StartDate != "3/2021" || rec.Positions[0].EndDate != "" {
		t.Errorf("unexpected dates: %q/%q", rec.Positions[0].StartDate, rec.Positions[0].EndDate)
	}
	if rec.Positions[1].StartDate != "2018" {
		t.Errorf("year-only start date mangled: %q", rec.Positions[1].StartDate)
	}
	if len(rec.Education) != 1 || rec.Education[0].School != "TU Berlin" {
		t.Errorf("unexpected education: %+v", rec.Education)
	}
	// Empty certification names are dropped.
	if len(rec.Certifications) != 1 || rec.Certifications[0] != "CKA" {
		t.Errorf("unexpected certifications: %v", rec.Certifications)
	}
}

func TestNormalizeNotFound(t *testing.T) {
	_, err := Normalize([]byte(`{"success": false}`))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestNormalizeMalformed(t *testing.T) {
	_, err := Normalize([]byte(`not json`))
	if err == nil {
		t.Fatal("expected decode error")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("malformed payload must not read as a lookup miss")
	}
}

func TestFetchProfile(t *testing.T) {
	var gotURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURL = r.URL.Query().Get("linkedInUrl")
		if r.Header.Get("x-rapidapi-key") != "key-123" {
			t.Error("missing api key header")
		}
		w.Write([]byte(samplePayload))
	}))
	defer srv.Close()

	c := NewClient("key-123", "example.test", nil)
	c.SetBaseURL(srv.URL)

	rec, err := c.FetchProfile(context.Background(), "https://linkedin.com/in/alicesmith")
	if err != nil {
		t.Fatal(err)
	}
	if gotURL != "https://linkedin.com/in/alicesmith" {
		t.Errorf("query param not forwarded: %q", gotURL)
	}
	if rec.Name != "Alice Smith" {
		t.Errorf("unexpected record: %+v", rec)
	}
}

func TestFetchProfileProviderMiss(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": false}`))
	}))
	defer srv.Close()

	c := NewClient("key-123", "example.test", nil)
	c.SetBaseURL(srv.URL)

	_, err := c.FetchProfile(context.Background(), "https://linkedin.com/in/nobody")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSearchByNameDerivesSlug(t *testing.T) {
	var gotURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURL = r.URL.Query().Get("linkedInUrl")
		w.Write([]byte(samplePayload))
	}))
	defer srv.Close()

	c := NewClient("key-123", "example.test", nil)
	c.SetBaseURL(srv.URL)

	if _, err := c.SearchByName(context.Background(), "Alice Smith"); err != nil {
		t.Fatal(err)
	}
	if gotURL != "https://linkedin.com/in/alicesmith" {
		t.Errorf("expected derived slug URL, got %q", gotURL)
	}
}
