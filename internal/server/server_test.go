package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hyperifyio/rxglue/internal/extract"
	"github.com/hyperifyio/rxglue/internal/rx"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	s := &Server{Extractor: &rx.Extractor{}}
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestExtractEndpoint_StructuredAndPlainText(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Post(srv.URL+"/extract", "application/json", strings.NewReader(`{"text":"Amoxicillin 500 mg three times daily for 7 days."}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	var out ExtractResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Structured) != 1 || out.Structured[0].Name != "Amoxicillin" || out.Structured[0].Dosage != "500 mg" {
		t.Fatalf("structured=%+v", out.Structured)
	}
	if out.Structured[0].Frequency != "three times daily" {
		t.Fatalf("frequency=%q", out.Structured[0].Frequency)
	}
	if out.PlainText != "Drug: Amoxicillin\nDosage: 500 mg\nFrequency: three times daily" {
		t.Fatalf("plain_text=%q", out.PlainText)
	}
}

// The client and backend agree on the wire format end to end.
func TestExtractEndpoint_WithClient(t *testing.T) {
	srv := newTestServer(t)
	c := &extract.Client{BaseURL: srv.URL, HTTPClient: srv.Client()}
	resp, err := c.Extract(context.Background(), "no medication mentioned here")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	// Empty plain_text is falsy, so the empty structured list is shown.
	if got := extract.Render(resp); got != "[]" {
		t.Fatalf("render=%q", got)
	}
}

func TestExtractEndpoint_BadBody(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Post(srv.URL+"/extract", "application/json", strings.NewReader(`{`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d", resp.StatusCode)
	}
}

func TestExtractEndpoint_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/extract")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d", resp.StatusCode)
	}
}

func TestCalculateBMI(t *testing.T) {
	cases := []struct {
		w, h     float64
		age      int
		bmi      float64
		category string
		ageNote  bool
	}{
		{50, 180, 30, 15.4, "Underweight", false},
		{70, 175, 30, 22.9, "Normal weight", false},
		{85, 175, 70, 27.8, "Overweight", true},
		{110, 170, 12, 38.1, "Obese", true},
	}
	for _, c := range cases {
		out, ok := CalculateBMI(c.w, c.h, c.age)
		if !ok {
			t.Fatalf("%v: unexpected failure", c)
		}
		if out.BMI != c.bmi || out.Category != c.category {
			t.Fatalf("%v: got %v %q", c, out.BMI, out.Category)
		}
		if (out.AgeAdvice != "") != c.ageNote {
			t.Fatalf("%v: age advice %q", c, out.AgeAdvice)
		}
	}
	if _, ok := CalculateBMI(70, 0, 30); ok {
		t.Fatalf("zero height must fail")
	}
}

func TestBMIEndpoint(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Post(srv.URL+"/calculate_bmi", "application/json", strings.NewReader(`{"weight":70,"height":175}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	var out BMIResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Category != "Normal weight" || out.Disclaimer == "" {
		t.Fatalf("unexpected reply: %+v", out)
	}
}
