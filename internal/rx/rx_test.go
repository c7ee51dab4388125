package rx

import (
	"context"
	"testing"
)

func TestExtract_HeuristicsFindDosageAndFrequency(t *testing.T) {
	e := &Extractor{}
	got := e.Extract(context.Background(), "Take Amoxicillin 500mg twice daily for 5 days. Paracetamol 1g when needed for fever.")
	if len(got) != 2 {
		t.Fatalf("expected 2 drugs, got %+v", got)
	}
	if got[0].Name != "Amoxicillin" || got[0].Dosage != "500mg" || got[0].Frequency != "twice daily" {
		t.Fatalf("unexpected first drug: %+v", got[0])
	}
	if got[1].Name != "Paracetamol" || got[1].Dosage != "1g" || got[1].Frequency != "" {
		t.Fatalf("unexpected second drug: %+v", got[1])
	}
	if got[1].Condition != "fever" {
		t.Fatalf("expected condition fever, got %q", got[1].Condition)
	}
}

func TestExtract_ConditionFromFirstSentence(t *testing.T) {
	e := &Extractor{}
	got := e.Extract(context.Background(), "Acid reflux. Omeprazole 20 mg before breakfast for 14 days.")
	if len(got) != 1 {
		t.Fatalf("expected 1 drug, got %+v", got)
	}
	d := got[0]
	if d.Name != "Omeprazole" || d.Dosage != "20 mg" || d.Frequency != "before breakfast" {
		t.Fatalf("unexpected drug: %+v", d)
	}
	if d.Condition != "Acid reflux" {
		t.Fatalf("condition=%q", d.Condition)
	}
}

func TestExtract_FiltersConditionsAndStopWords(t *testing.T) {
	e := &Extractor{}
	got := e.Extract(context.Background(), "The Fever and Cough. Prescribe Cetirizine 10 mg once daily.")
	for _, d := range got {
		switch d.Name {
		case "The", "Fever", "Cough", "Prescribe":
			t.Fatalf("%q must not be treated as a drug", d.Name)
		}
	}
	if len(got) != 1 || got[0].Name != "Cetirizine" || got[0].Frequency != "once daily" {
		t.Fatalf("unexpected drugs: %+v", got)
	}
}

func TestExtract_NormalizesFullwidthDigits(t *testing.T) {
	e := &Extractor{}
	got := e.Extract(context.Background(), "Metformin ５００ mg twice daily.")
	if len(got) != 1 || got[0].Dosage != "500 mg" {
		t.Fatalf("unexpected drugs: %+v", got)
	}
}

type stubFallback struct {
	calls []string
	reply Drug
}

func (s *stubFallback) Lookup(_ context.Context, snippet string) (Drug, bool) {
	s.calls = append(s.calls, snippet)
	return s.reply, s.reply != (Drug{})
}

func TestExtract_FallbackForBareDrug(t *testing.T) {
	fb := &stubFallback{reply: Drug{Dosage: "5 mg", Frequency: "daily", Duration: "7 days"}}
	e := &Extractor{Fallback: fb}
	got := e.Extract(context.Background(), "Warfarin as before.")
	if len(fb.calls) != 1 || fb.calls[0] != "Warfarin as before." {
		t.Fatalf("fallback calls=%v", fb.calls)
	}
	var w *Drug
	for i := range got {
		if got[i].Name == "Warfarin" {
			w = &got[i]
		}
	}
	if w == nil || w.Dosage != "5 mg" || w.Frequency != "daily" || w.Duration != "7 days" {
		t.Fatalf("unexpected drugs: %+v", got)
	}
}

func TestExtract_FallbackWhenNothingFound(t *testing.T) {
	fb := &stubFallback{reply: Drug{Name: "Ibuprofen", Dosage: "400 mg"}}
	e := &Extractor{Fallback: fb}
	text := "one tablet of ibuprofen after meals, repeat if the pain comes back later tonight"
	got := e.Extract(context.Background(), text)
	if len(fb.calls) != 1 || len([]rune(fb.calls[0])) != 60 {
		t.Fatalf("expected one call with a 60 char snippet, got %q", fb.calls)
	}
	if len(got) != 1 || got[0].Name != "Ibuprofen" || got[0].Condition != "pain" {
		t.Fatalf("unexpected drugs: %+v", got)
	}
}

func TestSplitSentences(t *testing.T) {
	got := splitSentences("A 2.5 mg dose. Next!  Last? tail")
	want := []string{"A 2.5 mg dose.", "Next!", "Last?", "tail"}
	if len(got) != len(want) {
		t.Fatalf("got %q", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %q, want %q", got, want)
		}
	}
}

func TestPlainText(t *testing.T) {
	got := PlainText([]Drug{
		{Name: "A", Dosage: "1 mg", Frequency: "daily"},
		{Name: "B"},
	})
	want := "Drug: A\nDosage: 1 mg\nFrequency: daily\n\nDrug: B\nDosage: \nFrequency: "
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if PlainText(nil) != "" {
		t.Fatalf("expected empty text for no drugs")
	}
}
