package rx

import (
	"context"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Drug is one medication line found in a prescription.
type Drug struct {
	Name      string `json:"name"`
	Dosage    string `json:"dosage"`
	Frequency string `json:"frequency"`
	Condition string `json:"condition,omitempty"`
	Duration  string `json:"duration,omitempty"`
}

const (
	dosagePattern = `(\d+(?:\.\d+)?\s?(?:mg|mcg|g|ml|units))`
	freqPattern   = `(once(?:\s+daily)?|twice(?:\s+daily)?|three times(?:\s+daily)?|tds|bd|qds|daily|weekly|monthly|before breakfast|after meals|for \d+ days|for \d+ weeks|for \d+ months|\d+ days|\d+ weeks|\d+ months)`
	// window is how far past a drug name its dosage or frequency may sit.
	window = `.{0,40}?`
)

var (
	dosageRe    = regexp.MustCompile(`(?i)` + dosagePattern)
	freqRe      = regexp.MustCompile(`(?i)` + freqPattern)
	drugRe      = regexp.MustCompile(`\b([A-Z][a-zA-Z0-9\-]{2,})\b`)
	conditionRe = regexp.MustCompile(`^(?i)([a-z][a-z]+(?: [a-z]+){0,3})(?:\.|:|,| -)`)
)

// stopWords are capitalised tokens that are never drug names.
var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "prescribe": true,
	"mild": true, "infection": true, "daily": true, "days": true,
	"take": true, "tablet": true, "tablets": true, "patient": true,
}

// commonConditions double as the condition vocabulary and a drug filter.
// Kept sorted so condition detection is deterministic.
var commonConditions = []string{
	"acid", "acidity", "allergy", "asthma", "cold", "cough", "diabetes", "fever",
	"flu", "headache", "hypertension", "infection", "pain", "reflux",
}

func isCondition(word string) bool {
	w := strings.ToLower(word)
	for _, c := range commonConditions {
		if c == w {
			return true
		}
	}
	return false
}

// Fallback fills in details the heuristics could not find.
type Fallback interface {
	// Lookup parses snippet and reports whether it produced anything usable.
	Lookup(ctx context.Context, snippet string) (Drug, bool)
}

// Extractor finds drugs, dosages and frequencies in free text.
type Extractor struct {
	// Fallback is optional.
	Fallback Fallback
}

// Extract scans text sentence by sentence. Drugs with neither a dosage nor a
// frequency are passed to the fallback; when nothing at all is found the
// fallback gets the first 60 characters of the whole text.
func (e *Extractor) Extract(ctx context.Context, text string) []Drug {
	text = norm.NFKC.String(text)
	text = strings.ReplaceAll(text, "\n", " ")
	sentences := splitSentences(text)

	condition := ""
	if len(sentences) > 0 {
		if m := conditionRe.FindStringSubmatch(sentences[0]); m != nil {
			condition = strings.TrimSpace(m[1])
		}
	}

	var results []Drug
	for _, sent := range sentences {
		lower := strings.ToLower(sent)
		if condition == "" {
			for _, c := range commonConditions {
				if strings.Contains(lower, c) {
					condition = c
					break
				}
			}
		}
		for _, name := range candidateDrugs(sent) {
			d := Drug{
				Name:      name,
				Dosage:    near(name, dosagePattern, dosageRe, sent),
				Frequency: near(name, freqPattern, freqRe, sent),
				Condition: condition,
			}
			if d.Dosage == "" && d.Frequency == "" && e.Fallback != nil {
				if fb, ok := e.Fallback.Lookup(ctx, strings.TrimSpace(sent)); ok {
					d.Dosage = fb.Dosage
					d.Frequency = fb.Frequency
					d.Duration = fb.Duration
				}
			}
			results = append(results, d)
		}
	}

	if len(results) == 0 && e.Fallback != nil {
		snippet := text
		if r := []rune(snippet); len(r) > 60 {
			snippet = string(r[:60])
		}
		if fb, ok := e.Fallback.Lookup(ctx, snippet); ok {
			if fb.Condition == "" {
				fb.Condition = condition
			}
			return []Drug{fb}
		}
	}
	return results
}

func candidateDrugs(sent string) []string {
	var out []string
	for _, m := range drugRe.FindAllStringSubmatch(sent, -1) {
		name := m[1]
		if stopWords[strings.ToLower(name)] || isCondition(name) {
			continue
		}
		out = append(out, name)
	}
	return out
}

// near returns the first match of pattern within the window after name, or
// the first match anywhere in the sentence.
func near(name, pattern string, anywhere *regexp.Regexp, sent string) string {
	re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(name) + window + pattern)
	if m := re.FindStringSubmatch(sent); m != nil {
		return m[1]
	}
	if m := anywhere.FindStringSubmatch(sent); m != nil {
		return m[1]
	}
	return ""
}

// splitSentences breaks after '.', '!' or '?' when followed by whitespace.
func splitSentences(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '.' && c != '!' && c != '?' {
			continue
		}
		j := i + 1
		for j < len(text) && isSpace(text[j]) {
			j++
		}
		if j == i+1 {
			continue
		}
		out = append(out, text[start:i+1])
		start = j
		i = j - 1
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

// PlainText formats drugs as Drug/Dosage/Frequency blocks separated by a
// blank line.
func PlainText(drugs []Drug) string {
	var b strings.Builder
	for i, d := range drugs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("Drug: " + d.Name + "\n")
		b.WriteString("Dosage: " + d.Dosage + "\n")
		b.WriteString("Frequency: " + d.Frequency)
	}
	return b.String()
}
