package server

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/rxglue/internal/rx"
)

// DrugExtractor turns prescription text into drug entries.
type DrugExtractor interface {
	Extract(ctx context.Context, text string) []rx.Drug
}

// Server is the extraction backend.
type Server struct {
	Extractor DrugExtractor
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /extract", s.handleExtract)
	mux.HandleFunc("POST /calculate_bmi", handleBMI)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return logRequests(mux)
}

// ExtractRequest is the body of POST /extract.
type ExtractRequest struct {
	Text string `json:"text"`
}

// DrugLine is one structured entry in the extract reply.
type DrugLine struct {
	Name      string `json:"name"`
	Dosage    string `json:"dosage"`
	Frequency string `json:"frequency"`
}

// ExtractResponse is the body returned by POST /extract.
type ExtractResponse struct {
	Structured []DrugLine `json:"structured"`
	PlainText  string     `json:"plain_text"`
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req ExtractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "invalid request body: " + err.Error()})
		return
	}
	drugs := s.Extractor.Extract(r.Context(), req.Text)
	lines := make([]DrugLine, 0, len(drugs))
	for _, d := range drugs {
		lines = append(lines, DrugLine{Name: d.Name, Dosage: d.Dosage, Frequency: d.Frequency})
	}
	log.Info().Int("drugs", len(lines)).Msg("extracted")
	writeJSON(w, http.StatusOK, ExtractResponse{Structured: lines, PlainText: rx.PlainText(drugs)})
}

// BMIRequest is the body of POST /calculate_bmi. Height is in centimetres.
type BMIRequest struct {
	Weight float64 `json:"weight"`
	Height float64 `json:"height"`
	Age    *int    `json:"age"`
	Gender string  `json:"gender"`
}

// BMIResponse reports the index with a category and advice.
type BMIResponse struct {
	BMI        float64 `json:"bmi"`
	Category   string  `json:"category"`
	Color      string  `json:"color"`
	Advice     string  `json:"advice"`
	AgeAdvice  string  `json:"age_advice"`
	Disclaimer string  `json:"disclaimer"`
}

const bmiDisclaimer = "BMI is a screening tool and not a diagnostic of body fatness or health. Consult a healthcare provider for a complete health assessment."

// CalculateBMI computes the body mass index, rounded to one decimal.
func CalculateBMI(weightKg, heightCm float64, age int) (BMIResponse, bool) {
	if heightCm <= 0 || weightKg <= 0 {
		return BMIResponse{}, false
	}
	m := heightCm / 100
	bmi := math.Round(weightKg/(m*m)*10) / 10
	out := BMIResponse{BMI: bmi, Disclaimer: bmiDisclaimer}
	switch {
	case bmi < 18.5:
		out.Category, out.Color = "Underweight", "#3498db"
		out.Advice = "Consider consulting with a healthcare provider about healthy weight gain strategies."
	case bmi < 25:
		out.Category, out.Color = "Normal weight", "#2ecc71"
		out.Advice = "Maintain your healthy lifestyle with balanced diet and regular exercise."
	case bmi < 30:
		out.Category, out.Color = "Overweight", "#f39c12"
		out.Advice = "Consider moderate changes to diet and increasing physical activity."
	default:
		out.Category, out.Color = "Obese", "#e74c3c"
		out.Advice = "Consider consulting with a healthcare provider for personalized weight management strategies."
	}
	switch {
	case age < 18:
		out.AgeAdvice = "Note: BMI calculations for individuals under 18 should use age-specific charts. This is an approximate value."
	case age > 65:
		out.AgeAdvice = "Note: For older adults, slightly higher BMI values may be acceptable. Consult with your healthcare provider."
	}
	return out, true
}

func handleBMI(w http.ResponseWriter, r *http.Request) {
	var req BMIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "invalid request body: " + err.Error()})
		return
	}
	age := 30
	if req.Age != nil {
		age = *req.Age
	}
	out, ok := CalculateBMI(req.Weight, req.Height, age)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]string{"error": "An error occurred while calculating BMI. Please check your input values."})
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("write response")
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}
