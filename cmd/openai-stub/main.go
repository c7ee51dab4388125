package main

import (
	"encoding/json"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

var (
	inputRe  = regexp.MustCompile(`Input: '(.*)'`)
	nameRe   = regexp.MustCompile(`\b([A-Z][a-zA-Z0-9\-]{2,})\b`)
	amountRe = regexp.MustCompile(`(?i)\d+(?:\.\d+)?\s?(?:mg|mcg|g|ml|units)`)
)

// reply builds a deterministic extraction answer from the quoted input so
// the backend's fallback path can run without a real model.
func reply(user string) map[string]string {
	in := user
	if m := inputRe.FindStringSubmatch(user); m != nil {
		in = m[1]
	}
	out := map[string]string{"condition": "", "name": "", "dosage": "", "frequency": "once daily", "duration": ""}
	if m := nameRe.FindString(in); m != "" {
		out["name"] = m
	}
	if m := amountRe.FindString(in); m != "" {
		out["dosage"] = m
	} else {
		out["dosage"] = "as directed"
	}
	return out
}

func handler(model string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"id": model, "object": "model"}},
		})
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if len(req.Messages) < 2 || !strings.Contains(req.Messages[0].Content, "medical text extractor") {
			http.Error(w, "unexpected system", http.StatusBadRequest)
			return
		}
		b, _ := json.Marshal(reply(req.Messages[1].Content))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": string(b)}},
			},
		})
	})
	return mux
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	model := os.Getenv("MODEL_ID")
	if strings.TrimSpace(model) == "" {
		model = "test-model"
	}
	addr := os.Getenv("ADDR")
	if strings.TrimSpace(addr) == "" {
		addr = ":8081"
	}

	log.Info().Str("addr", addr).Str("model", model).Msg("openai-stub listening")
	srv := &http.Server{Addr: addr, Handler: handler(model), ReadHeaderTimeout: 10 * time.Second}
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("listen")
	}
}
