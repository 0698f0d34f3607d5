// Package main implements a mock Ollama server for exercising the
// semantic relevance oracle without a real model. It serves the two
// endpoints the oracle speaks, /api/tags and /api/generate, and answers
// generation requests with scripted verdicts. This makes relevance
// wiring testable offline and lets every oracle failure mode be
// reproduced on demand.
//
// Usage:
//
//	mock-ollama -port 11434 -verdicts irrelevant,relevant
//
// Verdicts are served in order per call, repeating the last once the
// script is exhausted. Supported verdicts:
//
//	relevant    {"relevant": true}
//	irrelevant  fenced {"relevant": false, "reason": ...} (see -reason)
//	garbage     prose with no JSON object (parse failure path)
//	error       HTTP 500 (transient failure path)
//
// -fail-health makes /api/tags return 503 so the probe failure path can
// be tested, and -latency delays generation replies past short timeouts.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// --- Ollama-compatible types ---

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Model     string `json:"model"`
	CreatedAt string `json:"created_at"`
	Response  string `json:"response"`
	Done      bool   `json:"done"`
}

// --- Server ---

// capturedRequest stores the key fields of an incoming generation
// request for prompt verification.
type capturedRequest struct {
	Model     string `json:"model"`
	Prompt    string `json:"prompt"`
	CallIndex int    `json:"call_index"` // 1-indexed call number
	Timestamp int64  `json:"timestamp"`
}

type server struct {
	verdicts   []string // scripted verdict per call, last one repeats
	reason     string
	latency    time.Duration
	failHealth bool

	calls atomic.Int64

	// Captured generation requests for verification via /requests.
	requests   []capturedRequest
	requestsMu sync.Mutex
}

func newServer(verdicts []string, reason string, latency time.Duration, failHealth bool) *server {
	return &server{
		verdicts:   verdicts,
		reason:     reason,
		latency:    latency,
		failHealth: failHealth,
	}
}

func main() {
	port := flag.Int("port", 11434, "port to listen on")
	verdictList := flag.String("verdicts", "relevant", "comma-separated verdict script (relevant, irrelevant, garbage, error)")
	reason := flag.String("reason", "content does not match the stated purpose", "reason attached to irrelevant verdicts")
	latency := flag.Duration("latency", 0, "delay before each generation reply")
	failHealth := flag.Bool("fail-health", false, "answer /api/tags with 503")
	flag.Parse()

	verdicts := strings.Split(*verdictList, ",")
	for i, v := range verdicts {
		verdicts[i] = strings.TrimSpace(v)
	}
	if err := validateVerdicts(verdicts); err != nil {
		log.Fatalf("Invalid -verdicts: %v", err)
	}
	log.Printf("Verdict script: %s", strings.Join(verdicts, " -> "))

	s := newServer(verdicts, *reason, *latency, *failHealth)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", s.handleTags)
	mux.HandleFunc("/api/generate", s.handleGenerate)
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/requests", s.handleRequests)

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("Mock Ollama server listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func validateVerdicts(verdicts []string) error {
	if len(verdicts) == 0 {
		return fmt.Errorf("empty script")
	}
	for _, v := range verdicts {
		switch v {
		case "relevant", "irrelevant", "garbage", "error":
		default:
			return fmt.Errorf("unknown verdict %q", v)
		}
	}
	return nil
}

func (s *server) handleTags(w http.ResponseWriter, _ *http.Request) {
	if s.failHealth {
		http.Error(w, "model store unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"models": []map[string]string{{"name": "mock"}},
	})
}

func (s *server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	callNum := int(s.calls.Add(1))
	s.captureRequest(req, callNum)

	verdict := s.verdicts[len(s.verdicts)-1]
	if callNum-1 < len(s.verdicts) {
		verdict = s.verdicts[callNum-1]
	}
	log.Printf("[call %d] model=%s prompt=%d bytes verdict=%s", callNum, req.Model, len(req.Prompt), verdict)

	if s.latency > 0 {
		time.Sleep(s.latency)
	}

	if verdict == "error" {
		http.Error(w, "model crashed", http.StatusInternalServerError)
		return
	}

	resp := generateResponse{
		Model:     req.Model,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Response:  s.replyText(verdict),
		Done:      true,
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// replyText renders the verdict roughly the way a small local model
// would: the negative case arrives fenced so reply extraction gets
// exercised, not just plain parsing.
func (s *server) replyText(verdict string) string {
	switch verdict {
	case "relevant":
		return `{"relevant": true}`
	case "irrelevant":
		return fmt.Sprintf("```json\n{\"relevant\": false, \"reason\": %q}\n```", s.reason)
	default: // garbage
		return "I am unable to judge whether this content fits."
	}
}

func (s *server) captureRequest(req generateRequest, callIndex int) {
	s.requestsMu.Lock()
	defer s.requestsMu.Unlock()
	s.requests = append(s.requests, capturedRequest{
		Model:     req.Model,
		Prompt:    req.Prompt,
		CallIndex: callIndex,
		Timestamp: time.Now().UnixMilli(),
	})
}

// handleStats returns call counts for test assertions.
func (s *server) handleStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"total_calls": s.calls.Load(),
	})
}

// handleRequests returns captured generation requests so tests can
// verify the prompt embedded the purpose and content they expected.
func (s *server) handleRequests(w http.ResponseWriter, _ *http.Request) {
	s.requestsMu.Lock()
	requests := make([]capturedRequest, len(s.requests))
	copy(requests, s.requests)
	s.requestsMu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"requests": requests,
	})
}
