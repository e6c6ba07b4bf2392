// Command recognition-mock serves the generateContent endpoint with canned
// answers so the platform can run end to end without a model API key.
//
// Point the server at it with GEMINI_BASE_URL=http://localhost:8090/v1beta.
// Document checks succeed for every document type except those listed in
// MOCK_FAIL_DOCUMENTS; face matches score MOCK_FACE_SCORE.
package main

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
)

type request struct {
	Contents []struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"contents"`
}

type profile struct {
	Name        string
	DOB         string
	Address     string
	Gender      string
	FatherName  string
	Nationality string
	Expiry      string
}

type server struct {
	profile   profile
	faceScore float64
	failDocs  []string
}

func main() {
	s := &server{
		profile: profile{
			Name:        envOr("MOCK_NAME", "Asha Verma"),
			DOB:         envOr("MOCK_DOB", "1990-04-12"),
			Address:     envOr("MOCK_ADDRESS", "12 MG Road, Bengaluru 560001"),
			Gender:      envOr("MOCK_GENDER", "Female"),
			FatherName:  envOr("MOCK_FATHER_NAME", "Rakesh Verma"),
			Nationality: envOr("MOCK_NATIONALITY", "Indian"),
			Expiry:      envOr("MOCK_EXPIRY", "2034-01-01"),
		},
		faceScore: 92,
	}
	if v, err := strconv.ParseFloat(os.Getenv("MOCK_FACE_SCORE"), 64); err == nil {
		s.faceScore = v
	}
	for _, d := range strings.Split(os.Getenv("MOCK_FAIL_DOCUMENTS"), ",") {
		if d = strings.TrimSpace(d); d != "" {
			s.failDocs = append(s.failDocs, strings.ToLower(d))
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1beta/models/{call}", s.generate)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	addr := envOr("MOCK_ADDR", ":8090")
	log.Printf("recognition mock listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, mux))
}

func (s *server) generate(w http.ResponseWriter, r *http.Request) {
	if !strings.HasSuffix(r.PathValue("call"), ":generateContent") {
		http.NotFound(w, r)
		return
	}
	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	prompt := ""
	if len(req.Contents) > 0 {
		for _, p := range req.Contents[0].Parts {
			prompt += p.Text
		}
	}

	var answer any
	if strings.HasPrefix(prompt, "BIOMETRIC") {
		answer = map[string]any{
			"pinVisible":     true,
			"faceMatchScore": s.faceScore,
			"feedback":       "Faces match and the code is visible.",
		}
	} else {
		answer = s.document(prompt)
	}

	text, _ := json.Marshal(answer)
	resp := map[string]any{
		"candidates": []any{map[string]any{
			"content":      map[string]any{"parts": []any{map[string]any{"text": string(text)}}},
			"finishReason": "STOP",
		}},
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *server) document(prompt string) map[string]any {
	docType := documentType(prompt)
	for _, d := range s.failDocs {
		if d == strings.ToLower(docType) {
			return map[string]any{
				"status":   "FAIL",
				"feedback": "The image is too blurry to read.",
				"tip":      "Hold the document steady in good light.",
			}
		}
	}
	out := map[string]any{
		"status":         "SUCCESS",
		"name":           s.profile.Name,
		"dob":            s.profile.DOB,
		"gender":         s.profile.Gender,
		"fatherName":     s.profile.FatherName,
		"nationality":    s.profile.Nationality,
		"documentNumber": "MOCK" + strconv.Itoa(len(docType)*1013),
		"expiryDate":     s.profile.Expiry,
	}
	if !strings.EqualFold(docType, "PAN Card") {
		out["address"] = s.profile.Address
	}
	return out
}

// documentType reads the type from the first prompt line, "IDENTITY CHECK: Indian <type>."
func documentType(prompt string) string {
	line, _, _ := strings.Cut(prompt, "\n")
	line = strings.TrimPrefix(line, "IDENTITY CHECK: Indian ")
	return strings.TrimSuffix(strings.TrimSpace(line), ".")
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
