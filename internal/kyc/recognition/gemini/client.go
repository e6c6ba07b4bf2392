// Package gemini implements recognition.Recognizer over the Gemini
// generateContent REST API.
package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"vericore/internal/kyc/decision"
	"vericore/internal/kyc/recognition"
)

var _ recognition.Recognizer = (*Client)(nil)

// maxResponseBytes caps how much of a generateContent reply is read.
const maxResponseBytes = 2 << 20

type inlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	ResponseMIMEType string         `json:"responseMimeType"`
	ResponseSchema   map[string]any `json:"responseSchema"`
	Temperature      *float32       `json:"temperature,omitempty"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

type documentResult struct {
	Status         string `json:"status"`
	Name           string `json:"name"`
	DocumentNumber string `json:"documentNumber"`
	DOB            string `json:"dob"`
	Address        string `json:"address"`
	Gender         string `json:"gender"`
	FatherName     string `json:"fatherName"`
	MotherName     string `json:"motherName"`
	Nationality    string `json:"nationality"`
	IssueDate      string `json:"issueDate"`
	ExpiryDate     string `json:"expiryDate"`
	Feedback       string `json:"feedback"`
	Tip            string `json:"tip"`
}

type livenessResult struct {
	PinVisible     flexBool `json:"pinVisible"`
	FaceMatchScore float64  `json:"faceMatchScore"`
	Feedback       string   `json:"feedback"`
}

// ExtractDocument reads the document images and returns the extracted fields.
// A FAIL status from the model is a successful call with a failed Extraction.
func (c *Client) ExtractDocument(ctx context.Context, req recognition.ExtractionRequest) (*recognition.Extraction, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.logger.InfoContext(ctx, "llm.extract.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"document_type", req.DocumentType,
		"images", len(req.Images()),
		"expected_fields", len(req.ExpectedFields),
	)

	parts := []part{imagePart(req.Front)}
	if req.HasBack() {
		parts = append(parts, imagePart(*req.Back))
	}
	parts = append(parts, part{Text: buildDocumentPrompt(req)})

	text, err := c.generate(ctx, parts, documentResponseSchema())
	if err != nil {
		c.logger.ErrorContext(ctx, "llm.extract.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	if err := validateAgainst(documentSchema, text); err != nil {
		c.logger.ErrorContext(ctx, "llm.extract.schema_validation_failed",
			"req_id", rid, "error", err, "content_bytes", len(text),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, recognition.NewProviderError(recognition.ErrorContractMismatch, c.cfg.Model, "schema validation failed", err)
	}

	var out documentResult
	if err := json.Unmarshal(text, &out); err != nil {
		return nil, recognition.NewProviderError(recognition.ErrorBadData, c.cfg.Model, "unmarshal document result", err)
	}

	ext := &recognition.Extraction{
		Status:   recognition.StatusFail,
		Feedback: strings.TrimSpace(out.Feedback),
		Tip:      strings.TrimSpace(out.Tip),
		Fields: recognition.Fields{
			Name:           out.Name,
			DOB:            out.DOB,
			DocumentNumber: out.DocumentNumber,
			Address:        out.Address,
			Gender:         out.Gender,
			FatherName:     out.FatherName,
			MotherName:     out.MotherName,
			Nationality:    out.Nationality,
			IssueDate:      out.IssueDate,
			ExpiryDate:     out.ExpiryDate,
		},
	}
	if strings.EqualFold(strings.TrimSpace(out.Status), string(recognition.StatusSuccess)) {
		ext.Status = recognition.StatusSuccess
	} else {
		ext.Reason = ext.Feedback
		if ext.Reason == "" {
			ext.Reason = fmt.Sprintf("The AI was unable to reliably extract %s data. Ensure good lighting and clear text.", req.DocumentType)
		}
	}

	c.logger.InfoContext(ctx, "llm.extract.ok",
		"req_id", rid,
		"status", ext.Status,
		"fields", len(ext.Fields.Map()),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return ext, nil
}

// MatchFace compares the document face with the selfie and checks the challenge.
func (c *Client) MatchFace(ctx context.Context, req recognition.FaceMatchRequest) (*recognition.FaceMatch, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.logger.InfoContext(ctx, "llm.liveness.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"challenge_kind", req.Challenge.Kind,
	)

	parts := []part{
		imagePart(req.DocumentFace),
		imagePart(req.Selfie),
		{Text: buildLivenessPrompt(req)},
	}
	text, err := c.generate(ctx, parts, livenessResponseSchema())
	if err != nil {
		c.logger.ErrorContext(ctx, "llm.liveness.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	if err := validateAgainst(livenessSchema, text); err != nil {
		c.logger.ErrorContext(ctx, "llm.liveness.schema_validation_failed",
			"req_id", rid, "error", err, "content_bytes", len(text),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, recognition.NewProviderError(recognition.ErrorContractMismatch, c.cfg.Model, "schema validation failed", err)
	}

	var out livenessResult
	if err := json.Unmarshal(text, &out); err != nil {
		return nil, recognition.NewProviderError(recognition.ErrorBadData, c.cfg.Model, "unmarshal liveness result", err)
	}

	match := &recognition.FaceMatch{
		Score:              decision.NormalizeScore(out.FaceMatchScore),
		RawScore:           out.FaceMatchScore,
		ChallengeConfirmed: bool(out.PinVisible),
		Reasoning:          strings.TrimSpace(out.Feedback),
	}
	c.logger.InfoContext(ctx, "llm.liveness.ok",
		"req_id", rid,
		"score", match.Score,
		"raw_score", match.RawScore,
		"challenge_confirmed", match.ChallengeConfirmed,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return match, nil
}

func imagePart(img recognition.Image) part {
	mt := img.MIMEType
	if mt == "" {
		mt = "image/jpeg"
	}
	return part{InlineData: &inlineData{
		MIMEType: mt,
		Data:     base64.StdEncoding.EncodeToString(img.Data),
	}}
}

// generate runs one generateContent call and returns the first candidate's text.
func (c *Client) generate(ctx context.Context, parts []part, schema map[string]any) ([]byte, error) {
	body := generateRequest{
		Contents: []content{{Role: "user", Parts: parts}},
		GenerationConfig: generationConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   schema,
		},
	}
	if c.cfg.Temperature > 0 {
		t := c.cfg.Temperature
		body.GenerationConfig.Temperature = &t
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.Model)
	raw, err := c.post(ctx, endpoint, body)
	if err != nil {
		return nil, err
	}

	var resp generateResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, recognition.NewProviderError(recognition.ErrorBadData, c.cfg.Model, "decode gemini response", err)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, recognition.NewProviderError(recognition.ErrorBadData, c.cfg.Model, "prompt blocked: "+resp.PromptFeedback.BlockReason, nil)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, recognition.NewProviderError(recognition.ErrorContractMismatch, c.cfg.Model, "no candidates in gemini response", nil)
	}

	text := strings.TrimSpace(resp.Candidates[0].Content.Parts[0].Text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)
	if text == "" {
		text = "{}"
	}
	return []byte(text), nil
}

func (c *Client) post(ctx context.Context, url string, body any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, recognition.NewProviderError(recognition.ErrorInternal, c.cfg.Model, "marshal request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, recognition.NewProviderError(recognition.ErrorInternal, c.cfg.Model, "build request", err)
	}
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, recognition.NewProviderError(recognition.ErrorTimeout, c.cfg.Model, "gemini request timed out", err)
		}
		if errors.Is(err, context.Canceled) {
			return nil, recognition.NewProviderError(recognition.ErrorInternal, c.cfg.Model, "gemini request canceled", err)
		}
		return nil, recognition.NewProviderError(recognition.ErrorProviderOutage, c.cfg.Model, "gemini http error", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.logger.Warn("gemini response body close error", "error", err)
		}
	}(resp.Body)

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(io.LimitReader(resp.Body, maxResponseBytes+1)); err != nil {
		return nil, recognition.NewProviderError(recognition.ErrorProviderOutage, c.cfg.Model, "read gemini response", err)
	}
	if buf.Len() > maxResponseBytes {
		return nil, recognition.NewProviderError(recognition.ErrorContractMismatch, c.cfg.Model,
			fmt.Sprintf("gemini response exceeds %d bytes", maxResponseBytes), nil)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("gemini status %d: %s", resp.StatusCode, truncate(buf.String(), 512))
		return nil, recognition.NewProviderError(categoryForStatus(resp.StatusCode), c.cfg.Model, msg, nil)
	}
	return buf.Bytes(), nil
}

func categoryForStatus(status int) recognition.ErrorCategory {
	switch {
	case status == http.StatusTooManyRequests:
		return recognition.ErrorRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return recognition.ErrorAuthentication
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return recognition.ErrorTimeout
	case status == http.StatusNotFound:
		return recognition.ErrorContractMismatch
	case status >= 500:
		return recognition.ErrorProviderOutage
	case status >= 400:
		return recognition.ErrorBadData
	default:
		return recognition.ErrorInternal
	}
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
