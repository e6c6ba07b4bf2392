package gemini

import (
	"fmt"
	"strings"

	"vericore/internal/kyc/recognition"
)

func buildDocumentPrompt(req recognition.ExtractionRequest) string {
	expected := "the main identity fields"
	if len(req.ExpectedFields) > 0 {
		expected = strings.Join(req.ExpectedFields, ", ")
	}

	parts := []string{
		fmt.Sprintf("IDENTITY CHECK: Indian %s.", req.DocumentType),
		"",
		"IMPORTANT CONTEXT:",
	}
	if req.HasBack() {
		parts = append(parts, "- The first image is the FRONT side and the second image is the BACK side.")
	}
	if hint := strings.TrimSpace(req.PromptHint); hint != "" {
		parts = append(parts, "- "+hint)
	}
	parts = append(parts,
		"- Aadhaar/Passport usually have addresses on the BACK side.",
		"- Extract: Name, DOB, Document Number, and Address (if present). Also extract Gender, Father's Name, Mother's Name, Nationality, Issue Date and Expiry Date when printed.",
		"- Use ISO-8601 dates (YYYY-MM-DD) when the date is legible.",
		"",
		"SUCCESS CRITERIA:",
		fmt.Sprintf("- If %s are visible and readable, set status to 'SUCCESS'.", expected),
		"- Only fail for blurry images, glare, or physical obstruction. When failing, explain why in 'feedback' and give the customer one short 'tip'.",
		"",
		"Never output null. If a field is not present, omit it.",
		"Return ONLY JSON.",
	)
	return strings.Join(parts, "\n")
}

func buildLivenessPrompt(req recognition.FaceMatchRequest) string {
	var b strings.Builder
	b.WriteString("BIOMETRIC ANALYSIS: Compare the face on the ID card (first image) to the live selfie (second image). ")
	b.WriteString("Return a similarity score (0-100). ")
	fmt.Fprintf(&b, "Also confirm if the security code '%s' is clearly visible in the selfie", req.Challenge.Code)
	if req.Challenge.Gesture != "" {
		fmt.Fprintf(&b, " and the person is making a %s", req.Challenge.Gesture)
	}
	b.WriteString(". Explain your reasoning briefly in 'feedback'. Return ONLY JSON.")
	return b.String()
}
