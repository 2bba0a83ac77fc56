package recognition

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/your-org/receiptscan/internal/config"
	"github.com/your-org/receiptscan/internal/models"
)

const geminiInstruction = `You are a text detection engine for photographed receipts.
Return every line of text and every word in it, top to bottom, as a JSON array.
Each element has: "DetectedText" (verbatim), "Type" ("LINE" or "WORD"), "Id" (integer, unique),
"ParentId" (for WORD, the Id of its LINE), "Confidence" (0-100),
"Geometry": {"BoundingBox": {"Width", "Height", "Left", "Top"}} with values as fractions of the image size.
Output only the JSON array.`

var ErrEmptyResponse = errors.New("gemini: empty response")

// Gemini detects text by asking a Gemini model for detections in the same
// shape Rekognition returns.
type Gemini struct {
	apiKey string
	model  string
}

func NewGemini(cfg config.RecognitionConfig) *Gemini {
	return &Gemini{
		apiKey: strings.TrimSpace(cfg.GeminiAPIKey),
		model:  strings.TrimSpace(cfg.GeminiModel),
	}
}

func (g *Gemini) Name() string { return config.EngineGemini }

func (g *Gemini) DetectText(ctx context.Context, image []byte) ([]models.TextDetection, error) {
	cl, err := genai.NewClient(ctx, option.WithAPIKey(g.apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	defer cl.Close()

	m := cl.GenerativeModel(g.model)
	m.SetTemperature(0)
	m.ResponseMIMEType = "application/json"
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(geminiInstruction)}}

	resp, err := m.GenerateContent(ctx,
		genai.Blob{MIMEType: http.DetectContentType(image), Data: image},
		genai.Text("Detect the text in this receipt."),
	)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	return parseGeminiResponse(resp)
}

func parseGeminiResponse(resp *genai.GenerateContentResponse) ([]models.TextDetection, error) {
	txt := stripCodeFences(firstText(resp))
	if txt == "" {
		return nil, ErrEmptyResponse
	}
	var dets []models.TextDetection
	if err := json.Unmarshal([]byte(txt), &dets); err != nil {
		return nil, fmt.Errorf("gemini: bad JSON: %w", err)
	}
	if dets == nil {
		dets = []models.TextDetection{}
	}
	return dets, nil
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
