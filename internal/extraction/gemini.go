package extraction

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Gemini implements the Extractor interface using Google Gemini
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// budgetSchema is the strict output schema sent with every request. The
// model may only answer with this shape.
func budgetSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"client": {Type: genai.TypeString, Description: "Customer name as written on the sheet"},
			"date":   {Type: genai.TypeString, Description: "Budget date in DD/MM/YYYY format"},
			"lines": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"description": {Type: genai.TypeString},
						"units":       {Type: genai.TypeNumber},
						"unitPrice":   {Type: genai.TypeNumber},
					},
					Required: []string{"description"},
				},
			},
			"notes": {Type: genai.TypeString, Description: "Warnings about illegible data or discrepancies"},
		},
		Required: []string{"client", "date", "lines"},
	}
}

// NewGemini creates a new Gemini Extractor instance
func NewGemini(ctx context.Context, apiKey string, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	// Structured extraction, not a creative task
	model.SetTemperature(0)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = budgetSchema()

	return &Gemini{
		client: client,
		model:  model,
	}, nil
}

// Extract sends all page images plus the instruction in a single
// structured-generation request and parses the response.
func (g *Gemini) Extract(ctx context.Context, pages []Page) (*BudgetSheet, error) {
	if len(pages) == 0 {
		return nil, ErrNoPages
	}

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	// Page images first, in input order, then the instruction
	parts := make([]genai.Part, 0, len(pages)+1)
	for _, page := range pages {
		parts = append(parts, genai.ImageData("jpeg", page.Data))
	}
	parts = append(parts, genai.Text(buildPrompt(time.Now())))

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, classify(err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, &Error{Kind: KindMalformed, Message: "empty response from model"}
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}

	sheet, err := parseBudgetJSON(responseText.String())
	if err != nil {
		return nil, err
	}
	return sheet, nil
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	return g.client.Close()
}
