package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"google.golang.org/genai"

	"edureg/internal/student"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash"

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini asks a Gemini model for a JSON object matching the draft schema.
type Gemini struct {
	models contentGenerator
	model  string
}

// NewGemini creates a client for the Gemini API.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: api key required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.Wrap(err, "gemini: creating client")
	}
	return newGemini(client.Models, model), nil
}

func newGemini(models contentGenerator, model string) *Gemini {
	if model == "" {
		model = DefaultModel
	}
	return &Gemini{models: models, model: model}
}

func draftSchema() *genai.Schema {
	sexes := make([]string, len(student.Sexes))
	for i, s := range student.Sexes {
		sexes[i] = string(s)
	}
	str := func(desc string) *genai.Schema {
		return &genai.Schema{Type: genai.TypeString, Description: desc}
	}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"studentId": str("Student's identification number"),
			"name":      str("Full name of the student"),
			"sex":       {Type: genai.TypeString, Enum: sexes, Description: "Gender identity"},
			"course":    str("Name of the course/class"),
			"date":      str("Date of registration in YYYY-MM-DD format"),
			"time":      str("Time of registration in HH:mm format"),
		},
		PropertyOrdering: []string{"studentId", "name", "sex", "course", "date", "time"},
	}
}

func prompt(text string, today time.Time) string {
	return fmt.Sprintf("Extract student registration details from this text: %q.\n"+
		"Current Date context: %s.\n"+
		"If fields are missing, leave them null.", text, today.Format("2006-01-02"))
}

// Extract sends the text to the model with a structured response schema.
func (g *Gemini) Extract(ctx context.Context, text string, today time.Time) (*student.Draft, error) {
	text, err := checkInput(text)
	if err != nil {
		return nil, err
	}

	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt(text, today)), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   draftSchema(),
	})
	if err != nil {
		return nil, fail(errors.Wrap(err, "gemini request failed"))
	}

	raw := resp.Text()
	if raw == "" {
		raw = "{}"
	}
	var out student.Draft
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fail(fmt.Errorf("failed to decode response: %w", err))
	}
	return finish(&out)
}

// Health reports whether a model is configured; the API has no cheap probe.
func (g *Gemini) Health(context.Context) error {
	if g.models == nil {
		return errors.New("gemini: no client")
	}
	return nil
}
