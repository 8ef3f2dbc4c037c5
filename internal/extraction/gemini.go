package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// DefaultPrompt is used when no prompt is stored for a document kind.
const DefaultPrompt = "You are a bank statement parser.\n\n" +
	"Task:\n" +
	"- Extract ALL transactions in the attached statement.\n" +
	"- Output STRICT JSON only (no comments, no trailing commas, no extra text).\n" +
	"- Output a JSON object {\"rows\": [...], \"quality\": string, \"confidence\": number}.\n\n" +
	"Each row must have these fields:\n" +
	"- \"txid\": string, stable and unique per transaction\n" +
	"- \"date\": string, ISO format \"YYYY-MM-DD\"\n" +
	"- \"posted_ts\": string or null\n" +
	"- \"payee\": string\n" +
	"- \"memo\": string or null\n" +
	"- \"account_id\": string or null\n" +
	"- \"direction\": \"Debit\" when money enters the account, \"Credit\" when it leaves\n" +
	"- \"kind\": \"Fiat\" or \"Crypto\"\n" +
	"- \"ccy_or_asset\": string (e.g. \"USD\", \"HKD\", \"BTC\")\n" +
	"- \"amount_or_qty\": positive number\n" +
	"- \"category_id\": string or null\n\n" +
	"Return ONLY valid raw JSON.\n" +
	"Do NOT wrap the response in code fences.\n"

// GeminiExtractor implements Extractor with Gemini.
type GeminiExtractor struct {
	client *genai.Client
	model  string
}

// NewGeminiExtractor creates a Gemini client using Application Default
// Credentials or GOOGLE_API_KEY.
func NewGeminiExtractor(ctx context.Context, model string) (*GeminiExtractor, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiExtractor: create genai client: %w", err)
	}
	if model == "" {
		model = DefaultModelName
	}
	return &GeminiExtractor{client: client, model: model}, nil
}

// Model implements Extractor.
func (g *GeminiExtractor) Model() string { return g.model }

// Extract implements Extractor.
func (g *GeminiExtractor) Extract(ctx context.Context, req Request) (*Result, error) {
	prompt := req.Prompt
	if prompt == "" {
		prompt = DefaultPrompt
	}
	mime := req.MIMEType
	if mime == "" {
		mime = "application/pdf"
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: prompt},
				{InlineData: &genai.Blob{MIMEType: mime, Data: req.Data}},
			},
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("Extract: generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return nil, fmt.Errorf("Extract: empty response from model")
	}
	return ParseModelOutput(rawText)
}

// ParseModelOutput decodes model text into a Result. A bare array is read
// as the rows with unknown quality.
func ParseModelOutput(raw string) (*Result, error) {
	clean := cleanModelJSON(raw)

	dec := json.NewDecoder(strings.NewReader(clean))
	dec.UseNumber()

	if strings.HasPrefix(clean, "[") {
		var rows []map[string]any
		if err := dec.Decode(&rows); err != nil {
			return nil, fmt.Errorf("ParseModelOutput: unmarshal rows: %w", err)
		}
		return &Result{Rows: rows}, nil
	}

	var res Result
	if err := dec.Decode(&res); err != nil {
		return nil, fmt.Errorf("ParseModelOutput: unmarshal result: %w", err)
	}
	return &res, nil
}

// cleanModelJSON strips Markdown fences and surrounding prose from model
// output, keeping the outermost JSON object or array.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	open := strings.IndexAny(s, "[{")
	if open == -1 {
		return s
	}
	closer := "]"
	if s[open] == '{' {
		closer = "}"
	}
	if end := strings.LastIndex(s, closer); end > open {
		s = strings.TrimSpace(s[open : end+1])
	}
	return s
}
