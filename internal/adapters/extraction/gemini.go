package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/genai"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.0-flash"

const statementPrompt = "You are a bank statement parser for scanned PDF bank statements.\n\n" +
	"Task:\n" +
	"- Parse ALL transactions in the attached statement, including checks.\n" +
	"- Also list every check image printed on the statement, if any.\n" +
	"- Output STRICT JSON only (no comments, no trailing commas, no extra text).\n" +
	"- Output a single JSON object.\n\n" +
	"The object must have these fields:\n" +
	"- \"account_number\": string or null\n" +
	"- \"period_start\": string, ISO format \"YYYY-MM-DD\", or null\n" +
	"- \"period_end\": string, ISO format \"YYYY-MM-DD\", or null\n" +
	"- \"transactions\": array of objects with fields:\n" +
	"    - \"date\": string, ISO format \"YYYY-MM-DD\"\n" +
	"    - \"description\": string\n" +
	"    - \"amount\": number (negative for money OUT, positive for money IN)\n" +
	"    - \"transaction_type\": one of \"debit\", \"credit\", \"check\", \"deposit\", \"transfer\", \"fee\"\n" +
	"    - \"check_number\": string or null (digits only, no leading '#')\n" +
	"    - \"running_balance\": number or null\n" +
	"    - \"vendor_suggestion\": string or null (the merchant name if clearly identifiable)\n" +
	"- \"check_images\": array of objects with fields:\n" +
	"    - \"check_number\": string or null\n" +
	"    - \"payee\": string or null\n" +
	"    - \"amount\": number or null\n" +
	"    - \"date\": string, ISO format \"YYYY-MM-DD\", or null\n\n" +
	"Rules:\n" +
	"- If the statement has separate withdrawal/deposit columns, convert to a single signed \"amount\".\n" +
	"- Transactions that clear a check must have transaction_type \"check\" and the check number set.\n" +
	"- Do not invent transactions; omit rows you cannot read.\n\n" +
	"Return ONLY valid raw JSON.\n" +
	"Do NOT wrap the response in code fences.\n" +
	"Do NOT use ```json or any Markdown.\n" +
	"Output must begin with \"{\" and end with \"}\".\n"

// GeminiExtractor parses statements with the Gemini API. Credentials
// come from the environment (GOOGLE_API_KEY or application default
// credentials).
type GeminiExtractor struct {
	model  string
	logger *slog.Logger
}

var _ Extractor = (*GeminiExtractor)(nil)

// NewGeminiExtractor creates an extractor for the given model name.
func NewGeminiExtractor(model string, logger *slog.Logger) *GeminiExtractor {
	if model == "" {
		model = DefaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GeminiExtractor{model: model, logger: logger}
}

// ExtractStatement sends the document to the model and parses the
// structured response.
func (g *GeminiExtractor) ExtractStatement(ctx context.Context, data []byte, contentType string) (*StatementData, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("extraction: empty document")
	}
	if contentType == "" {
		contentType = "application/pdf"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("extraction: create genai client: %w", err)
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: statementPrompt},
				{
					InlineData: &genai.Blob{
						MIMEType: contentType,
						Data:     data,
					},
				},
			},
		},
	}

	start := time.Now()
	resp, err := client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("extraction: generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return nil, fmt.Errorf("extraction: empty response from model")
	}

	var raw rawStatement
	if err := json.Unmarshal([]byte(cleanModelJSON(rawText)), &raw); err != nil {
		return nil, fmt.Errorf("extraction: unmarshal model response: %w", err)
	}

	stmt, err := transform(&raw)
	if err != nil {
		return nil, fmt.Errorf("extraction: %w", err)
	}

	g.logger.Info("statement extracted",
		"model", g.model,
		"transactions", len(stmt.Transactions),
		"check_images", len(stmt.CheckImages),
		"duration", time.Since(start).Round(time.Millisecond))

	return stmt, nil
}
