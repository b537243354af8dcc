package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/raine/sellsmart-bot/internal/listing"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

const (
	analysisModel = "gemini-2.5-flash"
	editModel     = "gemini-2.5-flash-image"
	proImageModel = "gemini-3-pro-image-preview"

	// Generated photos use a portrait frame that suits marketplace listings.
	proImageAspectRatio = "3:4"
)

// Gemini pricing (per million tokens)
const (
	flashInputPricePerMillion  = 0.30
	flashOutputPricePerMillion = 2.50
	imageInputPricePerMillion  = 0.30
	imageOutputPricePerMillion = 30.00
	proInputPricePerMillion    = 2.00
	proOutputPricePerMillion   = 120.00
)

const analysisPrompt = `You are an expert reseller for platforms like Wallapop and Vinted.
Analyze this image.
1. Identify if it is an 'OBJECT' (furniture, electronics, decor) or 'CLOTHING' (apparel, shoes, accessories).
2. Write a catchy, SEO-friendly Title.
3. Write a persuasive Description highlighting condition and style.
4. Suggest a Price Range in Euros (e.g. "15€ - 25€").
5. Generate 5 relevant Hashtags.
6. Suggest 2 marketplaces (e.g., Wallapop, Vinted, Depop).`

// contentGenerator is the subset of *genai.Models used by the gateway.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiGateway talks to Google's Gemini API for analysis and editing, and
// optionally for pro image generation.
type GeminiGateway struct {
	models contentGenerator
}

// NewGeminiGateway creates a Gemini-backed gateway. An empty apiKey is not a
// construction error: every call then fails with ErrAuth.
func NewGeminiGateway(ctx context.Context, apiKey string) (*GeminiGateway, error) {
	if apiKey == "" {
		log.Warn().Msg("gemini api key is empty, all gateway calls will fail")
		return &GeminiGateway{}, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiGateway{models: client.Models}, nil
}

// analysisSchema constrains the analysis response so it can be decoded
// without parsing prose.
func analysisSchema() *genai.Schema {
	categories := make([]string, len(listing.Categories))
	for i, c := range listing.Categories {
		categories[i] = string(c)
	}
	stringList := &genai.Schema{Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"category":              {Type: genai.TypeString, Enum: categories},
			"title":                 {Type: genai.TypeString},
			"description":           {Type: genai.TypeString},
			"priceRange":            {Type: genai.TypeString},
			"hashtags":              stringList,
			"suggestedMarketplaces": stringList,
		},
		Required:         []string{"category", "title", "description", "priceRange", "hashtags"},
		PropertyOrdering: []string{"category", "title", "description", "priceRange", "hashtags", "suggestedMarketplaces"},
	}
}

func imagePart(image listing.Payload) *genai.Part {
	return &genai.Part{InlineData: &genai.Blob{Data: image.Data, MIMEType: image.MIMEType}}
}

// Analyze implements Analyzer.
func (g *GeminiGateway) Analyze(ctx context.Context, image listing.Payload) (*AnalysisResult, error) {
	if g.models == nil {
		return nil, fmt.Errorf("%w: %w", ErrAnalysisFailed, errMissingAPIKey)
	}
	if image.IsEmpty() {
		return nil, opError(ErrAnalysisFailed, "no image provided")
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			imagePart(image),
			genai.NewPartFromText(analysisPrompt),
		}, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   analysisSchema(),
	}

	result, err := g.models.GenerateContent(ctx, analysisModel, contents, config)
	if err != nil {
		return nil, callError(ErrAnalysisFailed, err)
	}

	draft, err := parseDraft(result.Text())
	if err != nil {
		return nil, err
	}

	usage := usageOf(result, flashInputPricePerMillion, flashOutputPricePerMillion)
	log.Info().
		Str("model", analysisModel).
		Str("category", string(draft.Category)).
		Int64("inputTokens", usage.InputTokens).
		Int64("outputTokens", usage.OutputTokens).
		Float64("costUSD", usage.CostUSD).
		Msg("analysis llm call")

	return &AnalysisResult{Draft: draft, Usage: usage}, nil
}

// Edit implements Editor.
func (g *GeminiGateway) Edit(ctx context.Context, image listing.Payload, instruction string) (*ImageResult, error) {
	if g.models == nil {
		return nil, fmt.Errorf("%w: %w", ErrEditFailed, errMissingAPIKey)
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			imagePart(image),
			genai.NewPartFromText(instruction),
		}, genai.RoleUser),
	}

	result, err := g.models.GenerateContent(ctx, editModel, contents, nil)
	if err != nil {
		return nil, callError(ErrEditFailed, err)
	}

	out, ok := firstImage(result)
	if !ok {
		return nil, opError(ErrEditFailed, "no image returned from editing model")
	}

	usage := usageOf(result, imageInputPricePerMillion, imageOutputPricePerMillion)
	log.Info().
		Str("model", editModel).
		Str("instruction", instruction).
		Int("imageBytes", len(out.Data)).
		Float64("costUSD", usage.CostUSD).
		Msg("edit llm call")

	return &ImageResult{Image: out, Usage: usage}, nil
}

// Generate implements Generator against the pro image model.
func (g *GeminiGateway) Generate(ctx context.Context, image listing.Payload, prompt string, resolution listing.Resolution) (*ImageResult, error) {
	if g.models == nil {
		return nil, fmt.Errorf("%w: %w", ErrGenerateFailed, errMissingAPIKey)
	}

	parts := []*genai.Part{genai.NewPartFromText(prompt)}
	if !image.IsEmpty() {
		parts = append([]*genai.Part{imagePart(image)}, parts...)
	}
	config := &genai.GenerateContentConfig{
		ImageConfig: &genai.ImageConfig{
			ImageSize:   string(resolution),
			AspectRatio: proImageAspectRatio,
		},
	}

	result, err := g.models.GenerateContent(ctx, proImageModel, []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}, config)
	if err != nil {
		return nil, callError(ErrGenerateFailed, err)
	}

	out, ok := firstImage(result)
	if !ok {
		return nil, opError(ErrGenerateFailed, "no image returned from generation model")
	}

	usage := usageOf(result, proInputPricePerMillion, proOutputPricePerMillion)
	log.Info().
		Str("model", proImageModel).
		Str("resolution", string(resolution)).
		Int("imageBytes", len(out.Data)).
		Float64("costUSD", usage.CostUSD).
		Msg("generate llm call")

	return &ImageResult{Image: out, Usage: usage}, nil
}

// firstImage returns the first inline image found in the response candidates.
func firstImage(result *genai.GenerateContentResponse) (listing.Payload, bool) {
	if result == nil {
		return listing.Payload{}, false
	}
	for _, candidate := range result.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			mimeType := part.InlineData.MIMEType
			if mimeType == "" {
				mimeType = "image/png"
			}
			return listing.NewPayload(part.InlineData.Data, mimeType), true
		}
	}
	return listing.Payload{}, false
}

func usageOf(result *genai.GenerateContentResponse, inputPrice, outputPrice float64) Usage {
	usage := Usage{}
	if result == nil || result.UsageMetadata == nil {
		return usage
	}
	usage.InputTokens = int64(result.UsageMetadata.PromptTokenCount)
	usage.OutputTokens = int64(result.UsageMetadata.CandidatesTokenCount)
	usage.TotalTokens = int64(result.UsageMetadata.TotalTokenCount)
	usage.CostUSD = calculateGeminiCost(usage.InputTokens, usage.OutputTokens, inputPrice, outputPrice)
	return usage
}

func calculateGeminiCost(inputTokens, outputTokens int64, inputPrice, outputPrice float64) float64 {
	inputCost := float64(inputTokens) / 1_000_000 * inputPrice
	outputCost := float64(outputTokens) / 1_000_000 * outputPrice
	return inputCost + outputCost
}

// extractJSONObject extracts a JSON object from text that may contain markdown
// code blocks or other formatting. Returns the extracted JSON string or an error.
func extractJSONObject(text string) (string, error) {
	text = strings.TrimSpace(text)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("no JSON object found in response: %s", text)
	}
	return text[start : end+1], nil
}

func parseDraft(text string) (*listing.Draft, error) {
	if strings.TrimSpace(text) == "" {
		return nil, opError(ErrAnalysisFailed, "empty response from model")
	}

	jsonStr, err := extractJSONObject(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAnalysisFailed, err)
	}

	var draft listing.Draft
	if err := json.Unmarshal([]byte(jsonStr), &draft); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response JSON: %w (response: %s)", ErrAnalysisFailed, err, jsonStr)
	}

	draft.Normalize()
	if err := draft.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAnalysisFailed, err)
	}
	return &draft, nil
}
