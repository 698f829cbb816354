package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/pixgrove/pixgrove/models"
	"google.golang.org/genai"
)

const maxTags = 10

const analysisPrompt = `Analyze this image and respond with JSON only, in the shape
{"description": "...", "tags": ["...", "..."]}.
The description is one or two sentences describing the image content.
Tags are up to 10 short lowercase keywords, most relevant first.`

// VisionClient is the hosted vision/embedding API boundary.
type VisionClient interface {
	// Analyze returns the raw model text for an image analysis request.
	Analyze(ctx context.Context, image []byte, mimeType string) (string, error)
	// Embed returns an embedding vector for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// MetadataWriter persists AI status transitions. Every write is scoped by
// (image_id, user_id) so ownership is re-asserted in the query predicate.
type MetadataWriter interface {
	SetStatus(imageID uint, userID string, status string) error
	Complete(imageID uint, userID string, description string, tags []string, embedding []float32) error
}

// Processor dispatches AI processing for an uploaded image.
type Processor interface {
	Process(imageID uint, userID string, image []byte)
}

// AIPipeline runs the fire-and-forget analysis for one image: vision call,
// optional embedding, then a single atomic metadata update. It never returns
// an error; every failure becomes a status write plus a log line.
type AIPipeline struct {
	vision     VisionClient
	meta       MetadataWriter
	embeddings bool
}

func NewAIPipeline(vision VisionClient, meta MetadataWriter, embeddings bool) *AIPipeline {
	return &AIPipeline{vision: vision, meta: meta, embeddings: embeddings}
}

var _ Processor = (*AIPipeline)(nil)

func (p *AIPipeline) Process(imageID uint, userID string, image []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("AI pipeline panic for image %d: %v", imageID, r)
			p.markFailed(imageID, userID)
		}
	}()

	ctx := context.Background()

	if err := p.meta.SetStatus(imageID, userID, models.AIStatusProcessing); err != nil {
		log.Printf("failed to mark image %d as processing: %v", imageID, err)
	}

	raw, err := p.vision.Analyze(ctx, image, http.DetectContentType(image))
	if err != nil {
		log.Printf("AI analysis failed for image %d (reason=%s): %v", imageID, classifyAIError(err), err)
		p.markFailed(imageID, userID)
		return
	}

	analysis, err := parseAnalysis(raw)
	if err != nil {
		log.Printf("unparseable AI response for image %d: %v", imageID, err)
		p.markFailed(imageID, userID)
		return
	}

	description := strings.TrimSpace(analysis.Description)
	tags := sanitizeTags(analysis.Tags)

	var embedding []float32
	if p.embeddings && description != "" {
		embedding, err = p.vision.Embed(ctx, description)
		if err != nil {
			log.Printf("embedding failed for image %d (reason=%s): %v", imageID, classifyAIError(err), err)
			p.markFailed(imageID, userID)
			return
		}
	}

	// The caller is fire-and-forget, so a failed persist here is only
	// observable through logs and the failed status.
	if err := p.meta.Complete(imageID, userID, description, tags, embedding); err != nil {
		log.Printf("failed to persist AI results for image %d: %v", imageID, err)
		p.markFailed(imageID, userID)
	}
}

func (p *AIPipeline) markFailed(imageID uint, userID string) {
	if err := p.meta.SetStatus(imageID, userID, models.AIStatusFailed); err != nil {
		log.Printf("failed to mark image %d as failed: %v", imageID, err)
	}
}

type imageAnalysis struct {
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

var errInvalidAIResponse = errors.New("invalid AI response: no parseable JSON")

// parseAnalysis extracts the analysis payload from model output, which is
// expected to be JSON but may arrive inside a code fence or interleaved with
// prose. Tried in order: direct parse, fenced block, first '{' to last '}'.
func parseAnalysis(raw string) (*imageAnalysis, error) {
	candidates := []string{strings.TrimSpace(raw)}

	if fenced, ok := extractFenced(raw); ok {
		candidates = append(candidates, fenced)
	}

	if start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); start >= 0 && end > start {
		candidates = append(candidates, raw[start:end+1])
	}

	for _, c := range candidates {
		var a imageAnalysis
		if err := json.Unmarshal([]byte(c), &a); err == nil {
			return &a, nil
		}
	}

	return nil, errInvalidAIResponse
}

func extractFenced(raw string) (string, bool) {
	start := strings.Index(raw, "```")
	if start < 0 {
		return "", false
	}

	rest := raw[start+3:]
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}

	body := rest[:end]
	// strip an optional language tag on the opening fence
	if nl := strings.Index(body, "\n"); nl >= 0 {
		first := strings.TrimSpace(body[:nl])
		if first != "" && !strings.HasPrefix(first, "{") {
			body = body[nl+1:]
		}
	}

	return strings.TrimSpace(body), true
}

func sanitizeTags(tags []string) []string {
	out := make([]string, 0, maxTags)
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		out = append(out, t)
		if len(out) == maxTags {
			break
		}
	}
	return out
}

// classifyAIError buckets provider failures for logging. Classification never
// affects the persisted status, which is uniformly "failed".
func classifyAIError(err error) string {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "quota"):
		return "quota_exceeded"
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "resource_exhausted"):
		return "rate_limit"
	case strings.Contains(msg, "api key"):
		return "api_key_invalid"
	default:
		return "unknown"
	}
}

// GeminiVision implements VisionClient on the Gemini API.
type GeminiVision struct {
	cl          *genai.Client
	visionModel string
	embedModel  string
}

func NewGeminiVision(ctx context.Context, visionModel, embedModel string) (*GeminiVision, error) {
	client, err := genai.NewClient(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}

	return &GeminiVision{cl: client, visionModel: visionModel, embedModel: embedModel}, nil
}

var _ VisionClient = (*GeminiVision)(nil)

func (g *GeminiVision) Analyze(ctx context.Context, image []byte, mimeType string) (string, error) {
	parts := []*genai.Part{
		genai.NewPartFromBytes(image, mimeType),
		genai.NewPartFromText(analysisPrompt),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	result, err := g.cl.Models.GenerateContent(ctx, g.visionModel, contents, &genai.GenerateContentConfig{})
	if err != nil {
		return "", err
	}

	text := result.Text()
	if text == "" {
		return "", errors.New("no text content in model response")
	}

	return text, nil
}

func (g *GeminiVision) Embed(ctx context.Context, text string) ([]float32, error) {
	result, err := g.cl.Models.EmbedContent(ctx, g.embedModel, genai.Text(text), nil)
	if err != nil {
		return nil, err
	}

	if len(result.Embeddings) == 0 || len(result.Embeddings[0].Values) == 0 {
		return nil, errors.New("no embedding in model response")
	}

	return result.Embeddings[0].Values, nil
}
