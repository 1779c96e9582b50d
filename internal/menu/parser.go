package menu

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"beer-scanner-backend/config"
	"beer-scanner-backend/internal/catalog"
	"beer-scanner-backend/internal/parse"
)

// Parser extracts candidate beers from raw menu content.
type Parser interface {
	Extract(ctx context.Context, content []byte, contentType, instructions string) ([]catalog.Candidate, error)
}

const extractionPrompt = `You are a helpful assistant that extracts beer information from bar menus and only returns JSON.
Extract all draft beers and ciders from the menu and return them as a JSON array.
Each beer should have the following properties: name, brewery, type, abv (as a decimal, e.g., 5.3 for 5.3%), description (if found, be sure this is ONLY the description).
If any property is not available, use null.
If the beer name and brewery name are 100% indistinguishable from each other, put it as just the beer name.
Use only official beer types (e.g. IPA, Lager, DIPA).
`

var beerListSchema = map[string]any{
	"type":                 "object",
	"additionalProperties": false,
	"required":             []string{"beers"},
	"properties": map[string]any{
		"beers": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"required":             []string{"name", "brewery", "type", "abv", "description"},
				"properties": map[string]any{
					"name":        map[string]any{"type": "string"},
					"brewery":     map[string]any{"type": []string{"string", "null"}},
					"type":        map[string]any{"type": []string{"string", "null"}},
					"abv":         map[string]any{"type": []string{"number", "null"}},
					"description": map[string]any{"type": []string{"string", "null"}},
				},
			},
		},
	},
}

// maxResponseBytes caps how much of a completion response is read.
const maxResponseBytes = 8 << 20

// ModelParser asks an OpenAI-compatible chat completions endpoint to read a menu.
type ModelParser struct {
	client   *http.Client
	baseURL  string
	apiKey   string
	model    string
	maxBytes int64
	logger   *zap.Logger
}

// NewModelParser creates a ModelParser from the parser configuration.
func NewModelParser(cfg config.ParserConfig, logger *zap.Logger) *ModelParser {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &ModelParser{
		client:   &http.Client{Timeout: timeout},
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		maxBytes: maxResponseBytes,
		logger:   logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	MaxTokens      int           `json:"max_tokens"`
	ResponseFormat any           `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type beerList struct {
	Beers []struct {
		Name        *string         `json:"name"`
		Brewery     *string         `json:"brewery"`
		Type        *string         `json:"type"`
		ABV         json.RawMessage `json:"abv"`
		Description *string         `json:"description"`
	} `json:"beers"`
}

// Extract returns every beer the model found. Any error is a ParseError and no
// partial list is returned.
func (p *ModelParser) Extract(ctx context.Context, content []byte, contentType, instructions string) ([]catalog.Candidate, error) {
	cands, err := p.extract(ctx, content, contentType, instructions)
	if err != nil {
		return nil, &ParseError{Err: err}
	}
	return cands, nil
}

func (p *ModelParser) extract(ctx context.Context, content []byte, contentType, instructions string) ([]catalog.Candidate, error) {
	part, err := contentPart(content, contentType)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(chatRequest{
		Model:     p.model,
		MaxTokens: 4096,
		Messages: []chatMessage{
			{Role: "system", Content: extractionPrompt + "\n" + instructions},
			{Role: "user", Content: []any{
				map[string]any{"type": "text", "text": "Extract the beers from the attached menu."},
				part,
			}},
		},
		ResponseFormat: map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   "beer_list",
				"strict": true,
				"schema": beerListSchema,
			},
		},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	started := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("model request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read model response: %w", err)
	}
	if int64(len(raw)) > p.maxBytes {
		return nil, fmt.Errorf("model response exceeds %d bytes", p.maxBytes)
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return nil, fmt.Errorf("decode model response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		if cr.Error != nil && cr.Error.Message != "" {
			return nil, fmt.Errorf("model returned status %d: %s", resp.StatusCode, cr.Error.Message)
		}
		return nil, fmt.Errorf("model returned status %d", resp.StatusCode)
	}
	if len(cr.Choices) != 1 {
		return nil, fmt.Errorf("expected exactly one choice, got %d", len(cr.Choices))
	}
	msg := cr.Choices[0].Message
	if msg.Refusal != "" {
		return nil, fmt.Errorf("model refused: %s", msg.Refusal)
	}

	var list beerList
	if err := json.Unmarshal([]byte(msg.Content), &list); err != nil {
		return nil, fmt.Errorf("decode beer list: %w", err)
	}

	cands := make([]catalog.Candidate, 0, len(list.Beers))
	for _, b := range list.Beers {
		abv, err := decodeABV(b.ABV)
		if err != nil {
			return nil, err
		}
		cands = append(cands, catalog.Candidate{
			Name:        deref(b.Name),
			Brewery:     deref(b.Brewery),
			Type:        deref(b.Type),
			ABV:         abv,
			Description: deref(b.Description),
		})
	}

	p.logger.Info("extracted beers from menu",
		zap.String("content_type", contentType),
		zap.Int("beers", len(cands)),
		zap.Duration("took", time.Since(started)))
	return cands, nil
}

// contentPart builds the chat message part carrying the menu.
func contentPart(content []byte, contentType string) (map[string]any, error) {
	dataURL := func() string {
		return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(content)
	}
	switch {
	case strings.HasPrefix(contentType, "text/"):
		return map[string]any{"type": "text", "text": string(content)}, nil
	case strings.HasPrefix(contentType, "image/"):
		return map[string]any{"type": "image_url", "image_url": map[string]any{"url": dataURL()}}, nil
	case contentType == "application/pdf":
		return map[string]any{"type": "file", "file": map[string]any{"filename": "bar-menu.pdf", "file_data": dataURL()}}, nil
	default:
		return nil, fmt.Errorf("cannot send content type %q to the model", contentType)
	}
}

// decodeABV accepts a JSON number, a string such as "5.3%", or null.
func decodeABV(raw json.RawMessage) (*float64, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return nil, nil
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return &v, nil
	}
	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return nil, errors.New("abv is neither a number nor a string")
	}
	v, err := parse.ParseABV(str)
	if err != nil {
		// An unreadable ABV is dropped rather than failing the whole menu.
		return nil, nil
	}
	return v, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
