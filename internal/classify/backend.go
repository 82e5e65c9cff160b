package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/pkg/errors"
	"google.golang.org/api/option"

	"coldcall/internal/config"
)

// Backend turns a prompt into free text.
type Backend interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Name() string
}

// NewBackend picks the backend named by cfg.ClassifierBackend.
func NewBackend(cfg config.Config, httpClient *http.Client) (Backend, error) {
	switch cfg.ClassifierBackend {
	case config.BackendGemini, "":
		return NewGeminiBackend(cfg.GeminiAPIKey, cfg.ClassifierModel), nil
	case config.BackendOpenAI:
		return NewOpenAIBackend(httpClient, cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.ClassifierModel), nil
	default:
		return nil, errors.Errorf("unknown classifier backend %q", cfg.ClassifierBackend)
	}
}

// GeminiBackend calls the Gemini generative-language API with a fresh client
// per request.
type GeminiBackend struct {
	apiKey string
	model  string
	opts   []option.ClientOption
}

func NewGeminiBackend(apiKey, model string, opts ...option.ClientOption) *GeminiBackend {
	if strings.TrimSpace(model) == "" {
		model = "gemini-pro"
	}
	return &GeminiBackend{apiKey: apiKey, model: model, opts: opts}
}

func (g *GeminiBackend) Name() string { return "gemini:" + g.model }

func (g *GeminiBackend) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(g.apiKey) == "" {
		return "", errors.New("GEMINI_API_KEY not set")
	}
	opts := append([]option.ClientOption{option.WithAPIKey(g.apiKey)}, g.opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return "", errors.Wrap(err, "gemini client")
	}
	defer client.Close()

	resp, err := client.GenerativeModel(g.model).GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", errors.Wrap(err, "gemini generate")
	}
	return responseText(resp)
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", errors.New("empty gemini response")
	}
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
		if b.Len() > 0 {
			break
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", errors.New("gemini returned no text")
	}
	return b.String(), nil
}

// OpenAIBackend calls an OpenAI-compatible chat-completions endpoint.
type OpenAIBackend struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

func NewOpenAIBackend(client *http.Client, baseURL, apiKey, model string) *OpenAIBackend {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if strings.TrimSpace(model) == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIBackend{client: client, baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, model: model}
}

func (o *OpenAIBackend) Name() string { return "openai:" + o.model }

func (o *OpenAIBackend) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(o.apiKey) == "" {
		return "", errors.New("OPENAI_API_KEY not set")
	}
	payload := map[string]interface{}{
		"model":       o.model,
		"temperature": 0,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}
	buf, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/v1/chat/completions", bytes.NewReader(buf))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := o.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("classification status %d: %s", resp.StatusCode, string(b))
	}
	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("empty classification")
	}
	return parsed.Choices[0].Message.Content, nil
}
