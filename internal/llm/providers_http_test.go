package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGeminiProvider_Defaults(t *testing.T) {
	p := NewGeminiProvider(GeminiConfig{APIKey: "k"})
	if p.Name() != "gemini" {
		t.Errorf("Name() = %v, want gemini", p.Name())
	}
	if p.model != "gemini-2.5-flash" {
		t.Errorf("model = %v, want gemini-2.5-flash", p.model)
	}
	if p.baseURL != "https://generativelanguage.googleapis.com" {
		t.Errorf("baseURL = %v", p.baseURL)
	}
}

func TestGeminiProvider_BuildRequest(t *testing.T) {
	p := NewGeminiProvider(GeminiConfig{})
	gr := p.buildRequest(&Request{
		System:      "be nice",
		MaxTokens:   100,
		Temperature: 0.5,
		Messages: []Message{
			{Role: RoleUser, Content: "q"},
			{Role: RoleAssistant, Content: "a"},
		},
	})

	if len(gr.Contents) != 2 {
		t.Fatalf("len(Contents) = %d, want 2", len(gr.Contents))
	}
	if gr.Contents[1].Role != "model" {
		t.Errorf("assistant role = %v, want model", gr.Contents[1].Role)
	}
	if gr.SystemInstruction == nil || gr.SystemInstruction.Parts[0].Text != "be nice" {
		t.Errorf("SystemInstruction = %+v", gr.SystemInstruction)
	}
	if gr.GenerationConfig == nil || gr.GenerationConfig.MaxOutputTokens != 100 {
		t.Errorf("GenerationConfig = %+v", gr.GenerationConfig)
	}
}

func TestGeminiProvider_Generate_HTTPSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/gemini-2.5-flash:generateContent" {
			t.Errorf("Path = %v", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Errorf("x-goog-api-key = %v, want test-key", r.Header.Get("x-goog-api-key"))
		}

		var req geminiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Contents) != 1 || req.Contents[0].Parts[0].Text != "Hello" {
			t.Errorf("Contents = %+v", req.Contents)
		}

		w.Write([]byte(`{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "Hi "}, {"text": "there"}]}, "finishReason": "STOP"}],
			"usageMetadata": {"promptTokenCount": 4, "candidatesTokenCount": 2}
		}`))
	}))
	defer server.Close()

	p := NewGeminiProvider(GeminiConfig{APIKey: "test-key", BaseURL: server.URL + "/"})
	got, err := p.Generate(context.Background(), &Request{
		Messages: []Message{{Role: RoleUser, Content: "Hello"}},
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got.Content != "Hi there" {
		t.Errorf("Content = %q, want %q", got.Content, "Hi there")
	}
	if got.FinishReason != "STOP" || got.Usage.InputTokens != 4 || got.Usage.OutputTokens != 2 {
		t.Errorf("Response = %+v", got)
	}
}

func TestGeminiProvider_Generate_NoCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates": []}`))
	}))
	defer server.Close()

	got, err := NewGeminiProvider(GeminiConfig{BaseURL: server.URL}).Generate(context.Background(), &Request{})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got.Content != "" {
		t.Errorf("Content = %q, want empty", got.Content)
	}
}

func TestProviders_Generate_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error": "overloaded"}`))
	}))
	defer server.Close()

	providers := []Provider{
		NewGeminiProvider(GeminiConfig{BaseURL: server.URL}),
		NewClaudeProvider(ClaudeConfig{BaseURL: server.URL}),
		NewOpenAIProvider(OpenAIConfig{BaseURL: server.URL}),
		NewOllamaProvider(OllamaConfig{BaseURL: server.URL}),
	}

	for _, p := range providers {
		t.Run(p.Name(), func(t *testing.T) {
			_, err := p.Generate(context.Background(), &Request{
				Messages: []Message{{Role: RoleUser, Content: "Hello"}},
			})
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("Generate() error = %v, want *APIError", err)
			}
			if apiErr.StatusCode != http.StatusServiceUnavailable {
				t.Errorf("StatusCode = %d, want 503", apiErr.StatusCode)
			}
		})
	}
}

func TestClaudeProvider_Generate_HTTPSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("Path = %v, want /v1/messages", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("x-api-key = %v, want test-key", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") != "2023-06-01" {
			t.Errorf("anthropic-version = %v", r.Header.Get("anthropic-version"))
		}

		var req claudeRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.System != "sys" {
			t.Errorf("System = %q, want sys", req.System)
		}

		w.Write([]byte(`{"id":"msg","content":[{"type":"text","text":"Hello from Claude!"}],"stop_reason":"end_turn","usage":{"input_tokens":10,"output_tokens":5}}`))
	}))
	defer server.Close()

	p := NewClaudeProvider(ClaudeConfig{APIKey: "test-key", BaseURL: server.URL})
	got, err := p.Generate(context.Background(), &Request{
		System:   "sys",
		Messages: []Message{{Role: RoleUser, Content: "Hello"}},
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got.Content != "Hello from Claude!" {
		t.Errorf("Content = %v, want Hello from Claude!", got.Content)
	}
	if got.Usage.OutputTokens != 5 {
		t.Errorf("OutputTokens = %d, want 5", got.Usage.OutputTokens)
	}
}

func TestOpenAIProvider_Generate_HTTPSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("Path = %v, want /v1/chat/completions", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Authorization = %v", r.Header.Get("Authorization"))
		}

		var req openaiRequest
		json.NewDecoder(r.Body).Decode(&req)
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("Messages = %+v, want system first", req.Messages)
		}

		w.Write([]byte(`{"id":"c","choices":[{"message":{"role":"assistant","content":"Hello from GPT!"},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":4}}`))
	}))
	defer server.Close()

	p := NewOpenAIProvider(OpenAIConfig{APIKey: "test-key", BaseURL: server.URL})
	got, err := p.Generate(context.Background(), &Request{
		System:   "sys",
		Messages: []Message{{Role: RoleUser, Content: "Hello"}},
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got.Content != "Hello from GPT!" || got.FinishReason != "stop" {
		t.Errorf("Response = %+v", got)
	}
}

func TestOpenAIProvider_ParseResponse_EmptyChoices(t *testing.T) {
	p := NewOpenAIProvider(OpenAIConfig{})
	if got := p.parseResponse(&openaiResponse{}); got.Content != "" {
		t.Errorf("Content = %q, want empty", got.Content)
	}
}

func TestOllamaProvider_Generate_HTTPSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("Path = %v, want /api/chat", r.URL.Path)
		}

		var req ollamaRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Stream {
			t.Error("Stream should be false")
		}
		if req.Options == nil || req.Options.NumPredict != 50 {
			t.Errorf("Options = %+v, want num_predict 50", req.Options)
		}

		w.Write([]byte(`{"model":"llama3.2","message":{"role":"assistant","content":"Hello from Ollama!"},"done":true,"done_reason":"stop","eval_count":7,"prompt_eval_count":2}`))
	}))
	defer server.Close()

	p := NewOllamaProvider(OllamaConfig{BaseURL: server.URL})
	got, err := p.Generate(context.Background(), &Request{
		MaxTokens: 50,
		Messages:  []Message{{Role: RoleUser, Content: "Hello"}},
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got.Content != "Hello from Ollama!" || got.Usage.OutputTokens != 7 {
		t.Errorf("Response = %+v", got)
	}
}
