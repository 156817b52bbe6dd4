package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// InferenceClient is a thin pass-through to the locally hosted model daemon.
// No inference logic lives here — just the HTTP contract.
type InferenceClient struct {
	BaseURL string
	Client  *http.Client
}

func NewInferenceClient(baseURL string) *InferenceClient {
	return &InferenceClient{
		BaseURL: baseURL,
		Client: &http.Client{
			Timeout: 120 * time.Second, // local models can be slow on first token
		},
	}
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatResponse struct {
	Model   string      `json:"model"`
	Message ChatMessage `json:"message"`
	Done    bool        `json:"done"`
}

// Chat forwards a non-streaming chat completion to the daemon.
func (c *InferenceClient) Chat(ctx context.Context, model string, messages []ChatMessage) (*ChatResponse, error) {
	url := fmt.Sprintf("%s/api/chat", c.BaseURL)

	reqBody := map[string]interface{}{
		"model":    model,
		"messages": messages,
		"stream":   false,
	}
	jsonData, _ := json.Marshal(reqBody)

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inference daemon unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		log.Printf("Inference daemon /api/chat returned %d: %s", resp.StatusCode, string(body))
		return nil, fmt.Errorf("inference request failed: %d", resp.StatusCode)
	}

	var out ChatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type ServedModel struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	Digest     string    `json:"digest"`
	ModifiedAt time.Time `json:"modified_at"`
}

type listModelsResponse struct {
	Models []ServedModel `json:"models"`
}

// ListModels returns what the daemon currently serves (used by the mirror worker).
func (c *InferenceClient) ListModels(ctx context.Context) ([]ServedModel, error) {
	url := fmt.Sprintf("%s/api/tags", c.BaseURL)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inference daemon unreachable: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model listing failed: %d", resp.StatusCode)
	}

	var out listModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out.Models, nil
}
