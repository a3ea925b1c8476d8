package config

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"

	"google.golang.org/genai"
)

var (
	genaiClient   *genai.Client
	genaiClientMu sync.Mutex
)

// GeminiModel is the text model used for daily summary synthesis.
// Env: GEMINI_MODEL (default "gemini-2.0-flash")
func GeminiModel() string {
	return envOrDefault("GEMINI_MODEL", "gemini-2.0-flash")
}

// GetGenAI returns a lazily initialized Gemini client. Unlike the database
// connectors this does not retry forever: a missing key is a configuration
// gap, and the summary generator has a deterministic fallback anyway.
func GetGenAI(ctx context.Context) (*genai.Client, error) {
	genaiClientMu.Lock()
	defer genaiClientMu.Unlock()
	if genaiClient != nil {
		return genaiClient, nil
	}

	apiKey := strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY not set")
	}

	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, err
	}
	genaiClient = c
	return genaiClient, nil
}
