package gemini

import (
	"context"
	"fmt"

	"fortuna/internal/reading"

	"google.golang.org/genai"
)

// Client wraps the Gemini API for fortune generation: staging photo files
// via the Files API and one blocking GenerateContent call per reading.
type Client struct {
	client *genai.Client
	model  string
}

// NewClient creates a Gemini client. The API key is required.
func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{
		client: client,
		model:  model,
	}, nil
}

// RegisterFile uploads a staged local file to the Gemini Files API and
// returns its remote handle and URI.
func (c *Client) RegisterFile(ctx context.Context, localPath, mimeType string) (reading.AssetPart, error) {
	file, err := c.client.Files.UploadFromPath(ctx, localPath, &genai.UploadFileConfig{
		MIMEType: mimeType,
	})
	if err != nil {
		return reading.AssetPart{}, fmt.Errorf("Gemini file upload failed: %w", err)
	}

	return reading.AssetPart{
		Name:     file.Name,
		URI:      file.URI,
		MIMEType: mimeType,
	}, nil
}

// Generate invokes the model once with the photo parts first and the prompt
// text last, and returns the unstructured result text. No retries and no
// streaming; failures propagate to the caller.
func (c *Client) Generate(ctx context.Context, parts []reading.AssetPart, prompt string) (string, error) {
	genParts := make([]*genai.Part, 0, len(parts)+1)
	for _, part := range parts {
		genParts = append(genParts, genai.NewPartFromURI(part.URI, part.MIMEType))
	}
	genParts = append(genParts, genai.NewPartFromText(prompt))

	contents := []*genai.Content{
		genai.NewContentFromParts(genParts, genai.RoleUser),
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("Gemini generation failed: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("Gemini returned an empty response")
	}

	return text, nil
}

// ReleaseFile deletes a file previously uploaded to the Files API
func (c *Client) ReleaseFile(ctx context.Context, name string) error {
	if _, err := c.client.Files.Delete(ctx, name, nil); err != nil {
		return fmt.Errorf("Gemini file delete failed: %w", err)
	}
	return nil
}

// Model returns the configured model identifier
func (c *Client) Model() string {
	return c.model
}
