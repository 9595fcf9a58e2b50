package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxHTTPResponseBytes caps tool output so a huge page cannot blow up the
// agent's context.
const maxHTTPResponseBytes = 64 * 1024

var httpToolClient = &http.Client{Timeout: 25 * time.Second}

// NewHTTPRequestTool creates the http_request tool
func NewHTTPRequestTool() *Tool {
	return &Tool{
		Name:        "http_request",
		Description: "Make an HTTP request to a URL and return the response body. Use for fetching public web pages or calling JSON APIs.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"url": map[string]any{
					"type":        "string",
					"description": "The URL to request (http or https)",
				},
				"method": map[string]any{
					"type":        "string",
					"description": "HTTP method: GET or POST. Defaults to GET.",
					"enum":        []string{"GET", "POST"},
				},
				"body": map[string]any{
					"type":        "string",
					"description": "Request body for POST requests",
				},
				"content_type": map[string]any{
					"type":        "string",
					"description": "Content-Type header for POST requests. Defaults to application/json.",
				},
			},
			"required": []string{"url"},
		},
		Execute:  executeHTTPRequest,
		Category: "network",
	}
}

func executeHTTPRequest(ctx context.Context, args map[string]any) (string, error) {
	url, ok := args["url"].(string)
	if !ok || url == "" {
		return "", fmt.Errorf("url parameter is required")
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return "", fmt.Errorf("url must start with http:// or https://")
	}

	method := "GET"
	if m, ok := args["method"].(string); ok && m != "" {
		method = strings.ToUpper(m)
	}
	if method != "GET" && method != "POST" {
		return "", fmt.Errorf("unsupported method %q", method)
	}

	var bodyReader io.Reader
	if body, ok := args["body"].(string); ok && body != "" && method == "POST" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	if method == "POST" {
		contentType := "application/json"
		if ct, ok := args["content_type"].(string); ok && ct != "" {
			contentType = ct
		}
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := httpToolClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxHTTPResponseBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	return fmt.Sprintf("Status: %d\n\n%s", resp.StatusCode, string(data)), nil
}
