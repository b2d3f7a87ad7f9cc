package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

var _ Tool = new(webhookTool)

// webhookTool POSTs args.body as JSON to args.url and decodes the JSON reply.
type webhookTool struct {
	client *http.Client
}

func NewWebhookTool(client *http.Client) *webhookTool {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &webhookTool{client: client}
}

func (w *webhookTool) Call(ctx context.Context, args map[string]any) (map[string]any, error) {
	url, ok := args["url"].(string)
	if !ok || len(url) == 0 {
		return nil, fmt.Errorf("url can not be empty")
	}
	body := args["body"]
	if body == nil {
		body = map[string]any{}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if headers, ok := args["headers"].(map[string]any); ok {
		for k, v := range headers {
			if s, ok := v.(string); ok {
				req.Header.Set(k, s)
			}
		}
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webhook %s: %w", url, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("webhook %s returned status %d", url, resp.StatusCode)
	}
	output := map[string]any{"status": resp.StatusCode}
	if len(bytes.TrimSpace(raw)) == 0 {
		return output, nil
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("webhook %s returned invalid json: %w", url, err)
	}
	if m, ok := decoded.(map[string]any); ok {
		for k, v := range m {
			output[k] = v
		}
		return output, nil
	}
	output["result"] = decoded
	return output, nil
}
