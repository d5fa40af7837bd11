// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// CloudClient posts wav segments to an OpenAI-style transcription endpoint.
// Any transport error or non-2xx status is a soft failure; a 2xx with an
// empty text field is a successfully transcribed silent segment.
type CloudClient struct {
	URL    string
	APIKey string
	Model  string

	client *http.Client
}

// NewCloudClient builds a client with the split 10 s connect / 60 s read
// budget the pipeline schedules around.
func NewCloudClient(url, apiKey, model string) *CloudClient {
	return &CloudClient{
		URL:    url,
		APIKey: apiKey,
		Model:  model,
		client: &http.Client{
			Timeout: 70 * time.Second,
			Transport: &http.Transport{
				DialContext:           (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 60 * time.Second,
			},
		},
	}
}

// Transcribe uploads the wav and returns the raw transcript text.
func (c *CloudClient) Transcribe(ctx context.Context, wavPath string) (string, error) {
	f, err := os.Open(wavPath) // #nosec G304 -- task-id derived temp path
	if err != nil {
		return "", fmt.Errorf("transcribe: open segment: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(wavPath))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("transcribe: read segment: %w", err)
	}
	_ = mw.WriteField("model", c.Model)
	_ = mw.WriteField("language", "zh")
	_ = mw.WriteField("response_format", "json")
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcribe: cloud request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain a little for the log without trusting the body size.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("transcribe: cloud status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("transcribe: decode response: %w", err)
	}
	return parsed.Text, nil
}
