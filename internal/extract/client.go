// Package extract turns free-form report text into raw metric key/value pairs,
// either through the remote extraction service or a local line parser.
package extract

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Extractor returns raw, unnormalized metric pairs found in text.
type Extractor interface {
	Extract(ctx context.Context, text string) (map[string]string, error)
}

type extractRequest struct {
	Text string `json:"text"`
}

type extractResponse struct {
	Metrics map[string]interface{} `json:"metrics"`
	Error   string                 `json:"error,omitempty"`
}

// Client calls the OCR/extraction service.
type Client struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{httpClient: client, logger: logger}
}

func (c *Client) Extract(ctx context.Context, text string) (map[string]string, error) {
	var response extractResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(extractRequest{Text: text}).
		SetResult(&response).
		SetError(&response).
		Post("/extract")
	if err != nil {
		c.logger.Error("extraction service call failed", zap.Error(err))
		return nil, fmt.Errorf("call extraction service: %w", err)
	}
	if resp.IsError() {
		c.logger.Error("extraction service returned error",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("error", response.Error),
		)
		return nil, fmt.Errorf("extraction service: status %d: %s", resp.StatusCode(), response.Error)
	}

	out := Stringify(response.Metrics)
	c.logger.Debug("extraction complete", zap.Int("metrics", len(out)))
	return out, nil
}

// Stringify renders decoded JSON metric values as raw strings for the
// normalizer. Null values are dropped.
func Stringify(values map[string]interface{}) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		switch val := v.(type) {
		case string:
			out[k] = val
		case float64:
			out[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case nil:
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	return out
}

// LineParser reads "key: value" (or "key = value") lines without any network call.
type LineParser struct{}

func (LineParser) Extract(_ context.Context, text string) (map[string]string, error) {
	return ParseLines(text), nil
}

// ParseLines splits text into key/value pairs. Lines without a separator are
// skipped; a repeated key keeps its first value.
func ParseLines(text string) map[string]string {
	out := map[string]string{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		idx := strings.IndexAny(line, ":=\t")
		if idx <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])
		if key == "" || value == "" {
			continue
		}
		if _, dup := out[key]; !dup {
			out[key] = value
		}
	}
	return out
}

// Fallback tries primary and falls back to the local parser when it fails.
type Fallback struct {
	Primary Extractor
	Logger  *zap.Logger
}

func (f Fallback) Extract(ctx context.Context, text string) (map[string]string, error) {
	if f.Primary != nil {
		metrics, err := f.Primary.Extract(ctx, text)
		if err == nil {
			return metrics, nil
		}
		f.Logger.Warn("extraction service unavailable, parsing text locally", zap.Error(err))
	}
	return ParseLines(text), nil
}
