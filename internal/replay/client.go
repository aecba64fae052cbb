// Package replay re-runs aggregation for a range of days against a running service.
package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Client posts target dates to an aggregate endpoint
type Client struct {
	httpClient *resty.Client
	endpoint   string
	logger     *zap.Logger
}

// NewClient creates a new replay client. Requests are never retried.
func NewClient(endpoint string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{httpClient: client, endpoint: endpoint, logger: logger}
}

// Response is the service's answer for one date
type Response struct {
	TargetDate string
	StatusCode int
	Body       json.RawMessage
}

// Post asks the service to aggregate date
func (c *Client) Post(ctx context.Context, date string) (Response, error) {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(map[string]string{"target_date": date}).
		Post(c.endpoint)
	if err != nil {
		return Response{TargetDate: date}, fmt.Errorf("replay: failed to post %s: %w", date, err)
	}

	out := Response{
		TargetDate: date,
		StatusCode: resp.StatusCode(),
		Body:       json.RawMessage(resp.Body()),
	}
	if resp.IsError() {
		return out, fmt.Errorf("replay: %s returned status %d", date, resp.StatusCode())
	}
	return out, nil
}
