// Package notifier delivers balance readings and daily usage reports to
// the outside world: WeChat pushes through a Server-chan compatible
// endpoint, and retained MQTT messages for home-automation consumers.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultServerChanURL is the hosted Server-chan push API
const DefaultServerChanURL = "https://sctapi.ftqq.com"

// ServerChan sends markdown push messages keyed by a per-device SendKey
type ServerChan struct {
	client  *http.Client
	baseURL string
}

// NewServerChan creates a push client. An empty baseURL keeps the
// hosted endpoint.
func NewServerChan(baseURL string) *ServerChan {
	if baseURL == "" {
		baseURL = DefaultServerChanURL
	}
	return &ServerChan{
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Send pushes one message. The endpoint reports failures in-band with a
// nonzero code, which is surfaced as an error.
func (n *ServerChan) Send(ctx context.Context, sendKey, title, desp string) error {
	if sendKey == "" {
		return fmt.Errorf("send key is not configured")
	}

	form := url.Values{}
	form.Set("title", title)
	form.Set("desp", desp)

	endpoint := fmt.Sprintf("%s/%s.send", n.baseURL, sendKey)
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending notification: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	if result.Code != 0 {
		return fmt.Errorf("notification rejected: %s", result.Message)
	}

	return nil
}
