package user

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// MailingList registers new accounts with an external mailing list provider.
type MailingList interface {
	Register(ctx context.Context, username, email, name string) error
	Remove(ctx context.Context, email string) error
}

// NopMailingList is used when no mailing list endpoint is configured.
type NopMailingList struct{}

func (NopMailingList) Register(context.Context, string, string, string) error { return nil }
func (NopMailingList) Remove(context.Context, string) error                   { return nil }

// httpMailingList posts subscription changes to a webhook-style endpoint.
type httpMailingList struct {
	endpoint string
	client   *http.Client
}

// NewHTTPMailingList creates a MailingList backed by an HTTP endpoint.
func NewHTTPMailingList(endpoint string) MailingList {
	return &httpMailingList{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (m *httpMailingList) Register(ctx context.Context, username, email, name string) error {
	return m.post(ctx, map[string]string{
		"action":   "subscribe",
		"username": username,
		"email":    email,
		"name":     name,
	})
}

func (m *httpMailingList) Remove(ctx context.Context, email string) error {
	return m.post(ctx, map[string]string{
		"action": "unsubscribe",
		"email":  email,
	})
}

func (m *httpMailingList) post(ctx context.Context, payload map[string]string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("mailing list endpoint returned %d", resp.StatusCode)
	}
	return nil
}
