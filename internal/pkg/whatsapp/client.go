// Package whatsapp sends replies through the WhatsApp Business Graph API.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"site-research-be/internal/pkg/logger"
)

const DefaultBaseURL = "https://graph.facebook.com"

type Config struct {
	BaseURL       string
	APIVersion    string
	PhoneNumberID string
	AccessToken   string
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     logger.ILogger
}

func NewClient(cfg Config, log logger.ILogger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "v17.0"
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     log,
	}
}

// Enabled reports whether credentials are configured.
func (c *Client) Enabled() bool {
	return c.cfg.PhoneNumberID != "" && c.cfg.AccessToken != ""
}

func (c *Client) messagesURL() string {
	return fmt.Sprintf("%s/%s/%s/messages", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.APIVersion, c.cfg.PhoneNumberID)
}

// SendText delivers a plain text message to a WhatsApp id.
func (c *Client) SendText(ctx context.Context, to, text string) error {
	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                to,
		"type":              "text",
		"text":              map[string]string{"body": text},
	}
	if err := c.post(ctx, payload); err != nil {
		return fmt.Errorf("whatsapp send to %s: %w", to, err)
	}
	c.logger.Info("WhatsApp", "Message sent", map[string]interface{}{"to": to})
	return nil
}

// MarkAsRead acknowledges an inbound message so the sender sees read receipts.
func (c *Client) MarkAsRead(ctx context.Context, messageID string) error {
	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"status":            "read",
		"message_id":        messageID,
	}
	if err := c.post(ctx, payload); err != nil {
		return fmt.Errorf("whatsapp mark read %s: %w", messageID, err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.messagesURL(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Error("WhatsApp", "Graph API rejected request", map[string]interface{}{
			"status": resp.StatusCode,
			"body":   string(msg),
		})
		return fmt.Errorf("graph api status %d", resp.StatusCode)
	}
	return nil
}
