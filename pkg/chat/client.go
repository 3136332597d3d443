// Package chat implements the guild chat platform notifier. Sends are
// best-effort sinks: a failure means "notification not confirmed", never a
// reason to undo a delivery.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/keydeck/keydeck-backend/pkg/config"
	pkgerrors "github.com/keydeck/keydeck-backend/pkg/errors"
	"github.com/keydeck/keydeck-backend/pkg/logger"
)

var (
	errBotTokenRequired = errors.New("chat bot token is required")
	errBaseURLRequired  = errors.New("chat base url is required")
)

// Client posts messages through the chat platform's REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	botToken   string
	logger     *logger.Logger
}

// NewClient initializes the chat wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.ChatConfig, logg *logger.Logger) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	botToken := strings.TrimSpace(cfg.BotToken)
	if botToken == "" {
		return nil, errBotTokenRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		botToken:   botToken,
		logger:     logg,
	}
	if logg != nil {
		logg.Info(ctx, "chat client initialized")
	}
	return c, nil
}

type messagePayload struct {
	Content string `json:"content"`
}

// SendToUser opens a DM with the user and posts the content.
func (c *Client) SendToUser(ctx context.Context, userID, content string) error {
	if userID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	return c.post(ctx, fmt.Sprintf("/v1/users/%s/messages", userID), messagePayload{Content: content})
}

// SendToChannel posts the content into a guild channel.
func (c *Client) SendToChannel(ctx context.Context, channelID, content string) error {
	if channelID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "channel id is required")
	}
	return c.post(ctx, fmt.Sprintf("/v1/channels/%s/messages", channelID), messagePayload{Content: content})
}

func (c *Client) post(ctx context.Context, path string, payload messagePayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding chat message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building chat request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+c.botToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "chat platform unreachable")
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode >= 400 {
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("chat platform returned %d", resp.StatusCode))
	}
	return nil
}
