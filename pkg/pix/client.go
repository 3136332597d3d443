// Package pix implements the instant-payment gateway client used for buyer
// charges. The core never constructs gateway requests itself; it only
// interprets the external id and raw status strings this client returns.
package pix

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
	errAPIKeyRequired  = errors.New("pix api key is required")
	errBaseURLRequired = errors.New("pix base url is required")
	errLoggerRequired  = errors.New("pix logger is required")
)

// Client talks to the configured PIX gateway over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	provider   string
	expiresIn  time.Duration
	logger     *logger.Logger
}

// NewClient initializes the PIX wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.PixConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
		provider:   cfg.Provider,
		expiresIn:  cfg.ExpiresIn,
		logger:     logg,
	}

	logg.Info(ctx, "pix client initialized")
	return c, nil
}

// Provider returns the configured gateway provider name.
func (c *Client) Provider() string {
	return c.provider
}

// Charge is the gateway's view of a payment request.
type Charge struct {
	ExternalID string `json:"id"`
	Status     string `json:"status"`
	QRCode     string `json:"qr_code"`
	CopyPaste  string `json:"copy_paste"`
}

type createChargeRequest struct {
	AmountCents int               `json:"amount_cents"`
	Description string            `json:"description"`
	ExpiresIn   int               `json:"expires_in_seconds,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// CreateCharge opens a new PIX charge for the given amount.
func (c *Client) CreateCharge(ctx context.Context, amountCents int, description string, metadata map[string]string) (*Charge, error) {
	if amountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "charge amount must be positive")
	}
	body := createChargeRequest{
		AmountCents: amountCents,
		Description: description,
		Metadata:    metadata,
	}
	if c.expiresIn > 0 {
		body.ExpiresIn = int(c.expiresIn.Seconds())
	}

	var charge Charge
	if err := c.do(ctx, http.MethodPost, "/v1/charges", body, &charge); err != nil {
		return nil, err
	}
	if charge.ExternalID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "gateway returned charge without id")
	}
	return &charge, nil
}

// GetChargeStatus polls the raw provider status for an existing charge.
func (c *Client) GetChargeStatus(ctx context.Context, externalID string) (string, error) {
	if strings.TrimSpace(externalID) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "external charge id is required")
	}
	var charge Charge
	if err := c.do(ctx, http.MethodGet, "/v1/charges/"+externalID, nil, &charge); err != nil {
		return "", err
	}
	return charge.Status, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, dest any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding gateway request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building gateway request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "pix gateway unreachable")
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return pkgerrors.New(pkgerrors.CodeNotFound, "charge not found at gateway")
	}
	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("pix gateway returned %d", resp.StatusCode)).
			WithDetails(map[string]any{"body": string(raw)})
	}

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decoding gateway response")
	}
	return nil
}
