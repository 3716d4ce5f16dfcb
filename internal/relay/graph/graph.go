// Package graph implements a Relay that submits raw MIME messages through
// the Microsoft Graph sendMail API.
package graph

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// GraphRelayConfig holds the configuration for creating a GraphRelay.
type GraphRelayConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	// Sender is the mailbox the message is sent from. Graph only sends as
	// a mailbox the application has access to, whatever the From header says.
	Sender string
}

// GraphRelay sends messages as base64 MIME to the sendMail endpoint of the
// configured mailbox.
// @MX:ANCHOR: [AUTO] External system integration point for Microsoft Graph API
// @MX:REASON: All forwarded and error messages flow through this relay when Graph is configured
type GraphRelay struct {
	sendURL    string
	httpClient *http.Client
	tokens     *tokenSource
}

// New creates a new GraphRelay with the given configuration.
func New(cfg GraphRelayConfig) *GraphRelay {
	tokenURL := fmt.Sprintf(
		"https://login.microsoftonline.com/%s/oauth2/v2.0/token",
		url.PathEscape(cfg.TenantID),
	)
	sendURL := fmt.Sprintf(
		"https://graph.microsoft.com/v1.0/users/%s/sendMail",
		url.PathEscape(cfg.Sender),
	)
	return newWithOverrides(cfg, sendURL, tokenURL, &http.Client{Timeout: 30 * time.Second})
}

// newWithOverrides creates a GraphRelay with custom URLs and HTTP client,
// used for testing.
func newWithOverrides(cfg GraphRelayConfig, sendURL, tokenURL string, client *http.Client) *GraphRelay {
	return &GraphRelay{
		sendURL:    sendURL,
		httpClient: client,
		tokens:     newTokenSource(tokenURL, cfg.ClientID, cfg.ClientSecret, client),
	}
}

// SendRaw submits raw through Graph. Recipients are taken from the MIME
// headers by Graph itself, so from and to are only logged. A 401 response
// triggers one token refresh and a single resend; every other failure is
// returned as is. Graph does not return a message ID for sendMail.
func (g *GraphRelay) SendRaw(ctx context.Context, from, to string, raw []byte) (string, error) {
	encoded := []byte(base64.StdEncoding.EncodeToString(raw))

	err := g.post(ctx, encoded, false)
	if apiErr, ok := err.(*apiError); ok && apiErr.statusCode == http.StatusUnauthorized {
		slog.Info("refreshing Graph API token after 401")
		err = g.post(ctx, encoded, true)
	}
	if err != nil {
		return "", err
	}

	slog.Debug("Graph API accepted message", "from", from, "to", to)
	return "", nil
}

// Name returns the relay name.
func (g *GraphRelay) Name() string {
	return "msgraph"
}

func (g *GraphRelay) post(ctx context.Context, encoded []byte, refresh bool) error {
	var (
		token string
		err   error
	)
	if refresh {
		token, err = g.tokens.Invalidate(ctx)
	} else {
		token, err = g.tokens.Token(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to get access token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.sendURL, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("Graph API request failed: %w", err)
	}
	defer resp.Body.Close()

	// HTTP 202 Accepted is success for sendMail
	if resp.StatusCode == http.StatusAccepted || resp.StatusCode == http.StatusOK {
		return nil
	}

	body, _ := io.ReadAll(resp.Body)

	var errResp errorResponse
	if jsonErr := json.Unmarshal(body, &errResp); jsonErr == nil && errResp.Error.Message != "" {
		return &apiError{statusCode: resp.StatusCode, code: errResp.Error.Code, message: errResp.Error.Message}
	}
	return &apiError{statusCode: resp.StatusCode, message: string(body)}
}

// errorResponse is the error body returned by the Graph API.
type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// apiError is a non-success response from the sendMail endpoint.
type apiError struct {
	statusCode int
	code       string
	message    string
}

func (e *apiError) Error() string {
	if e.code != "" {
		return fmt.Sprintf("Graph API error (HTTP %d, %s): %s", e.statusCode, e.code, e.message)
	}
	return fmt.Sprintf("Graph API error (HTTP %d): %s", e.statusCode, e.message)
}
