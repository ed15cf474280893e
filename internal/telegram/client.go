package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sdko-org/filebed-relay/internal/retry"
	"github.com/sirupsen/logrus"
)

// Client talks to the Bot API. The bot credential is embedded in the URL
// path per the API's convention, so it never appears in logged URLs: the
// logging transport redacts it.
type Client struct {
	httpClient *http.Client
	apiBase    string
	token      string
	log        *logrus.Entry
}

type loggingTransport struct {
	log   *logrus.Entry
	token string
}

func NewClient(logger *logrus.Logger, apiBase, token string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &loggingTransport{
				log:   logger.WithField("component", "telegram_transport"),
				token: token,
			},
		},
		apiBase: apiBase,
		token:   token,
		log:     logger.WithField("component", "telegram_client"),
	}
}

func (c *Client) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.apiBase, c.token, method)
}

func (c *Client) fileURL(filePath string) string {
	return fmt.Sprintf("%s/file/bot%s/%s", c.apiBase, c.token, filePath)
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
}

func (c *Client) call(ctx context.Context, method string, payload interface{}, result interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	if !apiResp.OK {
		return fmt.Errorf("%s rejected: %s", method, apiResp.Description)
	}
	if result != nil {
		if err := json.Unmarshal(apiResp.Result, result); err != nil {
			return fmt.Errorf("malformed %s result: %w", method, err)
		}
	}
	return nil
}

// GetFile resolves the downloadable reference for a file ID. Transient
// failures and malformed metadata are retried up to 3 times with linearly
// increasing backoff.
func (c *Client) GetFile(ctx context.Context, fileID string) (*File, error) {
	log := c.log.WithField("operation", "get_file")

	var file *File
	err := retry.Do(ctx, 3, retry.Linear(time.Second), func() error {
		var f File
		if err := c.call(ctx, "getFile", map[string]string{"file_id": fileID}, &f); err != nil {
			log.WithError(err).Warn("getFile attempt failed")
			return err
		}
		if f.FilePath == "" {
			log.Warn("getFile result missing file_path")
			return fmt.Errorf("getFile result missing file_path")
		}
		file = &f
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("file metadata lookup failed: %w", err)
	}
	return file, nil
}

// DownloadFile fetches the binary payload fully into memory.
func (c *Client) DownloadFile(ctx context.Context, filePath string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.fileURL(filePath), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("file download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("file download failed with status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// SendMessage sends a chat message and returns its message ID.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) (int64, error) {
	var msg Message
	err := c.call(ctx, "sendMessage", map[string]interface{}{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "HTML",
	}, &msg)
	if err != nil {
		return 0, err
	}
	return msg.MessageID, nil
}

// EditMessageText updates a previously sent message in place. When the edit
// fails it falls back to sending a fresh message so the user still gets the
// result.
func (c *Client) EditMessageText(ctx context.Context, chatID, messageID int64, text string) error {
	err := c.call(ctx, "editMessageText", map[string]interface{}{
		"chat_id":    chatID,
		"message_id": messageID,
		"text":       text,
		"parse_mode": "HTML",
	}, nil)
	if err == nil {
		return nil
	}
	c.log.WithError(err).Warn("Message edit failed, sending new message")
	_, sendErr := c.SendMessage(ctx, chatID, text)
	return sendErr
}

// SetWebhook registers webhookURL for message updates.
func (c *Client) SetWebhook(ctx context.Context, webhookURL string) error {
	return c.call(ctx, "setWebhook", map[string]interface{}{
		"url":             webhookURL,
		"allowed_updates": []string{"message"},
	}, nil)
}

// TempFileURL returns the short-lived direct download URL for a file path.
// Handed to users as a fallback when no sink link could be extracted.
func (c *Client) TempFileURL(filePath string) string {
	return c.fileURL(filePath)
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	log := t.log.WithFields(logrus.Fields{
		"method": req.Method,
		"url":    t.redact(req.URL),
	})

	resp, err := http.DefaultTransport.RoundTrip(req)
	if err != nil {
		log.WithError(err).Error("HTTP request failed")
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"status_code": resp.StatusCode,
		"duration":    time.Since(start),
	}).Debug("HTTP request completed")
	return resp, nil
}

func (t *loggingTransport) redact(u *url.URL) string {
	if t.token == "" {
		return u.String()
	}
	redacted := *u
	redacted.Path = strings.ReplaceAll(redacted.Path, t.token, "<token>")
	return redacted.String()
}
