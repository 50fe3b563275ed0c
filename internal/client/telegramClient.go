package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"library-service/internal/config"
)

// Notifier delivers a fully formed text message to a recipient.
type Notifier interface {
	Send(ctx context.Context, recipient, text string) error
}

type telegramClientImpl struct {
	httpClient *http.Client
	baseURL    string
	botToken   string
}

func NewTelegramClient(cfg *config.Telegram) Notifier {
	return &telegramClientImpl{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL:  cfg.BaseURL,
		botToken: cfg.BotToken,
	}
}

func (c *telegramClientImpl) Send(ctx context.Context, chatID, text string) error {
	body, err := json.Marshal(map[string]string{
		"chat_id": chatID,
		"text":    text,
	})
	if err != nil {
		return fmt.Errorf("marshal telegram message: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram send message: %w", err)
	}
	defer resp.Body.Close()

	var res struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	b, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(b, &res); err != nil || resp.StatusCode != http.StatusOK || !res.OK {
		return fmt.Errorf("telegram error %d: %s", resp.StatusCode, string(b))
	}

	return nil
}

type logNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier writes notifications to the log. Used when no bot token is configured.
func NewLogNotifier(logger *slog.Logger) Notifier {
	return &logNotifier{logger: logger}
}

func (n *logNotifier) Send(ctx context.Context, recipient, text string) error {
	n.logger.InfoContext(ctx, "notification", "recipient", recipient, "text", text)
	return nil
}
