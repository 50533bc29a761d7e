package alert

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"saferide-service/internal/config"
)

const telegramAPIBase = "https://api.telegram.org"

// TelegramAlerter posts instant accident alerts to a chat via the Telegram
// bot API. The text message is the alert; the photo preview is best-effort
// and its failure never fails the alert.
type TelegramAlerter struct {
	botToken   string
	chatID     string
	apiBase    string
	httpClient *http.Client
	log        zerolog.Logger
}

func NewTelegramAlerter(cfg config.TelegramConfig, log zerolog.Logger) *TelegramAlerter {
	return &TelegramAlerter{
		botToken:   cfg.BotToken,
		chatID:     cfg.ChatID,
		apiBase:    telegramAPIBase,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log,
	}
}

func (t *TelegramAlerter) SendAccidentAlert(ctx context.Context, filename, artifactURL, action string) error {
	if t.botToken == "" || t.chatID == "" {
		return errors.New("telegram bot token or chat ID not configured")
	}

	text := formatAlertText(filename, artifactURL, action, time.Now())

	if err := t.call(ctx, "sendMessage", url.Values{
		"chat_id":    {t.chatID},
		"text":       {text},
		"parse_mode": {"Markdown"},
	}); err != nil {
		t.log.Error().Err(err).Str("filename", filename).Msg("telegram message failed")
		return err
	}

	if isImageURL(artifactURL) {
		if err := t.call(ctx, "sendPhoto", url.Values{
			"chat_id": {t.chatID},
			"photo":   {artifactURL},
			"caption": {fmt.Sprintf("SafeRide AI: %s", action)},
		}); err != nil {
			t.log.Error().Err(err).Str("url", artifactURL).Msg("telegram photo failed")
		}
	}

	return nil
}

func (t *TelegramAlerter) call(ctx context.Context, method string, params url.Values) error {
	endpoint := fmt.Sprintf("%s/bot%s/%s", t.apiBase, t.botToken, method)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram %s: status %d", method, resp.StatusCode)
	}
	return nil
}

func formatAlertText(filename, artifactURL, action string, now time.Time) string {
	return fmt.Sprintf(
		"🚨 *SafeRide AI Alert* 🚨\n\n"+
			"🖼️ File: %s\n"+
			"🔗 URL: %s\n"+
			"⚡ Action: %s\n"+
			"⏰ Time: %s",
		filename,
		artifactURL,
		action,
		now.Format("2006-01-02 15:04:05"),
	)
}

func isImageURL(artifactURL string) bool {
	lower := strings.ToLower(artifactURL)
	return strings.HasSuffix(lower, ".jpg") ||
		strings.HasSuffix(lower, ".jpeg") ||
		strings.HasSuffix(lower, ".png")
}
