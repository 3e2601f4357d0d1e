package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/tradepoll/delivery-service/internal/domain"
)

// TelegramSender dispatches through the Telegram Bot HTTP API.
// The base URL is injected from config so tests can point to a local mock.
type TelegramSender struct {
	baseURL     string // e.g. https://api.telegram.org
	botToken    string
	groupChatID int64
	httpClient  *http.Client
}

func NewTelegramSender(baseURL, botToken string, groupChatID int64, timeout time.Duration) *TelegramSender {
	return &TelegramSender{
		baseURL:     baseURL,
		botToken:    botToken,
		groupChatID: groupChatID,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// apiResponse maps the envelope every Bot API method returns.
type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// inlineKeyboard mirrors the Bot API reply_markup structure. Buttons either
// trigger a callback (voting) or open a URL (the upload link).
type inlineKeyboard struct {
	InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
}

type inlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data,omitempty"`
	URL          string `json:"url,omitempty"`
}

// AnnouncePoll posts the poll question to the group chat with one callback
// button per option (callback data "vote|<pollID>|<optionID>").
func (s *TelegramSender) AnnouncePoll(ctx context.Context, poll *domain.Poll) error {
	kb := inlineKeyboard{}
	for _, opt := range poll.Options {
		kb.InlineKeyboard = append(kb.InlineKeyboard, []inlineButton{{
			Text:         opt.Text,
			CallbackData: fmt.Sprintf("vote|%d|%d", poll.ID, opt.ID),
		}})
	}

	payload := map[string]any{
		"chat_id":      s.groupChatID,
		"text":         poll.Question,
		"reply_markup": kb,
	}
	return s.postJSON(ctx, "sendMessage", payload)
}

// SendPhoto delivers the artifact to the recipient's private chat. Local
// files are uploaded as multipart; anything else is passed through as a URL
// for Telegram to fetch. The action URL, when present, becomes an inline
// URL button under the photo.
func (s *TelegramSender) SendPhoto(ctx context.Context, recipientID int64, payloadRef, caption string, actionURL *string) error {
	var markup *inlineKeyboard
	if actionURL != nil {
		markup = &inlineKeyboard{
			InlineKeyboard: [][]inlineButton{{{Text: "Upload my execution", URL: *actionURL}}},
		}
	}

	if _, err := os.Stat(payloadRef); err == nil {
		return s.sendPhotoFile(ctx, recipientID, payloadRef, caption, markup)
	}
	return s.sendPhotoURL(ctx, recipientID, payloadRef, caption, markup)
}

func (s *TelegramSender) sendPhotoURL(ctx context.Context, recipientID int64, photoURL, caption string, markup *inlineKeyboard) error {
	form := url.Values{}
	form.Set("chat_id", strconv.FormatInt(recipientID, 10))
	form.Set("photo", photoURL)
	form.Set("caption", caption)
	if markup != nil {
		raw, err := json.Marshal(markup)
		if err != nil {
			return fmt.Errorf("marshal reply markup: %w", err)
		}
		form.Set("reply_markup", string(raw))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.methodURL("sendPhoto"), bytes.NewBufferString(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return s.do(req)
}

func (s *TelegramSender) sendPhotoFile(ctx context.Context, recipientID int64, path, caption string, markup *inlineKeyboard) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open photo: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	_ = w.WriteField("chat_id", strconv.FormatInt(recipientID, 10))
	_ = w.WriteField("caption", caption)
	if markup != nil {
		raw, err := json.Marshal(markup)
		if err != nil {
			return fmt.Errorf("marshal reply markup: %w", err)
		}
		_ = w.WriteField("reply_markup", string(raw))
	}
	part, err := w.CreateFormFile("photo", filepath.Base(path))
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("copy photo: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.methodURL("sendPhoto"), &body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	return s.do(req)
}

func (s *TelegramSender) postJSON(ctx context.Context, method string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.methodURL(method), bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return s.do(req)
}

func (s *TelegramSender) do(req *http.Request) error {
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	var api apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&api); err != nil {
		return fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if !api.OK {
		// Includes the recipient-blocked-the-bot case (403). The drainer
		// logs and drops; there is no retry path.
		return fmt.Errorf("bot api error (status %d): %s", resp.StatusCode, api.Description)
	}
	return nil
}

func (s *TelegramSender) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", s.baseURL, s.botToken, method)
}

// compile-time check that TelegramSender implements Sender
var _ Sender = (*TelegramSender)(nil)
