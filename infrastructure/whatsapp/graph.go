package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
)

// Credentials identify the tenant's WhatsApp Business number.
type Credentials struct {
	AccessToken   string
	PhoneNumberID string
}

// Media is a downloaded attachment.
type Media struct {
	Data     []byte
	MimeType string
	Filename string
}

func (m Media) Size() int {
	return len(m.Data)
}

type GraphConfig struct {
	BaseURL         string
	Version         string
	Timeout         time.Duration
	MaxDownloadSize int
	// Dial overrides the network dialer, tests use an in-memory listener.
	Dial fasthttp.DialFunc
}

// GraphError is the error object the Graph API returns on 4xx/5xx.
type GraphError struct {
	HTTPStatus int    `json:"-"`
	Message    string `json:"message"`
	Type       string `json:"type"`
	Code       int    `json:"code"`
	TraceID    string `json:"fbtrace_id"`
}

func (e *GraphError) Error() string {
	return fmt.Sprintf("graph api %d: %s (type=%s code=%d)", e.HTTPStatus, e.Message, e.Type, e.Code)
}

// Retryable reports whether the call may succeed when repeated.
func (e *GraphError) Retryable() bool {
	return e.HTTPStatus == fasthttp.StatusTooManyRequests || e.HTTPStatus >= 500
}

var ErrEmptyMessageID = errors.New("graph api accepted the message without returning an id")

// GraphClient talks to the WhatsApp Cloud API: media lookup, media download
// and text sends.
type GraphClient struct {
	http    *fasthttp.Client
	baseURL string
	timeout time.Duration
}

func NewGraphClient(cfg GraphConfig) *GraphClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://graph.facebook.com"
	}
	if cfg.Version == "" {
		cfg.Version = "v19.0"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxDownloadSize <= 0 {
		cfg.MaxDownloadSize = 25 << 20
	}
	return &GraphClient{
		http: &fasthttp.Client{
			Name:                "chatbot-webhook",
			MaxResponseBodySize: cfg.MaxDownloadSize,
			ReadTimeout:         cfg.Timeout,
			WriteTimeout:        cfg.Timeout,
			Dial:                cfg.Dial,
		},
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/") + "/" + strings.Trim(cfg.Version, "/"),
		timeout: cfg.Timeout,
	}
}

func (c *GraphClient) deadline(ctx context.Context) time.Time {
	d := time.Now().Add(c.timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(d) {
		return ctxDeadline
	}
	return d
}

// do executes a request and returns a copy of the body. Non 2xx answers are
// turned into *GraphError.
func (c *GraphClient) do(ctx context.Context, method, url, token string, body []byte) ([]byte, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(method)
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.SetContentType("application/json")
		req.SetBody(body)
	}

	if err := c.http.DoDeadline(req, resp, c.deadline(ctx)); err != nil {
		if errors.Is(err, fasthttp.ErrTimeout) && ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		return nil, "", err
	}

	out := append([]byte(nil), resp.Body()...)
	contentType := string(resp.Header.ContentType())
	if status := resp.StatusCode(); status < 200 || status >= 300 {
		return nil, contentType, parseGraphError(status, out)
	}
	return out, contentType, nil
}

func parseGraphError(status int, body []byte) error {
	var envelope struct {
		Error GraphError `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		envelope.Error.HTTPStatus = status
		return &envelope.Error
	}
	return &GraphError{HTTPStatus: status, Message: strings.TrimSpace(string(body))}
}

// MediaURL resolves a media id to its short lived download URL and mime type.
func (c *GraphClient) MediaURL(ctx context.Context, creds Credentials, mediaID string) (string, string, error) {
	body, _, err := c.do(ctx, fasthttp.MethodGet, c.baseURL+"/"+mediaID, creds.AccessToken, nil)
	if err != nil {
		return "", "", fmt.Errorf("lookup media %s: %w", mediaID, err)
	}
	var obj struct {
		URL      string `json:"url"`
		MimeType string `json:"mime_type"`
	}
	if err := json.Unmarshal(body, &obj); err != nil {
		return "", "", fmt.Errorf("decode media %s: %w", mediaID, err)
	}
	if obj.URL == "" {
		return "", "", fmt.Errorf("media %s has no download url", mediaID)
	}
	return obj.URL, obj.MimeType, nil
}

// Download fetches the bytes of a media id.
func (c *GraphClient) Download(ctx context.Context, creds Credentials, mediaID string) (Media, error) {
	url, mimeType, err := c.MediaURL(ctx, creds, mediaID)
	if err != nil {
		return Media{}, err
	}
	data, contentType, err := c.do(ctx, fasthttp.MethodGet, url, creds.AccessToken, nil)
	if err != nil {
		return Media{}, fmt.Errorf("download media %s: %w", mediaID, err)
	}
	if mimeType == "" {
		mimeType = contentType
	}
	logrus.WithFields(logrus.Fields{
		"media_id": mediaID,
		"mime":     mimeType,
		"size":     humanize.Bytes(uint64(len(data))),
	}).Debug("[GRAPH] media downloaded")
	return Media{Data: data, MimeType: mimeType}, nil
}

type sendTextRequest struct {
	MessagingProduct string   `json:"messaging_product"`
	RecipientType    string   `json:"recipient_type"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             textBody `json:"text"`
}

type textBody struct {
	Body       string `json:"body"`
	PreviewURL bool   `json:"preview_url"`
}

// SendText sends a text message and returns the provider message id.
func (c *GraphClient) SendText(ctx context.Context, creds Credentials, phone, body string) (string, error) {
	payload, err := json.Marshal(sendTextRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               phone,
		Type:             "text",
		Text:             textBody{Body: body, PreviewURL: strings.Contains(body, "http")},
	})
	if err != nil {
		return "", err
	}

	raw, _, err := c.do(ctx, fasthttp.MethodPost, c.baseURL+"/"+creds.PhoneNumberID+"/messages", creds.AccessToken, payload)
	if err != nil {
		return "", err
	}
	var resp struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("decode send response: %w", err)
	}
	if len(resp.Messages) == 0 || resp.Messages[0].ID == "" {
		return "", ErrEmptyMessageID
	}
	return resp.Messages[0].ID, nil
}
