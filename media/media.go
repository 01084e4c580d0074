package media

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	clientsDomain "github.com/uzzaidev/ChatBot-Oficial-sub002/clients/domain"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/infrastructure/whatsapp"
	pipelineDomain "github.com/uzzaidev/ChatBot-Oficial-sub002/pipeline/domain"
	pkgError "github.com/uzzaidev/ChatBot-Oficial-sub002/pkg/error"
)

type Downloader interface {
	Download(ctx context.Context, creds whatsapp.Credentials, mediaID string) (whatsapp.Media, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, data []byte, mimeType string) (string, error)
}

type Describer interface {
	DescribeImage(ctx context.Context, data []byte, mimeType, caption string) (string, error)
	SummarizeDocument(ctx context.Context, data []byte, mimeType, filename string) (string, error)
}

var ErrEmptyResult = errors.New("provider returned an empty result")

type Config struct {
	MaxImageDimension int
	Timeout           time.Duration
}

// Processor turns audio, image and document messages into the text surrogate
// the rest of the pipeline works with.
type Processor struct {
	downloader  Downloader
	transcriber Transcriber
	describer   Describer
	cfg         Config
}

func NewProcessor(downloader Downloader, transcriber Transcriber, describer Describer, cfg Config) *Processor {
	if cfg.MaxImageDimension <= 0 {
		cfg.MaxImageDimension = 1568
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	return &Processor{downloader: downloader, transcriber: transcriber, describer: describer, cfg: cfg}
}

// Process returns the text content of msg. Text messages pass through. Any
// failure is a *pkgError.MediaProcessingError.
func (p *Processor) Process(ctx context.Context, tenant *clientsDomain.Tenant, msg pipelineDomain.ParsedMessage) (string, error) {
	if !msg.Type.IsMedia() {
		return msg.Text, nil
	}
	fail := func(err error) (string, error) {
		return "", &pkgError.MediaProcessingError{MediaType: string(msg.Type), Err: err}
	}
	if msg.Media == nil {
		return fail(errors.New("message has no media reference"))
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	start := time.Now()
	creds := whatsapp.Credentials{AccessToken: tenant.AccessToken, PhoneNumberID: tenant.PhoneNumberID}
	file, err := p.downloader.Download(ctx, creds, msg.Media.ID)
	if err != nil {
		return fail(err)
	}
	mimeType := firstNonEmpty(msg.Media.MimeType, file.MimeType)

	var content string
	switch msg.Type {
	case pipelineDomain.MessageAudio:
		content, err = p.audio(ctx, file.Data, mimeType)
	case pipelineDomain.MessageImage:
		content, err = p.image(ctx, file.Data, mimeType, msg.Media.Caption)
	case pipelineDomain.MessageDocument:
		content, err = p.document(ctx, file.Data, mimeType, firstNonEmpty(msg.Media.Filename, file.Filename), msg.Media.Caption)
	}
	if err != nil {
		return fail(err)
	}

	logrus.WithFields(logrus.Fields{
		"tenant_id":   tenant.ID,
		"message_id":  msg.ID,
		"type":        msg.Type,
		"mime":        mimeType,
		"size":        humanize.Bytes(uint64(file.Size())),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("[MEDIA] processed")
	return content, nil
}

func (p *Processor) audio(ctx context.Context, data []byte, mimeType string) (string, error) {
	if p.transcriber == nil {
		return "", errors.New("no transcriber configured")
	}
	text, err := p.transcriber.Transcribe(ctx, data, mimeType)
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyResult
	}
	return "[Audio transcription] " + text, nil
}

func (p *Processor) image(ctx context.Context, data []byte, mimeType, caption string) (string, error) {
	if p.describer == nil {
		return "", errors.New("no vision provider configured")
	}
	data, mimeType = Downscale(data, mimeType, p.cfg.MaxImageDimension)
	desc, err := p.describer.DescribeImage(ctx, data, mimeType, caption)
	if err != nil {
		return "", fmt.Errorf("describe image: %w", err)
	}
	desc = strings.TrimSpace(desc)
	if desc == "" {
		return "", ErrEmptyResult
	}
	return withCaption("[Image description] "+desc, caption), nil
}

func (p *Processor) document(ctx context.Context, data []byte, mimeType, filename, caption string) (string, error) {
	if p.describer == nil {
		return "", errors.New("no document provider configured")
	}
	if isHTML(mimeType, filename) {
		text, err := HTMLToText(data)
		if err != nil {
			return "", fmt.Errorf("read html document: %w", err)
		}
		data, mimeType = []byte(text), "text/plain"
	}
	summary, err := p.describer.SummarizeDocument(ctx, data, mimeType, filename)
	if err != nil {
		return "", fmt.Errorf("summarize document: %w", err)
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return "", ErrEmptyResult
	}
	label := "[Document summary]"
	if filename != "" {
		label = "[Document summary: " + filename + "]"
	}
	return withCaption(label+" "+summary, caption), nil
}

func withCaption(content, caption string) string {
	caption = strings.TrimSpace(caption)
	if caption == "" {
		return content
	}
	return content + "\n[Caption] " + caption
}

func isHTML(mimeType, filename string) bool {
	mimeType = strings.ToLower(mimeType)
	name := strings.ToLower(filename)
	return strings.HasPrefix(mimeType, "text/html") || strings.HasSuffix(name, ".html") || strings.HasSuffix(name, ".htm")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
