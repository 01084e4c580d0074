package providers

import (
	"bytes"
	"context"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAITranscriber sends voice notes to the audio transcription endpoint.
type OpenAITranscriber struct {
	client openai.Client
	model  string
}

func NewOpenAITranscriber(apiKey, baseURL, model string) *OpenAITranscriber {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = "whisper-1"
	}
	return &OpenAITranscriber{client: openai.NewClient(opts...), model: model}
}

func (t *OpenAITranscriber) Transcribe(ctx context.Context, data []byte, mimeType string) (string, error) {
	resp, err := t.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(data), "voice"+audioExtension(mimeType), mimeType),
		Model: openai.AudioModel(t.model),
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// WhatsApp voice notes are ogg/opus; the endpoint picks the decoder from the
// file name.
func audioExtension(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
	switch mimeType {
	case "audio/ogg", "audio/opus":
		return ".ogg"
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/mp4", "audio/m4a", "audio/x-m4a", "audio/aac":
		return ".m4a"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	case "audio/webm":
		return ".webm"
	default:
		return ".ogg"
	}
}
