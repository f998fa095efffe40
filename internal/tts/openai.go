package tts

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dooshek/readaloud/internal/apperr"
	"github.com/dooshek/readaloud/internal/logger"
	"github.com/dooshek/readaloud/internal/types"
	"github.com/dooshek/readaloud/internal/voices"
	"github.com/sashabaranov/go-openai"
)

// OpenAI speech speed range
const (
	openAIMinSpeed     = 0.25
	openAIMaxSpeed     = 4.0
	openAIDefaultSpeed = 1.0
)

var openAIVoices = []string{"alloy", "ash", "coral", "echo", "fable", "nova", "onyx", "sage", "shimmer"}

type speechClient interface {
	CreateSpeech(ctx context.Context, request openai.CreateSpeechRequest) (openai.RawResponse, error)
}

// OpenAIBackend streams PCM from the speech endpoint into the audio player
type OpenAIBackend struct {
	client  speechClient
	model   string
	volume  int
	newSink sinkFactory
	playerSlot
}

func NewOpenAIBackend(apiKey string, cfg types.TTSOpenAIConfig, volume int) *OpenAIBackend {
	return &OpenAIBackend{
		client:  openai.NewClient(apiKey),
		model:   cfg.Model,
		volume:  volume,
		newSink: newAudioPlayer,
	}
}

func (p *OpenAIBackend) Name() string { return "openai" }

func (p *OpenAIBackend) Synthesize(ctx context.Context, u Utterance) error {
	voice := u.Voice
	if voice == "" {
		voice = string(openai.VoiceNova)
	}
	speed := u.Rate
	if speed == 0 {
		speed = openAIDefaultSpeed
	}

	logger.Debugf("openai: speech for %d chars with voice %s", len(u.Text), voice)

	response, err := p.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(p.model),
		Input:          u.Text,
		Voice:          openai.SpeechVoice(voice),
		Speed:          speed,
		ResponseFormat: openai.SpeechResponseFormatPcm,
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("openai speech: %w: %v", apperr.ErrBackendFailure, err)
	}
	defer response.Close()

	sink, err := p.newSink(openAIFormat, p.volume)
	if err != nil {
		return fmt.Errorf("openai: %w: %v", apperr.ErrBackendFailure, err)
	}
	defer sink.Close()
	if err := p.attach(sink); err != nil {
		logger.Warnf("openai: could not start suspended: %v", err)
	}
	defer p.detach(sink)

	if err := copyPCM(ctx, sink, response); err != nil {
		return err
	}
	sink.CloseInput()
	return sink.Wait(ctx)
}

// copyPCM moves the response body to sink, keeping whole samples together
func copyPCM(ctx context.Context, sink pcmSink, body io.Reader) error {
	buf := make([]byte, 4800)
	var carry []byte
	for {
		n, err := body.Read(buf)
		if n > 0 {
			data := append(carry, buf[:n]...)
			whole := len(data) &^ 1
			sink.Write(append([]byte(nil), data[:whole]...))
			carry = append(carry[:0], data[whole:]...)
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("openai: read audio: %w: %v", apperr.ErrBackendFailure, err)
		}
	}
}

func (p *OpenAIBackend) Voices(context.Context) ([]voices.Descriptor, error) {
	list := make([]voices.Descriptor, 0, len(openAIVoices))
	for _, v := range openAIVoices {
		list = append(list, voices.Descriptor{
			ID:          v,
			Name:        v,
			MinRate:     openAIMinSpeed,
			MaxRate:     openAIMaxSpeed,
			DefaultRate: openAIDefaultSpeed,
			Default:     v == string(openai.VoiceNova),
		})
	}
	return list, nil
}
