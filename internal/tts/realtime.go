package tts

import (
	"context"
	"encoding/base64"
	"fmt"

	openairt "github.com/WqyJh/go-openai-realtime"
	"github.com/dooshek/readaloud/internal/apperr"
	"github.com/dooshek/readaloud/internal/logger"
	"github.com/dooshek/readaloud/internal/types"
	"github.com/dooshek/readaloud/internal/voices"
)

var realtimeVoices = []string{"alloy", "ash", "ballad", "coral", "echo", "sage", "shimmer", "verse"}

// realtimeConn is the part of *openairt.Conn used here
type realtimeConn interface {
	SendMessage(ctx context.Context, msg openairt.ClientEvent) error
	ReadMessage(ctx context.Context) (openairt.ServerEvent, error)
	Close() error
}

// RealtimeBackend reads text through the Realtime API, streaming audio
// deltas to the player as they arrive. The API has no speed control, so
// voices carry no rate range.
type RealtimeBackend struct {
	config  types.TTSRealtimeConfig
	volume  int
	connect func(ctx context.Context) (realtimeConn, error)
	newSink sinkFactory
	playerSlot
}

func NewRealtimeBackend(apiKey string, cfg types.TTSRealtimeConfig, volume int) *RealtimeBackend {
	client := openairt.NewClient(apiKey)
	return &RealtimeBackend{
		config: cfg,
		volume: volume,
		connect: func(ctx context.Context) (realtimeConn, error) {
			return client.Connect(ctx, openairt.WithModel(cfg.Model))
		},
		newSink: newAudioPlayer,
	}
}

func (p *RealtimeBackend) Name() string { return "realtime" }

func (p *RealtimeBackend) Synthesize(ctx context.Context, u Utterance) error {
	voice := u.Voice
	if voice == "" {
		voice = "alloy"
	}

	conn, err := p.connect(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("realtime API connection failed: %w: %v", apperr.ErrBackendFailure, err)
	}
	defer conn.Close()

	if err := p.request(ctx, conn, u.Text, voice); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("realtime: %w: %v", apperr.ErrBackendFailure, err)
	}

	sink, err := p.newSink(openAIFormat, p.volume)
	if err != nil {
		return fmt.Errorf("realtime: %w: %v", apperr.ErrBackendFailure, err)
	}
	defer sink.Close()
	if err := p.attach(sink); err != nil {
		logger.Warnf("realtime: could not start suspended: %v", err)
	}
	defer p.detach(sink)

	if err := p.stream(ctx, conn, sink); err != nil {
		return err
	}
	sink.CloseInput()
	return sink.Wait(ctx)
}

func (p *RealtimeBackend) request(ctx context.Context, conn realtimeConn, text, voice string) error {
	temperature := float32(0.6)

	err := conn.SendMessage(ctx, &openairt.SessionUpdateEvent{
		Session: openairt.ClientSession{
			Modalities:        []openairt.Modality{openairt.ModalityText},
			Temperature:       &temperature,
			Voice:             openairt.Voice(voice),
			OutputAudioFormat: openairt.AudioFormatPcm16,
			Instructions:      p.config.Instructions,
		},
	})
	if err != nil {
		return fmt.Errorf("session update failed: %w", err)
	}

	err = conn.SendMessage(ctx, &openairt.ConversationItemCreateEvent{
		Item: openairt.MessageItem{
			Type: openairt.MessageItemTypeMessage,
			Role: openairt.MessageRoleUser,
			Content: []openairt.MessageContentPart{
				{
					Type: openairt.MessageContentTypeInputText,
					Text: text,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("conversation item creation failed: %w", err)
	}

	// the API requires text alongside audio
	err = conn.SendMessage(ctx, &openairt.ResponseCreateEvent{
		Response: openairt.ResponseCreateParams{
			Modalities:        []openairt.Modality{openairt.ModalityAudio, openairt.ModalityText},
			Voice:             openairt.Voice(voice),
			OutputAudioFormat: openairt.AudioFormatPcm16,
		},
	})
	if err != nil {
		return fmt.Errorf("response creation failed: %w", err)
	}
	return nil
}

// stream copies audio deltas into sink until the response is done
func (p *RealtimeBackend) stream(ctx context.Context, conn realtimeConn, sink pcmSink) error {
	for {
		event, err := conn.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("realtime: message read failed: %w: %v", apperr.ErrBackendFailure, err)
		}

		switch event.ServerEventType() {
		case openairt.ServerEventTypeResponseAudioDelta:
			delta := event.(openairt.ResponseAudioDeltaEvent)
			chunk, err := base64.StdEncoding.DecodeString(delta.Delta)
			if err != nil {
				logger.Error("realtime: failed to decode audio delta", err)
				continue
			}
			sink.Write(chunk)

		case openairt.ServerEventTypeResponseDone:
			return nil

		case openairt.ServerEventTypeError:
			errorEvent := event.(openairt.ErrorEvent)
			return fmt.Errorf("realtime API error: %w: %s: %s", apperr.ErrBackendFailure, errorEvent.Error.Type, errorEvent.Error.Message)

		default:
			logger.Debugf("realtime: event %s", event.ServerEventType())
		}
	}
}

func (p *RealtimeBackend) Voices(context.Context) ([]voices.Descriptor, error) {
	list := make([]voices.Descriptor, 0, len(realtimeVoices))
	for _, v := range realtimeVoices {
		list = append(list, voices.Descriptor{ID: v, Name: v, Default: v == "alloy"})
	}
	return list, nil
}
