package ai

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/rostralabs/rostra/internal/config"
	"github.com/rostralabs/rostra/internal/debate"
	"github.com/rostralabs/rostra/internal/errors"
	"github.com/rostralabs/rostra/internal/logging"
)

const (
	defaultModel = "gpt-4o-mini"
	defaultVoice = "alloy"
)

// OpenAI is the production Provider, backed by the chat completions
// and speech endpoints.
type OpenAI struct {
	client openai.Client
	model  string
	voice  string
	log    *logging.Logger
}

// NewOpenAI builds the OpenAI-backed provider. Config supplies the
// adapter-level defaults; a participant's aiConfig overrides model and
// voice per turn.
func NewOpenAI(cfg config.AIConfig, log *logging.Logger) *OpenAI {
	if log == nil {
		log = logging.NopLogger()
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	voice := cfg.Voice
	if voice == "" {
		voice = defaultVoice
	}
	return &OpenAI{
		client: openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:  model,
		voice:  voice,
		log:    log.WithComponent("ai"),
	}
}

func (o *OpenAI) Generate(ctx context.Context, req Request) (string, error) {
	model := o.model
	if m, ok := req.Speaker.AIConfig["model"].(string); ok && m != "" {
		model = m
	}

	msgs := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt(req)),
	}
	history := req.Transcript
	if len(history) > maxContextMessages {
		history = history[len(history)-maxContextMessages:]
	}
	for _, m := range history {
		if m.Type == debate.MessageSystem {
			continue
		}
		if m.SpeakerID == req.Speaker.ID {
			msgs = append(msgs, openai.AssistantMessage(m.Content))
			continue
		}
		msgs = append(msgs, openai.UserMessage(fmt.Sprintf("[%s] %s", m.SpeakerID, m.Content)))
	}
	msgs = append(msgs, openai.UserMessage(fmt.Sprintf("The floor is yours for %s. Deliver your speech now.", req.Phase)))

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(model),
		Messages:            msgs,
		MaxCompletionTokens: openai.Int(1024),
		Temperature:         openai.Float(0.8),
	})
	if err != nil {
		return "", fmt.Errorf("ai: generating %s turn: %w", req.Phase, err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("ai: completion returned no choices")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("ai: completion returned empty text")
	}
	o.log.Debug("turn generated", "model", model, "phase", string(req.Phase), "chars", len(text))
	return truncate(text, req.MaxLength), nil
}

func (o *OpenAI) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	if voice == "" {
		voice = o.voice
	}
	res, err := o.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model:          openai.SpeechModelTTS1,
		Input:          text,
		Voice:          openai.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatPCM,
	})
	if err != nil {
		return nil, fmt.Errorf("ai: synthesizing speech: %w", err)
	}
	defer res.Body.Close()
	audio, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("ai: reading speech audio: %w", err)
	}
	o.log.Debug("speech synthesized", "voice", voice, "bytes", len(audio))
	return audio, nil
}
