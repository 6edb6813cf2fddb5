package backend

import (
	"cmp"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
)

// OpenAI implements Text, Imager and Speaker using OpenAI's official Go SDK.
// An OpenAI-compatible endpoint (local inference servers, proxies) is the
// same backend with a different base URL.
type OpenAI struct {
	client         *openai.Client
	model          string
	imageModel     string
	voice          string
	maxTokens      int
	responseFormat *openai.ChatCompletionNewParamsResponseFormatUnion
}

// WithResponseFormat constrains completions to a structured output
// schema. Used for evaluator roles.
func (o *OpenAI) WithResponseFormat(format openai.ChatCompletionNewParamsResponseFormatUnion) *OpenAI {
	o.responseFormat = &format
	return o
}

// NewOpenAI creates a backend against api.openai.com.
func NewOpenAI(apiKey, model string, maxTokens int) *OpenAI {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	if model == "" {
		model = "gpt-4o"
	}
	if apiKey == "" {
		maxTokens = 0
	}
	return &OpenAI{
		client:     &client,
		model:      model,
		imageModel: "gpt-image-1",
		voice:      "alloy",
		maxTokens:  maxTokens,
	}
}

// NewOpenAICompatible creates a backend against any OpenAI-compatible base URL.
func NewOpenAICompatible(baseURL, apiKey, model string, maxTokens int) *OpenAI {
	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
	)
	return &OpenAI{
		client:     &client,
		model:      model,
		imageModel: "gpt-image-1",
		voice:      "alloy",
		maxTokens:  maxTokens,
	}
}

func (o *OpenAI) MaxTokens() int { return o.maxTokens }

func (o *OpenAI) Complete(ctx context.Context, prompt string) (string, error) {
	return o.Converse(ctx, []Message{{Role: RoleUser, Content: prompt}}, 0.7)
}

func (o *OpenAI) Converse(ctx context.Context, messages []Message, temperature float64) (string, error) {
	if o.maxTokens == 0 {
		return "", ErrUnavailable
	}

	params := openai.ChatCompletionNewParams{
		Model:               o.model,
		Messages:            make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)),
		MaxCompletionTokens: openai.Int(int64(cmp.Or(o.maxTokens, 4096))),
		Temperature:         openai.Float(temperature),
		TopP:                openai.Float(1.0),
	}
	if o.responseFormat != nil {
		params.ResponseFormat = *o.responseFormat
	}
	for _, m := range messages {
		switch m.Role {
		case RoleAssistant:
			params.Messages = append(params.Messages, openai.ChatCompletionMessageParamUnion{
				OfAssistant: &openai.ChatCompletionAssistantMessageParam{
					Role: "assistant",
					Content: openai.ChatCompletionAssistantMessageParamContentUnion{
						OfString: param.Opt[string]{Value: m.Content},
					},
				},
			})
		default:
			params.Messages = append(params.Messages, openai.ChatCompletionMessageParamUnion{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Role: "user",
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: param.Opt[string]{Value: m.Content},
					},
				},
			})
		}
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai completion error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices returned")
	}
	if resp.Choices[0].Message.Content == "" {
		return "", errors.New("empty completion content")
	}

	return resp.Choices[0].Message.Content, nil
}

func (o *OpenAI) Image(ctx context.Context, prompt string) ([]byte, error) {
	if o.maxTokens == 0 {
		return nil, ErrUnavailable
	}

	resp, err := o.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt: prompt,
		Model:  openai.ImageModel(o.imageModel),
		N:      openai.Int(1),
	})
	if err != nil {
		return nil, fmt.Errorf("openai image error: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, errors.New("no image returned")
	}

	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("decode image payload: %w", err)
	}
	return data, nil
}

func (o *OpenAI) Speech(ctx context.Context, text string) ([]byte, error) {
	if o.maxTokens == 0 {
		return nil, ErrUnavailable
	}

	resp, err := o.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model:          openai.SpeechModelTTS1,
		Input:          text,
		Voice:          openai.AudioSpeechNewParamsVoice(o.voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		return nil, fmt.Errorf("openai speech error: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read speech payload: %w", err)
	}
	return data, nil
}
