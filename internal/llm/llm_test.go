package llm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scoutlabs/pinecone-scout/pkg/logging"
)

type stubChatClient struct {
	response openai.ChatCompletionResponse
	err      error
	last     openai.ChatCompletionRequest
}

func (s *stubChatClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	s.last = req
	return s.response, s.err
}

type stubConverse struct {
	out  *bedrockruntime.ConverseOutput
	err  error
	last *bedrockruntime.ConverseInput
}

func (s *stubConverse) Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	s.last = params
	return s.out, s.err
}

type scriptedClient struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
	reqs  []Request
}

func (s *scriptedClient) Complete(ctx context.Context, req Request) (Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.reqs = append(s.reqs, req)
	if s.err != nil {
		return Response{}, s.err
	}
	return Response{Text: s.text}, nil
}

func TestOpenAIClient_BuildsRequest(t *testing.T) {
	api := &stubChatClient{response: openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message:      openai.ChatCompletionMessage{Content: "  {\"ok\":true} "},
			FinishReason: openai.FinishReasonStop,
		}},
		Usage: openai.Usage{PromptTokens: 10, CompletionTokens: 4, TotalTokens: 14},
	}}
	client := NewOpenAIClient(api, "gpt-4o-mini")

	req := UserPrompt("You classify things.", "Is this a question?")
	req.JSON = true
	req.Temperature = -1
	resp, err := client.Complete(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, `{"ok":true}`, resp.Text)
	assert.Equal(t, "stop", resp.StopReason)
	assert.Equal(t, int32(14), resp.Usage.TotalTokens)

	assert.Equal(t, "gpt-4o-mini", api.last.Model)
	require.Len(t, api.last.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, api.last.Messages[0].Role)
	assert.Equal(t, openai.ChatMessageRoleUser, api.last.Messages[1].Role)
	require.NotNil(t, api.last.ResponseFormat)
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, api.last.ResponseFormat.Type)
	assert.Zero(t, api.last.Temperature)
}

func TestOpenAIClient_Errors(t *testing.T) {
	client := NewOpenAIClient(&stubChatClient{}, "")
	_, err := client.Complete(context.Background(), UserPrompt("", "hi"))
	assert.Error(t, err)

	client = NewOpenAIClient(&stubChatClient{err: errors.New("boom")}, "")
	_, err = client.Complete(context.Background(), UserPrompt("", "hi"))
	assert.ErrorContains(t, err, "boom")

	client = NewOpenAIClient(&stubChatClient{response: openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "   "}}},
	}}, "")
	_, err = client.Complete(context.Background(), UserPrompt("", "hi"))
	assert.ErrorIs(t, err, ErrEmptyResponse)

	_, err = client.Complete(context.Background(), Request{Messages: []Message{{Role: "tool", Content: "x"}}})
	assert.ErrorContains(t, err, "unsupported role")
}

func TestBedrockClient_Complete(t *testing.T) {
	api := &stubConverse{out: &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{
			Role: brtypes.ConversationRoleAssistant,
			Content: []brtypes.ContentBlock{
				&brtypes.ContentBlockMemberText{Value: "Hello "},
				&brtypes.ContentBlockMemberText{Value: "there"},
			},
		}},
		StopReason: brtypes.StopReasonEndTurn,
		Usage:      &brtypes.TokenUsage{InputTokens: aws.Int32(3), OutputTokens: aws.Int32(2), TotalTokens: aws.Int32(5)},
	}}
	client := NewBedrockClient(api, "anthropic.claude-3-haiku")

	req := UserPrompt("be brief", "hi")
	req.Model = "gpt-4o-mini"
	req.JSON = true
	req.MaxTokens = 50
	resp, err := client.Complete(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "Hello there", resp.Text)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, int32(5), resp.Usage.TotalTokens)
	assert.Equal(t, "anthropic.claude-3-haiku", aws.ToString(api.last.ModelId))
	assert.Len(t, api.last.System, 2)
	require.NotNil(t, api.last.InferenceConfig)
	assert.Equal(t, int32(50), aws.ToInt32(api.last.InferenceConfig.MaxTokens))
}

func TestBedrockClient_RequiresModel(t *testing.T) {
	client := NewBedrockClient(&stubConverse{}, "")
	_, err := client.Complete(context.Background(), UserPrompt("", "hi"))
	assert.Error(t, err)
}

func TestBedrockOutputText_Empty(t *testing.T) {
	_, err := bedrockOutputText(nil)
	assert.Error(t, err)

	_, err = bedrockOutputText(&bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{}},
	})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestFallbackClient(t *testing.T) {
	primary := &scriptedClient{err: errors.New("primary down")}
	fallback := &scriptedClient{text: "from fallback"}
	client := NewFallbackClient(primary, fallback, logging.Discard().Logger)

	req := UserPrompt("", "hi")
	req.Model = "gpt-4o-mini"
	resp, err := client.Complete(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "from fallback", resp.Text)
	assert.Equal(t, 1, primary.calls)
	require.Len(t, fallback.reqs, 1)
	assert.Empty(t, fallback.reqs[0].Model)
}

func TestFallbackClient_NoFallback(t *testing.T) {
	primary := &scriptedClient{err: errors.New("primary down")}
	client := NewFallbackClient(primary, nil, logging.Discard().Logger)
	_, err := client.Complete(context.Background(), UserPrompt("", "hi"))
	assert.ErrorContains(t, err, "primary down")
}

func TestFallbackClient_BothFail(t *testing.T) {
	client := NewFallbackClient(
		&scriptedClient{err: errors.New("primary down")},
		&scriptedClient{err: errors.New("fallback down")},
		logging.Discard().Logger,
	)
	_, err := client.Complete(context.Background(), UserPrompt("", "hi"))
	assert.ErrorContains(t, err, "fallback down")
}

type recordingObserver struct {
	calls int
	errs  int
}

func (r *recordingObserver) ObserveExternalCall(dependency, operation string, d time.Duration, err error) {
	r.calls++
	if err != nil {
		r.errs++
	}
}

func TestBreakerClient_OpensAfterFailures(t *testing.T) {
	inner := &scriptedClient{err: errors.New("503")}
	obs := &recordingObserver{}
	client := NewBreakerClient(inner, BreakerOptions{MaxFailures: 2, OpenTimeout: time.Minute, Observer: obs})

	for i := 0; i < 2; i++ {
		_, err := client.Complete(context.Background(), UserPrompt("", "hi"))
		require.Error(t, err)
	}
	assert.Equal(t, "open", client.State())

	_, err := client.Complete(context.Background(), UserPrompt("", "hi"))
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, 3, obs.calls)
	assert.Equal(t, 3, obs.errs)
}

func TestBreakerClient_PassesThrough(t *testing.T) {
	inner := &scriptedClient{text: "ok"}
	client := NewBreakerClient(inner, BreakerOptions{CallTimeout: time.Second})
	resp, err := client.Complete(context.Background(), UserPrompt("", "hi"))
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	assert.Equal(t, "closed", client.State())
}

func TestDecodeJSON(t *testing.T) {
	var out struct {
		Topic      string `json:"topic"`
		Confidence string `json:"confidence"`
	}
	err := DecodeJSON("Sure! ```json\n{\"topic\": \"gaming\", \"confidence\": \"high\"}\n```", &out)
	require.NoError(t, err)
	assert.Equal(t, "gaming", out.Topic)
	assert.Equal(t, "high", out.Confidence)

	assert.Error(t, DecodeJSON("no json here", &out))
	assert.Error(t, DecodeJSON("} backwards {", &out))
	assert.Error(t, DecodeJSON("{not json}", &out))
}
