package extract_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/BaSui01/extractflow/events"
	"github.com/BaSui01/extractflow/extract"
	"github.com/BaSui01/extractflow/schema"
	"github.com/BaSui01/extractflow/structure"
	"github.com/BaSui01/extractflow/testutil"
	"github.com/BaSui01/extractflow/testutil/fixtures"
	"github.com/BaSui01/extractflow/testutil/mocks"
	"github.com/BaSui01/extractflow/types"
)

func userShape() *schema.TypeDescriptor {
	return schema.NewObject("User").
		Describe("A person mentioned in the text").
		Field(
			schema.StringField("name").Describe("Full name"),
			schema.IntField("age").Min(0),
		).
		MustBuild()
}

func prompt() []types.Message {
	return []types.Message{types.NewUserMessage("Jason is 28 years old")}
}

func newExtractor(p *mocks.MockProvider, opts ...extract.Option) *extract.Extractor {
	opts = append([]extract.Option{extract.WithFactory(schema.NewFactory())}, opts...)
	return extract.New(extract.NewProviderAdapter(p, extract.WithModel("gpt-4o-mini")), opts...)
}

func TestExtract_ToolMode(t *testing.T) {
	p := mocks.NewMockProvider().WithToolArguments(fixtures.JasonJSON)
	e := newExtractor(p)

	res, err := e.Extract(testutil.TestContext(t), userShape(), prompt())
	require.NoError(t, err)

	st, ok := res.Structure()
	require.True(t, ok)
	assert.Equal(t, "Jason", st.Value("name"))
	assert.Equal(t, int64(28), st.Value("age"))
	assert.Len(t, res.Attempts, 1)
	assert.True(t, res.Attempts[0].Result.IsValid())
	assert.NotEmpty(t, res.CallID)

	req := p.LastRequest()
	require.Len(t, req.Tools, 1)
	assert.Equal(t, extract.DefaultToolName, req.Tools[0].Name)
	assert.Equal(t, extract.DefaultToolName, req.ToolChoice)
	assert.Equal(t, res.CallID, req.TraceID)
	assert.Contains(t, string(req.Tools[0].Parameters), `"age"`)
}

func TestExtract_StateSequence(t *testing.T) {
	p := mocks.NewMockProvider().WithToolArguments(fixtures.NegativeAgeJSON, fixtures.JasonJSON)
	e := newExtractor(p, extract.WithMaxAttempts(2))

	res, err := e.Extract(testutil.TestContext(t), userShape(), prompt())
	require.NoError(t, err)
	assert.Equal(t, []extract.State{
		extract.StateBuilding,
		extract.StateRequesting, extract.StateParsing, extract.StateDeserializing, extract.StateValidating,
		extract.StateRetrying,
		extract.StateRequesting, extract.StateParsing, extract.StateDeserializing, extract.StateValidating,
		extract.StateSucceeded,
	}, res.States)
	assert.True(t, res.States[len(res.States)-1].Terminal())
}

func TestExtract_SelfCorrection(t *testing.T) {
	p := mocks.NewMockProvider().WithToolArguments(fixtures.NegativeAgeJSON, fixtures.JasonJSON)
	rec := &events.Recorder{}
	e := newExtractor(p, extract.WithMaxAttempts(2), extract.WithSink(rec))

	res, err := e.Extract(testutil.TestContext(t), userShape(), prompt())
	require.NoError(t, err)
	require.Len(t, res.Attempts, 2)

	first := res.Attempts[0]
	assert.False(t, first.Result.IsValid())
	require.NotEmpty(t, first.Result.Messages())
	assert.Contains(t, first.Result.Messages()[0], "age")
	var verr *extract.ValidationError
	assert.ErrorAs(t, first.Err, &verr)

	assert.True(t, res.Attempts[1].Result.IsValid())
	st, _ := res.Structure()
	assert.Equal(t, int64(28), st.Value("age"))

	// 第二次请求带有纠错回合
	calls := p.Calls()
	require.Len(t, calls, 2)
	msgs := calls[1].Request.Messages
	require.Len(t, msgs, 3)
	assert.Equal(t, types.RoleAssistant, msgs[1].Role)
	assert.Equal(t, fixtures.NegativeAgeJSON, msgs[1].Content)
	assert.Equal(t, types.RoleUser, msgs[2].Role)
	assert.True(t, strings.HasPrefix(msgs[2].Content, extract.DefaultRetryPrompt))
	assert.Contains(t, msgs[2].Content, "\n- age")

	// 原始会话不受影响
	assert.Len(t, calls[0].Request.Messages, 1)

	assert.Equal(t, []events.Type{
		events.TypeRequestSent, events.TypeResponseReceived, events.TypeAttemptValidated,
		events.TypeRetrying,
		events.TypeRequestSent, events.TypeResponseReceived, events.TypeAttemptValidated,
		events.TypeSucceeded,
	}, rec.Types())
}

func TestExtract_SelfCorrectionWithPredicate(t *testing.T) {
	var seen []any
	shape := schema.NewObject("ValidatedUser").
		Field(
			schema.StringField("name"),
			schema.IntField("age").ValidIf(func(v any) bool {
				seen = append(seen, v)
				age, ok := v.(int64)
				return ok && age > 0
			}, "age must be positive"),
		).
		MustBuild()

	p := mocks.NewMockProvider().WithToolArguments(fixtures.NegativeAgeJSON, fixtures.JasonJSON)
	e := newExtractor(p, extract.WithMaxAttempts(2))

	res, err := e.Extract(testutil.TestContext(t), shape, prompt())
	require.NoError(t, err)
	require.Len(t, res.Attempts, 2)
	assert.Equal(t, []string{"age: age must be positive"}, res.Attempts[0].Result.Messages())
	assert.Equal(t, []any{int64(-28), int64(28)}, seen)

	msgs := p.Calls()[1].Request.Messages
	require.Len(t, msgs, 3)
	assert.Contains(t, msgs[2].Content, "- age: age must be positive")

	st, _ := res.Structure()
	assert.Equal(t, "Jason", st.Value("name"))
	assert.Equal(t, int64(28), st.Value("age"))
}

func TestExtract_ModelOverride(t *testing.T) {
	t.Run("call option", func(t *testing.T) {
		p := mocks.NewMockProvider().WithToolArguments(fixtures.JasonJSON)
		e := newExtractor(p)

		_, err := e.Extract(testutil.TestContext(t), userShape(), prompt(), extract.WithCallModel("gpt-4o"))
		require.NoError(t, err)
		assert.Equal(t, "gpt-4o", p.LastRequest().Model)
	})

	t.Run("caller context", func(t *testing.T) {
		p := mocks.NewMockProvider().WithToolArguments(fixtures.JasonJSON)
		e := newExtractor(p)

		ctx := types.WithLLMModel(testutil.TestContext(t), "gpt-4.1")
		_, err := e.Extract(ctx, userShape(), prompt())
		require.NoError(t, err)
		assert.Equal(t, "gpt-4.1", p.LastRequest().Model)
	})

	t.Run("adapter default", func(t *testing.T) {
		p := mocks.NewMockProvider().WithToolArguments(fixtures.JasonJSON)
		e := newExtractor(p)

		_, err := e.Extract(testutil.TestContext(t), userShape(), prompt())
		require.NoError(t, err)
		assert.Equal(t, "gpt-4o-mini", p.LastRequest().Model)
	})
}

func TestExtract_RetriesExhaustedCarriesLastAttempt(t *testing.T) {
	p := mocks.NewMockProvider().WithToolArguments(fixtures.MissingAgeJSON, fixtures.NegativeAgeJSON)
	rec := &events.Recorder{}
	e := newExtractor(p, extract.WithMaxAttempts(2), extract.WithSink(rec))

	res, err := e.Extract(testutil.TestContext(t), userShape(), prompt())
	require.Error(t, err)
	assert.Nil(t, res)

	var exhausted *extract.RetriesExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 2, exhausted.Attempts)
	assert.Len(t, exhausted.History, 2)
	require.NotEmpty(t, exhausted.Messages)
	assert.Contains(t, exhausted.Messages[0], "less than minimum")

	// Unwrap 得到最后一次（校验）错误，而不是第一次的反序列化错误
	var verr *extract.ValidationError
	assert.ErrorAs(t, err, &verr)
	var derr *structure.DeserializationError
	assert.False(t, errors.As(err, &derr))
	assert.Equal(t, types.ErrRetriesExhausted, types.GetErrorCode(err))

	types_ := rec.Types()
	assert.Equal(t, events.TypeFailed, types_[len(types_)-1])
}

func TestExtract_MissingRequiredField(t *testing.T) {
	p := mocks.NewMockProvider().WithToolArguments(fixtures.MissingAgeJSON)
	e := newExtractor(p)

	_, err := e.Extract(testutil.TestContext(t), userShape(), prompt())
	require.Error(t, err)

	var derr *structure.DeserializationError
	require.ErrorAs(t, err, &derr)
	assert.Contains(t, strings.Join(derr.Messages(), " "), "age")
	assert.Equal(t, 1, p.CallCount())
}

func TestExtract_EmptyResponse(t *testing.T) {
	p := mocks.NewMockProvider().WithContent(fixtures.NoJSONInResponse, fixtures.JasonInProse)
	e := newExtractor(p, extract.WithMode(extract.ModeJSON), extract.WithMaxAttempts(2))

	res, err := e.Extract(testutil.TestContext(t), userShape(), prompt())
	require.NoError(t, err)
	require.Len(t, res.Attempts, 2)

	var empty *extract.ExtractionEmptyError
	assert.ErrorAs(t, res.Attempts[0].Err, &empty)
	assert.Equal(t, fixtures.JasonJSON, res.Attempts[1].Candidate)
}

func TestExtract_JSONModeRequest(t *testing.T) {
	p := mocks.NewMockProvider().WithContent(fixtures.JasonInProse)
	e := newExtractor(p, extract.WithMode(extract.ModeJSON))

	res, err := e.Extract(testutil.TestContext(t), userShape(), prompt())
	require.NoError(t, err)
	assert.Equal(t, extract.ModeJSON, res.Attempts[0].Mode)

	req := p.LastRequest()
	assert.Empty(t, req.Tools)
	require.NotNil(t, req.ResponseFormat)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, types.RoleSystem, req.Messages[0].Role)
	assert.Contains(t, req.Messages[0].Content, `"name"`)
}

func TestExtract_MarkdownMode(t *testing.T) {
	p := mocks.NewMockProvider().WithContent(fixtures.JasonMarkdown)
	e := newExtractor(p, extract.WithMode(extract.ModeMarkdownJSON))

	res, err := e.Extract(testutil.TestContext(t), userShape(), prompt())
	require.NoError(t, err)
	st, _ := res.Structure()
	assert.Equal(t, "Jason", st.Value("name"))

	req := p.LastRequest()
	assert.Nil(t, req.ResponseFormat)
	assert.Contains(t, req.Messages[0].Content, "```json")
}

func TestExtract_ToolModeFallsBackWithoutNativeTools(t *testing.T) {
	p := mocks.NewMockProvider().WithNativeFunctionCalling(false).WithContent(fixtures.JasonJSON)
	e := newExtractor(p)

	res, err := e.Extract(testutil.TestContext(t), userShape(), prompt())
	require.NoError(t, err)
	assert.Equal(t, extract.ModeJSON, res.Attempts[0].Mode)
	assert.Empty(t, p.LastRequest().Tools)
}

func TestExtract_SchemaErrorSurfacesImmediately(t *testing.T) {
	p := mocks.NewMockProvider()
	e := newExtractor(p, extract.WithMaxAttempts(3))

	_, err := e.Extract(testutil.TestContext(t), schema.Ref("Unregistered"), prompt())
	require.Error(t, err)
	var serr *schema.SchemaError
	assert.ErrorAs(t, err, &serr)
	assert.Equal(t, 0, p.CallCount())
}

func TestExtract_TransportErrorIsNotSelfCorrected(t *testing.T) {
	boom := types.NewError(types.ErrUnauthorized, "bad key")
	p := mocks.NewMockProvider().WithError(boom)
	e := newExtractor(p, extract.WithMaxAttempts(3))

	_, err := e.Extract(testutil.TestContext(t), userShape(), prompt())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, p.CallCount())
}

func TestExtract_CancelledBetweenAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := mocks.NewMockProvider().WithToolArguments(fixtures.NegativeAgeJSON)
	sink := events.SinkFunc(func(ev events.Event) {
		if ev.Type() == events.TypeRetrying {
			cancel()
		}
	})
	e := newExtractor(p, extract.WithMaxAttempts(5), extract.WithSink(sink))

	_, err := e.Extract(ctx, userShape(), prompt())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, p.CallCount())
}

func TestExtract_CancelledBeforeFirstAttempt(t *testing.T) {
	p := mocks.NewMockProvider().WithToolArguments(fixtures.JasonJSON)
	e := newExtractor(p)

	_, err := e.Extract(testutil.CancelledContext(), userShape(), prompt())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, p.CallCount())
}

func TestExtract_WrappedShapes(t *testing.T) {
	t.Run("scalar", func(t *testing.T) {
		p := mocks.NewMockProvider().WithToolArguments(`{"value": 42}`)
		e := newExtractor(p)

		res, err := e.Extract(testutil.TestContext(t), schema.Int(), prompt())
		require.NoError(t, err)
		assert.Equal(t, int64(42), res.Value)
	})

	t.Run("list nested under properties", func(t *testing.T) {
		p := mocks.NewMockProvider().WithToolArguments(`{"properties": {"list": [{"name":"A","age":1},{"name":"B","age":2}]}}`)
		e := newExtractor(p)

		res, err := e.Extract(testutil.TestContext(t), schema.ArrayOf(userShape()), prompt())
		require.NoError(t, err)
		items, ok := res.Value.([]any)
		require.True(t, ok)
		require.Len(t, items, 2)
		assert.Equal(t, "B", items[1].(*structure.Structure).Value("name"))
	})

	t.Run("enum", func(t *testing.T) {
		p := mocks.NewMockProvider().WithToolArguments(`{"value": "maybe"}`, `{"value": "yes"}`)
		e := newExtractor(p, extract.WithMaxAttempts(2))

		res, err := e.Extract(testutil.TestContext(t), schema.Enum("Answer", "yes", "no"), prompt())
		require.NoError(t, err)
		assert.Equal(t, "yes", res.Value)
		assert.Contains(t, res.Attempts[0].Result.Messages()[0], "not one of")
	})
}

func TestExtractStream_Partials(t *testing.T) {
	p := mocks.NewMockProvider().WithToolStreamChunks(`{"name":"Ja`, `son","age":`, `28}`)
	rec := &events.Recorder{}
	e := newExtractor(p, extract.WithSink(rec))

	var partials []extract.Partial
	res, err := e.ExtractStream(testutil.TestContext(t), userShape(), prompt(), func(pt extract.Partial) {
		partials = append(partials, pt)
	})
	require.NoError(t, err)

	st, _ := res.Structure()
	assert.Equal(t, int64(28), st.Value("age"))
	require.NotEmpty(t, partials)
	last := partials[len(partials)-1].Value.(*structure.Structure)
	assert.Equal(t, "Jason", last.Value("name"))
	assert.Equal(t, 1, partials[0].Attempt)
	assert.Contains(t, rec.Types(), events.TypePartialReceived)
	assert.True(t, p.Calls()[0].Stream)
}

func TestExtract_Spans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	p := mocks.NewMockProvider().WithToolArguments(fixtures.NegativeAgeJSON, fixtures.JasonJSON)
	e := newExtractor(p, extract.WithMaxAttempts(2), extract.WithTracer(tp.Tracer("test")))

	_, err := e.Extract(testutil.TestContext(t), userShape(), prompt())
	require.NoError(t, err)

	var names []string
	for _, s := range sr.Ended() {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"extractflow.attempt", "extractflow.attempt", "extractflow.extract"}, names)
}

func TestExtract_Usage(t *testing.T) {
	p := mocks.NewMockProvider().WithTokenUsage(7, 3).WithToolArguments(fixtures.NegativeAgeJSON, fixtures.JasonJSON)
	e := newExtractor(p, extract.WithMaxAttempts(2))

	res, err := e.Extract(testutil.TestContext(t), userShape(), prompt())
	require.NoError(t, err)
	assert.Equal(t, 14, res.Usage.PromptTokens)
	assert.Equal(t, 20, res.Usage.TotalTokens)
}

type person struct {
	Name string `json:"name" jsonschema:"description=Full name"`
	Age  int    `json:"age" jsonschema:"minimum=0"`
}

func TestInto(t *testing.T) {
	p := mocks.NewMockProvider().WithToolArguments(fixtures.JasonJSON)
	e := newExtractor(p)

	got, res, err := extract.Into[person](testutil.TestContext(t), e, prompt())
	require.NoError(t, err)
	assert.Equal(t, person{Name: "Jason", Age: 28}, got)
	assert.Len(t, res.Attempts, 1)
}

func TestExtractBatch(t *testing.T) {
	p := mocks.NewMockProvider().WithToolArguments(fixtures.JasonJSON).WithDelay(5 * time.Millisecond)
	e := newExtractor(p)

	items := make([]extract.BatchItem, 4)
	for i := range items {
		items[i] = extract.BatchItem{Shape: userShape(), Messages: prompt()}
	}
	items[2].Shape = schema.Ref("Missing")

	results := e.ExtractBatch(testutil.TestContext(t), items, 2)
	require.Len(t, results, 4)
	for i, r := range results {
		if i == 2 {
			assert.Error(t, r.Err)
			continue
		}
		require.NoError(t, r.Err)
		st, _ := r.Result.Structure()
		assert.Equal(t, "Jason", st.Value("name"))
	}
	assert.Equal(t, 3, p.CallCount())
}

func TestConversationIsAppendOnly(t *testing.T) {
	base := extract.NewConversation(types.NewUserMessage("a"))
	next := base.Append(types.NewAssistantMessage("b"))

	assert.Equal(t, 1, base.Len())
	assert.Equal(t, 2, next.Len())
	last, ok := next.Last()
	require.True(t, ok)
	assert.Equal(t, "b", last.Content)

	msgs := next.Messages()
	msgs[0].Content = "mutated"
	assert.Equal(t, "a", next.Messages()[0].Content)
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]extract.Mode{
		"":        extract.ModeTools,
		"tools":   extract.ModeTools,
		"JSON":    extract.ModeJSON,
		"md_json": extract.ModeMarkdownJSON,
	} {
		got, err := extract.ParseMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
	_, err := extract.ParseMode("xml")
	assert.Error(t, err)
}
