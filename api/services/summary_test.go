package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSummarizer returns a short tag per input and remembers the inputs.
type recordingSummarizer struct {
	mu     sync.Mutex
	inputs []string
	failOn string
}

func (r *recordingSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn != "" && strings.Contains(text, r.failOn) {
		return "", errors.New("model failed")
	}
	r.inputs = append(r.inputs, text)
	return fmt.Sprintf("S%d", len([]rune(text))), nil
}

func newMapReduce(t *testing.T, model SummaryModel, size, overlap int) *MapReduceSummarizer {
	t.Helper()
	splitter, err := NewTextSplitter(size, overlap)
	require.NoError(t, err)
	return NewMapReduceSummarizer(model, splitter, 3, zerolog.Nop())
}

func TestMapReduceSingleChunkSummarizedDirectly(t *testing.T) {
	model := &recordingSummarizer{}
	out, err := newMapReduce(t, model, 1000, 200).Summarize(context.Background(), "  A short document.  ")
	require.NoError(t, err)
	assert.Equal(t, "S17", out)
	assert.Equal(t, []string{"A short document."}, model.inputs)
}

func TestMapReduceMapsThenReduces(t *testing.T) {
	model := &recordingSummarizer{}
	text := "aaaa bbbb\n\ncccc dddd\n\neeee ffff"

	out, err := newMapReduce(t, model, 10, 0).Summarize(context.Background(), text)
	require.NoError(t, err)

	// three map calls plus the final reduce over "S9\n\nS9\n\nS9"
	require.Len(t, model.inputs, 4)
	assert.ElementsMatch(t, []string{"aaaa bbbb", "cccc dddd", "eeee ffff"}, model.inputs[:3])
	assert.Equal(t, "S9\n\nS9\n\nS9", model.inputs[3])
	assert.Equal(t, "S10", out)
}

func TestMapReduceCollapsesLongPartials(t *testing.T) {
	model := &recordingSummarizer{}
	text := strings.TrimSuffix(strings.Repeat("aaaa bbbb\n\n", 12), "\n\n")

	out, err := newMapReduce(t, model, 10, 0).Summarize(context.Background(), text)
	require.NoError(t, err)

	// twelve "S9" partials overflow the 30-rune limit, so they are grouped
	// eight and four before the final reduce
	require.Len(t, model.inputs, 15)
	eight := strings.TrimSuffix(strings.Repeat("S9\n\n", 8), "\n\n")
	four := strings.TrimSuffix(strings.Repeat("S9\n\n", 4), "\n\n")
	assert.ElementsMatch(t, []string{eight, four}, model.inputs[12:14])
	assert.Equal(t, "S30\n\nS14", model.inputs[14])
	assert.Equal(t, "S8", out)
}

// verboseSummarizer keeps most of its input, like a model that barely
// compresses.
type verboseSummarizer struct {
	mu     sync.Mutex
	inputs []string
}

func (v *verboseSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	v.mu.Lock()
	v.inputs = append(v.inputs, text)
	v.mu.Unlock()
	r := []rune(text)
	return string(r[:len(r)*9/10]), nil
}

func TestMapReduceBoundsFinalReduceInput(t *testing.T) {
	model := &verboseSummarizer{}
	text := strings.Repeat("lorem ipsum dolor sit amet ", 4000)

	mr := newMapReduce(t, model, 1000, 200)
	_, err := mr.Summarize(context.Background(), text)
	require.NoError(t, err)

	for _, in := range model.inputs {
		assert.LessOrEqual(t, len([]rune(in)), mr.combineLimit)
	}
	final := model.inputs[len(model.inputs)-1]
	assert.LessOrEqual(t, len([]rune(final)), mr.combineLimit)

	pieces := len(mr.splitter.SplitText(text))
	assert.Greater(t, len(model.inputs), pieces+1, "collapse rounds should run")
}

func TestMapReduceErrors(t *testing.T) {
	_, err := newMapReduce(t, &recordingSummarizer{}, 10, 0).Summarize(context.Background(), " \n ")
	assert.ErrorIs(t, err, ErrNoText)

	model := &recordingSummarizer{failOn: "cccc"}
	_, err = newMapReduce(t, model, 10, 0).Summarize(context.Background(), "aaaa bbbb\n\ncccc dddd")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model failed")
}

func TestFrequencySummarizerKeepsOrder(t *testing.T) {
	text := "Solar panels convert sunlight. Solar panels need sunlight to work. " +
		"The office has a kitchen. Solar output depends on weather. Parking is free."

	out, err := (&FrequencySummarizer{MaxSentences: 2}).Summarize(context.Background(), text)
	require.NoError(t, err)
	assert.Equal(t, "Solar panels convert sunlight. Solar panels need sunlight to work.", out)

	short, err := (&FrequencySummarizer{}).Summarize(context.Background(), "One. Two.")
	require.NoError(t, err)
	assert.Equal(t, "One. Two.", short)
}

func TestHuggingFaceSummarizer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/facebook/bart-large-cnn", r.URL.Path)

		var body struct {
			Inputs     string         `json:"inputs"`
			Parameters map[string]any `json:"parameters"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "long text", body.Inputs)
		assert.EqualValues(t, 200, body.Parameters["max_length"])
		assert.EqualValues(t, 30, body.Parameters["min_length"])

		_, _ = w.Write([]byte(`[{"summary_text":" short text "}]`))
	}))
	defer srv.Close()

	s := NewHuggingFaceSummarizer("", "facebook/bart-large-cnn", srv.URL, fastAPIClient())
	out, err := s.Summarize(context.Background(), "long text")
	require.NoError(t, err)
	assert.Equal(t, "short text", out)
}

type fakeProvider struct {
	prompt string
}

func (f *fakeProvider) GenerateText(ctx context.Context, prompt, systemPrompt string) (string, error) {
	f.prompt = prompt
	return "  generated  ", nil
}

func (f *fakeProvider) GetProviderName() string { return "fake" }

func TestLLMSummarizer(t *testing.T) {
	p := &fakeProvider{}
	out, err := (&LLMSummarizer{Provider: p}).Summarize(context.Background(), "body text")
	require.NoError(t, err)
	assert.Equal(t, "generated", out)
	assert.Contains(t, p.prompt, "body text")
}
