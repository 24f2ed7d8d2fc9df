package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/local/docqa/api/config"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	summaryMaxLength = 200
	summaryMinLength = 30

	summarySystemPrompt = "You summarize documents faithfully. Use only the given text and do not add facts."
	summaryPrompt       = "Write a concise summary of the following:\n\n%s\n\nCONCISE SUMMARY:"
)

// SummaryModel condenses a passage of text.
type SummaryModel interface {
	Summarize(ctx context.Context, text string) (string, error)
}

func NewSummaryModel(cfg *config.Config) SummaryModel {
	switch strings.ToLower(cfg.SummaryProvider) {
	case "huggingface":
		return NewHuggingFaceSummarizer(cfg.HuggingFaceToken, cfg.SummaryModel, cfg.HuggingFaceURL, newAPIClient(cfg.Timeout()))
	case "llm":
		return &LLMSummarizer{Provider: NewAIProvider(cfg)}
	default:
		return &FrequencySummarizer{MaxSentences: 5}
	}
}

// HuggingFaceSummarizer calls the Inference API summarization task
// (facebook/bart-large-cnn by default).
type HuggingFaceSummarizer struct {
	Token   string
	Model   string
	BaseURL string
	client  *apiClient
}

func NewHuggingFaceSummarizer(token, model, baseURL string, client *apiClient) *HuggingFaceSummarizer {
	return &HuggingFaceSummarizer{Token: token, Model: model, BaseURL: baseURL, client: client}
}

func (h *HuggingFaceSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	reqBody := map[string]interface{}{
		"inputs": text,
		"parameters": map[string]interface{}{
			"max_length": summaryMaxLength,
			"min_length": summaryMinLength,
			"do_sample":  false,
		},
		"options": map[string]bool{"wait_for_model": true},
	}

	var result []struct {
		SummaryText string `json:"summary_text"`
	}
	url := fmt.Sprintf("%s/models/%s", h.BaseURL, h.Model)
	if err := h.client.postJSON(ctx, url, bearer(h.Token), reqBody, &result); err != nil {
		return "", err
	}

	if len(result) == 0 {
		return "", fmt.Errorf("no summary in response")
	}
	return strings.TrimSpace(result[0].SummaryText), nil
}

// LLMSummarizer asks a generative model for the summary.
type LLMSummarizer struct {
	Provider AIProvider
}

func (l *LLMSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	out, err := l.Provider.GenerateText(ctx, fmt.Sprintf(summaryPrompt, text), summarySystemPrompt)
	if err != nil {
		return "", fmt.Errorf("%s summarization failed: %w", l.Provider.GetProviderName(), err)
	}
	return strings.TrimSpace(out), nil
}

// FrequencySummarizer keeps the sentences whose words occur most often in
// the passage, in their original order.
type FrequencySummarizer struct {
	MaxSentences int
}

func (f *FrequencySummarizer) Summarize(ctx context.Context, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	sents := sentences(text)
	limit := f.MaxSentences
	if limit <= 0 {
		limit = 3
	}
	if len(sents) <= limit {
		return strings.Join(sents, " "), nil
	}

	freq := map[string]float64{}
	maxFreq := 0.0
	for _, tok := range contentTokens(text) {
		freq[tok]++
		if freq[tok] > maxFreq {
			maxFreq = freq[tok]
		}
	}

	type ranked struct {
		pos   int
		score float64
	}
	scores := make([]ranked, len(sents))
	for i, s := range sents {
		toks := contentTokens(s)
		var sum float64
		for _, tok := range toks {
			sum += freq[tok] / maxFreq
		}
		if len(toks) > 0 {
			sum /= float64(len(toks))
		}
		scores[i] = ranked{pos: i, score: sum}
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].score > scores[j].score
	})
	keep := scores[:limit]
	sort.Slice(keep, func(i, j int) bool {
		return keep[i].pos < keep[j].pos
	})

	out := make([]string, len(keep))
	for i, k := range keep {
		out[i] = sents[k.pos]
	}
	return strings.Join(out, " "), nil
}

// MapReduceSummarizer summarizes each chunk of a long document, then
// summarizes the concatenated partial summaries.
type MapReduceSummarizer struct {
	model        SummaryModel
	splitter     *TextSplitter
	concurrency  int
	combineLimit int
	maxDepth     int
	logger       zerolog.Logger
}

func NewMapReduceSummarizer(model SummaryModel, splitter *TextSplitter, concurrency int, logger zerolog.Logger) *MapReduceSummarizer {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &MapReduceSummarizer{
		model:        model,
		splitter:     splitter,
		concurrency:  concurrency,
		combineLimit: 3 * splitter.ChunkSize,
		maxDepth:     3,
		logger:       logger.With().Str("component", "summarizer").Logger(),
	}
}

func (m *MapReduceSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrNoText
	}

	pieces := m.splitter.SplitText(text)
	if len(pieces) == 0 {
		return "", ErrNoText
	}
	if len(pieces) == 1 {
		return m.model.Summarize(ctx, pieces[0])
	}

	partials, err := m.mapStep(ctx, pieces)
	if err != nil {
		return "", err
	}

	for depth := 0; ; depth++ {
		groups := m.groupPartials(partials)
		if len(groups) == 1 {
			return m.model.Summarize(ctx, groups[0])
		}
		if depth == m.maxDepth {
			combined := truncateRunes(strings.Join(partials, "\n\n"), m.combineLimit)
			m.logger.Warn().Int("depth", depth).Int("partials", len(partials)).Msg("Partial summaries still too long, truncating")
			return m.model.Summarize(ctx, combined)
		}
		m.logger.Debug().Int("depth", depth+1).Int("groups", len(groups)).Msg("Collapsing partial summaries")
		if partials, err = m.mapStep(ctx, groups); err != nil {
			return "", err
		}
	}
}

// groupPartials joins consecutive partial summaries into groups of at most
// combineLimit runes. A partial longer than the limit is truncated.
func (m *MapReduceSummarizer) groupPartials(partials []string) []string {
	const sep = "\n\n"
	var groups []string
	var cur strings.Builder
	curLen := 0
	for _, p := range partials {
		p = truncateRunes(p, m.combineLimit)
		n := runeLen(p)
		if curLen > 0 && curLen+len(sep)+n > m.combineLimit {
			groups = append(groups, cur.String())
			cur.Reset()
			curLen = 0
		}
		if curLen > 0 {
			cur.WriteString(sep)
			curLen += len(sep)
		}
		cur.WriteString(p)
		curLen += n
	}
	if curLen > 0 || len(groups) == 0 {
		groups = append(groups, cur.String())
	}
	return groups
}

func truncateRunes(s string, limit int) string {
	if runeLen(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}

func (m *MapReduceSummarizer) mapStep(ctx context.Context, pieces []string) ([]string, error) {
	out := make([]string, len(pieces))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	for i, piece := range pieces {
		i, piece := i, piece
		g.Go(func() error {
			summary, err := m.model.Summarize(gctx, piece)
			if err != nil {
				return fmt.Errorf("failed to summarize chunk %d: %w", i, err)
			}
			out[i] = summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
