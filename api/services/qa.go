package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/local/docqa/api/config"
)

// QAResult is an answer span extracted from a context passage. Start and End
// are rune offsets into the context.
type QAResult struct {
	Text  string
	Score float64
	Start int
	End   int
}

// QAModel extracts the span of passage that best answers question.
type QAModel interface {
	Answer(ctx context.Context, question, passage string) (QAResult, error)
}

// HuggingFaceQA calls the Inference API question-answering task
// (deepset/roberta-base-squad2 by default).
type HuggingFaceQA struct {
	Token   string
	Model   string
	BaseURL string
	client  *apiClient
}

func NewQAModel(cfg *config.Config) QAModel {
	switch strings.ToLower(cfg.QAProvider) {
	case "huggingface":
		return NewHuggingFaceQA(cfg.HuggingFaceToken, cfg.QAModel, cfg.HuggingFaceURL, newAPIClient(cfg.Timeout()))
	default:
		return LexicalQA{}
	}
}

func NewHuggingFaceQA(token, model, baseURL string, client *apiClient) *HuggingFaceQA {
	return &HuggingFaceQA{Token: token, Model: model, BaseURL: baseURL, client: client}
}

func (q *HuggingFaceQA) Answer(ctx context.Context, question, passage string) (QAResult, error) {
	reqBody := map[string]interface{}{
		"inputs": map[string]string{
			"question": question,
			"context":  passage,
		},
		"options": map[string]bool{"wait_for_model": true},
	}

	var result struct {
		Answer string  `json:"answer"`
		Score  float64 `json:"score"`
		Start  int     `json:"start"`
		End    int     `json:"end"`
	}
	url := fmt.Sprintf("%s/models/%s", q.BaseURL, q.Model)
	if err := q.client.postJSON(ctx, url, bearer(q.Token), reqBody, &result); err != nil {
		return QAResult{}, err
	}

	return QAResult{Text: result.Answer, Score: result.Score, Start: result.Start, End: result.End}, nil
}

// LexicalQA picks the sentence of the passage that shares the most content
// words with the question. It runs offline.
type LexicalQA struct{}

func (LexicalQA) Answer(ctx context.Context, question, passage string) (QAResult, error) {
	if err := ctx.Err(); err != nil {
		return QAResult{}, err
	}

	query := tokenSet(question)
	var best QAResult
	for _, loc := range sentencePattern.FindAllStringIndex(passage, -1) {
		raw := passage[loc[0]:loc[1]]
		sentence := strings.TrimSpace(raw)
		if sentence == "" {
			continue
		}

		score := overlapScore(query, sentence)
		if score > best.Score {
			lead := len(raw) - len(strings.TrimLeft(raw, " \t\r\n"))
			start := utf8.RuneCountInString(passage[:loc[0]+lead])
			best = QAResult{
				Text:  sentence,
				Score: score,
				Start: start,
				End:   start + utf8.RuneCountInString(sentence),
			}
		}
	}

	return best, nil
}
