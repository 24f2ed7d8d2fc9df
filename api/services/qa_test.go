package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLexicalQAPicksBestSentence(t *testing.T) {
	passage := "Plants need water. Chlorophyll absorbs red and blue light. Roots anchor the plant."

	res, err := LexicalQA{}.Answer(context.Background(), "What absorbs light?", passage)
	require.NoError(t, err)
	assert.Equal(t, "Chlorophyll absorbs red and blue light.", res.Text)
	assert.Greater(t, res.Score, 0.0)
	assert.LessOrEqual(t, res.Score, 1.0)

	runes := []rune(passage)
	assert.Equal(t, res.Text, string(runes[res.Start:res.End]))
}

func TestLexicalQANoOverlap(t *testing.T) {
	res, err := LexicalQA{}.Answer(context.Background(), "Who won the election?", "Plants need water. Roots anchor the plant.")
	require.NoError(t, err)
	assert.Zero(t, res.Score)
	assert.Empty(t, res.Text)
}

func TestLexicalQAOffsetsAreRunes(t *testing.T) {
	passage := "Café opens early. Espresso costs €3.50 today."

	res, err := LexicalQA{}.Answer(context.Background(), "How much does espresso cost?", passage)
	require.NoError(t, err)
	assert.Equal(t, "Espresso costs €3.50 today.", res.Text)
	assert.Equal(t, res.Text, string([]rune(passage)[res.Start:res.End]))
}

func TestHuggingFaceQA(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/deepset/roberta-base-squad2", r.URL.Path)

		var body struct {
			Inputs map[string]string `json:"inputs"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Who?", body.Inputs["question"])
		assert.Equal(t, "Ada wrote it.", body.Inputs["context"])

		_, _ = w.Write([]byte(`{"answer":"Ada","score":0.91,"start":0,"end":3}`))
	}))
	defer srv.Close()

	qa := NewHuggingFaceQA("", "deepset/roberta-base-squad2", srv.URL, fastAPIClient())
	res, err := qa.Answer(context.Background(), "Who?", "Ada wrote it.")
	require.NoError(t, err)
	assert.Equal(t, QAResult{Text: "Ada", Score: 0.91, Start: 0, End: 3}, res)
}
