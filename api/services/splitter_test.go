package services

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTextSplitterValidation(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
		wantErr bool
	}{
		{name: "indexing defaults", size: 500, overlap: 300},
		{name: "summary defaults", size: 1000, overlap: 200},
		{name: "zero overlap", size: 10, overlap: 0},
		{name: "zero size", size: 0, overlap: 0, wantErr: true},
		{name: "negative overlap", size: 10, overlap: -1, wantErr: true},
		{name: "overlap equals size", size: 10, overlap: 10, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewTextSplitter(tt.size, tt.overlap)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, s)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.size, s.ChunkSize)
		})
	}
}

func TestSplitTextOverlapOnWords(t *testing.T) {
	s, err := NewTextSplitter(9, 4)
	require.NoError(t, err)

	chunks := s.SplitText("aaaa bbbb cccc dddd")
	assert.Equal(t, []string{"aaaa bbbb", "bbbb cccc", "cccc dddd"}, chunks)
}

func TestSplitTextKeepsSmallTextWhole(t *testing.T) {
	s, err := NewTextSplitter(100, 20)
	require.NoError(t, err)

	chunks := s.SplitText("Para one.\n\nPara two.")
	assert.Equal(t, []string{"Para one.\n\nPara two."}, chunks)
}

func TestSplitTextFallsBackToRunes(t *testing.T) {
	s, err := NewTextSplitter(5, 0)
	require.NoError(t, err)

	chunks := s.SplitText("abcdefghijkl")
	assert.Equal(t, []string{"abcde", "fghij", "kl"}, chunks)
}

func TestSplitTextEmpty(t *testing.T) {
	s, err := NewTextSplitter(50, 10)
	require.NoError(t, err)

	assert.Empty(t, s.SplitText(""))
	assert.Empty(t, s.SplitText("   \n\n  "))
}

func TestSplitTextRespectsChunkSize(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString("The quick brown fox jumps over the lazy dog near the river bank. ")
		if i%5 == 4 {
			b.WriteString("\n\n")
		}
	}
	text := b.String()

	s, err := NewTextSplitter(120, 40)
	require.NoError(t, err)

	chunks := s.SplitText(text)
	require.Greater(t, len(chunks), 1)
	for i, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 120, "chunk %d too long", i)
		assert.Equal(t, strings.TrimSpace(c), c)
		assert.NotEmpty(t, c)
	}
}

func TestSplitTextCountsRunesNotBytes(t *testing.T) {
	s, err := NewTextSplitter(4, 0)
	require.NoError(t, err)

	chunks := s.SplitText("ééééé")
	assert.Equal(t, []string{"éééé", "é"}, chunks)
}
