package services

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// NoAnswer is returned when no span scores above the confidence floor.
const NoAnswer = "Answer not present!"

const maxSupplementary = 3

var (
	detailPattern   = regexp.MustCompile(`\b(?:detail\w*|explain\w*|elaborat\w*|describ\w*|in depth|more about|tell me about|why|how does)\b`)
	whitespaceRuns  = regexp.MustCompile(`\s+`)
	leadingPunct    = regexp.MustCompile(`^[\s,.;:!?)\]}\-–]+`)
	unbalancedTrail = regexp.MustCompile(`[\s,;:(\[{\-–]+$`)
)

// Source identifies a retrieved chunk an answer was drawn from.
type Source struct {
	ChunkNum int     `json:"chunk_num"`
	Score    float64 `json:"score"`
}

// Answer is the synthesized reply to a question.
type Answer struct {
	Text       string   `json:"answer"`
	Confidence float64  `json:"confidence"`
	Detailed   bool     `json:"detailed"`
	Sources    []Source `json:"sources"`
}

// Synthesizer turns retrieved chunks into a single answer using an
// extractive QA model.
type Synthesizer struct {
	qa            QAModel
	segmentSize   int
	minConfidence float64
	logger        zerolog.Logger
}

func NewSynthesizer(qa QAModel, segmentSize int, minConfidence float64, logger zerolog.Logger) *Synthesizer {
	if segmentSize <= 0 {
		segmentSize = 512
	}
	return &Synthesizer{
		qa:            qa,
		segmentSize:   segmentSize,
		minConfidence: minConfidence,
		logger:        logger.With().Str("component", "synthesizer").Logger(),
	}
}

func (s *Synthesizer) Answer(ctx context.Context, question string, chunks []RetrievedChunk) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, ErrEmptyQuestion
	}

	sources := make([]Source, len(chunks))
	texts := make([]string, 0, len(chunks))
	for i, c := range chunks {
		sources[i] = Source{ChunkNum: c.ChunkNum, Score: c.Score}
		texts = append(texts, c.Content)
	}
	passage := strings.TrimSpace(strings.Join(texts, "\n\n"))
	if passage == "" {
		return Answer{Text: NoAnswer, Sources: sources}, nil
	}

	var best QAResult
	found := false
	for i, segment := range segmentRunes(passage, s.segmentSize) {
		res, err := s.qa.Answer(ctx, question, segment)
		if err != nil {
			return Answer{}, err
		}
		if !found || res.Score > best.Score {
			best = res
			found = true
		}
		s.logger.Debug().Int("segment", i).Float64("score", res.Score).Msg("Segment scored")
	}

	text := CleanAnswer(best.Text)
	if best.Score < s.minConfidence || text == "" {
		return Answer{Text: NoAnswer, Confidence: best.Score, Sources: sources}, nil
	}

	ans := Answer{Text: text, Confidence: best.Score, Sources: sources}
	if isDetailedQuestion(question) {
		ans.Detailed = true
		if extra := supplementaryExcerpts(question, text, texts); len(extra) > 0 {
			ans.Text = text + "\n\nAdditional context:\n- " + strings.Join(extra, "\n- ")
		}
	}
	return ans, nil
}

// CleanAnswer collapses whitespace and strips punctuation left dangling at
// the edges of an extracted span.
func CleanAnswer(text string) string {
	text = whitespaceRuns.ReplaceAllString(text, " ")
	text = leadingPunct.ReplaceAllString(text, "")
	text = unbalancedTrail.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

func isDetailedQuestion(question string) bool {
	return detailPattern.MatchString(strings.ToLower(question))
}

// segmentRunes cuts text into consecutive windows of at most size runes.
func segmentRunes(text string, size int) []string {
	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}
	segments := make([]string, 0, len(runes)/size+1)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		segments = append(segments, string(runes[start:end]))
	}
	return segments
}

func supplementaryExcerpts(question, answer string, texts []string) []string {
	query := tokenSet(question)
	if len(query) == 0 {
		return nil
	}

	type candidate struct {
		text  string
		score float64
	}
	seen := map[string]struct{}{}
	var cands []candidate
	for _, t := range texts {
		for _, sent := range sentences(t) {
			sent = CleanAnswer(sent)
			key := strings.ToLower(sent)
			if sent == "" || strings.Contains(sent, answer) || strings.Contains(answer, sent) {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			if score := overlapScore(query, sent); score > 0 {
				cands = append(cands, candidate{text: sent, score: score})
			}
		}
	}

	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].score > cands[j].score
	})
	if len(cands) > maxSupplementary {
		cands = cands[:maxSupplementary]
	}

	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.text
	}
	return out
}
