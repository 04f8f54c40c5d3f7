package pipeline

import (
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/siherrmann/docgrapher/model"
)

const (
	StrategySemantic = "semantic"
	StrategyFixed    = "fixed"
)

var (
	paragraphBreak   = regexp.MustCompile(`\n[ \t]*\n(?:[ \t]*\n)*`)
	sentenceBoundary = regexp.MustCompile(`\.\s+(\p{Lu})`)
)

// Span is a planned chunk: the byte range [Start, End) of a document's content.
type Span struct {
	Start         int
	End           int
	Title         string
	HeadingLevel  *int
	SubChunkIndex *int
	Strategy      string
}

// Planner decides chunk boundaries.
type Planner struct {
	config   model.ChunkingConfig
	estimate TokenEstimator
}

// NewPlanner creates a boundary planner. A nil estimator uses EstimateTokens.
// Non-positive budgets are rejected with ErrInvalidConfig.
func NewPlanner(config model.ChunkingConfig, estimate TokenEstimator) (*Planner, error) {
	if config.MaxTokens <= 0 || config.SubChunkTokens <= 0 || config.ChunkTokens <= 0 || config.CharsPerToken <= 0 {
		return nil, fmt.Errorf("%w: chunking budgets must be positive", ErrInvalidConfig)
	}
	if config.OverlapTokens < 0 || config.OverlapTokens >= config.ChunkTokens {
		return nil, fmt.Errorf("%w: overlap must be in [0, chunk_tokens)", ErrInvalidConfig)
	}
	if config.BoundaryWindow < 0 || config.BoundaryWindow > 1 {
		return nil, fmt.Errorf("%w: boundary window must be within [0,1]", ErrInvalidConfig)
	}
	if estimate == nil {
		estimate = EstimateTokens
	}

	return &Planner{
		config:   config,
		estimate: estimate,
	}, nil
}

// Plan returns the spans of a document in offset order. The spans cover the whole
// content, fixed-size spans overlap by the configured overlap.
// Documents with usable headings are split semantically, others by fixed windows.
func (p *Planner) Plan(doc *model.Document) []Span {
	if len(doc.Content) == 0 {
		return []Span{}
	}

	headings := doc.Headings()
	if len(headings) == 0 {
		return p.planFixed(doc)
	}
	return p.planSemantic(doc, headings)
}

func (p *Planner) planSemantic(doc *model.Document, headings []model.Heading) []Span {
	content := doc.Content
	spans := []Span{}

	if headings[0].Offset > 0 {
		spans = append(spans, p.splitOversized(content, Span{
			Start:    0,
			End:      headings[0].Offset,
			Title:    doc.Title,
			Strategy: StrategySemantic,
		})...)
	}

	covered := headings[0].Offset
	for i, h := range headings {
		if h.Offset < covered {
			continue
		}

		// The span ends at the next heading of the same or a shallower level.
		end := len(content)
		for _, next := range headings[i+1:] {
			if next.Offset > h.Offset && next.Level <= h.Level {
				end = next.Offset
				break
			}
		}

		spans = append(spans, p.splitOversized(content, Span{
			Start:        h.Offset,
			End:          end,
			Title:        h.Title,
			HeadingLevel: model.IntPtr(h.Level),
			Strategy:     StrategySemantic,
		})...)
		covered = end
	}

	return spans
}

// splitOversized splits a span exceeding MaxTokens into paragraph sub-chunks
// of at most SubChunkTokens. Sub-chunks keep the title and heading level.
func (p *Planner) splitOversized(content string, span Span) []Span {
	if p.estimate(content[span.Start:span.End]) <= p.config.MaxTokens {
		return []Span{span}
	}

	var ranges [][2]int
	current := [2]int{-1, -1}
	for _, para := range p.paragraphs(content, span.Start, span.End) {
		if current[0] >= 0 && p.estimate(content[current[0]:para[1]]) <= p.config.SubChunkTokens {
			current[1] = para[1]
			continue
		}
		if current[0] >= 0 {
			ranges = append(ranges, current)
			current = [2]int{-1, -1}
		}

		if p.estimate(content[para[0]:para[1]]) <= p.config.SubChunkTokens {
			current = para
			continue
		}
		ranges = append(ranges, p.hardSplit(content, para[0], para[1])...)
	}
	if current[0] >= 0 {
		ranges = append(ranges, current)
	}

	spans := make([]Span, 0, len(ranges))
	for i, r := range ranges {
		spans = append(spans, Span{
			Start:         r[0],
			End:           r[1],
			Title:         span.Title,
			HeadingLevel:  span.HeadingLevel,
			SubChunkIndex: model.IntPtr(i),
			Strategy:      span.Strategy,
		})
	}
	return spans
}

// paragraphs tiles [start, end) into paragraphs, each including its trailing blank lines.
func (p *Planner) paragraphs(content string, start int, end int) [][2]int {
	var paras [][2]int
	text := content[start:end]
	pos := 0
	for _, loc := range paragraphBreak.FindAllStringIndex(text, -1) {
		if loc[1] == len(text) {
			break
		}
		paras = append(paras, [2]int{start + pos, start + loc[1]})
		pos = loc[1]
	}
	return append(paras, [2]int{start + pos, end})
}

// hardSplit cuts [start, end) at the sub-chunk budget converted to bytes,
// never inside a UTF-8 sequence.
func (p *Planner) hardSplit(content string, start int, end int) [][2]int {
	budget := p.config.SubChunkTokens * p.config.CharsPerToken

	var ranges [][2]int
	for start < end {
		cut := min(runeBoundary(content, start, min(start+budget, end)), end)
		ranges = append(ranges, [2]int{start, cut})
		start = cut
	}
	return ranges
}

func (p *Planner) planFixed(doc *model.Document) []Span {
	content := doc.Content
	window := p.config.ChunkTokens * p.config.CharsPerToken
	overlap := p.config.OverlapTokens * p.config.CharsPerToken

	spans := []Span{}
	start := 0
	for start < len(content) {
		end := min(start+window, len(content))
		if end < len(content) {
			end = p.sentenceCut(content, start, runeBoundary(content, start, end))
		}

		spans = append(spans, Span{
			Start:    start,
			End:      end,
			Title:    doc.Title,
			Strategy: StrategyFixed,
		})
		if end >= len(content) {
			break
		}

		next := runeBoundary(content, start, end-overlap)
		if next <= start {
			next = runeBoundary(content, start, start+1)
		}
		start = next
	}

	return spans
}

// sentenceCut moves end back to the start of the last sentence beginning
// inside the final BoundaryWindow share of [start, end). Without one end is kept.
func (p *Planner) sentenceCut(content string, start int, end int) int {
	from := end - int(float64(end-start)*p.config.BoundaryWindow)
	if from <= start {
		return end
	}

	matches := sentenceBoundary.FindAllStringSubmatchIndex(content[from:end], -1)
	if len(matches) == 0 {
		return end
	}
	return from + matches[len(matches)-1][2]
}

// runeBoundary moves pos back to the start of a UTF-8 sequence, but never to or below start.
// If no boundary exists in (start, pos] it moves forward to the next one.
func runeBoundary(content string, start int, pos int) int {
	if pos >= len(content) {
		return len(content)
	}
	for p := pos; p > start; p-- {
		if utf8.RuneStart(content[p]) {
			return p
		}
	}
	for p := pos + 1; p < len(content); p++ {
		if utf8.RuneStart(content[p]) {
			return p
		}
	}
	return len(content)
}
