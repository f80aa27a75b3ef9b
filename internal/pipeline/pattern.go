package pipeline

import "bytes"

// Pattern accumulates match statistics for one literal search term.
//
// A Pattern belongs to exactly one consumer goroutine; it is not safe for
// concurrent use. Read it through Stats once the consumer has finished.
type Pattern struct {
	text   string
	needle []byte

	matches      int64
	matchedLines int64
	linesSeen    int64
}

// PatternStats is the final tally of one pattern.
type PatternStats struct {
	Pattern      string
	MatchedLines int64
	Matches      int64
	LinesSeen    int64
}

// NewPattern creates a pattern record for a literal search term.
func NewPattern(text string) (*Pattern, error) {
	if text == "" {
		return nil, ErrEmptyPattern
	}
	return &Pattern{text: text, needle: []byte(text)}, nil
}

func (p *Pattern) String() string {
	return p.text
}

// Scan counts the occurrences of the pattern in line and folds them into
// the statistics.
func (p *Pattern) Scan(line []byte) int {
	p.linesSeen++

	n := Count(line, p.needle)
	if n > 0 {
		p.matches += int64(n)
		p.matchedLines++
	}
	return n
}

// Stats returns a snapshot of the statistics.
func (p *Pattern) Stats() PatternStats {
	return PatternStats{
		Pattern:      p.text,
		MatchedLines: p.matchedLines,
		Matches:      p.matches,
		LinesSeen:    p.linesSeen,
	}
}

// Count returns the number of non-overlapping occurrences of pattern in
// text. After each hit the search resumes past the whole match, so "aa"
// occurs once in "aaa". An empty pattern never matches.
func Count(text, pattern []byte) int {
	if len(pattern) == 0 {
		return 0
	}
	return bytes.Count(text, pattern)
}
