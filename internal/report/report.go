// Package report renders the outcome of a pipeline run.
//
// The text format keeps the classic three-part summary:
//
//	P1: file input.txt, bytes 24
//	P2: string cat, line 2, matches 2
//	P2: string ran, line 2, matches 2
//	P3: file output.txt, lines 3
//
// followed by "incomplete: <error>" when the run failed. The json, yaml and
// toml formats carry every counter of the run.
package report

import (
	"errors"
	"fmt"
	"io"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"

	"github.com/GriffinCanCode/fanmatch/internal/infrastructure/config"
	"github.com/GriffinCanCode/fanmatch/internal/pipeline"
)

// ErrUnknownFormat is returned by Render for an unsupported format.
var ErrUnknownFormat = errors.New("unknown report format")

// Document is the structured form of a report.
type Document struct {
	RunID        string    `json:"run_id" yaml:"run_id" toml:"run_id"`
	Input        string    `json:"input" yaml:"input" toml:"input"`
	Output       string    `json:"output" yaml:"output" toml:"output"`
	BytesRead    int64     `json:"bytes_read" yaml:"bytes_read" toml:"bytes_read"`
	LinesRead    int64     `json:"lines_read" yaml:"lines_read" toml:"lines_read"`
	LinesMatched int64     `json:"lines_matched" yaml:"lines_matched" toml:"lines_matched"`
	LinesWritten int64     `json:"lines_written" yaml:"lines_written" toml:"lines_written"`
	Patterns     []Pattern `json:"patterns" yaml:"patterns" toml:"patterns"`
	Duration     string    `json:"duration" yaml:"duration" toml:"duration"`
	Incomplete   bool      `json:"incomplete" yaml:"incomplete" toml:"incomplete"`
	Error        string    `json:"error,omitempty" yaml:"error,omitempty" toml:"error,omitempty"`
}

// Pattern is the per-pattern part of a Document.
type Pattern struct {
	Pattern      string `json:"pattern" yaml:"pattern" toml:"pattern"`
	MatchedLines int64  `json:"matched_lines" yaml:"matched_lines" toml:"matched_lines"`
	Matches      int64  `json:"matches" yaml:"matches" toml:"matches"`
}

// NewDocument converts a run report.
func NewDocument(rep *pipeline.Report) Document {
	doc := Document{
		RunID:        rep.RunID,
		Input:        rep.Input,
		Output:       rep.Output,
		BytesRead:    rep.BytesRead,
		LinesRead:    rep.LinesRead,
		LinesMatched: rep.LinesMatched,
		LinesWritten: rep.LinesWritten,
		Patterns:     make([]Pattern, 0, len(rep.Patterns)),
		Duration:     rep.Duration.String(),
		Incomplete:   rep.Incomplete,
		Error:        rep.Error,
	}
	for _, s := range rep.Patterns {
		doc.Patterns = append(doc.Patterns, Pattern{
			Pattern:      s.Pattern,
			MatchedLines: s.MatchedLines,
			Matches:      s.Matches,
		})
	}
	return doc
}

// Render writes rep to w in the given format.
func Render(w io.Writer, rep *pipeline.Report, format string) error {
	if rep == nil {
		return errors.New("report is nil")
	}

	switch format {
	case config.FormatText, "":
		return renderText(w, rep)
	case config.FormatJSON:
		data, err := sonic.MarshalIndent(NewDocument(rep), "", "  ")
		if err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
		_, err = w.Write(append(data, '\n'))
		return err
	case config.FormatYAML:
		data, err := yaml.Marshal(NewDocument(rep))
		if err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
		_, err = w.Write(data)
		return err
	case config.FormatTOML:
		data, err := toml.Marshal(NewDocument(rep))
		if err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
		_, err = w.Write(data)
		return err
	default:
		return fmt.Errorf("%w %q", ErrUnknownFormat, format)
	}
}

func renderText(w io.Writer, rep *pipeline.Report) error {
	ew := &errWriter{w: w}
	ew.printf("P1: file %s, bytes %d\n", rep.Input, rep.BytesRead)
	for _, s := range rep.Patterns {
		ew.printf("P2: string %s, line %d, matches %d\n", s.Pattern, s.MatchedLines, s.Matches)
	}
	ew.printf("P3: file %s, lines %d\n", rep.Output, rep.LinesWritten)
	if rep.Incomplete {
		ew.printf("incomplete: %s\n", rep.Error)
	}
	return ew.err
}

// errWriter keeps the first write error and skips later writes.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
