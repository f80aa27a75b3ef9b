package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/GriffinCanCode/fanmatch/internal/infrastructure/logging"
	"github.com/GriffinCanCode/fanmatch/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/fanmatch/internal/shared/id"
	"github.com/GriffinCanCode/fanmatch/internal/stream"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// sliceSource yields lines from memory, then err or io.EOF.
type sliceSource struct {
	lines []string
	next  int
	err   error
}

func (s *sliceSource) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.next < len(s.lines) {
		line := s.lines[s.next]
		s.next++
		return []byte(line), nil
	}
	if s.err != nil {
		return nil, s.err
	}
	return nil, io.EOF
}

// blockingSource yields its lines and then waits for cancellation.
type blockingSource struct {
	sliceSource
	started chan struct{}
	once    sync.Once
}

func newBlockingSource(lines ...string) *blockingSource {
	return &blockingSource{sliceSource: sliceSource{lines: lines}, started: make(chan struct{})}
}

func (s *blockingSource) Next(ctx context.Context) ([]byte, error) {
	if s.next < len(s.lines) {
		return s.sliceSource.Next(ctx)
	}
	s.once.Do(func() { close(s.started) })
	<-ctx.Done()
	return nil, ctx.Err()
}

// memorySink keeps copies of the written lines.
type memorySink struct {
	mu        sync.Mutex
	lines     []string
	flushes   int
	failAfter int
	err       error
}

func (s *memorySink) WriteLine(line []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil && len(s.lines) >= s.failAfter {
		return s.err
	}
	s.lines = append(s.lines, string(line))
	return nil
}

func (s *memorySink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushes++
	return nil
}

func (s *memorySink) sorted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]string(nil), s.lines...)
	sort.Strings(out)
	return out
}

type mockSink struct {
	mock.Mock
}

func (m *mockSink) WriteLine(line []byte) error {
	return m.Called(string(line)).Error(0)
}

func (m *mockSink) Flush() error {
	return m.Called().Error(0)
}

func newTestPipeline(t *testing.T, patterns []string, cfg Config) *Pipeline {
	t.Helper()
	p, err := New(patterns, cfg)
	require.NoError(t, err)
	return p
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		cfg      Config
		wantErr  error
		errText  string
	}{
		{name: "defaults", patterns: []string{"cat"}, cfg: Config{}},
		{name: "no patterns", patterns: nil, cfg: DefaultConfig()},
		{name: "empty pattern", patterns: []string{"cat", ""}, wantErr: ErrEmptyPattern},
		{name: "negative capacity", patterns: []string{"cat"}, cfg: Config{QueueCapacity: -1}, errText: "queue capacity"},
		{name: "negative output capacity", patterns: []string{"cat"}, cfg: Config{OutputCapacity: -1}, errText: "output capacity"},
		{name: "negative stall timeout", patterns: []string{"cat"}, cfg: Config{StallTimeout: -time.Second}, errText: "stall timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.patterns, tt.cfg)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.errText != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errText)
			default:
				require.NoError(t, err)
				assert.Equal(t, DefaultQueueCapacity, p.cfg.QueueCapacity)
				assert.Equal(t, len(tt.patterns), len(p.Patterns()))
			}
		})
	}
}

func TestRunScenario(t *testing.T) {
	p := newTestPipeline(t, []string{"cat", "ran"}, DefaultConfig())
	src := &sliceSource{lines: []string{"cat sat", "dog ran", "cat ran"}}
	sink := &memorySink{}

	report, err := p.Run(context.Background(), src, sink)
	require.NoError(t, err)

	want := []PatternStats{
		{Pattern: "cat", MatchedLines: 2, Matches: 2, LinesSeen: 3},
		{Pattern: "ran", MatchedLines: 2, Matches: 2, LinesSeen: 3},
	}
	if diff := cmp.Diff(want, report.Patterns); diff != "" {
		t.Errorf("pattern stats mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"cat ran", "cat sat", "dog ran"}, sink.sorted())
	assert.Equal(t, 1, sink.flushes)

	assert.Equal(t, int64(3), report.LinesRead)
	assert.Equal(t, int64(3), report.LinesMatched)
	assert.Equal(t, int64(3), report.LinesWritten)
	assert.Equal(t, int64(len("cat sat\ndog ran\ncat ran\n")), report.BytesRead)
	assert.False(t, report.Incomplete)
	assert.Empty(t, report.Error)
	assert.NotEmpty(t, report.RunID)
}

func TestRunCountsRawInputBytes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		lines int64
	}{
		{name: "terminated", input: "abc\n", lines: 1},
		{name: "unterminated last line", input: "abc", lines: 1},
		{name: "crlf", input: "a\r\nb\r\n", lines: 2},
		{name: "empty", input: "", lines: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPipeline(t, []string{"a"}, DefaultConfig())
			src := stream.NewReaderSource(strings.NewReader(tt.input))

			report, err := p.Run(context.Background(), src, &memorySink{})
			require.NoError(t, err)
			assert.Equal(t, int64(len(tt.input)), report.BytesRead)
			assert.Equal(t, tt.lines, report.LinesRead)
		})
	}
}

func TestRunEmptyInput(t *testing.T) {
	p := newTestPipeline(t, []string{"cat", "ran"}, DefaultConfig())
	sink := &memorySink{}

	report, err := p.Run(context.Background(), &sliceSource{}, sink)
	require.NoError(t, err)

	for _, s := range report.Patterns {
		assert.Zero(t, s.MatchedLines, s.Pattern)
		assert.Zero(t, s.Matches, s.Pattern)
	}
	assert.Empty(t, sink.lines)
	assert.Equal(t, 1, sink.flushes)
}

func TestRunOverlappingPattern(t *testing.T) {
	p := newTestPipeline(t, []string{"aa"}, DefaultConfig())
	sink := &memorySink{}

	report, err := p.Run(context.Background(), &sliceSource{lines: []string{"aaa"}}, sink)
	require.NoError(t, err)

	require.Len(t, report.Patterns, 1)
	assert.Equal(t, int64(1), report.Patterns[0].Matches)
	assert.Equal(t, int64(1), report.Patterns[0].MatchedLines)
	assert.Equal(t, []string{"aaa"}, sink.lines)
}

func TestRunWithoutPatterns(t *testing.T) {
	p := newTestPipeline(t, nil, DefaultConfig())
	sink := &memorySink{}

	report, err := p.Run(context.Background(), &sliceSource{lines: []string{"a", "b"}}, sink)
	require.NoError(t, err)

	assert.Equal(t, int64(2), report.LinesRead)
	assert.Empty(t, report.Patterns)
	assert.Empty(t, sink.lines)
	assert.Equal(t, int64(2), p.Progress().LinesReleased)
}

func TestRunManyLinesTinyQueues(t *testing.T) {
	patterns := []string{"a", "bc", "x", "zz", "q"}
	words := []string{"abc", "xyz", "zzz", "bcbc", "qq", "none", "a", "", "zzzz"}

	var lines []string
	for i := 0; i < 3000; i++ {
		lines = append(lines, fmt.Sprintf("%s-%d-%s", words[i%len(words)], i, words[(i*7)%len(words)]))
	}

	want := make([]PatternStats, len(patterns))
	var wantLines []string
	for i, pattern := range patterns {
		want[i].Pattern = pattern
		want[i].LinesSeen = int64(len(lines))
	}
	for _, line := range lines {
		matched := false
		for i, pattern := range patterns {
			if n := strings.Count(line, pattern); n > 0 {
				want[i].Matches += int64(n)
				want[i].MatchedLines++
				matched = true
			}
		}
		if matched {
			wantLines = append(wantLines, line)
		}
	}
	sort.Strings(wantLines)

	p := newTestPipeline(t, patterns, Config{QueueCapacity: 1, OutputCapacity: 1})
	sink := &memorySink{}

	report, err := p.Run(context.Background(), &sliceSource{lines: lines}, sink)
	require.NoError(t, err)

	if diff := cmp.Diff(want, report.Patterns); diff != "" {
		t.Errorf("pattern stats mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantLines, sink.sorted()); diff != "" {
		t.Errorf("written lines mismatch (-want +got):\n%s", diff)
	}

	progress := p.Progress()
	assert.False(t, progress.Running)
	assert.Equal(t, int64(len(lines)), progress.LinesRead)
	assert.Equal(t, int64(len(lines)), progress.LinesReleased, "every buffer is released exactly once")
	assert.Equal(t, int64(len(lines)*len(patterns)), progress.Visits)
	assert.Equal(t, int64(len(wantLines)), progress.LinesWritten)
}

func TestRunIsRepeatable(t *testing.T) {
	p := newTestPipeline(t, []string{"cat", "ran"}, DefaultConfig())
	lines := []string{"cat sat", "dog ran", "cat ran", "bird"}

	first, err := p.Run(context.Background(), &sliceSource{lines: lines}, &memorySink{})
	require.NoError(t, err)
	second, err := p.Run(context.Background(), &sliceSource{lines: lines}, &memorySink{})
	require.NoError(t, err)

	assert.NotEqual(t, first.RunID, second.RunID)
	if diff := cmp.Diff(first.Patterns, second.Patterns); diff != "" {
		t.Errorf("second run differs (-first +second):\n%s", diff)
	}
	assert.Equal(t, first.LinesWritten, second.LinesWritten)
}

func TestRunRejectsNilEndpoints(t *testing.T) {
	p := newTestPipeline(t, []string{"cat"}, DefaultConfig())

	_, err := p.Run(context.Background(), nil, &memorySink{})
	assert.ErrorIs(t, err, ErrNilSource)

	_, err = p.Run(context.Background(), &sliceSource{}, nil)
	assert.ErrorIs(t, err, ErrNilSink)
}

func TestRunAlreadyRunning(t *testing.T) {
	p := newTestPipeline(t, []string{"cat"}, DefaultConfig())
	src := newBlockingSource("cat")
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := p.Run(ctx, src, &memorySink{})
		done <- err
	}()
	<-src.started

	assert.True(t, p.Progress().Running)
	_, err := p.Run(context.Background(), &sliceSource{}, &memorySink{})
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.False(t, p.Progress().Running)
}

func TestRunSourceError(t *testing.T) {
	boom := errors.New("disk on fire")
	p := newTestPipeline(t, []string{"cat"}, DefaultConfig())
	src := &sliceSource{lines: []string{"cat one", "dog", "cat two"}, err: boom}

	report, err := p.Run(context.Background(), src, &memorySink{})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, "producer", stageErr.Stage)

	require.NotNil(t, report)
	assert.True(t, report.Incomplete)
	assert.Contains(t, report.Error, "disk on fire")
	assert.Equal(t, int64(3), report.LinesRead)
}

func TestRunSinkError(t *testing.T) {
	full := errors.New("no space left")
	p := newTestPipeline(t, []string{"x"}, Config{QueueCapacity: 2})

	lines := make([]string, 500)
	for i := range lines {
		lines[i] = fmt.Sprintf("x%d", i)
	}
	sink := &memorySink{failAfter: 1, err: full}

	report, err := p.Run(context.Background(), &sliceSource{lines: lines}, sink)
	require.Error(t, err)
	assert.ErrorIs(t, err, full)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, "collector", stageErr.Stage)

	assert.Contains(t, err.Error(), "line 2:")

	assert.True(t, report.Incomplete)
	assert.Equal(t, int64(1), report.LinesWritten)
	assert.Len(t, sink.lines, 1)
}

func TestRunFlushError(t *testing.T) {
	flushErr := errors.New("flush failed")
	sink := &mockSink{}
	sink.On("WriteLine", "cat").Return(nil).Once()
	sink.On("Flush").Return(flushErr).Once()

	p := newTestPipeline(t, []string{"cat"}, DefaultConfig())
	report, err := p.Run(context.Background(), &sliceSource{lines: []string{"cat", "dog"}}, sink)

	assert.ErrorIs(t, err, flushErr)
	assert.True(t, report.Incomplete)
	sink.AssertExpectations(t)
}

func TestRunCancelled(t *testing.T) {
	p := newTestPipeline(t, []string{"cat"}, DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := p.Run(ctx, &sliceSource{lines: []string{"cat"}}, &memorySink{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, report.Incomplete)
}

func TestRunStallWatchdog(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := &logging.Logger{Logger: zap.New(core)}

	p := newTestPipeline(t, []string{"cat"}, Config{StallTimeout: 40 * time.Millisecond}).WithLogger(logger)
	src := newBlockingSource("cat sat", "dog")

	report, err := p.Run(context.Background(), src, &memorySink{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStalled)
	assert.Contains(t, err.Error(), "output=")

	assert.True(t, report.Incomplete)
	assert.Equal(t, int64(2), report.LinesRead)
	assert.Equal(t, 1, logs.FilterMessage("Pipeline stalled").Len())
}

func TestRunLogsStageTraces(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := &logging.Logger{Logger: zap.New(core)}

	p := newTestPipeline(t, []string{"cat", "ran"}, DefaultConfig()).WithLogger(logger)
	report, err := p.Run(context.Background(), &sliceSource{lines: []string{"cat"}}, &memorySink{})
	require.NoError(t, err)

	started := logs.FilterMessage("Stage started").AllUntimed()
	require.Len(t, started, 4)

	stages := make([]string, 0, len(started))
	for _, entry := range started {
		fields := entry.ContextMap()
		stages = append(stages, fields["stage"].(string))
		assert.Contains(t, fields["trace"], "[trace:"+report.RunID+" span:span_")
	}
	sort.Strings(stages)
	assert.Equal(t, []string{"collector", "consumer[0]", "consumer[1]", "producer"}, stages)
}

func TestDepthsMarksClosedQueues(t *testing.T) {
	p := newTestPipeline(t, []string{"cat", "ran"}, Config{QueueCapacity: 4})
	r := newRun(p, id.RunID("run_test"))

	require.NoError(t, r.inputs[0].Enqueue(context.Background(), nil))
	r.inputs[1].Close()

	assert.Equal(t, "cat=1/4 ran=0/4 closed output=0/8", r.depths())
}

func TestRunRecordsMetrics(t *testing.T) {
	metrics := monitoring.NewMetrics()
	p := newTestPipeline(t, []string{"cat", "ran"}, DefaultConfig()).WithMetrics(metrics)

	_, err := p.Run(context.Background(), &sliceSource{lines: []string{"cat sat", "dog ran", "cat ran", "bird"}}, &memorySink{})
	require.NoError(t, err)

	assert.Equal(t, float64(4), testutil.ToFloat64(metrics.LinesRead))
	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.LinesMatched))
	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.LinesWritten))
	assert.Equal(t, float64(4), testutil.ToFloat64(metrics.LinesReleased))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.PatternMatches.WithLabelValues("cat")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Runs.WithLabelValues(monitoring.StatusSuccess)))
}
