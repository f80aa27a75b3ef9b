package stream

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Stdio names standard input for Open and standard output for Create.
const Stdio = "-"

// sniffLen is how much of a file is inspected to detect compression.
const sniffLen = 3072

// ErrNoMatch is returned by Open when a glob or directory yields no
// regular file.
var ErrNoMatch = errors.New("no files match")

// FileSource reads the lines of one or more files in turn.
type FileSource struct {
	name  string
	paths []string

	current *ReaderSource
	closer  io.Closer
	size    int
}

// Open returns a source for path. "-" reads standard input. A directory
// is walked recursively. A path that does not exist and contains glob
// syntax is expanded with doublestar ("**" crosses directories). Multiple
// files are read in lexical order of their paths.
// Files are opened lazily, one at a time; gzip and zstd content is
// decompressed transparently.
func Open(path string) (*FileSource, error) {
	if path == Stdio {
		return &FileSource{name: path, paths: []string{path}}, nil
	}

	info, err := os.Stat(path)
	switch {
	case err == nil && info.IsDir():
		files, err := walk(path)
		if err != nil {
			return nil, err
		}
		return newFileSource(path, files)
	case err == nil:
		return &FileSource{name: path, paths: []string{path}}, nil
	case !hasGlobMeta(path):
		return nil, fmt.Errorf("open input: %w", err)
	}

	matches, err := doublestar.FilepathGlob(path)
	if err != nil {
		return nil, fmt.Errorf("expand %q: %w", path, err)
	}

	files := matches[:0]
	for _, match := range matches {
		if info, err := os.Stat(match); err == nil && info.Mode().IsRegular() {
			files = append(files, match)
		}
	}
	return newFileSource(path, files)
}

func newFileSource(name string, files []string) (*FileSource, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("%w %q", ErrNoMatch, name)
	}
	sort.Strings(files)
	return &FileSource{name: name, paths: files}, nil
}

// walk lists the regular files below root. Symbolic links are not followed.
func walk(root string) ([]string, error) {
	var (
		mu    sync.Mutex
		files []string
	)
	conf := fastwalk.Config{Follow: false}

	err := fastwalk.Walk(&conf, root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		mu.Lock()
		files = append(files, p)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return files, nil
}

// Name returns the path Open was called with.
func (s *FileSource) Name() string {
	return s.name
}

// Paths returns the files the source reads, in order.
func (s *FileSource) Paths() []string {
	return append([]string(nil), s.paths...)
}

// Next returns the next line across all files. Every file ends its last
// line, whether or not it is newline-terminated.
func (s *FileSource) Next(ctx context.Context) ([]byte, error) {
	for {
		if s.current == nil {
			if len(s.paths) == 0 {
				return nil, io.EOF
			}
			if err := s.openNext(); err != nil {
				return nil, err
			}
		}

		line, err := s.current.Next(ctx)
		if errors.Is(err, io.EOF) {
			if err := s.closeCurrent(); err != nil {
				return nil, err
			}
			continue
		}
		s.size = s.current.Consumed()
		return line, err
	}
}

// Consumed returns the size of the last line in its file, terminator
// included. Compressed files count decompressed bytes.
func (s *FileSource) Consumed() int {
	return s.size
}

// Close releases the file being read, if any.
func (s *FileSource) Close() error {
	s.paths = nil
	return s.closeCurrent()
}

func (s *FileSource) openNext() error {
	path := s.paths[0]
	s.paths = s.paths[1:]

	if path == Stdio {
		s.current = NewReaderSource(os.Stdin)
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	r, closer, err := decompress(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("open input %s: %w", path, err)
	}

	s.current = NewReaderSource(r)
	s.closer = closer
	return nil
}

func (s *FileSource) closeCurrent() error {
	s.current = nil
	if s.closer == nil {
		return nil
	}
	err := s.closer.Close()
	s.closer = nil
	return err
}

// decompress sniffs f and wraps it in a gzip or zstd reader when needed.
// The returned closer also closes f.
func decompress(f *os.File) (io.Reader, io.Closer, error) {
	br := bufio.NewReaderSize(f, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, nil, err
	}

	mtype := mimetype.Detect(head)
	switch {
	case mtype.Is("application/gzip"):
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, nil, err
		}
		return gz, closers{gz, f}, nil
	case mtype.Is("application/zstd"):
		dec, err := zstd.NewReader(br)
		if err != nil {
			return nil, nil, err
		}
		rc := dec.IOReadCloser()
		return rc, closers{rc, f}, nil
	default:
		return br, f, nil
	}
}

func hasGlobMeta(path string) bool {
	return strings.ContainsAny(path, "*?[{")
}

// closers closes each element in order and returns the first error.
type closers []io.Closer

func (cs closers) Close() error {
	var first error
	for _, c := range cs {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
