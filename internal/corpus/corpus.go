// Package corpus reads tagged corpora: one sentence per line, tokens
// separated by whitespace, each token written as word<SEP>tag and split at
// the last occurrence of the separator.
package corpus

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/edsrzf/mmap-go"

	apperrors "github.com/Adithya-Monish-Kumar-K/sequence-expander/pkg/errors"
)

// DefaultSeparator splits word from tag.
const DefaultSeparator = "/"

const maxLineSize = 64 * 1024 * 1024

// Token is a single (word, tag) pair.
type Token struct {
	Word string
	Tag  string
}

// Sentence is one corpus line. Line is 1-based.
type Sentence struct {
	Line   int
	Tokens []Token
}

// Words returns the word of every token, in order.
func (s Sentence) Words() []string {
	words := make([]string, len(s.Tokens))
	for i, t := range s.Tokens {
		words[i] = t.Word
	}
	return words
}

// Source yields sentences in reading order.
type Source interface {
	Scan() bool
	Sentence() Sentence
	Err() error
}

// SplitToken splits raw at the last occurrence of sep. It reports false when
// sep does not occur in raw.
func SplitToken(raw string, sep string) (Token, bool) {
	idx := strings.LastIndex(raw, sep)
	if idx < 0 {
		return Token{}, false
	}
	return Token{Word: raw[:idx], Tag: raw[idx+len(sep):]}, true
}

// ParseLine splits a corpus line into tokens. On a malformed token it returns
// the offending raw token and false.
func ParseLine(line string, sep string) ([]Token, string, bool) {
	fields := strings.Fields(line)
	tokens := make([]Token, 0, len(fields))
	for _, field := range fields {
		tok, ok := SplitToken(field, sep)
		if !ok {
			return nil, field, false
		}
		tokens = append(tokens, tok)
	}
	return tokens, "", true
}

// Scanner reads sentences line by line from an io.Reader.
type Scanner struct {
	sc   *bufio.Scanner
	path string
	sep  string
	line int
	cur  Sentence
	err  error
}

// NewScanner returns a Scanner over r. path is only used in error messages.
func NewScanner(r io.Reader, path string, sep string) *Scanner {
	if sep == "" {
		sep = DefaultSeparator
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Scanner{sc: sc, path: path, sep: sep}
}

// Scan advances to the next sentence. Empty lines yield empty sentences so
// that line numbering, and the sentence output, stay aligned with the input.
func (s *Scanner) Scan() bool {
	if s.err != nil {
		return false
	}
	if !s.sc.Scan() {
		if err := s.sc.Err(); err != nil {
			s.err = apperrors.Newf(apperrors.ErrIO, apperrors.ExitIO, "reading %s: %v", s.path, err)
		}
		return false
	}
	s.line++
	tokens, bad, ok := ParseLine(s.sc.Text(), s.sep)
	if !ok {
		s.err = apperrors.Malformed(s.path, s.line, bad)
		return false
	}
	s.cur = Sentence{Line: s.line, Tokens: tokens}
	return true
}

// Sentence returns the sentence read by the last successful Scan.
func (s *Scanner) Sentence() Sentence {
	return s.cur
}

// Err returns the first malformed-input or read error.
func (s *Scanner) Err() error {
	return s.err
}

// File is a read-only memory-mapped corpus file.
type File struct {
	path string
	f    *os.File
	data mmap.MMap
	size int64
}

// Open maps the corpus at path into memory.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrIO, apperrors.ExitIO, "opening corpus %s: %v", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, apperrors.Newf(apperrors.ErrIO, apperrors.ExitIO, "stat corpus %s: %v", path, err)
	}
	cf := &File{path: path, f: f, size: info.Size()}
	if info.Size() == 0 {
		return cf, nil
	}
	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, apperrors.Newf(apperrors.ErrIO, apperrors.ExitIO, "mapping corpus %s: %v", path, err)
	}
	cf.data = data
	return cf, nil
}

// Path returns the file path.
func (f *File) Path() string {
	return f.path
}

// Size returns the file size in bytes.
func (f *File) Size() int64 {
	return f.size
}

// Sentences returns a fresh Scanner from the start of the file. It can be
// called repeatedly; the ERR corpus is read once for indexing and once more
// for expansion.
func (f *File) Sentences(sep string) *Scanner {
	return NewScanner(bytes.NewReader(f.data), f.path, sep)
}

// Close unmaps and closes the file.
func (f *File) Close() error {
	var firstErr error
	if f.data != nil {
		if err := f.data.Unmap(); err != nil {
			firstErr = fmt.Errorf("unmapping %s: %w", f.path, err)
		}
		f.data = nil
	}
	if err := f.f.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing %s: %w", f.path, err)
	}
	return firstErr
}

// ReadAll collects every sentence of src.
func ReadAll(src Source) ([]Sentence, error) {
	var sentences []Sentence
	for src.Scan() {
		sentences = append(sentences, src.Sentence())
	}
	if err := src.Err(); err != nil {
		return nil, err
	}
	return sentences, nil
}
