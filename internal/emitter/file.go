package emitter

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/sequence-expander/internal/expander"
	apperrors "github.com/Adithya-Monish-Kumar-K/sequence-expander/pkg/errors"
)

// File writes the two output files. The sentence file gets one line per ERR
// sentence: its forms separated by single spaces. The forms file gets one
// line per finalized sequence: "<form> <suspicion> <ok> <err>".
type File struct {
	sentences *bufio.Writer
	forms     *bufio.Writer
	closers   []io.Closer
}

// CreateFiles truncates or creates both output files.
func CreateFiles(sentencesPath, formsPath string) (*File, error) {
	sf, err := os.Create(sentencesPath)
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrIO, apperrors.ExitIO, "creating %s: %v", sentencesPath, err)
	}
	ff, err := os.Create(formsPath)
	if err != nil {
		sf.Close()
		return nil, apperrors.Newf(apperrors.ErrIO, apperrors.ExitIO, "creating %s: %v", formsPath, err)
	}
	f := NewFile(sf, ff)
	f.closers = []io.Closer{sf, ff}
	return f, nil
}

// NewFile writes to arbitrary writers. Close flushes but does not close them.
func NewFile(sentences, forms io.Writer) *File {
	return &File{
		sentences: bufio.NewWriterSize(sentences, 64*1024),
		forms:     bufio.NewWriterSize(forms, 64*1024),
	}
}

func (f *File) Emit(_ context.Context, res expander.SentenceResult) error {
	for _, e := range res.Expansions {
		if _, err := fmt.Fprintf(f.forms, "%s %f %d %d\n", e.Form, e.Suspicion, e.OKCount, e.ErrCount); err != nil {
			return apperrors.Newf(apperrors.ErrIO, apperrors.ExitIO, "writing forms: %v", err)
		}
	}
	if _, err := f.sentences.WriteString(strings.Join(res.Forms(), " ")); err != nil {
		return apperrors.Newf(apperrors.ErrIO, apperrors.ExitIO, "writing sentences: %v", err)
	}
	if err := f.sentences.WriteByte('\n'); err != nil {
		return apperrors.Newf(apperrors.ErrIO, apperrors.ExitIO, "writing sentences: %v", err)
	}
	return nil
}

func (f *File) Close(_ context.Context) error {
	var firstErr error
	for _, w := range []*bufio.Writer{f.sentences, f.forms} {
		if err := w.Flush(); err != nil && firstErr == nil {
			firstErr = apperrors.Newf(apperrors.ErrIO, apperrors.ExitIO, "flushing output: %v", err)
		}
	}
	for _, c := range f.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = apperrors.Newf(apperrors.ErrIO, apperrors.ExitIO, "closing output: %v", err)
		}
	}
	f.closers = nil
	return firstErr
}
