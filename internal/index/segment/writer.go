package segment

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/sequence-expander/internal/index"
)

// MagicBytes identifies a valid .spdx index snapshot.
const (
	MagicBytes    uint32 = 0x53504458
	FormatVersion uint32 = 2
	HeaderSize    int    = 64
	FooterSize    int    = 32
)

// SegmentHeader is the 64-byte header written at the start of every snapshot.
type SegmentHeader struct {
	Magic      uint32
	Version    uint32
	TermCount  uint32
	Side       uint32
	Tokens     uint32
	Sentences  uint32
	CreatedAt  int64
	DictOffset int64
	DictSize   int64
	PostOffset int64
	PostSize   int64
}

// DictEntry maps a word or tag to its positions block in the snapshot.
type DictEntry struct {
	Kind       index.Kind `json:"k"`
	Term       string     `json:"t"`
	PostOffset int64      `json:"o"`
	PostLen    int        `json:"l"`
	Count      int        `json:"n"`
}

// Key identifies the corpus file and the indexing settings a snapshot was
// built from.
type Key struct {
	Side       index.Side
	CorpusPath string
	Size       int64
	ModTime    time.Time
	Fenced     bool
	Separator  string
}

// Name derives the snapshot file name for k. Any change to the corpus size,
// modification time, fencing mode or token separator yields a new name, so a
// stale snapshot is never loaded.
func Name(k Key) string {
	abs, err := filepath.Abs(k.CorpusPath)
	if err != nil {
		abs = k.CorpusPath
	}
	raw := fmt.Sprintf("%s|%d|%d|%t|%q|v%d", abs, k.Size, k.ModTime.UnixNano(), k.Fenced, k.Separator, FormatVersion)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s-%x.spdx", k.Side, hash[:8])
}

// Writer serialises corpus indices into .spdx snapshot files.
type Writer struct {
	dataDir string
}

// NewWriter creates a Writer that writes snapshots into the given directory.
func NewWriter(dataDir string) *Writer {
	return &Writer{dataDir: dataDir}
}

// Write atomically creates the snapshot file name for idx. It writes to a
// .tmp file first and renames on success; a failed write leaves no file
// behind.
func (w *Writer) Write(name string, idx *index.CorpusIndex) (string, error) {
	entries := idx.Snapshot()
	termCount, err := headerCount("term", len(entries))
	if err != nil {
		return "", err
	}
	tokens, err := headerCount("token", idx.TokenCount())
	if err != nil {
		return "", err
	}
	sentences, err := headerCount("sentence", idx.SentenceCount())
	if err != nil {
		return "", err
	}
	finalPath := filepath.Join(w.dataDir, name)
	tmpPath := finalPath + ".tmp"

	if err := os.MkdirAll(w.dataDir, 0755); err != nil {
		return "", fmt.Errorf("creating snapshot directory: %w", err)
	}
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("creating temp snapshot file: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			f.Close()
			os.Remove(tmpPath)
		}
	}()
	header := SegmentHeader{
		Magic:     MagicBytes,
		Version:   FormatVersion,
		TermCount: termCount,
		Side:      uint32(idx.Side()),
		Tokens:    tokens,
		Sentences: sentences,
		CreatedAt: time.Now().Unix(),
	}
	headerBytes := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(headerBytes[0:4], header.Magic)
	binary.LittleEndian.PutUint32(headerBytes[4:8], header.Version)
	binary.LittleEndian.PutUint32(headerBytes[8:12], header.TermCount)
	binary.LittleEndian.PutUint32(headerBytes[12:16], header.Side)
	binary.LittleEndian.PutUint32(headerBytes[16:20], header.Tokens)
	binary.LittleEndian.PutUint32(headerBytes[20:24], header.Sentences)
	binary.LittleEndian.PutUint64(headerBytes[24:32], uint64(header.CreatedAt))

	if _, err := f.Write(headerBytes); err != nil {
		return "", fmt.Errorf("writing header: %w", err)
	}

	postingsStart := int64(HeaderSize)
	offset := int64(0)
	dict := make([]DictEntry, 0, len(entries))
	for _, entry := range entries {
		block := encodePositions(entry.Positions)
		if _, err := f.Write(block); err != nil {
			return "", fmt.Errorf("writing positions for %s %q: %w", entry.Kind, entry.Term, err)
		}
		dict = append(dict, DictEntry{
			Kind:       entry.Kind,
			Term:       entry.Term,
			PostOffset: offset,
			PostLen:    len(block),
			Count:      len(entry.Positions),
		})
		offset += int64(len(block))
	}

	postingsSize := offset
	dictStart := postingsStart + postingsSize
	dictData, err := json.Marshal(dict)
	if err != nil {
		return "", fmt.Errorf("marshaling dictionary: %w", err)
	}
	if _, err := f.Write(dictData); err != nil {
		return "", fmt.Errorf("writing dictionary: %w", err)
	}
	dictSize := int64(len(dictData))
	checksum := crc32.ChecksumIEEE(dictData)
	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], checksum)
	binary.LittleEndian.PutUint32(footer[4:8], header.TermCount)
	binary.LittleEndian.PutUint64(footer[8:16], uint64(dictStart))
	binary.LittleEndian.PutUint64(footer[16:24], uint64(dictSize))
	binary.LittleEndian.PutUint64(footer[24:32], uint64(postingsSize))
	if _, err := f.Write(footer); err != nil {
		return "", fmt.Errorf("writing footer: %w", err)
	}
	binary.LittleEndian.PutUint64(headerBytes[32:40], uint64(dictStart))
	binary.LittleEndian.PutUint64(headerBytes[40:48], uint64(dictSize))
	binary.LittleEndian.PutUint64(headerBytes[48:56], uint64(postingsStart))
	binary.LittleEndian.PutUint64(headerBytes[56:64], uint64(postingsSize))
	if _, err := f.WriteAt(headerBytes, 0); err != nil {
		return "", fmt.Errorf("updating header: %w", err)
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("syncing snapshot file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing snapshot file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", fmt.Errorf("renaming snapshot file: %w", err)
	}
	committed = true
	return finalPath, nil
}

// headerCount narrows a count to the 32-bit header field.
func headerCount(what string, n int) (uint32, error) {
	if n < 0 || uint64(n) > math.MaxUint32 {
		return 0, fmt.Errorf("%s count %d does not fit the snapshot header", what, n)
	}
	return uint32(n), nil
}

// encodePositions writes positions as uvarint deltas.
func encodePositions(positions index.PositionSet) []byte {
	buf := make([]byte, 0, len(positions)*2)
	prev := 0
	for _, pos := range positions {
		buf = binary.AppendUvarint(buf, uint64(pos-prev))
		prev = pos
	}
	return buf
}
