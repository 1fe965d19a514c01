package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/sequence-expander/internal/index"
)

type Reader struct {
	file     *os.File
	filePath string
	header   SegmentHeader
	dict     []DictEntry
	postBase int64
}

func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot file: %w", err)
	}
	headerBytes := make([]byte, HeaderSize)
	if _, err := f.ReadAt(headerBytes, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("reading snapshot header: %w", err)
	}
	magic := binary.LittleEndian.Uint32(headerBytes[0:4])
	if magic != MagicBytes {
		f.Close()
		return nil, fmt.Errorf("invalid snapshot file: bad magic bytes %x", magic)
	}
	header := SegmentHeader{
		Magic:      magic,
		Version:    binary.LittleEndian.Uint32(headerBytes[4:8]),
		TermCount:  binary.LittleEndian.Uint32(headerBytes[8:12]),
		Side:       binary.LittleEndian.Uint32(headerBytes[12:16]),
		Tokens:     binary.LittleEndian.Uint32(headerBytes[16:20]),
		Sentences:  binary.LittleEndian.Uint32(headerBytes[20:24]),
		CreatedAt:  int64(binary.LittleEndian.Uint64(headerBytes[24:32])),
		DictOffset: int64(binary.LittleEndian.Uint64(headerBytes[32:40])),
		DictSize:   int64(binary.LittleEndian.Uint64(headerBytes[40:48])),
		PostOffset: int64(binary.LittleEndian.Uint64(headerBytes[48:56])),
		PostSize:   int64(binary.LittleEndian.Uint64(headerBytes[56:64])),
	}
	if header.Version != FormatVersion {
		f.Close()
		return nil, fmt.Errorf("unsupported snapshot version %d", header.Version)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat snapshot file: %w", err)
	}
	if err := checkLayout(header, info.Size()); err != nil {
		f.Close()
		return nil, fmt.Errorf("invalid snapshot file %s: %w", path, err)
	}
	dictBytes := make([]byte, header.DictSize)
	if _, err := f.ReadAt(dictBytes, header.DictOffset); err != nil {
		f.Close()
		return nil, fmt.Errorf("reading dictionary: %w", err)
	}
	footer := make([]byte, FooterSize)
	if _, err := f.ReadAt(footer, header.DictOffset+header.DictSize); err != nil {
		f.Close()
		return nil, fmt.Errorf("reading footer: %w", err)
	}
	if sum := binary.LittleEndian.Uint32(footer[0:4]); sum != crc32.ChecksumIEEE(dictBytes) {
		f.Close()
		return nil, fmt.Errorf("dictionary checksum mismatch in %s", path)
	}
	var dict []DictEntry
	if err := json.Unmarshal(dictBytes, &dict); err != nil {
		f.Close()
		return nil, fmt.Errorf("parsing dictionary: %w", err)
	}
	return &Reader{
		file:     f,
		filePath: path,
		header:   header,
		dict:     dict,
		postBase: header.PostOffset,
	}, nil
}

// Lookup returns the positions of a single word or tag without loading the
// rest of the snapshot.
func (r *Reader) Lookup(kind index.Kind, term string) (index.PositionSet, error) {
	idx := sort.Search(len(r.dict), func(i int) bool {
		if r.dict[i].Kind != kind {
			return r.dict[i].Kind > kind
		}
		return r.dict[i].Term >= term
	})
	if idx >= len(r.dict) || r.dict[idx].Kind != kind || r.dict[idx].Term != term {
		return nil, nil
	}
	return r.readPositions(r.dict[idx])
}

// Load reads every entry back into a CorpusIndex.
func (r *Reader) Load() (*index.CorpusIndex, error) {
	block := make([]byte, r.header.PostSize)
	if _, err := r.file.ReadAt(block, r.postBase); err != nil {
		return nil, fmt.Errorf("reading positions: %w", err)
	}
	entries := make([]index.TermEntry, 0, len(r.dict))
	for _, d := range r.dict {
		if err := checkRange("positions", d.PostOffset, int64(d.PostLen), int64(len(block))); err != nil {
			return nil, fmt.Errorf("%s %q: %w", d.Kind, d.Term, err)
		}
		positions, err := decodePositions(block[d.PostOffset:d.PostOffset+int64(d.PostLen)], d.Count)
		if err != nil {
			return nil, fmt.Errorf("decoding %s %q: %w", d.Kind, d.Term, err)
		}
		entries = append(entries, index.TermEntry{Kind: d.Kind, Term: d.Term, Positions: positions})
	}
	return index.FromSnapshot(index.Side(r.header.Side), entries, int(r.header.Tokens), int(r.header.Sentences)), nil
}

func (r *Reader) readPositions(d DictEntry) (index.PositionSet, error) {
	if err := checkRange("positions", d.PostOffset, int64(d.PostLen), r.header.PostSize); err != nil {
		return nil, fmt.Errorf("%s %q: %w", d.Kind, d.Term, err)
	}
	block := make([]byte, d.PostLen)
	if _, err := r.file.ReadAt(block, r.postBase+d.PostOffset); err != nil {
		return nil, fmt.Errorf("reading positions: %w", err)
	}
	return decodePositions(block, d.Count)
}

func (r *Reader) Terms() int {
	return len(r.dict)
}

func (r *Reader) Side() index.Side {
	return index.Side(r.header.Side)
}

func (r *Reader) Close() error {
	return r.file.Close()
}

// checkLayout verifies that the blocks named by the header lie inside a file
// of the given size: header, positions, dictionary, footer.
func checkLayout(h SegmentHeader, size int64) error {
	body := size - int64(FooterSize)
	if body < int64(HeaderSize) {
		return fmt.Errorf("file too short: %d bytes", size)
	}
	if err := checkRange("dictionary", h.DictOffset, h.DictSize, body); err != nil {
		return err
	}
	if h.DictOffset+h.DictSize != body {
		return fmt.Errorf("dictionary does not end at the footer")
	}
	if h.PostOffset < int64(HeaderSize) {
		return fmt.Errorf("positions start at %d, inside the header", h.PostOffset)
	}
	return checkRange("positions", h.PostOffset, h.PostSize, h.DictOffset)
}

// checkRange reports whether [off, off+n) fits in [0, limit).
func checkRange(what string, off, n, limit int64) error {
	if off < 0 || n < 0 || off > limit || n > limit-off {
		return fmt.Errorf("%s block [%d, +%d) out of bounds (limit %d)", what, off, n, limit)
	}
	return nil
}

func decodePositions(block []byte, count int) (index.PositionSet, error) {
	// Every position takes at least one byte.
	if count < 0 || count > len(block) {
		return nil, fmt.Errorf("count %d does not match a %d-byte block", count, len(block))
	}
	positions := make(index.PositionSet, 0, count)
	prev := 0
	for len(block) > 0 {
		delta, n := binary.Uvarint(block)
		if n <= 0 {
			return nil, fmt.Errorf("corrupt varint")
		}
		prev += int(delta)
		positions = append(positions, prev)
		block = block[n:]
	}
	if len(positions) != count {
		return nil, fmt.Errorf("expected %d positions, decoded %d", count, len(positions))
	}
	return positions, nil
}
