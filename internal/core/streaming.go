package core

// streaming.go provides io.Reader wrappers for the CSV ingestion path.
//
// ShotGrid exports arrive from a mix of platforms: Windows clients prepend a
// UTF-8 BOM, and spreadsheet round-trips occasionally corrupt multi-byte
// characters. These wrappers repair both while the upload streams in, so the
// buffered source handed to ParseSource is already clean:
//
//   - BOMSkipReader: drops a leading UTF-8 BOM (0xEF 0xBB 0xBF)
//   - SanitizedReader: replaces invalid UTF-8 bytes with '?' on the fly
//   - CountingReader: tracks bytes consumed for progress reporting
//
// WrapSource composes the three in the correct order.

import (
	"io"
	"unicode/utf8"
)

// BOMSkipReader wraps an io.Reader and removes a UTF-8 byte order mark from
// the start of the stream if one is present.
type BOMSkipReader struct {
	r       io.Reader
	checked bool
	rest    []byte // bytes consumed during detection still owed to the caller
	err     error  // deferred error from the detection read
	buf     [3]byte
}

// NewBOMSkipReader creates a BOM-skipping reader.
func NewBOMSkipReader(r io.Reader) *BOMSkipReader {
	return &BOMSkipReader{r: r}
}

// Read implements io.Reader. The first call reads ahead far enough to decide
// whether a BOM is present; any non-BOM bytes consumed while deciding are
// returned before the underlying stream resumes.
func (b *BOMSkipReader) Read(p []byte) (int, error) {
	if !b.checked {
		b.checked = true
		n, err := io.ReadFull(b.r, b.buf[:])
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		head := b.buf[:n]
		if n == 3 && head[0] == 0xEF && head[1] == 0xBB && head[2] == 0xBF {
			head = nil
		}
		b.rest = head
		b.err = err
	}
	if len(b.rest) > 0 {
		n := copy(p, b.rest)
		b.rest = b.rest[n:]
		return n, nil
	}
	if b.err != nil {
		return 0, b.err
	}
	return b.r.Read(p)
}

// SanitizedReader wraps an io.Reader and replaces invalid UTF-8 sequences
// with '?' as data flows through. A multi-byte rune split across two reads is
// held back until its remaining bytes arrive, so sanitization never corrupts
// a sequence that is merely incomplete.
type SanitizedReader struct {
	r    io.Reader
	tail []byte // possible prefix of a multi-byte rune held back from the last read
}

// NewSanitizedReader creates a sanitizing reader.
func NewSanitizedReader(r io.Reader) *SanitizedReader {
	return &SanitizedReader{
		r:    r,
		tail: make([]byte, 0, utf8.UTFMax),
	}
}

// Read implements io.Reader.
func (s *SanitizedReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	// Replay bytes held back from the previous read.
	off := copy(p, s.tail)
	if off < len(s.tail) {
		copy(s.tail, s.tail[off:])
		s.tail = s.tail[:len(s.tail)-off]
		return off, nil
	}
	s.tail = s.tail[:0]

	n, err := s.r.Read(p[off:])
	n += off
	if n == 0 {
		return 0, err
	}

	// Unless the stream has ended, an incomplete sequence at the end of this
	// chunk may complete in the next one. Hold it back rather than mangle it.
	if err != io.EOF {
		if k := incompleteTail(p[:n]); k > 0 {
			s.tail = append(s.tail, p[n-k:n]...)
			n -= k
		}
	}
	return sanitizeInPlace(p[:n]), err
}

// sanitizeInPlace rewrites data so every byte belongs to a valid UTF-8
// sequence, replacing invalid bytes with '?'. It returns the new length,
// which never exceeds the original.
func sanitizeInPlace(data []byte) int {
	if utf8.Valid(data) {
		return len(data)
	}
	w := 0
	for r := 0; r < len(data); {
		c, size := utf8.DecodeRune(data[r:])
		if c == utf8.RuneError && size == 1 {
			data[w] = '?'
			w++
			r++
			continue
		}
		copy(data[w:], data[r:r+size])
		w += size
		r += size
	}
	return w
}

// incompleteTail returns how many bytes at the end of data form the start of
// a multi-byte UTF-8 sequence that is not yet complete.
func incompleteTail(data []byte) int {
	// A sequence is at most 4 bytes, so only the last 3 can be a prefix.
	for i := 1; i <= 3 && i <= len(data); i++ {
		b := data[len(data)-i]
		if b >= 0xC0 {
			if seqLen(b) > i {
				return i
			}
			return 0
		}
		if b&0xC0 != 0x80 {
			return 0
		}
	}
	return 0
}

// seqLen returns the expected byte length of a UTF-8 sequence whose first
// byte is b, or 0 for a continuation byte.
func seqLen(b byte) int {
	switch {
	case b < 0x80:
		return 1
	case b < 0xC0:
		return 0
	case b < 0xE0:
		return 2
	case b < 0xF0:
		return 3
	default:
		return 4
	}
}

// CountingReader wraps an io.Reader and records how many bytes have been
// consumed. The count is read from the same goroutine that drives the reads,
// so no synchronization is needed.
type CountingReader struct {
	r     io.Reader
	read  int64
	total int64 // 0 when unknown
}

// NewCountingReader creates a counting reader. Pass 0 for total when the
// source size is unknown.
func NewCountingReader(r io.Reader, total int64) *CountingReader {
	return &CountingReader{r: r, total: total}
}

// Read implements io.Reader.
func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.read += int64(n)
	return n, err
}

// BytesRead returns the number of bytes consumed so far.
func (c *CountingReader) BytesRead() int64 { return c.read }

// Total returns the expected source size, or 0 when unknown.
func (c *CountingReader) Total() int64 { return c.total }

// Percent returns read progress as 0-100, or 0 when the total is unknown.
func (c *CountingReader) Percent() int {
	if c.total <= 0 {
		return 0
	}
	return int(c.read * 100 / c.total)
}

// WrapSource prepares an uploaded export for parsing. The counter sits
// against the raw source so progress reflects actual bytes received; BOM
// removal and UTF-8 sanitization are applied on top of it.
func WrapSource(r io.Reader, total int64) (io.Reader, *CountingReader) {
	counter := NewCountingReader(r, total)
	clean := NewSanitizedReader(NewBOMSkipReader(counter))
	return clean, counter
}
