// frame.go — Content-Length frame codec (C1). Encodes and parses
// "Content-Length: N\r\n\r\n<N utf8 bytes>" frames, byte-exact, with the
// deliberate header-substring tolerance described in spec design notes.
package wire

import (
	"bytes"
	"strconv"
	"strings"
)

// MaxFrameSize is the hard cap on a single frame's body, in UTF-8 bytes.
const MaxFrameSize = 1 << 20 // 1 MiB

// headerWord is the canonical header key frame parsing looks for.
const headerWord = "content-length"

// FrameTooLarge and EmptyBody are Encode failure reasons.
var (
	ErrFrameTooLarge = newFrameErr("frame exceeds 1 MiB cap")
	ErrEmptyBody     = newFrameErr("frame body is empty")
	ErrMalformed     = newFrameErr("malformed content-length header")
)

type frameErr struct{ msg string }

func newFrameErr(msg string) *frameErr { return &frameErr{msg} }
func (e *frameErr) Error() string      { return e.msg }

// Encode renders s as a Content-Length framed message. Byte length is
// computed over the UTF-8 encoding of s, never over its rune count.
func Encode(s string) ([]byte, error) {
	if len(s) == 0 {
		return nil, ErrEmptyBody
	}
	if len(s) > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}
	var buf bytes.Buffer
	buf.WriteString("Content-Length: ")
	buf.WriteString(strconv.Itoa(len(s)))
	buf.WriteString("\r\n\r\n")
	buf.WriteString(s)
	return buf.Bytes(), nil
}

// ParseResult is the outcome of scanning a byte slice for one frame header.
type ParseResult struct {
	ContentLength int
	HeaderEnd     int // offset of the first body byte
	Complete      bool
}

// Parse scans buf for a complete Content-Length header block and reports
// whether the full frame (header + body) is present yet. It never reads
// past the declared content length; extra trailing bytes belong to the
// next frame.
//
// Returns ErrMalformed when a header block is present but the declared
// length is missing, negative, or exceeds MaxFrameSize — callers must
// fault the connection (FrameError) on that outcome, per spec §7.
func Parse(buf []byte) (ParseResult, error) {
	sepLen, headerEnd := findHeaderSeparator(buf)
	if headerEnd < 0 {
		return ParseResult{}, nil
	}
	headerBlock := buf[:headerEnd-sepLen]

	contentLength, found, malformed := scanContentLength(headerBlock)
	if malformed {
		return ParseResult{}, ErrMalformed
	}
	if !found {
		return ParseResult{}, nil
	}

	complete := len(buf) >= headerEnd+contentLength
	return ParseResult{ContentLength: contentLength, HeaderEnd: headerEnd, Complete: complete}, nil
}

// Extract returns the frame's JSON payload and the unconsumed tail, given a
// ParseResult with Complete=true.
func Extract(buf []byte, pr ParseResult) (payload, tail []byte) {
	end := pr.HeaderEnd + pr.ContentLength
	return buf[pr.HeaderEnd:end], buf[end:]
}

// findHeaderSeparator locates the earliest "\r\n\r\n", tolerating the bare
// "\n\n" variant, and returns the separator's length and the offset just
// past it (i.e. the first body byte). Returns (0, -1) if absent.
func findHeaderSeparator(buf []byte) (sepLen, end int) {
	if idx := bytes.Index(buf, []byte("\r\n\r\n")); idx >= 0 {
		return 4, idx + 4
	}
	if idx := bytes.Index(buf, []byte("\n\n")); idx >= 0 {
		return 2, idx + 2
	}
	return 0, -1
}

// scanContentLength walks header lines looking for a key that matches the
// tolerant content-length rule (see design notes): the lowercased,
// trimmed key must be a non-empty trailing substring of "content-length"
// that itself contains "-length" — this recovers a fragmented header like
// "t-Length: 24" as if it read "Content-Length: 24" while still rejecting
// unrelated prefixes such as "Content" alone.
func scanContentLength(headerBlock []byte) (length int, found, malformed bool) {
	lines := splitHeaderLines(headerBlock)
	for _, line := range lines {
		idx := strings.IndexByte(line, ':')
		if idx <= 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(line[:idx]))
		if !isContentLengthKey(key) {
			continue
		}
		val := strings.TrimSpace(line[idx+1:])
		n, err := strconv.Atoi(val)
		if err != nil || n < 0 || n > MaxFrameSize {
			return 0, false, true
		}
		return n, true, false
	}
	return 0, false, false
}

func isContentLengthKey(key string) bool {
	if key == "" || !strings.Contains(key, "-length") {
		return false
	}
	return strings.HasSuffix(headerWord, key)
}

func splitHeaderLines(block []byte) []string {
	raw := strings.Split(string(block), "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		lines = append(lines, strings.TrimRight(l, "\r"))
	}
	return lines
}
