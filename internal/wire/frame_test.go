package wire

import (
	"strconv"
	"strings"
	"testing"
)

func TestEncodeParseRoundTrip(t *testing.T) {
	cases := []string{
		"a",
		`{"jsonrpc":"2.0","id":1,"method":"ping"}`,
		strings.Repeat("x", 10000),
		"こんにちは世界", // multi-byte UTF-8
		"🚀🔥💀 emoji soup",
	}
	for _, s := range cases {
		encoded, err := Encode(s)
		if err != nil {
			t.Fatalf("Encode(%q): %v", s, err)
		}
		pr, err := Parse(encoded)
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if !pr.Complete {
			t.Fatalf("expected complete frame for %q", s)
		}
		payload, tail := Extract(encoded, pr)
		if string(payload) != s {
			t.Errorf("round trip mismatch: got %q want %q", payload, s)
		}
		if len(tail) != 0 {
			t.Errorf("expected empty tail, got %q", tail)
		}
		if pr.ContentLength != len(s) {
			t.Errorf("content length should be byte length, got %d want %d", pr.ContentLength, len(s))
		}
	}
}

func TestEncodeRejectsEmptyAndOversize(t *testing.T) {
	if _, err := Encode(""); err != ErrEmptyBody {
		t.Errorf("expected ErrEmptyBody, got %v", err)
	}
	if _, err := Encode(strings.Repeat("x", MaxFrameSize+1)); err != ErrFrameTooLarge {
		t.Errorf("expected ErrFrameTooLarge, got %v", err)
	}
}

func TestFragmentationTolerance(t *testing.T) {
	s := `{"jsonrpc":"2.0","id":42,"method":"ping","params":{"Message":"hi"}}`
	encoded, err := Encode(s)
	if err != nil {
		t.Fatal(err)
	}
	for _, chunkSize := range []int{1, 3, 5, 10, 100} {
		buf := NewReassemblyBuffer()
		var got [][]byte
		for i := 0; i < len(encoded); i += chunkSize {
			end := i + chunkSize
			if end > len(encoded) {
				end = len(encoded)
			}
			if err := buf.Append(encoded[i:end]); err != nil {
				t.Fatalf("chunk size %d: append: %v", chunkSize, err)
			}
			frames, err := buf.ExtractAll()
			if err != nil {
				t.Fatalf("chunk size %d: extract: %v", chunkSize, err)
			}
			got = append(got, frames...)
		}
		if len(got) != 1 || string(got[0]) != s {
			t.Errorf("chunk size %d: got %v, want [%q]", chunkSize, got, s)
		}
	}
}

func TestPartialHeaderRecovery(t *testing.T) {
	full := "Content-Length"
	for i := 0; i < len(full); i++ {
		suffix := full[i:]
		if !strings.Contains(strings.ToLower(suffix), "-length") {
			continue
		}
		body := `{"id":2}`
		data := []byte(suffix + ": " + strconv.Itoa(len(body)) + "\r\n\r\n" + body)
		pr, err := Parse(data)
		if err != nil {
			t.Fatalf("suffix %q: unexpected error: %v", suffix, err)
		}
		if !pr.Complete || pr.ContentLength != len(body) {
			t.Errorf("suffix %q: expected complete frame of length %d, got %+v", suffix, len(body), pr)
		}
	}
}

func TestPurePrefixDoesNotMatch(t *testing.T) {
	data := []byte("Content: 8\r\n\r\n{\"id\":2}")
	pr, err := Parse(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pr.Complete {
		t.Error("pure prefix lacking '-length' must not match")
	}
}

func TestScenarioS2FragmentedHeader(t *testing.T) {
	buf := NewReassemblyBuffer()
	if err := buf.Append([]byte("t-Length: 24\r\n\r\n")); err != nil {
		t.Fatal(err)
	}
	frames, err := buf.ExtractAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 0 {
		t.Fatalf("expected no frames before body arrives, got %v", frames)
	}
	body := `{"jsonrpc":"2.0","id":2}`
	if len(body) != 24 {
		t.Fatalf("test fixture body must be 24 bytes, got %d", len(body))
	}
	if err := buf.Append([]byte(body)); err != nil {
		t.Fatal(err)
	}
	frames, err = buf.ExtractAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 1 || string(frames[0]) != body {
		t.Errorf("got %v, want [%q]", frames, body)
	}
}

func TestScenarioS3TwoFramesOneChunk(t *testing.T) {
	a, _ := Encode(`{"id":1}`)
	b, _ := Encode(`{"id":2}`)
	buf := NewReassemblyBuffer()
	if err := buf.Append(append(append([]byte{}, a...), b...)); err != nil {
		t.Fatal(err)
	}
	frames, err := buf.ExtractAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 2 || string(frames[0]) != `{"id":1}` || string(frames[1]) != `{"id":2}` {
		t.Errorf("got %v", frames)
	}
	if buf.Len() != 0 {
		t.Errorf("expected empty buffer, got %d bytes", buf.Len())
	}
}

func TestOverflowBound(t *testing.T) {
	buf := NewReassemblyBuffer()
	if err := buf.Append(make([]byte, MaxFrameSize)); err != nil {
		t.Fatalf("filling to exactly the cap should succeed: %v", err)
	}
	before := buf.Len()
	if err := buf.Append([]byte("x")); err != ErrBufferOverflow {
		t.Fatalf("expected ErrBufferOverflow, got %v", err)
	}
	if buf.Len() != before {
		t.Errorf("buffer must not mutate on overflow: had %d, now %d", before, buf.Len())
	}
}

func TestValidateAndCleanupDiscardsLineNoise(t *testing.T) {
	buf := NewReassemblyBuffer()
	noise := make([]byte, MaxFrameSize*85/100)
	for i := range noise {
		noise[i] = 'z'
	}
	if err := buf.Append(noise); err != nil {
		t.Fatal(err)
	}
	if ok := buf.ValidateAndCleanup(); ok {
		t.Error("expected line-noise buffer to be discarded")
	}
	if buf.Len() != 0 {
		t.Errorf("expected buffer cleared, got %d bytes", buf.Len())
	}
}

func TestValidateAndCleanupKeepsPendingContentLength(t *testing.T) {
	buf := NewReassemblyBuffer()
	header := []byte("Content-Length: 999999999\r\n\r\n")
	padding := make([]byte, MaxFrameSize*85/100)
	if err := buf.Append(append(header, padding...)); err != nil {
		t.Fatal(err)
	}
	if ok := buf.ValidateAndCleanup(); !ok {
		t.Error("buffer containing content-length substring must not be discarded")
	}
}

