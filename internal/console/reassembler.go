package console

import "strings"

// Reassembler turns a byte stream with arbitrary chunk boundaries into
// discrete logical lines. A chunk may contain zero, one, or many line
// terminators; an unterminated tail is held back and prepended to the
// next chunk. It never errors: malformed input degrades to a best-effort
// line on Flush.
type Reassembler struct {
	tail strings.Builder
}

// Consume appends chunk to the retained tail and returns every complete
// line it can now produce, in order. Lines are terminated by '\n'; a
// trailing '\r' (CRLF output from Windows-hosted servers) is stripped.
func (r *Reassembler) Consume(chunk []byte) []string {
	if len(chunk) == 0 {
		return nil
	}
	r.tail.Write(chunk)

	data := r.tail.String()
	last := strings.LastIndexByte(data, '\n')
	if last < 0 {
		return nil
	}

	r.tail.Reset()
	r.tail.WriteString(data[last+1:])

	lines := strings.Split(data[:last], "\n")
	for i, ln := range lines {
		lines[i] = strings.TrimSuffix(ln, "\r")
	}
	return lines
}

// Flush returns the retained remainder as a final line, if any. Called
// when the underlying stream ends without a trailing terminator.
func (r *Reassembler) Flush() (string, bool) {
	if r.tail.Len() == 0 {
		return "", false
	}
	line := strings.TrimSuffix(r.tail.String(), "\r")
	r.tail.Reset()
	return line, true
}
