package uplink

import (
	"bytes"
	"strings"
)

// Framer reassembles newline-terminated protocol lines from arbitrary
// read chunks. Fragments accumulate in a queue; a chunk that arrives
// while the last queued fragment is still unterminated is glued onto it,
// so a line delivered across several reads comes out whole. Splitting is
// on LF only: a bare CR inside a line (or a CRLF broken across two
// reads) never produces a spurious boundary, so feeding a stream in N
// chunks yields exactly the lines a single-chunk feed would.
type Framer struct {
	queue []string
}

// Feed appends a read chunk to the queue, splitting on LF.
func (f *Framer) Feed(data []byte) {
	for len(data) > 0 {
		i := bytes.IndexByte(data, '\n')
		var frag string
		if i < 0 {
			frag = string(data)
			data = nil
		} else {
			frag = string(data[:i+1])
			data = data[i+1:]
		}

		if n := len(f.queue); n > 0 && !strings.HasSuffix(f.queue[n-1], "\n") {
			f.queue[n-1] += frag
		} else {
			f.queue = append(f.queue, frag)
		}
	}
}

// Ready reports whether the queue ends on a complete line. Parsing only
// happens when it does, so a queue ending mid-line is never consumed.
func (f *Framer) Ready() bool {
	n := len(f.queue)
	return n > 0 && strings.HasSuffix(f.queue[n-1], "\n")
}

// Drain removes and returns every complete line, leaving a trailing
// partial fragment (if any) queued for the next read.
func (f *Framer) Drain() []string {
	n := len(f.queue)
	if n == 0 {
		return nil
	}

	if !strings.HasSuffix(f.queue[n-1], "\n") {
		n--
	}

	lines := f.queue[:n]
	f.queue = append([]string(nil), f.queue[n:]...)
	return lines
}

// Clear drops everything queued. Used on connection teardown.
func (f *Framer) Clear() {
	f.queue = nil
}
