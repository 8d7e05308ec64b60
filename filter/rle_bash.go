package filter

import "golang.org/x/text/transform"

// Monster Bash RLE. A 0x90 byte triggers a run: the decoder reads
// 0x90 then a count, repeating the previously emitted byte so the
// total run is count bytes. A count of zero encodes a literal 0x90.

const bashRLETrigger = 0x90

// BashUnRLE expands Monster Bash RLE.
type BashUnRLE struct {
	prev  byte
	count int
}

func (t *BashUnRLE) Reset() {
	t.prev = 0
	t.count = 0
}

func (t *BashUnRLE) ResetSize(int64) { t.Reset() }

func (t *BashUnRLE) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nDst < len(dst) && (nSrc < len(src) || t.count > 0) {
		if t.count > 0 {
			dst[nDst] = t.prev
			nDst++
			t.count--
			continue
		}
		if src[nSrc] == bashRLETrigger {
			if nSrc+2 > len(src) {
				// Trigger byte with no count yet.
				if atEOF {
					return nDst, nSrc, corruptf("data ended on RLE code byte before giving a count")
				}
				return nDst, nSrc, transform.ErrShortSrc
			}
			count := src[nSrc+1]
			nSrc += 2
			if count == 0 {
				// Count of zero is an escaped literal 0x90.
				t.prev = bashRLETrigger
				dst[nDst] = bashRLETrigger
				nDst++
			} else {
				// The byte before the trigger counts as the first byte of
				// the run, so one fewer copy remains.
				t.count = int(count) - 1
			}
		} else {
			t.prev = src[nSrc]
			dst[nDst] = src[nSrc]
			nSrc++
			nDst++
		}
	}
	if nSrc < len(src) || t.count > 0 {
		return nDst, nSrc, transform.ErrShortDst
	}
	return nDst, nSrc, nil
}

// States for the Monster Bash RLE encoder.
const (
	bashS0Normal = iota
	bashS1WriteRLEEvent
	bashS2Wrote90
	bashS3Escape90
	bashS4RepeatPrev
)

// BashRLE compresses with Monster Bash RLE. The state machine only
// emits a run event once more than two repeats follow the first byte;
// a run of three identical bytes therefore stays as three literals
// (an event would take the same three bytes), which matches the bytes
// existing archives contain.
type BashRLE struct {
	prev      int
	count     int
	state     int
	prevState int
}

func (t *BashRLE) Reset() {
	t.prev = -1
	t.count = 0
	t.state = bashS0Normal
	t.prevState = bashS0Normal
}

func (t *BashRLE) ResetSize(int64) { t.Reset() }

func (t *BashRLE) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nDst < len(dst) && (nSrc < len(src) || t.count > 0 || t.state != bashS0Normal) {
		switch t.state {
		case bashS0Normal:
			if nSrc >= len(src) {
				if t.count > 0 && atEOF {
					// Input ended with a run still queued.
					t.state = bashS1WriteRLEEvent
					continue
				}
				// Wait for more input (or finish if nothing queued).
				goto done
			}
			if int(src[nSrc]) == t.prev {
				nSrc++
				t.count++
			} else if t.count > 0 {
				t.state = bashS1WriteRLEEvent
			} else {
				t.prev = int(src[nSrc])
				dst[nDst] = src[nSrc]
				nSrc++
				nDst++
				if t.prev == bashRLETrigger {
					t.prevState = t.state
					t.state = bashS3Escape90
				}
			}
		case bashS1WriteRLEEvent:
			if t.count > 2 {
				dst[nDst] = bashRLETrigger
				nDst++
				t.state = bashS2Wrote90
			} else {
				// Too short for an RLE event to pay off.
				t.state = bashS4RepeatPrev
			}
		case bashS2Wrote90:
			if t.count > 254 {
				dst[nDst] = 255
				// One output char doubles as the next iteration's input.
				t.count -= 254
				t.state = bashS1WriteRLEEvent
			} else {
				dst[nDst] = byte(t.count + 1) // count includes the byte already written
				t.count = 0
				t.state = bashS0Normal
			}
			nDst++
		case bashS3Escape90:
			dst[nDst] = 0x00 // zero repeats escapes the control char
			nDst++
			t.state = t.prevState
		case bashS4RepeatPrev:
			dst[nDst] = byte(t.prev)
			nDst++
			t.count--
			if t.count == 0 {
				t.state = bashS0Normal
			}
			if t.prev == bashRLETrigger {
				t.prevState = t.state
				t.state = bashS3Escape90
			}
		}
	}
done:
	if nDst == len(dst) && (nSrc < len(src) || t.count > 0 || t.state != bashS0Normal) {
		return nDst, nSrc, transform.ErrShortDst
	}
	if !atEOF && nSrc == len(src) && (t.count > 0 || t.state != bashS0Normal) {
		return nDst, nSrc, transform.ErrShortSrc
	}
	return nDst, nSrc, nil
}

// Interface guards
var (
	_ transform.Transformer = (*BashUnRLE)(nil)
	_ transform.Transformer = (*BashRLE)(nil)
)
