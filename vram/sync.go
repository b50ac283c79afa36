package vram

// LineTiming carries the display timing generator's signals toward the fill
// domain: the line index currently being scanned out and a toggle strobe
// that flips on every horizontal line advance.
//
// Only the display domain writes it; the fill domain must never look at the
// raw fields but go through a LineSync.
type LineTiming struct {
	line   uint32
	toggle bool
}

// Advance signals the start of a new display line.
func (t *LineTiming) Advance(line uint32) {
	t.line = line
	t.toggle = !t.toggle
}

// Line returns the raw line index. Display-domain use only.
func (t *LineTiming) Line() uint32 {
	return t.line
}

// LineSync moves the timing signals into the fill domain: every crossing
// value is sampled through two stages before use, and the strobe is turned
// into a one-shot edge by comparing against the previous stable sample. A
// raw shared counter would be torn by metastability on real hardware; the
// model enforces the same discipline so the handoff points stay explicit.
type LineSync struct {
	stage0Toggle bool
	stage0Line   uint32
	stage1Toggle bool
	stage1Line   uint32
	lastToggle   bool
}

// Sample advances the synchronizer by one fill-domain tick and returns the
// stable line index plus whether a line-advance edge became visible this
// tick. An edge is reported exactly once per display-side Advance.
func (s *LineSync) Sample(t *LineTiming) (line uint32, edge bool) {
	s.stage1Toggle, s.stage1Line = s.stage0Toggle, s.stage0Line
	s.stage0Toggle, s.stage0Line = t.toggle, t.line

	edge = s.stage1Toggle != s.lastToggle
	s.lastToggle = s.stage1Toggle

	return s.stage1Line, edge
}
