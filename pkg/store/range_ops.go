// Text range algorithms: delete/insert/replace/extract/move/duplicate,
// line-granular wrap and indent, pattern search, and whitespace utilities.
//
// Offsets are byte offsets into a node's text. A range is valid when both
// endpoint nodes exist and carry text, and for single-node selections
// 0 <= startOffset <= endOffset <= len(text). Operations that return text
// treat an invalid single-node range as empty and mutate nothing;
// operations that require a valid target fail with *InvalidRangeError.
//
// Mark adjustment follows one deterministic rule for every text edit of
// region [start, end) with insLen inserted bytes (delta = insLen-(end-start)):
//   - endpoints at or right of the region end shift by delta
//   - endpoints at or left of the region start are unchanged, except that
//     for a pure insertion (start == end) an endpoint at the insertion
//     point counts as at the region end and shifts
//   - marks contained in a non-empty region drop
//   - interior endpoints clamp to the region boundary
package store

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/barocss/editor-core/pkg/document"
)

// textSegment is one node's slice of a range, in document order.
type textSegment struct {
	node  *document.Node
	start int
	end   int
}

// rangeSegmentsLocked resolves a selection to its covered text segments.
func (ds *DataStore) rangeSegmentsLocked(r document.Selection) ([]textSegment, error) {
	sid := ds.resolveLocked(string(r.StartNodeID))
	eid := ds.resolveLocked(string(r.EndNodeID))

	sn := ds.getLocked(sid)
	if sn == nil {
		return nil, &NodeNotFoundError{ID: r.StartNodeID}
	}
	if sid == eid {
		if !sn.HasText() {
			return nil, &InvalidRangeError{Reason: "node " + string(sid) + " has no text"}
		}
		so, eo := r.StartOffset, r.EndOffset
		if so < 0 || so > eo || eo > sn.TextLen() {
			return nil, &InvalidRangeError{Reason: "offsets out of bounds"}
		}
		return []textSegment{{node: sn, start: so, end: eo}}, nil
	}

	en := ds.getLocked(eid)
	if en == nil {
		return nil, &NodeNotFoundError{ID: r.EndNodeID}
	}
	if !sn.HasText() || !en.HasText() {
		return nil, &InvalidRangeError{Reason: "range endpoints must be text nodes"}
	}

	so, eo := r.StartOffset, r.EndOffset
	cmp, err := ds.compareDocOrderLocked(sid, eid)
	if err != nil {
		return nil, err
	}
	if cmp > 0 {
		sn, en = en, sn
		so, eo = eo, so
	}
	so = clampInt(so, 0, sn.TextLen())
	eo = clampInt(eo, 0, en.TextLen())

	var segs []textSegment
	for cur := sn; cur != nil; cur = ds.nextDocLocked(cur) {
		if cur.SID == sn.SID {
			if cur.HasText() {
				segs = append(segs, textSegment{node: cur, start: so, end: cur.TextLen()})
			}
			continue
		}
		if cur.SID == en.SID {
			segs = append(segs, textSegment{node: cur, start: 0, end: eo})
			return segs, nil
		}
		if cur.HasText() {
			segs = append(segs, textSegment{node: cur, start: 0, end: cur.TextLen()})
		}
	}
	return nil, &InvalidRangeError{Reason: "range end not reachable from start"}
}

// adjustMarksForEdit transforms a mark list for an edit replacing
// [start, end) with insLen bytes of new text.
func adjustMarksForEdit(marks []document.Mark, oldLen, start, end, insLen int) []document.Mark {
	delta := insLen - (end - start)
	var out []document.Mark
	for _, m := range marks {
		c := m.Clone()
		a, b := 0, oldLen
		if c.HasRange() {
			a, b = c.Range[0], c.Range[1]
		}
		if end > start && a >= start && b <= end {
			continue
		}
		na, nb := a, b
		if a >= end {
			na = a + delta
		} else if a > start {
			na = start + insLen
		}
		if b >= end {
			nb = b + delta
		} else if b > start {
			nb = start
		}
		if na >= nb {
			continue
		}
		c.Range = []int{na, nb}
		out = append(out, c)
	}
	return out
}

// replaceRegionLocked performs one node-local text edit, adjusting marks
// and emitting a single update op when anything observable changed.
func (ds *DataStore) replaceRegionLocked(n *document.Node, start, end int, ins string) {
	old := n.TextString()
	next := old[:start] + ins + old[end:]
	marks := adjustMarksForEdit(n.Marks, len(old), start, end, len(ins))
	if next == old && MarksEqual(n.Marks, marks) {
		return
	}
	ds.updateLocked(n.SID, &document.Patch{Text: &next, Marks: &marks})
	n.SetText(next)
	n.Marks = marks
}

// silentInvalid reports whether an error is the silent-no-op kind for
// text-returning utilities on single-node ranges.
func silentInvalid(r document.Selection, err error) bool {
	if err == nil || !r.SingleNode() {
		return false
	}
	var ir *InvalidRangeError
	var nf *NodeNotFoundError
	return errors.As(err, &ir) || errors.As(err, &nf)
}

// DeleteText removes the selected text and returns it: the tail of the
// start node, whole intermediate text nodes, and the head of the end node,
// concatenated in document order. Intermediate text nodes are left empty,
// not removed. Invalid single-node ranges return "" and mutate nothing.
func (ds *DataStore) DeleteText(r document.Selection) (string, error) {
	var deleted string
	err := ds.run(func() error {
		var err error
		deleted, err = ds.deleteTextLocked(r)
		return err
	})
	if silentInvalid(r, err) {
		return "", nil
	}
	return deleted, err
}

func (ds *DataStore) deleteTextLocked(r document.Selection) (string, error) {
	segs, err := ds.rangeSegmentsLocked(r)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, seg := range segs {
		sb.WriteString(seg.node.TextString()[seg.start:seg.end])
	}
	for _, seg := range segs {
		ds.replaceRegionLocked(seg.node, seg.start, seg.end, "")
	}
	return sb.String(), nil
}

// InsertText inserts s at the selection's start point. Mark endpoints at
// or after the insertion point shift right by len(s).
func (ds *DataStore) InsertText(r document.Selection, s string) error {
	return ds.run(func() error {
		return ds.insertTextLocked(r.StartNodeID, r.StartOffset, s)
	})
}

func (ds *DataStore) insertTextLocked(nodeID document.NodeID, offset int, s string) error {
	id := ds.resolveLocked(string(nodeID))
	n := ds.getLocked(id)
	if n == nil {
		return &NodeNotFoundError{ID: nodeID}
	}
	if !n.HasText() {
		return &InvalidRangeError{Reason: "node " + string(id) + " has no text"}
	}
	if offset < 0 || offset > n.TextLen() {
		return &InvalidRangeError{Reason: "insertion offset out of bounds"}
	}
	if s == "" {
		return nil
	}
	ds.replaceRegionLocked(n, offset, offset, s)
	return nil
}

// ReplaceText deletes the selected text and inserts s at the range start,
// returning the replaced text. Marks inside the replaced region drop,
// overlapping marks clamp, and marks past it shift by the length delta.
func (ds *DataStore) ReplaceText(r document.Selection, s string) (string, error) {
	var replaced string
	err := ds.run(func() error {
		segs, err := ds.rangeSegmentsLocked(r)
		if err != nil {
			return err
		}
		if len(segs) == 1 {
			seg := segs[0]
			replaced = seg.node.TextString()[seg.start:seg.end]
			ds.replaceRegionLocked(seg.node, seg.start, seg.end, s)
			return nil
		}
		replaced, err = ds.deleteTextLocked(r)
		if err != nil {
			return err
		}
		return ds.insertTextLocked(segs[0].node.SID, segs[0].start, s)
	})
	if silentInvalid(r, err) {
		return "", nil
	}
	return replaced, err
}

// ExtractText returns the selected text without mutating anything.
func (ds *DataStore) ExtractText(r document.Selection) (string, error) {
	ds.mu.RLock()
	segs, err := ds.rangeSegmentsLocked(r)
	ds.mu.RUnlock()
	if err != nil {
		if silentInvalid(r, err) {
			return "", nil
		}
		return "", err
	}
	var sb strings.Builder
	for _, seg := range segs {
		sb.WriteString(seg.node.TextString()[seg.start:seg.end])
	}
	return sb.String(), nil
}

// CopyText is ExtractText under its collaboration-facing name.
func (ds *DataStore) CopyText(r document.Selection) (string, error) {
	return ds.ExtractText(r)
}

// MoveText deletes the from range and inserts it at the to point. When to
// references a node mutated by the deletion, its offsets are interpreted
// against the post-deletion text.
func (ds *DataStore) MoveText(from, to document.Selection) (string, error) {
	var moved string
	err := ds.run(func() error {
		var err error
		moved, err = ds.deleteTextLocked(from)
		if err != nil {
			return err
		}
		if moved == "" {
			return nil
		}
		id := ds.resolveLocked(string(to.StartNodeID))
		n := ds.getLocked(id)
		if n == nil {
			return &NodeNotFoundError{ID: to.StartNodeID}
		}
		return ds.insertTextLocked(id, clampInt(to.StartOffset, 0, n.TextLen()), moved)
	})
	if silentInvalid(from, err) {
		return "", nil
	}
	return moved, err
}

// DuplicateText inserts a copy of the selected text directly after the
// range and returns it.
func (ds *DataStore) DuplicateText(r document.Selection) (string, error) {
	var dup string
	err := ds.run(func() error {
		segs, err := ds.rangeSegmentsLocked(r)
		if err != nil {
			return err
		}
		var sb strings.Builder
		for _, seg := range segs {
			sb.WriteString(seg.node.TextString()[seg.start:seg.end])
		}
		dup = sb.String()
		if dup == "" {
			return nil
		}
		last := segs[len(segs)-1]
		return ds.insertTextLocked(last.node.SID, last.end, dup)
	})
	if silentInvalid(r, err) {
		return "", nil
	}
	return dup, err
}

// GetTextLength returns the byte length of the selected text.
func (ds *DataStore) GetTextLength(r document.Selection) (int, error) {
	s, err := ds.ExtractText(r)
	return len(s), err
}

// ---------------------------------------------------------------------------
// Line-granular operations (single-node ranges)
// ---------------------------------------------------------------------------

// lineSpan widens [so, eo) to whole lines of text.
func lineSpan(text string, so, eo int) (int, int) {
	ls := strings.LastIndex(text[:so], "\n") + 1
	le := len(text)
	if i := strings.Index(text[eo:], "\n"); i >= 0 {
		le = eo + i
	}
	return ls, le
}

// editLines rewrites each line covered by the range through fn.
func (ds *DataStore) editLines(r document.Selection, fn func(line string) string) error {
	return ds.run(func() error {
		if !r.SingleNode() {
			return &InvalidRangeError{Reason: "line operations need a single-node range"}
		}
		segs, err := ds.rangeSegmentsLocked(r)
		if err != nil {
			return err
		}
		seg := segs[0]
		text := seg.node.TextString()
		ls, le := lineSpan(text, seg.start, seg.end)
		lines := strings.Split(text[ls:le], "\n")
		for i, line := range lines {
			lines[i] = fn(line)
		}
		ds.replaceRegionLocked(seg.node, ls, le, strings.Join(lines, "\n"))
		return nil
	})
}

// Wrap surrounds each line covered by the range with left and right.
func (ds *DataStore) Wrap(r document.Selection, left, right string) error {
	return ds.editLines(r, func(line string) string {
		return left + line + right
	})
}

// Unwrap removes a left/right wrapping from each covered line that has it.
func (ds *DataStore) Unwrap(r document.Selection, left, right string) error {
	return ds.editLines(r, func(line string) string {
		if strings.HasPrefix(line, left) && strings.HasSuffix(line, right) &&
			len(line) >= len(left)+len(right) {
			return line[len(left) : len(line)-len(right)]
		}
		return line
	})
}

// Indent prefixes each covered line. When the node's type declares
// maxIndentLevel, lines already at that depth are left alone.
func (ds *DataStore) Indent(r document.Selection, prefix string) error {
	if prefix == "" {
		return nil
	}
	maxLevel := 0
	if ds.schema != nil {
		ds.mu.RLock()
		if n := ds.getLocked(ds.resolveLocked(string(r.StartNodeID))); n != nil {
			if nt := ds.schema.NodeType(n.SType); nt != nil {
				maxLevel = nt.Spec.MaxIndentLevel
			}
		}
		ds.mu.RUnlock()
	}
	return ds.editLines(r, func(line string) string {
		if maxLevel > 0 && indentDepth(line, prefix) >= maxLevel {
			return line
		}
		return prefix + line
	})
}

// Outdent removes one leading prefix from each covered line that has one.
func (ds *DataStore) Outdent(r document.Selection, prefix string) error {
	if prefix == "" {
		return nil
	}
	return ds.editLines(r, func(line string) string {
		return strings.TrimPrefix(line, prefix)
	})
}

func indentDepth(line, prefix string) int {
	depth := 0
	for strings.HasPrefix(line, prefix) {
		depth++
		line = line[len(prefix):]
	}
	return depth
}

// ---------------------------------------------------------------------------
// Search and replace
// ---------------------------------------------------------------------------

// FindText returns the absolute position of the first occurrence of s
// within the range, or -1. Positions index the node's full text.
func (ds *DataStore) FindText(r document.Selection, s string) (int, error) {
	region, start, err := ds.singleNodeRegion(r)
	if err != nil {
		return -1, err
	}
	i := strings.Index(region, s)
	if i < 0 {
		return -1, nil
	}
	return start + i, nil
}

// FindAll returns the absolute [start, end) pairs of every regexp match
// within the range.
func (ds *DataStore) FindAll(r document.Selection, re *regexp.Regexp) ([][2]int, error) {
	region, start, err := ds.singleNodeRegion(r)
	if err != nil {
		return nil, err
	}
	raw := re.FindAllStringIndex(region, -1)
	out := make([][2]int, 0, len(raw))
	for _, m := range raw {
		out = append(out, [2]int{start + m[0], start + m[1]})
	}
	return out, nil
}

// Replace substitutes every regexp match within the range and returns the
// match count. Marks adjust per the canonical region-edit rule.
func (ds *DataStore) Replace(r document.Selection, re *regexp.Regexp, repl string) (int, error) {
	count := 0
	err := ds.run(func() error {
		if !r.SingleNode() {
			return &InvalidRangeError{Reason: "replace needs a single-node range"}
		}
		segs, err := ds.rangeSegmentsLocked(r)
		if err != nil {
			return err
		}
		seg := segs[0]
		region := seg.node.TextString()[seg.start:seg.end]
		count = len(re.FindAllStringIndex(region, -1))
		if count == 0 {
			return nil
		}
		ds.replaceRegionLocked(seg.node, seg.start, seg.end, re.ReplaceAllString(region, repl))
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// singleNodeRegion reads the selected region of a single-node range.
func (ds *DataStore) singleNodeRegion(r document.Selection) (string, int, error) {
	if !r.SingleNode() {
		return "", 0, &InvalidRangeError{Reason: "operation needs a single-node range"}
	}
	ds.mu.RLock()
	segs, err := ds.rangeSegmentsLocked(r)
	ds.mu.RUnlock()
	if err != nil {
		return "", 0, err
	}
	seg := segs[0]
	return seg.node.TextString()[seg.start:seg.end], seg.start, nil
}

// ---------------------------------------------------------------------------
// Whitespace utilities
// ---------------------------------------------------------------------------

var whitespaceRun = regexp.MustCompile(`\s+`)

// TrimText trims leading and trailing whitespace from the selected region.
func (ds *DataStore) TrimText(r document.Selection) error {
	return ds.editRegion(r, strings.TrimSpace)
}

// NormalizeWhitespace collapses whitespace runs in the region to single
// spaces and trims the edges.
func (ds *DataStore) NormalizeWhitespace(r document.Selection) error {
	return ds.editRegion(r, func(s string) string {
		return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
	})
}

func (ds *DataStore) editRegion(r document.Selection, fn func(string) string) error {
	return ds.run(func() error {
		if !r.SingleNode() {
			return &InvalidRangeError{Reason: "operation needs a single-node range"}
		}
		segs, err := ds.rangeSegmentsLocked(r)
		if err != nil {
			return err
		}
		seg := segs[0]
		region := seg.node.TextString()[seg.start:seg.end]
		ds.replaceRegionLocked(seg.node, seg.start, seg.end, fn(region))
		return nil
	})
}

// ---------------------------------------------------------------------------
// Range utilities
// ---------------------------------------------------------------------------

// ExpandToWord grows a single-node range outward to Unicode word
// boundaries and returns the widened selection. No mutation.
func (ds *DataStore) ExpandToWord(r document.Selection) (document.Selection, error) {
	if !r.SingleNode() {
		return r, &InvalidRangeError{Reason: "expandToWord needs a single-node range"}
	}
	ds.mu.RLock()
	segs, err := ds.rangeSegmentsLocked(r)
	ds.mu.RUnlock()
	if err != nil {
		return r, err
	}
	seg := segs[0]
	text := seg.node.TextString()
	so, eo := seg.start, seg.end
	for so > 0 {
		ch, size := utf8.DecodeLastRuneInString(text[:so])
		if !isWordRune(ch) {
			break
		}
		so -= size
	}
	for eo < len(text) {
		ch, size := utf8.DecodeRuneInString(text[eo:])
		if !isWordRune(ch) {
			break
		}
		eo += size
	}
	return document.Range(seg.node.SID, so, seg.node.SID, eo), nil
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// NormalizeRange returns the selection with its endpoints in document
// order, swapping them when reversed.
func (ds *DataStore) NormalizeRange(r document.Selection) (document.Selection, error) {
	if r.SingleNode() {
		if r.StartOffset > r.EndOffset {
			return document.Range(r.StartNodeID, r.EndOffset, r.StartNodeID, r.StartOffset), nil
		}
		return r, nil
	}
	cmp, err := ds.CompareDocumentOrder(r.StartNodeID, r.EndNodeID)
	if err != nil {
		return r, err
	}
	if cmp > 0 {
		return document.Range(r.EndNodeID, r.EndOffset, r.StartNodeID, r.StartOffset), nil
	}
	return r, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
