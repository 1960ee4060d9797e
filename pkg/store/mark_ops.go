// Mark algorithms: normalization, merging, clamping, toggle, statistics.
package store

import (
	"sort"

	"github.com/barocss/editor-core/pkg/document"
)

// NormalizeMarkList applies the canonical mark normalization to a list
// over a text of the given length:
//
//  1. no text field -> empty result
//  2. missing ranges fill to [0, textLen)
//  3. ranges clamp into [0, textLen)
//  4. empty ranges drop (including ranges emptied by clamping)
//  5. exact duplicates drop
//  6. touching or overlapping marks of the same type with structurally
//     equal attrs merge into the union range
//  7. result sorts by range start, stable on ties
//
// The function is pure and idempotent: normalizing a normalized list
// returns an equal list.
func NormalizeMarkList(marks []document.Mark, textLen int, hasText bool) []document.Mark {
	if !hasText {
		return nil
	}

	var clamped []document.Mark
	for _, m := range marks {
		c := m.Clone()
		if !c.HasRange() {
			c.Range = []int{0, textLen}
		}
		if c.Range[0] < 0 {
			c.Range[0] = 0
		}
		if c.Range[1] > textLen {
			c.Range[1] = textLen
		}
		if c.Range[0] >= c.Range[1] {
			continue
		}
		clamped = append(clamped, c)
	}

	var deduped []document.Mark
	for _, m := range clamped {
		dup := false
		for _, kept := range deduped {
			if kept.Equal(m) {
				dup = true
				break
			}
		}
		if !dup {
			deduped = append(deduped, m)
		}
	}

	// Merge per kind: marks with the same type and attrs whose ranges
	// touch or overlap collapse into their union.
	var groups [][]document.Mark
	for _, m := range deduped {
		placed := false
		for gi := range groups {
			if groups[gi][0].SameKind(m) {
				groups[gi] = append(groups[gi], m)
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, []document.Mark{m})
		}
	}

	var out []document.Mark
	for _, group := range groups {
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Range[0] < group[j].Range[0]
		})
		merged := []document.Mark{group[0]}
		for _, m := range group[1:] {
			last := &merged[len(merged)-1]
			if m.Range[0] <= last.Range[1] {
				if m.Range[1] > last.Range[1] {
					last.Range[1] = m.Range[1]
				}
				continue
			}
			merged = append(merged, m)
		}
		out = append(out, merged...)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Range[0] < out[j].Range[0]
	})
	return out
}

// MarksEqual compares two mark lists element-wise.
func MarksEqual(a, b []document.Mark) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// NormalizeMarks normalizes a node's marks in place. Emits an update op
// only when normalization changes the list; an already-normal list emits
// nothing.
func (ds *DataStore) NormalizeMarks(nodeID document.NodeID) error {
	return ds.run(func() error {
		id := ds.resolveLocked(string(nodeID))
		n := ds.getLocked(id)
		if n == nil {
			return &NodeNotFoundError{ID: nodeID}
		}
		normalized := NormalizeMarkList(n.Marks, n.TextLen(), n.HasText())
		if MarksEqual(n.Marks, normalized) {
			return nil
		}
		ds.updateLocked(id, &document.Patch{Marks: &normalized})
		return nil
	})
}

// SetMarks replaces a node's marks. With normalize (the default behavior
// callers want) the list is normalized before writing; validation against
// the schema runs either way.
func (ds *DataStore) SetMarks(nodeID document.NodeID, marks []document.Mark, normalize bool) error {
	return ds.run(func() error {
		id := ds.resolveLocked(string(nodeID))
		n := ds.getLocked(id)
		if n == nil {
			return &NodeNotFoundError{ID: nodeID}
		}
		if ds.schema != nil {
			if res := ds.schema.ValidateMarks(n.SType, marks); !res.Valid {
				return res.Err()
			}
		}
		next := make([]document.Mark, 0, len(marks))
		for _, m := range marks {
			next = append(next, m.Clone())
		}
		if normalize {
			next = NormalizeMarkList(next, n.TextLen(), n.HasText())
		}
		if MarksEqual(n.Marks, next) {
			return nil
		}
		ds.updateLocked(id, &document.Patch{Marks: &next})
		return nil
	})
}

// RemoveEmptyMarks drops marks with an empty explicit range and returns
// how many were removed.
func (ds *DataStore) RemoveEmptyMarks(nodeID document.NodeID) (int, error) {
	removed := 0
	err := ds.run(func() error {
		id := ds.resolveLocked(string(nodeID))
		n := ds.getLocked(id)
		if n == nil {
			return &NodeNotFoundError{ID: nodeID}
		}
		kept := make([]document.Mark, 0, len(n.Marks))
		for _, m := range n.Marks {
			if m.HasRange() && m.Range[0] >= m.Range[1] {
				removed++
				continue
			}
			kept = append(kept, m)
		}
		if removed > 0 {
			ds.updateLocked(id, &document.Patch{Marks: &kept})
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// MarkStatistics summarizes a node's marks before normalization, so
// callers can detect anomalies normalization would silently repair.
type MarkStatistics struct {
	TotalMarks       int
	MarkTypes        map[string]int
	OverlappingMarks int // same-kind pairs with overlapping effective ranges
	EmptyMarks       int
}

// GetMarkStatistics computes mark statistics on the raw, pre-normalization
// mark list. Missing ranges count with their effective [0, textLen) span.
func (ds *DataStore) GetMarkStatistics(nodeID document.NodeID) (*MarkStatistics, error) {
	ds.mu.RLock()
	n := ds.getLocked(ds.resolveLocked(string(nodeID)))
	ds.mu.RUnlock()
	if n == nil {
		return nil, &NodeNotFoundError{ID: nodeID}
	}

	stats := &MarkStatistics{MarkTypes: make(map[string]int)}
	stats.TotalMarks = len(n.Marks)
	textLen := n.TextLen()

	effective := make([][2]int, len(n.Marks))
	for i, m := range n.Marks {
		stats.MarkTypes[m.SType]++
		start, end := 0, textLen
		if m.HasRange() {
			start, end = m.Range[0], m.Range[1]
		}
		effective[i] = [2]int{start, end}
		if start >= end {
			stats.EmptyMarks++
		}
	}
	for i := 0; i < len(n.Marks); i++ {
		for j := i + 1; j < len(n.Marks); j++ {
			if !n.Marks[i].SameKind(n.Marks[j]) {
				continue
			}
			if effective[i][0] < effective[j][1] && effective[j][0] < effective[i][1] {
				stats.OverlappingMarks++
			}
		}
	}
	return stats, nil
}

// ---------------------------------------------------------------------------
// Range-scoped mark operations
// ---------------------------------------------------------------------------

// ApplyMark adds a mark over the selected range. Multi-node selections
// apply per covered text segment. The result is normalized, so a mark
// touching an existing same-kind mark merges with it.
func (ds *DataStore) ApplyMark(r document.Selection, mark document.Mark) error {
	return ds.run(func() error {
		segs, err := ds.rangeSegmentsLocked(r)
		if err != nil {
			return err
		}
		for _, seg := range segs {
			if seg.start >= seg.end {
				continue
			}
			ds.applyMarkSegmentLocked(seg, mark)
		}
		return nil
	})
}

func (ds *DataStore) applyMarkSegmentLocked(seg textSegment, mark document.Mark) {
	m := mark.Clone()
	m.Range = []int{seg.start, seg.end}
	next := append(cloneMarks(seg.node.Marks), m)
	next = NormalizeMarkList(next, seg.node.TextLen(), true)
	if MarksEqual(seg.node.Marks, next) {
		return
	}
	ds.updateLocked(seg.node.SID, &document.Patch{Marks: &next})
}

// RemoveMark removes the given mark type from the selected range. Marks
// extending past the range are clamped; marks spanning it are split.
func (ds *DataStore) RemoveMark(r document.Selection, stype string) error {
	return ds.run(func() error {
		segs, err := ds.rangeSegmentsLocked(r)
		if err != nil {
			return err
		}
		for _, seg := range segs {
			ds.removeMarkSegmentLocked(seg, stype)
		}
		return nil
	})
}

func (ds *DataStore) removeMarkSegmentLocked(seg textSegment, stype string) {
	textLen := seg.node.TextLen()
	var next []document.Mark
	for _, m := range seg.node.Marks {
		if m.SType != stype {
			next = append(next, m.Clone())
			continue
		}
		start, end := 0, textLen
		if m.HasRange() {
			start, end = m.Range[0], m.Range[1]
		}
		// Keep the pieces outside the removed span.
		if start < seg.start {
			left := m.Clone()
			left.Range = []int{start, minInt(end, seg.start)}
			next = append(next, left)
		}
		if end > seg.end {
			right := m.Clone()
			right.Range = []int{maxInt(start, seg.end), end}
			next = append(next, right)
		}
	}
	next = NormalizeMarkList(next, textLen, true)
	if MarksEqual(seg.node.Marks, next) {
		return
	}
	ds.updateLocked(seg.node.SID, &document.Patch{Marks: &next})
}

// ToggleMark removes the mark when one of equal type and attrs covers the
// range exactly, and applies it otherwise. A toggle that removes an
// exactly matching mark still emits an update: the mark list changed.
func (ds *DataStore) ToggleMark(r document.Selection, mark document.Mark) error {
	return ds.run(func() error {
		segs, err := ds.rangeSegmentsLocked(r)
		if err != nil {
			return err
		}
		covered := len(segs) > 0
		for _, seg := range segs {
			if !ds.segmentExactlyMarked(seg, mark) {
				covered = false
				break
			}
		}
		if covered {
			for _, seg := range segs {
				ds.removeExactMarkLocked(seg, mark)
			}
			return nil
		}
		for _, seg := range segs {
			if seg.start >= seg.end {
				continue
			}
			ds.applyMarkSegmentLocked(seg, mark)
		}
		return nil
	})
}

func (ds *DataStore) segmentExactlyMarked(seg textSegment, mark document.Mark) bool {
	for _, m := range seg.node.Marks {
		if m.SameKind(mark) && m.HasRange() && m.Range[0] == seg.start && m.Range[1] == seg.end {
			return true
		}
	}
	return false
}

func (ds *DataStore) removeExactMarkLocked(seg textSegment, mark document.Mark) {
	var next []document.Mark
	for _, m := range seg.node.Marks {
		if m.SameKind(mark) && m.HasRange() && m.Range[0] == seg.start && m.Range[1] == seg.end {
			continue
		}
		next = append(next, m.Clone())
	}
	ds.updateLocked(seg.node.SID, &document.Patch{Marks: &next})
}

// ConstrainMarksToRange clamps every mark on the selected nodes into the
// selection's span; marks entirely outside drop.
func (ds *DataStore) ConstrainMarksToRange(r document.Selection) error {
	return ds.run(func() error {
		segs, err := ds.rangeSegmentsLocked(r)
		if err != nil {
			return err
		}
		for _, seg := range segs {
			textLen := seg.node.TextLen()
			var next []document.Mark
			for _, m := range seg.node.Marks {
				c := m.Clone()
				start, end := 0, textLen
				if c.HasRange() {
					start, end = c.Range[0], c.Range[1]
				}
				start = maxInt(start, seg.start)
				end = minInt(end, seg.end)
				if start >= end {
					continue
				}
				c.Range = []int{start, end}
				next = append(next, c)
			}
			next = NormalizeMarkList(next, textLen, true)
			if !MarksEqual(seg.node.Marks, next) {
				ds.updateLocked(seg.node.SID, &document.Patch{Marks: &next})
			}
		}
		return nil
	})
}

func cloneMarks(marks []document.Mark) []document.Mark {
	out := make([]document.Mark, 0, len(marks))
	for _, m := range marks {
		out = append(out, m.Clone())
	}
	return out
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
