// elConsensus: majority-vote consensus calling for SAM files.
// Copyright (c) 2026 imec vzw.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://github.com/ExaScience/elconsensus/blob/master/LICENSE.txt>.

package sam

import "sort"

/*
A referenceIndex holds the reads mapped to one reference, sorted by
POS, together with the longest reference span among them. A read can
only cover position pos if pos-maxSpan < POS <= pos, so two binary
searches bound the reads that need to be inspected.
*/
type referenceIndex struct {
	reads      []*Alignment
	maxSpan    int32
	start, end int32
}

func newReferenceIndex(reads []*Alignment) *referenceIndex {
	By(PositionLess).ParallelStableSort(reads)
	index := &referenceIndex{reads: reads}
	for i, aln := range reads {
		span := aln.MappedRefLength()
		if span > index.maxSpan {
			index.maxSpan = span
		}
		if end := aln.POS + span; (i == 0) || (end > index.end) {
			index.end = end
		}
	}
	if len(reads) > 0 {
		index.start = reads[0].POS
	}
	return index
}

// candidates returns the reads whose span may include pos.
func (index *referenceIndex) candidates(pos int32) []*Alignment {
	reads := index.reads
	low := sort.Search(len(reads), func(i int) bool {
		return reads[i].POS > pos-index.maxSpan
	})
	high := sort.Search(len(reads), func(i int) bool {
		return reads[i].POS > pos
	})
	if low >= high {
		return nil
	}
	return reads[low:high]
}

// covering returns the reads with at least one base at pos, in load
// order.
func (index *referenceIndex) covering(pos int32) (result []*Alignment) {
	for _, aln := range index.candidates(pos) {
		if aln.BaseAt(pos) != "" {
			result = append(result, aln)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].fileIndex < result[j].fileIndex
	})
	return result
}

func (index *referenceIndex) covered(pos int32) bool {
	for _, aln := range index.candidates(pos) {
		if aln.BaseAt(pos) != "" {
			return true
		}
	}
	return false
}
