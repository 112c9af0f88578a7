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

import (
	"bufio"
	"io"
	"log"
	"math"
	"sort"
	"strings"

	"github.com/bits-and-blooms/bitset"
	"github.com/exascience/pargo/parallel"
	"github.com/exascience/pargo/pipeline"
)

// LoadOptions control how Load treats its input.
type LoadOptions struct {
	// SkipMalformed logs and skips alignment lines that cannot be
	// parsed, instead of failing the whole load.
	SkipMalformed bool
}

/*
An AlignmentSet holds the primary, mapped alignments of a SAM file,
and the reference names declared in its header.

An AlignmentSet is not modified after Load returns, so all its
methods are safe for concurrent use.
*/
type AlignmentSet struct {
	header     *Header
	reads      []*Alignment
	references map[string]struct{}
	index      map[string]*referenceIndex
}

// A PileupEntry is the base call and quality string of one read at
// one reference position.
type PileupEntry struct {
	Base, Qual string
}

// Alignment lines grow with the read length. The line buffer starts at
// this size and may grow up to math.MaxInt32 bytes.
const initialLineBufferSize = 64 * 1024

type loadBatch struct {
	reads      []*Alignment
	references []string
}

/*
Load reads a SAM stream. Header @SQ lines declare references; all
other lines are parsed into alignments, of which only those that are
both primary and mapped are kept.

A malformed header or alignment line aborts the load, unless
options.SkipMalformed is set, in which case it is logged and skipped.
The SN entries of a skipped @SQ line still declare references.
*/
func Load(reader io.Reader, options LoadOptions) (*AlignmentSet, error) {
	buf, ok := reader.(*bufio.Reader)
	if !ok {
		buf = bufio.NewReader(reader)
	}
	set := &AlignmentSet{references: make(map[string]struct{})}
	var skip func(string, error)
	if options.SkipMalformed {
		skip = func(line string, err error) {
			log.Printf("Warning: %v, skipping header line.\n", err)
			for _, name := range referenceNamesFromHeaderLine(line) {
				set.references[name] = struct{}{}
			}
		}
	}
	hdr, _, err := parseHeader(buf, skip)
	if err != nil {
		return nil, err
	}
	set.header = hdr
	for _, name := range hdr.ReferenceNames() {
		set.references[name] = struct{}{}
	}

	src := pipeline.NewScanner(buf)
	src.Buffer(make([]byte, 0, initialLineBufferSize), math.MaxInt32)

	var p pipeline.Pipeline
	p.Source(src)
	p.Add(pipeline.LimitedPar(0, pipeline.Receive(func(_ int, data interface{}) interface{} {
		lines := data.([]string)
		batch := loadBatch{reads: make([]*Alignment, 0, len(lines))}
		for _, line := range lines {
			switch {
			case len(line) == 0:
				continue
			case line[0] == '@':
				batch.references = append(batch.references, referenceNamesFromHeaderLine(line)...)
				continue
			}
			aln, err := ParseAlignment(line)
			if err != nil {
				if options.SkipMalformed {
					log.Printf("Warning: %v, skipping line.\n", err)
					continue
				}
				p.SetErr(err)
				return batch
			}
			if aln.IsPrimary() && aln.IsMapped() {
				batch.reads = append(batch.reads, aln)
			}
		}
		return batch
	})))
	p.Add(pipeline.StrictOrd(pipeline.Receive(func(_ int, data interface{}) interface{} {
		batch := data.(loadBatch)
		for _, aln := range batch.reads {
			aln.fileIndex = len(set.reads)
			set.reads = append(set.reads, aln)
		}
		for _, name := range batch.references {
			set.references[name] = struct{}{}
		}
		return data
	})))
	p.Run()
	if err := p.Err(); err != nil {
		return nil, err
	}

	set.buildIndex()
	return set, nil
}

// LoadFile opens the named SAM file and loads it.
func LoadFile(name string, options LoadOptions) (set *AlignmentSet, err error) {
	input, err := Open(name)
	if err != nil {
		return nil, err
	}
	defer func() {
		if nerr := input.Close(); err == nil {
			err = nerr
		}
	}()
	return Load(input.Reader, options)
}

func (set *AlignmentSet) buildIndex() {
	byReference := make(map[string][]*Alignment)
	for _, aln := range set.reads {
		byReference[aln.RNAME] = append(byReference[aln.RNAME], aln)
	}
	set.index = make(map[string]*referenceIndex, len(byReference))
	for name, reads := range byReference {
		set.index[name] = newReferenceIndex(reads)
	}
}

// Header returns the parsed header section.
func (set *AlignmentSet) Header() *Header {
	return set.header
}

// Reads returns the kept alignments in input order.
func (set *AlignmentSet) Reads() []*Alignment {
	return set.reads
}

// References returns the declared reference names in ascending order.
func (set *AlignmentSet) References() []string {
	names := make([]string, 0, len(set.references))
	for name := range set.references {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasReference tells whether the header declares the given name.
func (set *AlignmentSet) HasReference(name string) bool {
	_, found := set.references[name]
	return found
}

/*
Span returns the half-open range [start, end) of 1-based reference
positions spanned by the reads mapped to the given reference. ok is
false if no read maps to it.

Reads mapped to undeclared references are included in pileups, so
Span does not check HasReference.
*/
func (set *AlignmentSet) Span(refName string) (start, end int32, ok bool) {
	index := set.index[refName]
	if index == nil {
		return 0, 0, false
	}
	return index.start, index.end, true
}

// ReadsAt returns the reads with at least one base at the given
// position of the given reference, in input order.
func (set *AlignmentSet) ReadsAt(refName string, refPos int32) []*Alignment {
	index := set.index[refName]
	if index == nil {
		return nil
	}
	return index.covering(refPos)
}

// Pileup returns the base calls and qualities of all reads covering
// the given position, in input order. A base call with more than one
// base carries an attached insertion.
func (set *AlignmentSet) Pileup(refName string, refPos int32) []PileupEntry {
	reads := set.ReadsAt(refName, refPos)
	if len(reads) == 0 {
		return nil
	}
	pileup := make([]PileupEntry, len(reads))
	for i, aln := range reads {
		pileup[i] = PileupEntry{aln.BaseAt(refPos), aln.QualityAt(refPos)}
	}
	return pileup
}

/*
MajorityVote returns the base call that occurs in strictly more than
half of the given calls. It returns "N" if there is no such call, or
if the most frequent count is shared by several calls, and "" if
there are no calls at all. Calls with attached insertions are
distinct from their single-base counterparts.
*/
func MajorityVote(calls []string) string {
	if len(calls) == 0 {
		return ""
	}
	counts := make(map[string]int, 4)
	for _, call := range calls {
		counts[call]++
	}
	var best string
	var maxCount, nofMax int
	for call, count := range counts {
		switch {
		case count > maxCount:
			best, maxCount, nofMax = call, count, 1
		case count == maxCount:
			nofMax++
		}
	}
	if (nofMax > 1) || (2*maxCount <= len(calls)) {
		return "N"
	}
	return best
}

// ConsensusAt returns the majority vote over the pileup at the given
// position, or "" if no read covers it.
func (set *AlignmentSet) ConsensusAt(refName string, refPos int32) string {
	pileup := set.Pileup(refName, refPos)
	calls := make([]string, len(pileup))
	for i, entry := range pileup {
		calls[i] = entry.Base
	}
	return MajorityVote(calls)
}

/*
Consensus returns the consensus sequence over the span of the given
reference, with "N" at positions that no read covers. The result is
empty if the reference is not declared in the header or has no reads.

The per-position votes are independent and run in parallel.
*/
func (set *AlignmentSet) Consensus(refName string) string {
	if !set.HasReference(refName) {
		return ""
	}
	start, end, ok := set.Span(refName)
	if !ok || (end <= start) {
		return ""
	}
	calls := make([]string, end-start)
	parallel.Range(0, len(calls), 0, func(low, high int) {
		for i := low; i < high; i++ {
			if call := set.ConsensusAt(refName, start+int32(i)); call != "" {
				calls[i] = call
			} else {
				calls[i] = "N"
			}
		}
	})
	return strings.Join(calls, "")
}

// CoverageMask returns a bit set over the span of the given reference
// (bit i stands for position start+i) with the bits set for all
// positions covered by at least one read.
func (set *AlignmentSet) CoverageMask(refName string) *bitset.BitSet {
	index := set.index[refName]
	if (index == nil) || (index.end <= index.start) {
		return bitset.New(0)
	}
	length := int(index.end - index.start)
	return parallel.RangeReduce(0, length, 0, func(low, high int) interface{} {
		mask := bitset.New(uint(length))
		for i := low; i < high; i++ {
			if index.covered(index.start + int32(i)) {
				mask.Set(uint(i))
			}
		}
		return mask
	}, func(x, y interface{}) interface{} {
		mask := x.(*bitset.BitSet)
		mask.InPlaceUnion(y.(*bitset.BitSet))
		return mask
	}).(*bitset.BitSet)
}

// CoveredPositions counts the positions of the given reference
// covered by at least one read.
func (set *AlignmentSet) CoveredPositions(refName string) int {
	return int(set.CoverageMask(refName).Count())
}

/*
BestConsensus picks the declared reference with the most covered
positions and returns its name and consensus. Ties go to the
lexicographically smallest name. Both results are empty if no
declared reference has reads.
*/
func (set *AlignmentSet) BestConsensus() (refName, consensus string) {
	bestCount := -1
	for _, name := range set.References() {
		if _, found := set.index[name]; !found {
			continue
		}
		if count := set.CoveredPositions(name); count > bestCount {
			refName, bestCount = name, count
		}
	}
	if bestCount < 0 {
		return "", ""
	}
	return refName, set.Consensus(refName)
}
