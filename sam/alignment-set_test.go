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
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samRecord(qname string, flag int, rname string, pos int, cigar, seq string) string {
	return fmt.Sprintf("%v\t%v\t%v\t%v\t60\t%v\t*\t0\t0\t%v\t%v\n",
		qname, flag, rname, pos, cigar, seq, strings.Repeat("I", len(seq)))
}

func mustLoad(t *testing.T, input string) *AlignmentSet {
	t.Helper()
	set, err := Load(strings.NewReader(input), LoadOptions{})
	require.NoError(t, err)
	return set
}

const pileupSam = "@HD\tVN:1.6\n" +
	"@SQ\tSN:R1\tLN:100\n" +
	"@SQ\tSN:R2\tLN:100\n" +
	"r1\t0\tR1\t10\t60\t4M\t*\t0\t0\tACGT\tABCD\n" +
	"r2\t16\tR1\t10\t60\t4M\t*\t0\t0\tACGA\tEFGH\n" +
	"r3\t0\tR1\t11\t60\t3M\t*\t0\t0\tCGA\tIJK\n" +
	"r4\t256\tR1\t10\t60\t4M\t*\t0\t0\tTTTT\tIIII\n" +
	"r5\t2048\tR1\t10\t60\t4M\t*\t0\t0\tTTTT\tIIII\n" +
	"r6\t4\t*\t0\t0\t*\t*\t0\t0\tACGT\tIIII\n"

func TestLoadFiltersReads(t *testing.T) {
	set := mustLoad(t, pileupSam)
	var names []string
	for _, aln := range set.Reads() {
		names = append(names, aln.QNAME)
	}
	assert.Equal(t, []string{"r1", "r2", "r3"}, names)
	assert.Equal(t, []string{"R1", "R2"}, set.References())
	assert.True(t, set.HasReference("R2"))
	assert.False(t, set.HasReference("R3"))
}

func TestPileup(t *testing.T) {
	set := mustLoad(t, pileupSam)
	assert.Equal(t, []PileupEntry{{"T", "D"}, {"A", "H"}, {"A", "K"}}, set.Pileup("R1", 13))
	assert.Equal(t, []PileupEntry{{"A", "A"}, {"A", "E"}}, set.Pileup("R1", 10))
	assert.Empty(t, set.Pileup("R1", 9))
	assert.Empty(t, set.Pileup("R1", 14))
	assert.Empty(t, set.Pileup("R2", 10))
	assert.Empty(t, set.Pileup("R9", 10))
}

func TestConsensusAt(t *testing.T) {
	set := mustLoad(t, pileupSam)
	assert.Equal(t, "A", set.ConsensusAt("R1", 10))
	assert.Equal(t, "C", set.ConsensusAt("R1", 11))
	// two out of three is a strict majority
	assert.Equal(t, "A", set.ConsensusAt("R1", 13))
	assert.Equal(t, "", set.ConsensusAt("R1", 20))
}

func TestConsensus(t *testing.T) {
	set := mustLoad(t, pileupSam)
	assert.Equal(t, "ACGA", set.Consensus("R1"))
	assert.Equal(t, "", set.Consensus("R2"))
	assert.Equal(t, "", set.Consensus("R9"))
	start, end, ok := set.Span("R1")
	assert.True(t, ok)
	assert.Equal(t, int32(10), start)
	assert.Equal(t, int32(14), end)
}

func TestMajorityVote(t *testing.T) {
	testCases := []struct {
		calls []string
		want  string
	}{
		{nil, ""},
		{[]string{"A"}, "A"},
		{[]string{"A", "A", "T", "T"}, "N"},
		{[]string{"A", "A", "A", "T"}, "A"},
		{[]string{"A", "A", "T"}, "A"},
		{[]string{"A", "T", "G"}, "N"},
		{[]string{"A", "A", "T", "G"}, "N"},
		{[]string{"A", "A", "A", "T", "G"}, "A"},
		{[]string{"CXX", "C", "CXX"}, "CXX"},
		{[]string{"C", "CXX"}, "N"},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, MajorityVote(tc.calls), "calls %v", tc.calls)
	}
}

func TestConsensusGapsAndIndels(t *testing.T) {
	input := "@SQ\tSN:gap\tLN:100\n@SQ\tSN:del\tLN:100\n@SQ\tSN:ins\tLN:100\n@SQ\tSN:tie\tLN:100\n" +
		samRecord("g1", 0, "gap", 1, "2M", "AC") +
		samRecord("g2", 0, "gap", 5, "2M", "GT") +
		samRecord("d1", 0, "del", 1, "2M1D2M", "ACGT") +
		samRecord("d2", 0, "del", 1, "2M1D2M", "ACGT") +
		samRecord("i1", 0, "ins", 1, "2M2I2M", "ACXXGT") +
		samRecord("i2", 0, "ins", 1, "2M2I2M", "ACXXGT") +
		samRecord("i3", 0, "ins", 1, "4M", "ACGT") +
		samRecord("t1", 0, "tie", 1, "3M", "AAA") +
		samRecord("t2", 0, "tie", 1, "3M", "AAT") +
		samRecord("t3", 0, "tie", 1, "3M", "ATT") +
		samRecord("t4", 0, "tie", 1, "3M", "ATT")
	set := mustLoad(t, input)
	assert.Equal(t, "ACNNGT", set.Consensus("gap"))
	assert.Equal(t, "ACNGT", set.Consensus("del"))
	assert.Equal(t, "ACXXGT", set.Consensus("ins"))
	assert.Equal(t, "ANT", set.Consensus("tie"))
	assert.NotContains(t, set.Consensus("del"), "-")
}

func TestCoverageMask(t *testing.T) {
	input := "@SQ\tSN:gap\tLN:100\n" +
		samRecord("g1", 0, "gap", 1, "2M", "AC") +
		samRecord("g2", 0, "gap", 5, "2M", "GT")
	set := mustLoad(t, input)
	mask := set.CoverageMask("gap")
	for i, want := range []bool{true, true, false, false, true, true} {
		assert.Equal(t, want, mask.Test(uint(i)), "bit %v", i)
	}
	assert.Equal(t, 4, set.CoveredPositions("gap"))
	assert.Equal(t, 0, set.CoveredPositions("none"))
}

func TestBestConsensus(t *testing.T) {
	input := "@SQ\tSN:R1\tLN:100\n@SQ\tSN:R2\tLN:100\n@SQ\tSN:R3\tLN:100\n" +
		samRecord("a", 0, "R1", 1, "10M", strings.Repeat("A", 10)) +
		samRecord("b", 0, "R2", 1, "30M", strings.Repeat("C", 30))
	set := mustLoad(t, input)
	name, consensus := set.BestConsensus()
	assert.Equal(t, "R2", name)
	assert.Equal(t, set.Consensus("R2"), consensus)
	assert.Equal(t, strings.Repeat("C", 30), consensus)
}

func TestBestConsensusTie(t *testing.T) {
	input := "@SQ\tSN:R2\tLN:100\n@SQ\tSN:R1\tLN:100\n" +
		samRecord("a", 0, "R2", 1, "4M", "GGGG") +
		samRecord("b", 0, "R1", 7, "4M", "TTTT")
	set := mustLoad(t, input)
	name, consensus := set.BestConsensus()
	assert.Equal(t, "R1", name)
	assert.Equal(t, "TTTT", consensus)
}

func TestBestConsensusEmpty(t *testing.T) {
	set := mustLoad(t, "@SQ\tSN:R1\tLN:100\n"+samRecord("a", 0, "R9", 1, "4M", "ACGT"))
	name, consensus := set.BestConsensus()
	assert.Equal(t, "", name)
	assert.Equal(t, "", consensus)
	// undeclared references still take part in pileups
	assert.Equal(t, []PileupEntry{{"A", "I"}}, set.Pileup("R9", 1))
	assert.Equal(t, "", set.Consensus("R9"))
}

func TestLoadMalformed(t *testing.T) {
	input := "@SQ\tSN:R1\tLN:100\n" +
		samRecord("a", 0, "R1", 1, "4M", "ACGT") +
		"b\t0\tR1\t1\t60\t4Q\t*\t0\t0\tACGT\tIIII\n" +
		samRecord("c", 0, "R1", 1, "4M", "ACGT")
	_, err := Load(strings.NewReader(input), LoadOptions{})
	assert.Error(t, err)

	set, err := Load(strings.NewReader(input), LoadOptions{SkipMalformed: true})
	require.NoError(t, err)
	assert.Len(t, set.Reads(), 2)
	assert.Equal(t, "ACGT", set.Consensus("R1"))
}

func TestLoadLongReads(t *testing.T) {
	long := strings.Repeat("ACGT", 10000)
	input := "@SQ\tSN:R1\tLN:50000\n" +
		samRecord("long", 0, "R1", 1, "40000M", long) +
		samRecord("short", 0, "R1", 1, "4M", "TCGT")
	set := mustLoad(t, input)
	require.Len(t, set.Reads(), 2)
	assert.Equal(t, long, set.Reads()[0].SEQ)
	assert.Equal(t, []PileupEntry{{"A", "I"}, {"T", "I"}}, set.Pileup("R1", 1))
	assert.Equal(t, "NCGT"+long[4:], set.Consensus("R1"))
}

func TestLoadMalformedHeader(t *testing.T) {
	input := "@HD\tVN:1.6\n" +
		"@SQ\tSN:R1\tLN:100\tM5\n" +
		"@XY\tID:x\n" +
		"@SQ\tSN:R2\tLN:100\n" +
		samRecord("a", 0, "R1", 1, "4M", "ACGT") +
		samRecord("b", 0, "R2", 1, "4M", "TTTT")
	_, err := Load(strings.NewReader(input), LoadOptions{})
	assert.Error(t, err)

	set, err := Load(strings.NewReader(input), LoadOptions{SkipMalformed: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"R1", "R2"}, set.References())
	assert.Equal(t, []string{"R2"}, set.Header().ReferenceNames())
	assert.Equal(t, "ACGT", set.Consensus("R1"))
	assert.Equal(t, "TTTT", set.Consensus("R2"))
}

func TestLoadHeaderInBody(t *testing.T) {
	input := samRecord("a", 0, "R1", 1, "4M", "ACGT") +
		"\n" +
		"@SQ\tSN:R1\tLN:100\n"
	set := mustLoad(t, input)
	assert.Equal(t, []string{"R1"}, set.References())
	assert.Equal(t, "ACGT", set.Consensus("R1"))
}

func randomRead(rnd *rand.Rand) (cigar, seq string) {
	var b strings.Builder
	var length int
	if rnd.Intn(3) == 0 {
		n := 1 + rnd.Intn(3)
		fmt.Fprintf(&b, "%vS", n)
		length += n
	}
	for i, n := 0, 1+rnd.Intn(4); i < n; i++ {
		if i > 0 {
			switch rnd.Intn(3) {
			case 0:
				k := 1 + rnd.Intn(3)
				fmt.Fprintf(&b, "%vI", k)
				length += k
			case 1:
				fmt.Fprintf(&b, "%vD", 1+rnd.Intn(3))
			}
		}
		k := 1 + rnd.Intn(20)
		fmt.Fprintf(&b, "%vM", k)
		length += k
	}
	bases := make([]byte, length)
	for i := range bases {
		bases[i] = "ACGT"[rnd.Intn(4)]
	}
	return b.String(), string(bases)
}

func TestReadsAtMatchesFullScan(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	var b strings.Builder
	b.WriteString("@SQ\tSN:R1\tLN:1000\n@SQ\tSN:R2\tLN:1000\n")
	for i := 0; i < 500; i++ {
		cigar, seq := randomRead(rnd)
		rname := "R1"
		if rnd.Intn(4) == 0 {
			rname = "R2"
		}
		b.WriteString(samRecord(fmt.Sprintf("read%v", i), 0, rname, 1+rnd.Intn(200), cigar, seq))
	}
	set := mustLoad(t, b.String())
	require.Len(t, set.Reads(), 500)

	for _, rname := range []string{"R1", "R2"} {
		start, end, ok := set.Span(rname)
		require.True(t, ok)
		for pos := start - 2; pos < end+2; pos++ {
			var want []*Alignment
			for _, aln := range set.Reads() {
				if aln.RNAME == rname && aln.BaseAt(pos) != "" {
					want = append(want, aln)
				}
			}
			got := set.ReadsAt(rname, pos)
			if !assert.Equal(t, len(want), len(got), "%v:%v", rname, pos) {
				continue
			}
			for i := range want {
				assert.Same(t, want[i], got[i], "%v:%v", rname, pos)
			}
		}
	}
}
