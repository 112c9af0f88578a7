package sam

import (
	"sort"
	"strconv"

	psort "github.com/exascience/pargo/sort"

	"github.com/exascience/elconsensus/internal"
	"github.com/exascience/elconsensus/utils"
)

// FileFormatVersion is the SAM version written when a header has no
// @HD line.
const FileFormatVersion = "1.6"

func IsHeaderUserTag(code string) bool {
	for _, c := range code {
		if ('a' <= c) && (c <= 'z') {
			return true
		}
	}
	return false
}

// A Header holds the header section of a SAM file.
type Header struct {
	HD          utils.StringMap
	SQ, RG, PG  []utils.StringMap
	CO          []string
	UserRecords map[string][]utils.StringMap
}

func NewHeader() *Header { return &Header{} }

func (hdr *Header) EnsureHD() utils.StringMap {
	if hdr.HD == nil {
		hdr.HD = utils.StringMap{"VN": FileFormatVersion}
	}
	return hdr.HD
}

func (hdr *Header) EnsureUserRecords() map[string][]utils.StringMap {
	if hdr.UserRecords == nil {
		hdr.UserRecords = make(map[string][]utils.StringMap)
	}
	return hdr.UserRecords
}

func (hdr *Header) AddUserRecord(code string, record utils.StringMap) {
	records := hdr.EnsureUserRecords()
	records[code] = append(records[code], record)
}

// ReferenceNames returns the SN entries of all @SQ lines, in header
// order. @SQ lines without an SN entry are ignored.
func (hdr *Header) ReferenceNames() (names []string) {
	for _, record := range hdr.SQ {
		if name, found := record["SN"]; found {
			names = append(names, name)
		}
	}
	return names
}

// An Alignment is one record from the alignment section of a SAM
// file. Alignments are created by ParseAlignment and are not modified
// afterwards.
type Alignment struct {
	QNAME string
	FLAG  uint16
	RNAME string
	POS   int32
	MAPQ  byte
	// CIGAR may be shared with other alignments.
	CIGAR []CigarOperation
	RNEXT string
	PNEXT int32
	TLEN  int32
	SEQ   string
	QUAL  string
	// TAGS holds the optional fields verbatim, in input order.
	TAGS []string

	fileIndex int
}

const (
	Multiple      = 0x1
	Proper        = 0x2
	Unmapped      = 0x4
	NextUnmapped  = 0x8
	Reversed      = 0x10
	NextReversed  = 0x20
	First         = 0x40
	Last          = 0x80
	Secondary     = 0x100
	QCFailed      = 0x200
	Duplicate     = 0x400
	Supplementary = 0x800
)

func (aln *Alignment) IsMultiple() bool      { return (aln.FLAG & Multiple) != 0 }
func (aln *Alignment) IsProper() bool        { return (aln.FLAG & Proper) != 0 }
func (aln *Alignment) IsUnmapped() bool      { return (aln.FLAG & Unmapped) != 0 }
func (aln *Alignment) IsNextUnmapped() bool  { return (aln.FLAG & NextUnmapped) != 0 }
func (aln *Alignment) IsReversed() bool      { return (aln.FLAG & Reversed) != 0 }
func (aln *Alignment) IsNextReversed() bool  { return (aln.FLAG & NextReversed) != 0 }
func (aln *Alignment) IsFirst() bool         { return (aln.FLAG & First) != 0 }
func (aln *Alignment) IsLast() bool          { return (aln.FLAG & Last) != 0 }
func (aln *Alignment) IsSecondary() bool     { return (aln.FLAG & Secondary) != 0 }
func (aln *Alignment) IsQCFailed() bool      { return (aln.FLAG & QCFailed) != 0 }
func (aln *Alignment) IsDuplicate() bool     { return (aln.FLAG & Duplicate) != 0 }
func (aln *Alignment) IsSupplementary() bool { return (aln.FLAG & Supplementary) != 0 }

func (aln *Alignment) IsMapped() bool  { return !aln.IsUnmapped() }
func (aln *Alignment) IsForward() bool { return !aln.IsReversed() }
func (aln *Alignment) IsReverse() bool { return aln.IsReversed() }

// IsPrimary is true if the alignment is neither secondary nor
// supplementary.
func (aln *Alignment) IsPrimary() bool {
	return !aln.IsSecondary() && !aln.IsSupplementary()
}

// MappedRefLength is the number of reference positions the alignment
// spans, including deletions and skips.
func (aln *Alignment) MappedRefLength() int32 {
	return ReferenceLengthFromCigar(aln.CIGAR)
}

// End returns the last reference position covered by the alignment.
func (aln *Alignment) End() int32 {
	return aln.POS + aln.MappedRefLength() - 1
}

// Tag returns the type and value of the first optional field with
// the given two-character code.
func (aln *Alignment) Tag(code string) (typ byte, value string, found bool) {
	for _, field := range aln.TAGS {
		if (len(field) >= 5) && (field[2] == ':') && (field[4] == ':') && (field[:2] == code) {
			return field[3], field[5:], true
		}
	}
	return 0, "", false
}

func (aln *Alignment) readRange(refPos int32) (start, end int32, ok bool) {
	if aln.IsUnmapped() {
		return 0, 0, false
	}
	return ReadIndicesAt(aln.CIGAR, refPos-aln.POS)
}

// BaseAt returns the read bases at the given 1-based reference
// position. The result is empty if the position is not covered, and
// longer than one base if an insertion is attached to the position.
func (aln *Alignment) BaseAt(refPos int32) string {
	if aln.SEQ == "*" {
		return ""
	}
	if start, end, ok := aln.readRange(refPos); ok {
		return aln.SEQ[start:end]
	}
	return ""
}

// QualityAt is like BaseAt, but returns the base qualities.
func (aln *Alignment) QualityAt(refPos int32) string {
	if (aln.SEQ == "*") || (aln.QUAL == "*") {
		return ""
	}
	if start, end, ok := aln.readRange(refPos); ok {
		return aln.QUAL[start:end]
	}
	return ""
}

/*
MappedSequence returns the read sequence as it lies over the
reference. Clipped bases are skipped, inserted bases are kept, and
deletions and skips are filled with '-'.
*/
func (aln *Alignment) MappedSequence() string {
	if aln.IsUnmapped() || (aln.SEQ == "*") {
		return ""
	}
	buf := internal.ReserveByteBuffer()
	defer func() { internal.ReleaseByteBuffer(buf) }()
	var readPos int32
	for _, op := range aln.CIGAR {
		switch op.Operation {
		case 'S':
			readPos += op.Length
		case 'M', '=', 'X', 'I':
			buf = append(buf, aln.SEQ[readPos:readPos+op.Length]...)
			readPos += op.Length
		case 'D', 'N':
			for i := int32(0); i < op.Length; i++ {
				buf = append(buf, '-')
			}
		}
	}
	return string(buf)
}

// Format appends the SAM text representation of the alignment to
// out, terminated by a newline.
func (aln *Alignment) Format(out []byte) []byte {
	out = append(append(out, aln.QNAME...), '\t')
	out = append(strconv.AppendUint(out, uint64(aln.FLAG), 10), '\t')
	out = append(append(out, aln.RNAME...), '\t')
	out = append(strconv.AppendInt(out, int64(aln.POS), 10), '\t')
	out = append(strconv.AppendUint(out, uint64(aln.MAPQ), 10), '\t')
	out = append(FormatCigar(out, aln.CIGAR), '\t')
	out = append(append(out, aln.RNEXT...), '\t')
	out = append(strconv.AppendInt(out, int64(aln.PNEXT), 10), '\t')
	out = append(strconv.AppendInt(out, int64(aln.TLEN), 10), '\t')
	out = append(append(out, aln.SEQ...), '\t')
	out = append(out, aln.QUAL...)
	for _, tag := range aln.TAGS {
		out = append(append(out, '\t'), tag...)
	}
	return append(out, '\n')
}

type (
	By func(aln1, aln2 *Alignment) bool

	AlignmentSorter struct {
		alns []*Alignment
		by   By
	}
)

func (s AlignmentSorter) SequentialSort(i, j int) {
	alns, by := s.alns[i:j], s.by
	sort.SliceStable(alns, func(i, j int) bool {
		return by(alns[i], alns[j])
	})
}

func (s AlignmentSorter) NewTemp() psort.StableSorter {
	return AlignmentSorter{make([]*Alignment, len(s.alns)), s.by}
}

func (s AlignmentSorter) Len() int {
	return len(s.alns)
}

func (s AlignmentSorter) Less(i, j int) bool {
	return s.by(s.alns[i], s.alns[j])
}

func (s AlignmentSorter) Assign(p psort.StableSorter) func(i, j, len int) {
	dst, src := s.alns, p.(AlignmentSorter).alns
	return func(i, j, len int) {
		copy(dst[i:i+len], src[j:j+len])
	}
}

// ParallelStableSort sorts the alignments with a parallel stable
// merge sort.
func (by By) ParallelStableSort(alns []*Alignment) {
	psort.StableSort(AlignmentSorter{alns, by})
}

// PositionLess orders alignments by POS.
func PositionLess(aln1, aln2 *Alignment) bool {
	return aln1.POS < aln2.POS
}
