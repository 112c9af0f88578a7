package sam

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/exascience/pargo/sync"

	"github.com/exascience/elconsensus/internal"
)

// CigarOperations lists the operators that may occur in a CIGAR string.
const CigarOperations = "MIDNSHP=X"

func isCigarOperation(char byte) bool {
	switch char {
	case 'M', 'I', 'D', 'N', 'S', 'H', 'P', '=', 'X':
		return true
	default:
		return false
	}
}

func isDigit(char byte) bool { return ('0' <= char) && (char <= '9') }

// A CigarOperation is a single (length, operator) pair of a CIGAR
// string.
type CigarOperation struct {
	Length    int32
	Operation byte
}

func newCigarOperation(cigar string, i int) (op CigarOperation, j int, err error) {
	for j = i; (j < len(cigar)) && isDigit(cigar[j]); j++ {
	}
	switch {
	case j == i:
		return op, j, fmt.Errorf("Missing length before CIGAR operation %q", cigar[j])
	case j == len(cigar):
		return op, j, fmt.Errorf("Missing CIGAR operation after length %v", cigar[i:j])
	}
	length, err := strconv.ParseInt(cigar[i:j], 10, 32)
	if err != nil {
		return op, j, err
	}
	if length <= 0 {
		return op, j, fmt.Errorf("Invalid CIGAR operation length %v", length)
	}
	if operation := cigar[j]; !isCigarOperation(operation) {
		return op, j, fmt.Errorf("Invalid CIGAR operation %q", operation)
	}
	return CigarOperation{int32(length), cigar[j]}, j + 1, nil
}

type cigarString string

func (s cigarString) Hash() uint64 {
	return internal.StringHash(string(s))
}

// Parsed CIGAR slices are shared between alignments and must not be
// modified.
var cigarSliceCache = sync.NewMap(0)

func slowScanCigarString(cigar string) ([]CigarOperation, error) {
	if len(cigar) == 0 {
		return nil, errors.New("Empty CIGAR string")
	}
	var slice []CigarOperation
	for i := 0; i < len(cigar); {
		op, j, err := newCigarOperation(cigar, i)
		if err != nil {
			return nil, fmt.Errorf("%v, while scanning CIGAR string %v", err, cigar)
		}
		slice = append(slice, op)
		i = j
	}
	value, _ := cigarSliceCache.LoadOrStore(cigarString(cigar), slice)
	return value.([]CigarOperation), nil
}

// ScanCigarString parses a CIGAR string into its operations. The
// string "*" yields an empty slice.
//
// It is safe for multiple goroutines to call ScanCigarString
// concurrently.
func ScanCigarString(cigar string) ([]CigarOperation, error) {
	if cigar == "*" {
		return nil, nil
	}
	if value, found := cigarSliceCache.Load(cigarString(cigar)); found {
		return value.([]CigarOperation), nil
	}
	return slowScanCigarString(cigar)
}

// FormatCigar appends the textual form of the given operations to
// out, or "*" if there are none.
func FormatCigar(out []byte, cigar []CigarOperation) []byte {
	if len(cigar) == 0 {
		return append(out, '*')
	}
	for _, op := range cigar {
		out = append(strconv.AppendInt(out, int64(op.Length), 10), op.Operation)
	}
	return out
}

// OperatorConsumesReadBases is true for M, I, S, = and X.
func OperatorConsumesReadBases(operator byte) bool {
	switch operator {
	case 'M', 'I', 'S', '=', 'X':
		return true
	default:
		return false
	}
}

// OperatorConsumesReferenceBases is true for M, D, N, = and X.
func OperatorConsumesReferenceBases(operator byte) bool {
	switch operator {
	case 'M', 'D', 'N', '=', 'X':
		return true
	default:
		return false
	}
}

// ReadLengthFromCigar sums the lengths of all CIGAR operations that
// consume read bases.
func ReadLengthFromCigar(cigar []CigarOperation) (length int32) {
	for _, op := range cigar {
		if OperatorConsumesReadBases(op.Operation) {
			length += op.Length
		}
	}
	return
}

// ReferenceLengthFromCigar sums the lengths of all CIGAR operations
// that consume reference bases.
func ReferenceLengthFromCigar(cigar []CigarOperation) (length int32) {
	for _, op := range cigar {
		if OperatorConsumesReferenceBases(op.Operation) {
			length += op.Length
		}
	}
	return
}

/*
ReadIndicesAt translates an offset into the reference span of an
alignment (0 is the alignment's POS) into the half-open range
[start, end) of read indices that cover it.

ok is false if the offset lies left or right of the span, or inside a
deletion or skip. Hard clips and padding consume neither coordinate.

If the offset hits the last base of a matched run, and the next
operation is an insertion, the range also includes the inserted
bases. Insertions are only ever reported this way, attached to the
reference position that precedes them.
*/
func ReadIndicesAt(cigar []CigarOperation, offset int32) (start, end int32, ok bool) {
	if offset < 0 {
		return 0, 0, false
	}
	var refConsumed, readConsumed int32
	for i, op := range cigar {
		switch op.Operation {
		case 'S', 'I':
			readConsumed += op.Length
		case 'D', 'N':
			if offset < refConsumed+op.Length {
				return 0, 0, false
			}
			refConsumed += op.Length
		case 'M', '=', 'X':
			if offset < refConsumed+op.Length {
				start = readConsumed + offset - refConsumed
				end = start + 1
				if (offset == refConsumed+op.Length-1) && (i+1 < len(cigar)) {
					if next := cigar[i+1]; next.Operation == 'I' {
						end += next.Length
					}
				}
				return start, end, true
			}
			refConsumed += op.Length
			readConsumed += op.Length
		}
	}
	return 0, 0, false
}
