package sam

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/exascience/elconsensus/utils"
)

func (sc *StringScanner) ParseHeaderField() (tag, value string) {
	if sc.err != nil {
		return
	}
	tag, ok := sc.readUntil(':')
	if !ok || (len(tag) != 2) {
		if sc.err == nil {
			sc.err = fmt.Errorf("Invalid field tag %v", tag)
		}
		return "", ""
	}
	value, _ = sc.readUntil('\t')
	return tag, value
}

func (sc *StringScanner) ParseHeaderLine() utils.StringMap {
	if sc.err != nil {
		return nil
	}
	record := make(utils.StringMap)
	for sc.Len() > 0 {
		tag, value := sc.ParseHeaderField()
		if sc.err != nil {
			break
		}
		if !record.SetUniqueEntry(tag, value) {
			sc.err = fmt.Errorf("Duplicate field tag %v in a SAM header line", tag)
			break
		}
	}
	return record
}

/*
ParseHeader parses the header section at the start of a SAM
stream. It stops at the first line that does not start with '@',
leaving that line unread. lines is the number of header lines read.
*/
func ParseHeader(reader *bufio.Reader) (hdr *Header, lines int, err error) {
	return parseHeader(reader, nil)
}

/*
parseHeader is ParseHeader, except that a malformed header line is
passed to skip together with the parse error instead of ending the
parse, when skip is not nil. Read errors always end the parse.
*/
func parseHeader(reader *bufio.Reader, skip func(line string, err error)) (hdr *Header, lines int, err error) {
	hdr = NewHeader()
	var sc StringScanner
	for first := true; ; first = false {
		switch data, err := reader.Peek(1); {
		case err == io.EOF:
			return hdr, lines, nil
		case err != nil:
			return hdr, lines, err
		case data[0] != '@':
			return hdr, lines, nil
		}
		line, err := reader.ReadString('\n')
		if (err != nil) && (err != io.EOF) {
			return hdr, lines, err
		}
		lines++
		line = strings.TrimRight(line, "\r\n")
		if err := hdr.addHeaderLine(&sc, line, first); err != nil {
			if skip == nil {
				return hdr, lines, err
			}
			skip(line, err)
		}
	}
}

// addHeaderLine parses one header line and adds it to hdr. Nothing is
// added when the line is malformed.
func (hdr *Header) addHeaderLine(sc *StringScanner, line string, first bool) error {
	if len(line) < 3 {
		return fmt.Errorf("Invalid SAM header line %v", line)
	}
	code := line[:3]
	if code == "@CO" {
		hdr.CO = append(hdr.CO, strings.TrimPrefix(line[3:], "\t"))
		return nil
	}
	if (len(line) < 4) || (line[3] != '\t') {
		return fmt.Errorf("Header code %v not followed by a tab when parsing a SAM header", code)
	}
	switch code {
	case "@HD":
		if !first {
			return errors.New("@HD line not in first line when parsing a SAM header")
		}
	case "@SQ", "@RG", "@PG":
	default:
		if !IsHeaderUserTag(code) {
			return fmt.Errorf("Unknown SAM record type code %v", code)
		}
	}
	sc.Reset(line[4:])
	record := sc.ParseHeaderLine()
	if sc.err != nil {
		return fmt.Errorf("%v, while parsing SAM header line %v", sc.err, line)
	}
	switch code {
	case "@HD":
		hdr.HD = record
	case "@SQ":
		hdr.SQ = append(hdr.SQ, record)
	case "@RG":
		hdr.RG = append(hdr.RG, record)
	case "@PG":
		hdr.PG = append(hdr.PG, record)
	default:
		hdr.AddUserRecord(code, record)
	}
	return nil
}

// referenceNamesFromHeaderLine returns the SN entries of an @SQ line
// that occurs outside of the header section.
func referenceNamesFromHeaderLine(line string) (names []string) {
	if !strings.HasPrefix(line, "@SQ\t") {
		return nil
	}
	for _, field := range strings.Split(line[4:], "\t") {
		if strings.HasPrefix(field, "SN:") {
			names = append(names, field[3:])
		}
	}
	return names
}

func (sc *StringScanner) doString() string {
	if sc.err != nil {
		return ""
	}
	value, ok := sc.readUntil('\t')
	if !ok {
		sc.err = errors.New("Missing tabulator in SAM alignment line")
		return ""
	}
	return value
}

func (sc *StringScanner) doInt32(field string) int32 {
	if sc.err != nil {
		return 0
	}
	value, err := strconv.ParseInt(sc.doString(), 10, 32)
	if (err != nil) && (sc.err == nil) {
		sc.err = fmt.Errorf("Invalid %v field: %v", field, err)
	}
	return int32(value)
}

func (sc *StringScanner) doUint(field string, bitSize int) uint64 {
	if sc.err != nil {
		return 0
	}
	value, err := strconv.ParseUint(sc.doString(), 10, bitSize)
	if (err != nil) && (sc.err == nil) {
		sc.err = fmt.Errorf("Invalid %v field: %v", field, err)
	}
	return value
}

// ParseAlignment parses the eleven mandatory fields of a SAM
// alignment line, and keeps the optional fields verbatim.
func (sc *StringScanner) ParseAlignment() *Alignment {
	aln := new(Alignment)

	aln.QNAME = sc.doString()
	aln.FLAG = uint16(sc.doUint("FLAG", 16))
	aln.RNAME = sc.doString()
	aln.POS = sc.doInt32("POS")
	aln.MAPQ = byte(sc.doUint("MAPQ", 8))
	cigar := sc.doString()
	aln.RNEXT = sc.doString()
	aln.PNEXT = sc.doInt32("PNEXT")
	aln.TLEN = sc.doInt32("TLEN")
	aln.SEQ = sc.doString()
	aln.QUAL, _ = sc.readUntil('\t')

	for sc.Len() > 0 {
		if tag, _ := sc.readUntil('\t'); tag != "" {
			aln.TAGS = append(aln.TAGS, tag)
		}
	}

	if sc.err != nil {
		return nil
	}
	aln.CIGAR, sc.err = ScanCigarString(cigar)
	if sc.err != nil {
		return nil
	}
	if sc.err = aln.validate(); sc.err != nil {
		return nil
	}
	return aln
}

func (aln *Alignment) validate() error {
	if aln.POS < 0 {
		return fmt.Errorf("Invalid POS field %v", aln.POS)
	}
	if (aln.SEQ != "*") && (aln.QUAL != "*") && (len(aln.SEQ) != len(aln.QUAL)) {
		return fmt.Errorf("SEQ length %v differs from QUAL length %v", len(aln.SEQ), len(aln.QUAL))
	}
	if (len(aln.CIGAR) > 0) && (aln.SEQ != "*") {
		if length := ReadLengthFromCigar(aln.CIGAR); int(length) != len(aln.SEQ) {
			return fmt.Errorf("CIGAR consumes %v read bases, but SEQ has length %v", length, len(aln.SEQ))
		}
	}
	return nil
}

// ParseAlignment parses one line from the alignment section of a SAM
// file into a fully validated Alignment.
func ParseAlignment(line string) (*Alignment, error) {
	line = strings.TrimRight(line, "\r\n")
	var sc StringScanner
	sc.Reset(line)
	aln := sc.ParseAlignment()
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%v, while parsing SAM alignment line %v", err, line)
	}
	return aln, nil
}

// formatHeaderLine writes the entry for the leading tag first (VN in
// @HD, SN in @SQ, ID in @RG and @PG), then the rest in sorted order.
func formatHeaderLine(out *bufio.Writer, code, leading string, record utils.StringMap) {
	out.WriteString(code)
	writeField := func(key string) {
		out.WriteByte('\t')
		out.WriteString(key)
		out.WriteByte(':')
		out.WriteString(record[key])
	}
	if _, found := record[leading]; found {
		writeField(leading)
	}
	for _, key := range record.SortedKeys() {
		if key != leading {
			writeField(key)
		}
	}
	out.WriteByte('\n')
}

// Format writes the header in SAM text format. A header without an
// @HD line gets one that only declares FileFormatVersion.
func (hdr *Header) Format(out *bufio.Writer) error {
	formatHeaderLine(out, "@HD", "VN", hdr.EnsureHD())
	for _, record := range hdr.SQ {
		formatHeaderLine(out, "@SQ", "SN", record)
	}
	for _, record := range hdr.RG {
		formatHeaderLine(out, "@RG", "ID", record)
	}
	for _, record := range hdr.PG {
		formatHeaderLine(out, "@PG", "ID", record)
	}
	for _, comment := range hdr.CO {
		out.WriteString("@CO\t")
		out.WriteString(comment)
		out.WriteByte('\n')
	}
	codes := make([]string, 0, len(hdr.UserRecords))
	for code := range hdr.UserRecords {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		for _, record := range hdr.UserRecords[code] {
			formatHeaderLine(out, code, "", record)
		}
	}
	return out.Flush()
}
