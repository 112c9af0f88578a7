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

package fasta

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// DefaultLineWidth is the number of sequence characters per line.
const DefaultLineWidth = 80

// Format writes one FASTA record to out, breaking the sequence into
// lines of at most width characters.
func Format(out io.Writer, name, seq string, width int) error {
	if width <= 0 {
		return fmt.Errorf("Invalid FASTA line width %v", width)
	}
	w := bufio.NewWriter(out)
	w.WriteByte('>')
	w.WriteString(name)
	w.WriteByte('\n')
	for len(seq) > width {
		w.WriteString(seq[:width])
		w.WriteByte('\n')
		seq = seq[width:]
	}
	if len(seq) > 0 {
		w.WriteString(seq)
		w.WriteByte('\n')
	}
	return w.Flush()
}

// ToFastaFile stores a single FASTA record in the named file. If the
// filename is "/dev/stdout", the record is written to os.Stdout.
func ToFastaFile(filename, name, seq string, width int) (err error) {
	if filename == "/dev/stdout" {
		return Format(os.Stdout, name, seq, width)
	}
	output, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if nerr := output.Close(); err == nil {
			err = nerr
		}
	}()
	return Format(output, name, seq, width)
}
