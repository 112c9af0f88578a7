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
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// SAM file extensions.
const (
	SamExt  = ".sam"
	BamExt  = ".bam"
	cramExt = ".cram"
)

// InputFile represents a SAM file for input.
type InputFile struct {
	rc io.ReadCloser
	*bufio.Reader
}

// Open a SAM file for input.
//
// BAM and CRAM files are rejected. Any other extension is read as
// SAM text. If the name is "/dev/stdin", then the input is read from
// os.Stdin.
func Open(name string) (*InputFile, error) {
	switch filepath.Ext(name) {
	case BamExt, cramExt:
		return nil, fmt.Errorf("Only SAM text input is supported when opening %v", name)
	}
	if name == "/dev/stdin" {
		return &InputFile{os.Stdin, bufio.NewReader(os.Stdin)}, nil
	}
	file, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	return &InputFile{file, bufio.NewReader(file)}, nil
}

// Close closes the SAM input file. os.Stdin is left open.
func (f *InputFile) Close() error {
	if f.rc == os.Stdin {
		return nil
	}
	return f.rc.Close()
}

// OutputFile represents a SAM or text file for output.
type OutputFile struct {
	wc io.WriteCloser
	*bufio.Writer
}

// Create a file for output. If the name is "/dev/stdout", then the
// output is written to os.Stdout.
func Create(name string) (*OutputFile, error) {
	if name == "/dev/stdout" {
		return &OutputFile{os.Stdout, bufio.NewWriter(os.Stdout)}, nil
	}
	file, err := os.Create(name)
	if err != nil {
		return nil, err
	}
	return &OutputFile{file, bufio.NewWriter(file)}, nil
}

// Close flushes and closes the output file. os.Stdout is flushed,
// but left open.
func (f *OutputFile) Close() error {
	if err := f.Flush(); err != nil {
		return err
	}
	if f.wc == os.Stdout {
		return nil
	}
	return f.wc.Close()
}
