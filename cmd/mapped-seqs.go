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

package cmd

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/exascience/elconsensus/internal"
	"github.com/exascience/elconsensus/sam"
)

// MappedSeqsHelp is the help string for this command.
const MappedSeqsHelp = "mapped-seqs parameters:\n" +
	"elconsensus mapped-seqs sam-file output-file\n" +
	"[--skip-malformed]\n" +
	"[--log-path path]\n"

// MappedSeqs implements the elconsensus mapped-seqs command. It
// writes one tab-separated line per primary mapped read, with the
// read name, reference, position, and read sequence as it lies over
// the reference.
func MappedSeqs() (err error) {
	var (
		logPath       string
		skipMalformed bool
	)

	var flags flag.FlagSet
	flags.BoolVar(&skipMalformed, "skip-malformed", false, "log and skip malformed alignment lines")
	flags.StringVar(&logPath, "log-path", "", "write log files to the specified directory")
	parseFlags(&flags, 4, MappedSeqsHelp)

	input := getFilename(os.Args[2], MappedSeqsHelp)
	outputName := getFilename(os.Args[3], MappedSeqsHelp)

	setLogOutput(logPath)

	if !checkExist("", input) || !checkCreate("", outputName) {
		fmt.Fprint(os.Stderr, MappedSeqsHelp)
		os.Exit(1)
	}

	set, err := loadAlignmentSet(input, skipMalformed, false, "")
	if err != nil {
		return err
	}

	output, err := sam.Create(outputName)
	if err != nil {
		return err
	}
	defer func() {
		if nerr := output.Close(); err == nil {
			err = nerr
		}
	}()

	buf := internal.ReserveByteBuffer()
	defer func() { internal.ReleaseByteBuffer(buf) }()
	for _, aln := range set.Reads() {
		buf = append(append(buf[:0], aln.QNAME...), '\t')
		buf = append(append(buf, aln.RNAME...), '\t')
		buf = append(strconv.AppendInt(buf, int64(aln.POS), 10), '\t')
		buf = append(append(buf, aln.MappedSequence()...), '\n')
		if _, err = output.Write(buf); err != nil {
			return err
		}
	}
	return nil
}

// PrimaryHelp is the help string for this command.
const PrimaryHelp = "primary parameters:\n" +
	"elconsensus primary sam-file sam-output-file\n" +
	"[--skip-malformed]\n" +
	"[--log-path path]\n"

// Primary implements the elconsensus primary command. It writes the
// header and the primary mapped reads that consensus calling works
// on, in SAM format.
func Primary() (err error) {
	var (
		logPath       string
		skipMalformed bool
	)

	var flags flag.FlagSet
	flags.BoolVar(&skipMalformed, "skip-malformed", false, "log and skip malformed alignment lines")
	flags.StringVar(&logPath, "log-path", "", "write log files to the specified directory")
	parseFlags(&flags, 4, PrimaryHelp)

	input := getFilename(os.Args[2], PrimaryHelp)
	outputName := getFilename(os.Args[3], PrimaryHelp)

	setLogOutput(logPath)

	if !checkExist("", input) || !checkCreate("", outputName) {
		fmt.Fprint(os.Stderr, PrimaryHelp)
		os.Exit(1)
	}

	set, err := loadAlignmentSet(input, skipMalformed, false, "")
	if err != nil {
		return err
	}

	output, err := sam.Create(outputName)
	if err != nil {
		return err
	}
	defer func() {
		if nerr := output.Close(); err == nil {
			err = nerr
		}
	}()

	if err = set.Header().Format(output.Writer); err != nil {
		return err
	}
	buf := internal.ReserveByteBuffer()
	defer func() { internal.ReleaseByteBuffer(buf) }()
	for _, aln := range set.Reads() {
		buf = aln.Format(buf[:0])
		if _, err = output.Write(buf); err != nil {
			return err
		}
	}
	return nil
}
