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
	"log"
	"math"
	"os"

	"github.com/exascience/elconsensus/sam"
)

// PileupHelp is the help string for this command.
const PileupHelp = "pileup parameters:\n" +
	"elconsensus pileup sam-file\n" +
	"--reference-name name\n" +
	"--position pos\n" +
	"[--skip-malformed]\n" +
	"[--log-path path]\n"

// validPosition checks that a 1-based position fits the int32
// coordinates of SAM records.
func validPosition(position int) bool {
	return (position > 0) && (position <= math.MaxInt32)
}

// Pileup implements the elconsensus pileup command. It prints the
// base call and quality of every read covering one position, followed
// by the consensus call.
func Pileup() error {
	var (
		refName, logPath string
		position         int
		skipMalformed    bool
	)

	var flags flag.FlagSet
	flags.StringVar(&refName, "reference-name", "", "reference to inspect")
	flags.IntVar(&position, "position", 0, "1-based reference position to inspect")
	flags.BoolVar(&skipMalformed, "skip-malformed", false, "log and skip malformed alignment lines")
	flags.StringVar(&logPath, "log-path", "", "write log files to the specified directory")
	parseFlags(&flags, 3, PileupHelp)

	input := getFilename(os.Args[2], PileupHelp)

	setLogOutput(logPath)

	sanityChecksFailed := !checkExist("", input)
	if refName == "" {
		log.Println("Error: Missing --reference-name.")
		sanityChecksFailed = true
	}
	if !validPosition(position) {
		log.Println("Error: --position must be a 1-based reference position between 1 and", math.MaxInt32)
		sanityChecksFailed = true
	}
	if sanityChecksFailed {
		fmt.Fprint(os.Stderr, PileupHelp)
		os.Exit(1)
	}

	set, err := loadAlignmentSet(input, skipMalformed, false, "")
	if err != nil {
		return err
	}

	output, err := sam.Create("/dev/stdout")
	if err != nil {
		return err
	}
	pos := int32(position)
	for _, entry := range set.Pileup(refName, pos) {
		fmt.Fprintf(output, "%v\t%v\t%v\t%v\n", refName, pos, entry.Base, entry.Qual)
	}
	call := set.ConsensusAt(refName, pos)
	if call == "" {
		call = "N"
	}
	fmt.Fprintf(output, "consensus\t%v\n", call)
	return output.Close()
}
