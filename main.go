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

// elConsensus calls majority-vote consensus sequences from the
// primary alignments in a .sam file.
//
// Please see https://github.com/exascience/elconsensus for a
// documentation of the tool, and below (and/or
// https://godoc.org/github.com/ExaScience/elconsensus) for the API
// documentation.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/exascience/elconsensus/cmd"
)

func printHelp() {
	fmt.Fprintln(os.Stderr, "Available commands: consensus, pileup, mapped-seqs, primary")
	fmt.Fprint(os.Stderr, "\n", cmd.ConsensusHelp)
	fmt.Fprint(os.Stderr, "\n", cmd.PileupHelp)
	fmt.Fprint(os.Stderr, "\n", cmd.MappedSeqsHelp)
	fmt.Fprint(os.Stderr, "\n", cmd.PrimaryHelp)
}

func main() {
	fmt.Fprintln(os.Stderr, cmd.ProgramMessage)
	if len(os.Args) < 2 {
		log.Println("Incorrect number of parameters.")
		fmt.Fprint(os.Stderr, cmd.HelpMessage, "\n")
		printHelp()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "consensus":
		err = cmd.Consensus()
	case "pileup":
		err = cmd.Pileup()
	case "mapped-seqs":
		err = cmd.MappedSeqs()
	case "primary":
		err = cmd.Primary()
	case "help", "-help", "--help", "-h", "--h":
		printHelp()
	default:
		log.Println("Unknown command", os.Args[1])
		printHelp()
		os.Exit(1)
	}
	if err != nil {
		log.Fatal(err)
	}
}
