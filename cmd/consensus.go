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
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/exascience/elconsensus/fasta"
	"github.com/exascience/elconsensus/sam"
)

// ConsensusHelp is the help string for this command.
const ConsensusHelp = "consensus parameters:\n" +
	"elconsensus consensus sam-file fasta-file\n" +
	"[--reference-name name]\n" +
	"[--line-width nr]\n" +
	"[--skip-malformed]\n" +
	"[--nr-of-threads nr]\n" +
	"[--timed]\n" +
	"[--profile file]\n" +
	"[--log-path path]\n"

func loadAlignmentSet(input string, skipMalformed, timed bool, profile string) (set *sam.AlignmentSet, err error) {
	err = timedRun(timed, profile, "Loading SAM file.", 1, func() (err error) {
		set, err = sam.LoadFile(input, sam.LoadOptions{SkipMalformed: skipMalformed})
		return
	})
	if err != nil {
		return nil, err
	}
	log.Printf("Loaded %v primary mapped reads, %v declared references.\n", len(set.Reads()), len(set.References()))
	return set, nil
}

// Consensus implements the elconsensus consensus command.
func Consensus() error {
	var (
		refName, profile, logPath string
		lineWidth, nrOfThreads    int
		skipMalformed, timed      bool
	)

	var flags flag.FlagSet
	flags.StringVar(&refName, "reference-name", "", "call the consensus for this reference instead of the best mapped one")
	flags.IntVar(&lineWidth, "line-width", fasta.DefaultLineWidth, "number of bases per line in the FASTA output")
	flags.BoolVar(&skipMalformed, "skip-malformed", false, "log and skip malformed alignment lines")
	flags.IntVar(&nrOfThreads, "nr-of-threads", 0, "number of worker threads")
	flags.BoolVar(&timed, "timed", false, "measure the runtime")
	flags.StringVar(&profile, "profile", "", "write a runtime profile to the specified file(s)")
	flags.StringVar(&logPath, "log-path", "", "write log files to the specified directory")
	parseFlags(&flags, 4, ConsensusHelp)

	input := getFilename(os.Args[2], ConsensusHelp)
	output := getFilename(os.Args[3], ConsensusHelp)

	setLogOutput(logPath)

	sanityChecksFailed := !checkExist("", input) || !checkCreate("", output)
	if lineWidth <= 0 {
		log.Printf("Error: Invalid line width %v.\n", lineWidth)
		sanityChecksFailed = true
	}
	if sanityChecksFailed {
		fmt.Fprint(os.Stderr, ConsensusHelp)
		os.Exit(1)
	}

	setNrOfThreads(nrOfThreads)

	set, err := loadAlignmentSet(input, skipMalformed, timed, profile)
	if err != nil {
		return err
	}

	var name, consensus string
	err = timedRun(timed, profile, "Calling consensus.", 2, func() error {
		if refName != "" {
			if !set.HasReference(refName) {
				log.Printf("Warning: Reference %v is not declared in the SAM header.\n", refName)
			}
			name, consensus = refName+"_consensus", set.Consensus(refName)
			if consensus == "" {
				return fmt.Errorf("No consensus found for sequence %v", refName)
			}
			return nil
		}
		best, seq := set.BestConsensus()
		if seq == "" {
			return errors.New("No consensus sequence found")
		}
		log.Println("Best mapped reference:", best)
		name, consensus = "best_mapping_consensus", seq
		return nil
	})
	if err != nil {
		return err
	}

	return timedRun(timed, profile, "Writing FASTA file.", 3, func() error {
		return fasta.ToFastaFile(output, name, consensus, lineWidth)
	})
}
