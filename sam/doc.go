// Package sam is a library for parsing SAM files, resolving reference
// positions through CIGAR strings, and calling majority-vote
// consensus sequences from pileups of aligned reads.
//
// An AlignmentSet is loaded with a pargo pipeline that parses batches
// of alignment lines in parallel, and keeps only primary, mapped
// alignments. Consensus calls for the positions of a reference are
// independent of each other, and are computed in parallel as well. It
// is normally not necessary to deal with pargo directly, but you can
// check the documentation at
// https://godoc.org/github.com/ExaScience/pargo for details.
package sam
