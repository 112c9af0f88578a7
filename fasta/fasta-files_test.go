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
	"bytes"
	"testing"
)

func TestFormat(t *testing.T) {
	testCases := []struct {
		seq   string
		width int
		want  string
	}{
		{"", 4, ">r\n"},
		{"ACG", 4, ">r\nACG\n"},
		{"ACGT", 4, ">r\nACGT\n"},
		{"ACGTNNA", 4, ">r\nACGT\nNNA\n"},
		{"ACGTACGT", 4, ">r\nACGT\nACGT\n"},
	}
	for _, tc := range testCases {
		var buf bytes.Buffer
		if err := Format(&buf, "r", tc.seq, tc.width); err != nil {
			t.Errorf("Format %q failed: %v", tc.seq, err)
			continue
		}
		if got := buf.String(); got != tc.want {
			t.Errorf("Format %q: got %q, want %q", tc.seq, got, tc.want)
		}
	}
}

func TestFormatInvalidWidth(t *testing.T) {
	var buf bytes.Buffer
	if err := Format(&buf, "r", "ACGT", 0); err == nil {
		t.Error("Format with width 0 did not fail")
	}
}
