package main

import (
	"runtime"
	"testing"
)

func TestSetNProcs(t *testing.T) {
	maxProcs := runtime.GOMAXPROCS(0)
	testCases := []struct {
		name     string
		nprocs   int
		nFiles   int
		expected int
	}{
		{name: "unset one file", nprocs: 0, nFiles: 1, expected: 1},
		{name: "unset many files", nprocs: 0, nFiles: maxProcs + 3, expected: maxProcs},
		{name: "more than files", nprocs: 4, nFiles: 2, expected: min(2, maxProcs)},
		{name: "more than available", nprocs: maxProcs + 1, nFiles: maxProcs + 5, expected: maxProcs},
		{name: "within limits", nprocs: 1, nFiles: 3, expected: 1},
	}
	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			if got := setNProcs(test.nprocs, test.nFiles); got != test.expected {
				t.Errorf("setNProcs(%d, %d) = %d, expected %d", test.nprocs, test.nFiles, got, test.expected)
			}
		})
	}
}

func TestOutPrefix(t *testing.T) {
	if p := outPrefix("run", 0, 1); p != "run" {
		t.Errorf("single file prefix %q", p)
	}
	if p := outPrefix("run", 1, 3); p != "run-2" {
		t.Errorf("second of three prefix %q", p)
	}
}
