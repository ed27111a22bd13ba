package internal

import (
	"strings"
	"testing"
)

func TestGood(t *testing.T) {
	var goodStrings = []string{
		"_",
		"a",
		"1",
		"0°",
		"INFOS_GENERALES",
		"-0000000000000000001-0000000000000000001",
		"mesh with spaces",
		"..",
	}
	for i := range goodStrings {
		if !IsValidLinkName(goodStrings[i]) {
			t.Error("name should be good", goodStrings[i])
			return
		}
	}
}

func TestBad(t *testing.T) {
	var badStrings = []string{
		"",
		".",
		"/",
		"no/good",
		"nul\x00",
		strings.Repeat("x", MaxLinkNameLen+1),
	}
	for i := range badStrings {
		if IsValidLinkName(badStrings[i]) {
			t.Error("name should be bad", badStrings[i])
			return
		}
	}
}
