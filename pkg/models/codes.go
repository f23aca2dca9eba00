package models

import (
	"regexp"
	"strings"
)

var codeSeparator = regexp.MustCompile(`[,\s]+`)

// SplitCodes splits free-text error codes on commas and/or whitespace,
// dropping empty tokens. Codes are not validated against any DTC format.
func SplitCodes(raw string) []string {
	var codes []string
	for _, tok := range codeSeparator.Split(raw, -1) {
		if tok = strings.TrimSpace(tok); tok != "" {
			codes = append(codes, tok)
		}
	}
	return codes
}

// NormalizeCodes returns the codes in raw joined by ", ".
// "P0420,  P0171 P0300" becomes "P0420, P0171, P0300".
func NormalizeCodes(raw string) string {
	return strings.Join(SplitCodes(raw), ", ")
}
