package models

import (
	"fmt"
	"strings"
)

// Disclaimer must close every diagnosis explanation.
const Disclaimer = "This is a diagnostic guide, not a replacement for a professional mechanic."

// Difficulty bounds for a suggested fix (1 = trivial DIY, 5 = shop job).
const (
	MinDifficulty = 1
	MaxDifficulty = 5
)

// SuggestedFix is a single repair the user can attempt.
type SuggestedFix struct {
	Name         string `json:"name"`
	Difficulty   int    `json:"difficulty"`
	Description  string `json:"description"`
	IsMostLikely bool   `json:"isMostLikely"`
}

// DiagnosisResult is the validated output of a diagnosis run.
type DiagnosisResult struct {
	Explanation    string         `json:"explanation"`
	Commonality    string         `json:"commonality"`
	SuggestedFixes []SuggestedFix `json:"suggestedFixes"`
}

// MostLikely returns the first fix flagged as most likely, or nil.
func (d *DiagnosisResult) MostLikely() *SuggestedFix {
	for i := range d.SuggestedFixes {
		if d.SuggestedFixes[i].IsMostLikely {
			return &d.SuggestedFixes[i]
		}
	}
	return nil
}

// MostLikelyCount returns how many fixes carry the most-likely flag.
func (d *DiagnosisResult) MostLikelyCount() int {
	n := 0
	for _, f := range d.SuggestedFixes {
		if f.IsMostLikely {
			n++
		}
	}
	return n
}

// FormatText renders the result as plain text for terminals and logs.
func (d *DiagnosisResult) FormatText() string {
	var b strings.Builder

	b.WriteString("EXPLANATION\n")
	b.WriteString(d.Explanation)
	b.WriteString("\n\n")

	b.WriteString("COMMONALITY\n")
	b.WriteString(d.Commonality)
	b.WriteString("\n\n")

	b.WriteString("SUGGESTED FIXES\n")
	for i, f := range d.SuggestedFixes {
		marker := ""
		if f.IsMostLikely {
			marker = " [Most Likely]"
		}
		fmt.Fprintf(&b, "%d. %s%s (difficulty %s)\n", i+1, f.Name, marker, DifficultyMeter(f.Difficulty))
		if f.Description != "" {
			fmt.Fprintf(&b, "   %s\n", f.Description)
		}
	}

	return b.String()
}

// DifficultyMeter renders a difficulty level as a five-slot bar, e.g. "###.." for 3.
func DifficultyMeter(level int) string {
	level = max(0, min(level, MaxDifficulty))
	return strings.Repeat("#", level) + strings.Repeat(".", MaxDifficulty-level)
}
