// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// suggest.go - "Did you mean" suggestions for mistyped commands.
package cli

import (
	"strings"
)

// validCommands lists the command words and aliases ParseArgs accepts.
var validCommands = []string{
	"tui",
	"ask",
	"chat",
	"login",
	"logout",
	"whoami",
	"history",
	"conversations",
	"config",
	"version",
	"help",
}

// SuggestCommand returns the valid command closest to input, or "" when
// nothing is close enough. Longer inputs tolerate more edits.
func SuggestCommand(input string) string {
	input = strings.ToLower(input)
	if len([]rune(input)) < 2 {
		return ""
	}

	maxDistance := 1
	switch n := len([]rune(input)); {
	case n > 8:
		maxDistance = 3
	case n >= 4:
		maxDistance = 2
	}

	best, bestDistance := "", maxDistance+1
	for _, cmd := range validCommands {
		d := levenshteinDistance(input, cmd)
		if d == 0 {
			return ""
		}
		if d < bestDistance {
			best, bestDistance = cmd, d
		}
	}
	return best
}

// levenshteinDistance is the edit distance between a and b, counted in
// runes, using two rolling rows.
func levenshteinDistance(a, b string) int {
	s, t := []rune(a), []rune(b)
	if len(s) == 0 {
		return len(t)
	}
	if len(t) == 0 {
		return len(s)
	}

	prev := make([]int, len(t)+1)
	curr := make([]int, len(t)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(s); i++ {
		curr[0] = i
		for j := 1; j <= len(t); j++ {
			cost := 1
			if s[i-1] == t[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(t)]
}
