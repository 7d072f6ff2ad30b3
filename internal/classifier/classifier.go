// Package classifier matches raw error text against a fixed registry
// of known failure signatures and assigns categories and severities
// before any AI analysis runs.
//
// Classification is pure and deterministic: the registry is built at
// process start and never mutated, so concurrent callers need no
// synchronization.
package classifier

import (
	"fmt"
	"sort"
	"strings"
)

// maxExcerpts caps how many distinct matched excerpts are kept per
// classification to bound prompt size.
const maxExcerpts = 3

// Classify scans text against the signature registry and returns one
// Classification per matched category, sorted by severity rank
// ascending (CRITICAL first). Ties keep registry order. Empty input
// yields an empty result.
func Classify(text string) []Classification {
	var out []Classification
	seen := make(map[ErrorCategory]struct{})

	for _, sig := range signatures {
		matches := sig.Detector.FindAllString(text, -1)
		if len(matches) == 0 {
			continue
		}
		if _, dup := seen[sig.Category]; dup {
			continue
		}
		seen[sig.Category] = struct{}{}

		out = append(out, Classification{
			Category:        sig.Category,
			Severity:        sig.Severity,
			Hint:            sig.Hint,
			MatchedExcerpts: distinctExcerpts(matches),
			MatchCount:      len(matches),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Severity.Rank() < out[j].Severity.Rank()
	})

	return out
}

// distinctExcerpts returns up to maxExcerpts unique match strings in
// encounter order.
func distinctExcerpts(matches []string) []string {
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, maxExcerpts)
	for _, m := range matches {
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
		if len(out) == maxExcerpts {
			break
		}
	}
	return out
}

// HighestSeverity returns the severity of the first classification.
// The input must already be sorted by Classify; an empty list yields
// SeverityInfo.
func HighestSeverity(cs []Classification) Severity {
	if len(cs) == 0 {
		return SeverityInfo
	}
	return cs[0].Severity
}

// noPatternsSentinel is emitted when nothing matched. Downstream embeds
// it verbatim in prompts, so it stays plain text.
const noPatternsSentinel = "No known error patterns detected."

// FormatForPrompt renders classifications as a numbered plain-text
// summary for prompt embedding.
func FormatForPrompt(cs []Classification) string {
	if len(cs) == 0 {
		return noPatternsSentinel
	}

	var b strings.Builder
	b.WriteString("Pre-analysis detected the following error patterns:")
	for i, c := range cs {
		b.WriteString(fmt.Sprintf("\n  %d. [%s] %s: %s", i+1, c.Severity, c.Category, c.Hint))
	}
	return b.String()
}
