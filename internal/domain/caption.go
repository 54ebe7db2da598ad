package domain

import (
	"fmt"
	"strconv"
	"strings"
)

const footerExplanationLimit = 100

// Origin names where the item came from, e.g. "r/memes".
func (i ScoredItem) Origin() string {
	if strings.HasPrefix(i.Candidate.Permalink, "https://reddit.com") {
		return "r/" + i.Candidate.Source
	}
	return i.Candidate.Source
}

// ScoreLine is the short metadata line shown under the title.
func (i ScoredItem) ScoreLine() string {
	if i.Verdict != nil {
		return fmt.Sprintf("Curated from %s (Score: %s/10)", i.Origin(), strconv.FormatFloat(i.Verdict.Score, 'f', -1, 64))
	}
	return fmt.Sprintf("Curated from %s (Upvotes: %d)", i.Origin(), i.Candidate.Ups)
}

// Footer is the caption attached to the image. Feedback sync reads it back
// as the exclusion string when the post collects negative reactions.
func (i ScoredItem) Footer() string {
	if i.Verdict == nil {
		return fmt.Sprintf("👍 %d upvotes", i.Candidate.Ups)
	}
	explanation := []rune(i.Verdict.Explanation)
	if len(explanation) > footerExplanationLimit {
		explanation = explanation[:footerExplanationLimit]
	}
	return "AI Analysis: " + string(explanation) + "..."
}
