package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"MemeCurator/internal/domain"
)

const (
	minScore = 0
	maxScore = 10
)

var leanings = []string{"left", "right", "neutral", "unknown"}

const moderatorInstruction = `You are a highly culturally aware and humorous content moderator for a Discord community.
Your job is to curate memes.

We are looking for:
1. Actually funny content.
2. Wholesome or relatable humor.
3. Left-leaning political memes are ACCEPTABLE and welcome if they are funny.

We STRICTLY REJECT:
1. Right-wing political propaganda or memes.
2. Mean-spirited, bullying, or punch-down humor.
3. Racism, sexism, homophobia, or transphobia.
4. Unfunny, low-effort trash.
`

const verdictInstruction = `Analyze the image provided. Rate the humor from 1-10.
Return a JSON object with your verdict using the keys isAppropriate (boolean),
humorScore (number), explanation (string), refusalReason (string, optional) and
politicalLeaning (one of left, right, neutral, unknown).`

func systemInstruction(avoid []string) string {
	var b strings.Builder
	b.WriteString(moderatorInstruction)
	if len(avoid) > 0 {
		b.WriteString("\nCRITICAL: The user has specifically expressed dislike for memes with the following themes or elements: ")
		b.WriteString(strings.Join(avoid, ", "))
		b.WriteString(". Do NOT approve memes that match these descriptions.\n")
	}
	b.WriteString("\n")
	b.WriteString(verdictInstruction)
	return b.String()
}

func userPrompt(title string) string {
	return fmt.Sprintf("Title: %s. Analyze this meme.", strings.TrimSpace(title))
}

type rawVerdict struct {
	IsAppropriate    *bool    `json:"isAppropriate"`
	HumorScore       *float64 `json:"humorScore"`
	Explanation      *string  `json:"explanation"`
	RefusalReason    string   `json:"refusalReason"`
	PoliticalLeaning string   `json:"politicalLeaning"`
}

// ParseVerdict decodes a model response into a Verdict, tagging anything
// unusable as domain.KindMalformed.
func ParseVerdict(raw string) (domain.Verdict, error) {
	text := stripFences(raw)
	if text == "" {
		return domain.Verdict{}, domain.NewAdapterError("parse verdict", domain.KindMalformed, errors.New("empty response"))
	}

	var parsed rawVerdict
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return domain.Verdict{}, domain.NewAdapterError("parse verdict", domain.KindMalformed, fmt.Errorf("decode: %w", err))
	}

	var missing []string
	if parsed.IsAppropriate == nil {
		missing = append(missing, "isAppropriate")
	}
	if parsed.HumorScore == nil {
		missing = append(missing, "humorScore")
	}
	if parsed.Explanation == nil {
		missing = append(missing, "explanation")
	}
	if len(missing) > 0 {
		return domain.Verdict{}, domain.NewAdapterError("parse verdict", domain.KindMalformed, fmt.Errorf("missing fields: %s", strings.Join(missing, ", ")))
	}

	score := *parsed.HumorScore
	if score < minScore || score > maxScore {
		return domain.Verdict{}, domain.NewAdapterError("parse verdict", domain.KindMalformed, fmt.Errorf("humorScore %v outside [%d,%d]", score, minScore, maxScore))
	}

	leaning := strings.ToLower(strings.TrimSpace(parsed.PoliticalLeaning))
	if leaning != "" && !contains(leanings, leaning) {
		leaning = "unknown"
	}

	return domain.Verdict{
		Acceptable:    *parsed.IsAppropriate,
		Score:         score,
		RefusalReason: strings.TrimSpace(parsed.RefusalReason),
		Explanation:   strings.TrimSpace(*parsed.Explanation),
		Leaning:       leaning,
	}, nil
}

func stripFences(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

// classifyStatus maps an HTTP status from a model provider to an error kind.
func classifyStatus(code int) domain.ErrorKind {
	switch {
	case code == 429:
		return domain.KindQuota
	case code == 401 || code == 403:
		return domain.KindConfig
	default:
		return domain.KindTransport
	}
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
