package domain

import (
	"fmt"
	"time"
)

// Candidate is an item offered by a source feed. Immutable once fetched.
type Candidate struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	Source    string `json:"source"`
	Ups       int    `json:"ups"`
	Permalink string `json:"permalink"`
	Author    string `json:"author"`
}

// Content is the resolved payload handed to an evaluator.
type Content struct {
	Data     []byte
	MIMEType string
}

// EvaluationRequest carries everything an evaluator needs for one candidate.
type EvaluationRequest struct {
	Content Content
	Title   string
	Avoid   []string
}

// Verdict is the evaluator's judgment on a candidate.
type Verdict struct {
	Acceptable    bool    `json:"isAppropriate"`
	Score         float64 `json:"humorScore"`
	RefusalReason string  `json:"refusalReason,omitempty"`
	Explanation   string  `json:"explanation"`
	Leaning       string  `json:"politicalLeaning,omitempty"`
}

// Passes reports whether the verdict clears the acceptance threshold.
func (v Verdict) Passes(threshold float64) bool {
	return v.Acceptable && v.Score >= threshold
}

// TechnicalErrorVerdict is the rejecting verdict recorded when an evaluation call fails.
func TechnicalErrorVerdict(err error) Verdict {
	explanation := "AI Analysis failed."
	if err != nil {
		explanation = fmt.Sprintf("AI Analysis failed: %v", err)
	}
	return Verdict{
		Acceptable:    false,
		Score:         0,
		RefusalReason: "Technical Error",
		Explanation:   explanation,
	}
}

// Status tracks a candidate through one cycle.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAnalyzing Status = "analyzing"
	StatusAnalyzed  Status = "analyzed"
	StatusRejected  Status = "rejected"
	StatusFailed    Status = "failed"
	StatusPosted    Status = "posted"
	StatusSkipped   Status = "skipped"
)

var transitions = map[Status][]Status{
	StatusPending:   {StatusAnalyzing, StatusAnalyzed, StatusFailed, StatusSkipped},
	StatusAnalyzing: {StatusAnalyzed, StatusRejected, StatusFailed},
	StatusAnalyzed:  {StatusPosted, StatusFailed, StatusSkipped},
}

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	switch s {
	case StatusPosted, StatusRejected, StatusFailed, StatusSkipped:
		return true
	}
	return false
}

// ScoredItem pairs a candidate with its verdict and lifecycle status.
type ScoredItem struct {
	Candidate Candidate `json:"candidate"`
	Verdict   *Verdict  `json:"analysis,omitempty"`
	Status    Status    `json:"status"`
	Err       string    `json:"error,omitempty"`
	PostedAt  time.Time `json:"postedAt,omitzero"`
}

// NewScoredItem wraps a freshly fetched candidate.
func NewScoredItem(c Candidate) ScoredItem {
	return ScoredItem{Candidate: c, Status: StatusPending}
}

// Transition moves the item to next, refusing moves the lifecycle does not allow.
func (i *ScoredItem) Transition(next Status) error {
	if i.Status.Terminal() {
		return fmt.Errorf("item %s: status %s is terminal", i.Candidate.ID, i.Status)
	}
	for _, allowed := range transitions[i.Status] {
		if allowed == next {
			i.Status = next
			return nil
		}
	}
	return fmt.Errorf("item %s: invalid transition %s -> %s", i.Candidate.ID, i.Status, next)
}
