// Package classify labels prompt-to-prompt transitions with a change pattern
// and decides whether a transition is significant enough to record.
package classify

import (
	"github.com/hpungsan/revise/internal/similarity"
)

// ChangeType is the change-pattern label assigned to a transition.
type ChangeType string

const (
	NewPrompt      ChangeType = "new_prompt"
	CopyPasteEdit  ChangeType = "copy_paste_edit"
	MajorRewrite   ChangeType = "major_rewrite"
	DetailAddition ChangeType = "detail_addition"
	Refinement     ChangeType = "refinement"
	MinorEdit      ChangeType = "minor_edit"
	GeneralEdit    ChangeType = "general_edit"
)

// AllChangeTypes lists every label Classify can return.
var AllChangeTypes = []ChangeType{
	NewPrompt, CopyPasteEdit, MajorRewrite, DetailAddition, Refinement, MinorEdit, GeneralEdit,
}

// DefaultThreshold applies to change types without an entry in thresholds.
const DefaultThreshold = 0.1

// thresholds is the minimum dissimilarity (1 - similarity) per change type.
var thresholds = map[ChangeType]float64{
	CopyPasteEdit:  0.05,
	MajorRewrite:   0.0,
	DetailAddition: 0.1,
	Refinement:     0.15,
	MinorEdit:      0.3,
	GeneralEdit:    0.1,
}

// Valid reports whether ct is a known change type.
func (ct ChangeType) Valid() bool {
	for _, known := range AllChangeTypes {
		if ct == known {
			return true
		}
	}
	return false
}

// Threshold returns the significance threshold for ct.
func Threshold(ct ChangeType) float64 {
	if t, ok := thresholds[ct]; ok {
		return t
	}
	return DefaultThreshold
}

// Classify returns the change pattern for the transition oldText -> newText.
// Rules are evaluated in order; the first match wins.
func Classify(oldText, newText string) ChangeType {
	if oldText == "" {
		return NewPrompt
	}

	sim := similarity.Ratio(oldText, newText)
	oldLen := runeLen(oldText)
	newLen := runeLen(newText)
	lenDiff := abs(newLen - oldLen)
	lenRatio := float64(newLen) / float64(oldLen)

	switch {
	case sim > 0.8 && lenDiff > 20:
		return CopyPasteEdit
	case sim < 0.3:
		return MajorRewrite
	case sim > 0.7 && lenRatio > 1.3:
		return DetailAddition
	case sim > 0.6 && sim < 0.8:
		return Refinement
	case sim > 0.9 && lenDiff < 10:
		return MinorEdit
	default:
		return GeneralEdit
	}
}

// IsSignificant reports whether the dissimilarity of the transition meets
// the threshold for ct. An empty oldText is always significant.
func IsSignificant(oldText, newText string, ct ChangeType) bool {
	if oldText == "" {
		return true
	}
	return 1-similarity.Ratio(oldText, newText) >= Threshold(ct)
}

// ShouldPersist applies the autosave policy: minor edits are never recorded,
// everything else is recorded when significant.
func ShouldPersist(ct ChangeType, significant bool) bool {
	return ct != MinorEdit && significant
}

// Analysis is a change descriptor for one observed transition.
type Analysis struct {
	ChangeType  ChangeType `json:"changeType"`
	Similarity  float64    `json:"similarity"`
	LengthDiff  int        `json:"lengthDiff"`
	Threshold   float64    `json:"threshold"`
	Significant bool       `json:"significant"`
	Persist     bool       `json:"persist"`
}

// Analyze classifies the transition and evaluates the autosave policy.
// LengthDiff is signed (new minus old).
func Analyze(oldText, newText string) Analysis {
	ct := Classify(oldText, newText)
	significant := IsSignificant(oldText, newText, ct)
	return Analysis{
		ChangeType:  ct,
		Similarity:  similarity.Ratio(oldText, newText),
		LengthDiff:  runeLen(newText) - runeLen(oldText),
		Threshold:   Threshold(ct),
		Significant: significant,
		Persist:     ShouldPersist(ct, significant),
	}
}

func runeLen(s string) int {
	return len([]rune(s))
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
