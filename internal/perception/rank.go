package perception

import (
	"sort"

	"github.com/ard14n/AJETE/api/schemas"
)

// maxMarks caps the number of marks per observation.
const maxMarks = 220

// overlapLimit is the fraction of the smaller rectangle's area above which
// two candidates are considered duplicates.
const overlapLimit = 0.92

// maxTextLen bounds the visible-text fields handed to the model.
const maxTextLen = 80

// candidate is the raw in-page harvest output before ranking.
type candidate struct {
	Index     int          `json:"index"`
	Tag       string       `json:"tag"`
	Role      string       `json:"role"`
	Text      string       `json:"text"`
	AriaLabel string       `json:"ariaLabel"`
	Title     string       `json:"title"`
	Href      string       `json:"href"`
	Score     int          `json:"score"`
	Native    bool         `json:"native"`
	Rect      schemas.Rect `json:"rect"`
}

// harvest is the full in-page result.
type harvest struct {
	ViewportW  float64     `json:"viewportW"`
	ViewportH  float64     `json:"viewportH"`
	Candidates []candidate `json:"candidates"`
}

// acceptedMark ties a dense mark id back to its in-page candidate index.
type acceptedMark struct {
	ID        int
	CandIndex int
	Element   schemas.SoMElement
}

// rankAndDedup orders candidates by score then area, greedily accepts them
// rejecting heavy overlaps, caps the result, and assigns mark ids densely
// from 0 in acceptance order.
func rankAndDedup(cands []candidate) []acceptedMark {
	sorted := make([]candidate, len(cands))
	copy(sorted, cands)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].Rect.Area() > sorted[j].Rect.Area()
	})

	accepted := make([]acceptedMark, 0, len(sorted))
	for _, c := range sorted {
		if len(accepted) >= maxMarks {
			break
		}
		if overlapsAccepted(c.Rect, accepted) {
			continue
		}
		id := len(accepted)
		accepted = append(accepted, acceptedMark{
			ID:        id,
			CandIndex: c.Index,
			Element: schemas.SoMElement{
				ID:        id,
				Tag:       c.Tag,
				Role:      c.Role,
				Text:      truncate(c.Text, maxTextLen),
				AriaLabel: truncate(c.AriaLabel, maxTextLen),
				Title:     truncate(c.Title, maxTextLen),
				Href:      c.Href,
				Score:     c.Score,
				Rect:      c.Rect,
			},
		})
	}
	return accepted
}

func overlapsAccepted(r schemas.Rect, accepted []acceptedMark) bool {
	for _, a := range accepted {
		overlap := r.Intersect(a.Element.Rect)
		if overlap <= 0 {
			continue
		}
		smaller := r.Area()
		if other := a.Element.Rect.Area(); other < smaller {
			smaller = other
		}
		if smaller > 0 && overlap/smaller > overlapLimit {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
