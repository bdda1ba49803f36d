package handlers

import (
	"sort"
	"strings"

	"aura/internal/types"
)

// clickableRoles is the extended set of accessibility roles a GUI command
// may target. Hosts append deployment-specific roles via configuration.
var clickableRoles = map[string]bool{
	"AXButton":        true,
	"AXMenuButton":    true,
	"AXMenuItem":      true,
	"AXMenuBarItem":   true,
	"AXLink":          true,
	"AXCheckBox":      true,
	"AXRadioButton":   true,
	"AXTab":           true,
	"AXToolbarButton": true,
	"AXPopUpButton":   true,
	"AXComboBox":      true,
}

// elementMatch is a scored candidate.
type elementMatch struct {
	element types.Element
	exact   bool
	score   int // 0-100 similarity of the best-matching label
}

// matchElements scores elements against the requested label. role, when
// non-empty, must match the element role; otherwise any clickable role
// qualifies. fuzzyThreshold of 0 disables fuzzy matching entirely.
func matchElements(elems []types.Element, role, label string, extraRoles []string, fuzzyThreshold int) []elementMatch {
	want := normalizeLabel(label)
	if want == "" {
		return nil
	}

	extra := make(map[string]bool, len(extraRoles))
	for _, r := range extraRoles {
		extra[r] = true
	}

	var out []elementMatch
	for _, el := range elems {
		if role != "" {
			if !strings.EqualFold(el.Role, role) {
				continue
			}
		} else if !clickableRoles[el.Role] && !extra[el.Role] {
			continue
		}

		best := elementMatch{element: el}
		for _, raw := range el.Labels() {
			have := normalizeLabel(raw)
			if have == want {
				best.exact = true
				best.score = 100
				break
			}
			if strings.Contains(have, want) && best.score < 90 {
				best.score = 90
			}
			if fuzzyThreshold > 0 {
				if s := similarity(have, want); s >= fuzzyThreshold && s > best.score {
					best.score = s
				}
			}
		}
		if best.exact || best.score > 0 {
			out = append(out, best)
		}
	}
	return out
}

// pickBest orders matches per the tie-break chain: exact title match, then
// enabled, then larger bounding box, then higher similarity.
func pickBest(matches []elementMatch) (types.Element, bool) {
	if len(matches) == 0 {
		return types.Element{}, false
	}
	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.exact != b.exact {
			return a.exact
		}
		if a.element.Enabled != b.element.Enabled {
			return a.element.Enabled
		}
		if aa, ba := a.element.Bounds.Area(), b.element.Bounds.Area(); aa != ba {
			return aa > ba
		}
		return a.score > b.score
	})
	return matches[0].element, true
}

// normalizeLabel lowercases and collapses whitespace for comparison.
func normalizeLabel(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// similarity is a 0-100 Sørensen–Dice score over character bigrams.
// Cheap, order-insensitive enough for UI labels, and symmetric.
func similarity(a, b string) int {
	if a == b {
		return 100
	}
	if len(a) < 2 || len(b) < 2 {
		return 0
	}

	bigrams := func(s string) map[string]int {
		m := make(map[string]int, len(s))
		for i := 0; i+2 <= len(s); i++ {
			m[s[i:i+2]]++
		}
		return m
	}

	ma, mb := bigrams(a), bigrams(b)
	overlap := 0
	for g, ca := range ma {
		if cb, ok := mb[g]; ok {
			if cb < ca {
				overlap += cb
			} else {
				overlap += ca
			}
		}
	}
	total := len(a) - 1 + len(b) - 1
	return 200 * overlap / total
}
