package automation

import "strings"

// Matches reports whether any of the trigger's keywords occurs in text,
// ignoring case. Keywords are compared as stored; an empty one never
// matches.
func Matches(t *Trigger, text string) bool {
	text = strings.ToLower(text)
	for _, kw := range t.Keywords {
		kw = strings.ToLower(kw)
		if kw != "" && strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// FindAllMatching returns, in input order, every trigger scoped to
// deviceID whose keywords match text.
func FindAllMatching(triggers []Trigger, text, deviceID string) []Trigger {
	var out []Trigger
	for i := range triggers {
		t := &triggers[i]
		if t.AppliesTo(deviceID) && Matches(t, text) {
			out = append(out, *t)
		}
	}
	return out
}

// SelectWeighted picks one trigger by roulette-wheel selection over the
// trigger weights. It returns false only for an empty slice. When every
// weight is zero the first trigger is returned.
func SelectWeighted(matches []Trigger, rnd RandomSource) (Trigger, bool) {
	switch len(matches) {
	case 0:
		return Trigger{}, false
	case 1:
		return matches[0], true
	}

	var total float64
	for i := range matches {
		total += matches[i].Weight()
	}
	if total <= 0 {
		return matches[0], true
	}

	r := rnd.Float64() * total
	for i := range matches {
		r -= matches[i].Weight()
		if r <= 0 {
			return matches[i], true
		}
	}
	// Float rounding can leave r a hair above zero.
	return matches[len(matches)-1], true
}

// ParseKeywords splits a comma-separated keyword string, trimming and
// lowercasing each entry and dropping empty ones.
func ParseKeywords(input string) []string {
	var out []string
	for _, part := range strings.Split(input, ",") {
		if kw := strings.ToLower(strings.TrimSpace(part)); kw != "" {
			out = append(out, kw)
		}
	}
	return out
}
