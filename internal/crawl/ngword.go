package crawl

import (
	"strings"

	"leadscout-engine/internal/crawl/util"
	"leadscout-engine/internal/domain"
)

// NGMatcher finds configured blocklist keywords in a lead's title,
// description, and company name. Matches are advisory; they are stored on the
// lead for the sales UI to flag, never used to withhold storage.
type NGMatcher struct {
	words  []string
	folded []string
}

func NewNGMatcher(words []string) *NGMatcher {
	m := &NGMatcher{}
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		m.words = append(m.words, w)
		m.folded = append(m.folded, strings.ToLower(util.FoldWidth(w)))
	}
	return m
}

func (m *NGMatcher) Match(raw domain.RawLead) []string {
	if m == nil || len(m.words) == 0 {
		return nil
	}
	blob := strings.ToLower(util.FoldWidth(raw.Title + "\n" + raw.Description + "\n" + raw.CompanyName))

	var out []string
	for i, f := range m.folded {
		if strings.Contains(blob, f) {
			out = append(out, m.words[i])
		}
	}
	return out
}
