package util

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"

	"golang.org/x/text/width"
)

// FoldWidth maps full-width ASCII and half-width kana to their canonical
// forms, so "１２３万円" and "123万円" compare equal downstream.
func FoldWidth(s string) string {
	return width.Fold.String(s)
}

func CleanText(s string) string {
	s = FoldWidth(s)
	s = strings.ReplaceAll(s, " ", " ")
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(s)
}

// NormalizeLocations splits a site's location blob ("東京都、大阪府／福岡県")
// into deduplicated individual entries.
func NormalizeLocations(loc string) []string {
	loc = CleanText(loc)
	if loc == "" {
		return nil
	}

	loc = strings.TrimPrefix(loc, "勤務地:")
	loc = strings.TrimPrefix(loc, "勤務地")

	splitter := func(r rune) bool {
		switch r {
		case '、', ',', '/', '／', '・', ';', '；':
			return true
		}
		return false
	}

	seen := map[string]bool{}
	var out []string
	for _, p := range strings.FieldsFunc(loc, splitter) {
		p = CleanText(p)
		if p == "" {
			continue
		}
		k := strings.ToLower(p)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, p)
	}
	return out
}

func HashString(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func Truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
