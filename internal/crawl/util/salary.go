package util

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	reManYen   = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*万円`)
	reJPDate   = regexp.MustCompile(`(\d{4})年\s*(\d{1,2})月\s*(\d{1,2})日`)
	reSlashDay = regexp.MustCompile(`(\d{4})[/.-](\d{1,2})[/.-](\d{1,2})`)
)

// ParseSalary pulls a yearly min/max in 万円 out of free-form salary text.
// "年収400万円〜600万円" → (400, 600); "月給25万円" is annualized; text with
// no recognizable 万円 figures yields nils and the caller keeps the raw text.
func ParseSalary(text string) (min *int, max *int) {
	t := CleanText(text)
	if t == "" {
		return nil, nil
	}

	monthly := strings.Contains(t, "月給") || strings.Contains(t, "月収")

	matches := reManYen.FindAllStringSubmatch(t, -1)
	if len(matches) == 0 {
		return nil, nil
	}

	toYearly := func(raw string) *int {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil
		}
		if monthly {
			f *= 12
		}
		n := int(f)
		return &n
	}

	min = toYearly(matches[0][1])
	if len(matches) > 1 {
		max = toYearly(matches[len(matches)-1][1])
	}
	if min != nil && max != nil && *max < *min {
		min, max = max, min
	}
	return min, max
}

// ParseDate handles the date shapes the boards actually emit: RFC3339,
// "2024/05/01", and "2024年5月1日". Returns nil when nothing matches.
func ParseDate(s string) *time.Time {
	s = CleanText(s)
	if s == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t
	}
	if m := reJPDate.FindStringSubmatch(s); m != nil {
		return buildDate(m[1], m[2], m[3])
	}
	if m := reSlashDay.FindStringSubmatch(s); m != nil {
		return buildDate(m[1], m[2], m[3])
	}
	return nil
}

func buildDate(y, mo, d string) *time.Time {
	yi, _ := strconv.Atoi(y)
	mi, _ := strconv.Atoi(mo)
	di, _ := strconv.Atoi(d)
	if mi < 1 || mi > 12 || di < 1 || di > 31 {
		return nil
	}
	t := time.Date(yi, time.Month(mi), di, 0, 0, 0, 0, time.UTC)
	return &t
}
