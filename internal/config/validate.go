package config

import (
	"fmt"
	"strings"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// NormalizeAndValidate checks the whole file, daemon settings included. The
// config endpoint uses it so a bad port or sweep window never reaches disk.
// Hard errors block saving; warnings are surfaced to the UI but don't block.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	out, res := NormalizeAndValidateCrawl(cfg)

	if out.App.Port <= 0 || out.App.Port > 65535 {
		res.addErr("app.port must be 1..65535")
	}
	if out.Sweep.StaleAfterDays < 0 {
		res.addErr("sweep.stale_after_days must be >= 0")
	}

	return out, res
}

// NormalizeAndValidateCrawl checks only the fields a run reads: sites,
// thresholds, concurrency, duration. Daemon settings like app.port have
// their own defaults and must not keep a crawl from starting.
func NormalizeAndValidateCrawl(cfg Config) (Config, Validation) {
	out := cfg
	var res Validation

	out.NGKeywords = trimList(out.NGKeywords)
	out.Crawl.Keyword = strings.TrimSpace(out.Crawl.Keyword)
	out.Crawl.Location = strings.TrimSpace(out.Crawl.Location)

	for name, sc := range out.Sites {
		if !sc.Enabled {
			continue
		}
		if sc.RequestInterval < 0 {
			res.addErr("sites.%s.request_interval_seconds must be >= 0", name)
		}
		if sc.RequestInterval > 0 && sc.RequestInterval < 1 {
			res.addWarn("sites.%s.request_interval_seconds is under 1s; the site may rate-limit or block", name)
		}
		if sc.MaxInFlight < 0 {
			res.addErr("sites.%s.max_in_flight must be >= 0", name)
		}
		if sc.MaxInFlight > 2 {
			res.addWarn("sites.%s.max_in_flight=%d is aggressive for a public job board", name, sc.MaxInFlight)
		}
	}

	if out.Crawl.MaxConcurrency < 0 {
		res.addErr("crawl.max_concurrency must be >= 0")
	}
	if out.Crawl.DedupThreshold < 0 {
		res.addErr("crawl.dedup_threshold must be >= 0")
	}
	if out.Crawl.DedupEnabled && out.Crawl.DedupThreshold == 0 {
		res.addWarn("crawl.dedup_enabled is set but dedup_threshold is 0; the default of 50 will be used")
	}
	if out.Crawl.MaxDurationMinutes < 0 {
		res.addErr("crawl.max_duration_minutes must be >= 0")
	}

	if len(out.NGKeywords) > 500 {
		res.addWarn("ng_keywords has %d entries; matching every lead against all of them slows reconciliation", len(out.NGKeywords))
	}

	return out, res
}

func trimList(xs []string) []string {
	seen := map[string]bool{}
	var ys []string
	for _, x := range xs {
		x = strings.TrimSpace(x)
		if x == "" {
			continue
		}
		key := strings.ToLower(x)
		if seen[key] {
			continue
		}
		seen[key] = true
		ys = append(ys, x)
	}
	return ys
}
