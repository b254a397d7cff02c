package util

import (
	"net/http"
	"strings"
)

// LooksLikeBlock detects anti-automation responses so a source task can stop
// rather than hammer a site that has already flagged us.
func LooksLikeBlock(resp *http.Response, bodyPreview string) bool {
	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
		return true
	}

	server := strings.ToLower(resp.Header.Get("Server"))
	cfRay := resp.Header.Get("CF-RAY")
	if strings.Contains(server, "cloudflare") && cfRay != "" && resp.StatusCode >= 400 {
		return true
	}

	low := strings.ToLower(bodyPreview)
	if strings.Contains(low, "/cdn-cgi/") ||
		strings.Contains(low, "checking your browser") ||
		strings.Contains(low, "attention required") ||
		strings.Contains(low, "captcha") ||
		strings.Contains(low, "アクセスが集中") ||
		strings.Contains(low, "不正なアクセス") {
		return true
	}
	return false
}
