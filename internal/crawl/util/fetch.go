package util

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"leadscout-engine/internal/crawl/types"
	"leadscout-engine/internal/domain"
)

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// FetchDocument issues one gated page fetch and parses the response body.
// Context cancellation comes back as a bare ctx error; everything else is an
// *ExtractionError classified for the orchestrator.
func FetchDocument(ctx context.Context, hc *http.Client, g types.Gate, source domain.Source, page int, url string) (*goquery.Document, error) {
	if g != nil {
		if err := g.Acquire(ctx, source); err != nil {
			return nil, err
		}
		defer g.Release(source)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, types.Extractionf(types.KindNavigation, source, page, "build request: %v", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "ja,en;q=0.8")

	resp, err := hc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return nil, types.Extractionf(types.KindTimeout, source, page, "get %s: %v", url, err)
		}
		return nil, types.Extractionf(types.KindNavigation, source, page, "get %s: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		preview, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if LooksLikeBlock(resp, string(preview)) {
			return nil, types.Extractionf(types.KindBlocked, source, page, "status %d at %s", resp.StatusCode, url)
		}
		return nil, types.Extractionf(types.KindNavigation, source, page, "status %d at %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.Extractionf(types.KindNavigation, source, page, "read body: %v", err)
	}
	if LooksLikeBlock(resp, string(body[:minInt(len(body), 4096)])) {
		return nil, types.Extractionf(types.KindBlocked, source, page, "challenge page at %s", url)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, types.Extractionf(types.KindParse, source, page, "parse html: %v", err)
	}
	return doc, nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
