// Package rikunabi extracts job postings from Rikunabi NEXT search results.
package rikunabi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"leadscout-engine/internal/crawl/types"
	"leadscout-engine/internal/crawl/util"
	"leadscout-engine/internal/domain"
)

const defaultBaseURL = "https://next.rikunabi.com"

// maxPages is a hard backstop; smart-stop usually ends the crawl well before.
const maxPages = 100

type Config struct {
	BaseURL string
}

type Scraper struct {
	cfg  Config
	hc   *http.Client
	gate types.Gate
}

func New(cfg Config, g types.Gate) *Scraper {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return &Scraper{
		cfg:  cfg,
		hc:   &http.Client{Timeout: 20 * time.Second},
		gate: g,
	}
}

func (s *Scraper) Source() domain.Source { return domain.SourceRikunabi }

func (s *Scraper) Extract(ctx context.Context, q types.SearchQuery) types.Iterator {
	return types.NewPaged(func(ctx context.Context, page int) ([]domain.RawLead, bool, error) {
		return s.fetchPage(ctx, q, page)
	})
}

func (s *Scraper) searchURL(q types.SearchQuery, page int) string {
	v := url.Values{}
	if q.Keyword != "" {
		v.Set("keyword", q.Keyword)
	}
	if q.Location != "" {
		v.Set("area", q.Location)
	}
	v.Set("page", fmt.Sprint(page))
	return fmt.Sprintf("%s/search/?%s", strings.TrimRight(s.cfg.BaseURL, "/"), v.Encode())
}

var reJobID = regexp.MustCompile(`/rnc/docs/cp_s\d*\.jsp\?rqmt_id=(\w+)|/job/(\w+)`)

func (s *Scraper) fetchPage(ctx context.Context, q types.SearchQuery, page int) ([]domain.RawLead, bool, error) {
	if page > maxPages {
		return nil, false, nil
	}

	doc, err := util.FetchDocument(ctx, s.hc, s.gate, s.Source(), page, s.searchURL(q, page))
	if err != nil {
		return nil, false, err
	}

	items := doc.Find("li.rnn-jobOfferList__item")
	if items.Length() == 0 && page == 1 {
		// an empty first page with no result container usually means the
		// markup moved under us
		if doc.Find(".rnn-jobOfferList").Length() == 0 && doc.Find(".rnn-noResult").Length() == 0 {
			return nil, false, types.Extractionf(types.KindParse, s.Source(), page, "result list container not found")
		}
	}

	var out []domain.RawLead
	items.Each(func(_ int, card *goquery.Selection) {
		lead, ok := s.parseCard(card)
		if ok {
			out = append(out, lead)
		}
	})

	more := doc.Find("a.rnn-pagination__next").Length() > 0
	return out, more, nil
}

func (s *Scraper) parseCard(card *goquery.Selection) (domain.RawLead, bool) {
	titleSel := card.Find(".rnn-offerTitle a").First()
	title := util.CleanText(titleSel.Text())
	href, _ := titleSel.Attr("href")
	href = strings.TrimSpace(href)
	if title == "" || href == "" {
		return domain.RawLead{}, false
	}

	pageURL := href
	if strings.HasPrefix(href, "/") {
		pageURL = strings.TrimRight(s.cfg.BaseURL, "/") + href
	}

	recordID, _ := card.Attr("data-job-id")
	if recordID == "" {
		if m := reJobID.FindStringSubmatch(href); m != nil {
			recordID = util.FirstNonEmpty(m[1], m[2])
		}
	}
	if recordID == "" {
		recordID = util.HashString("url:" + pageURL)
	}

	salaryText := util.CleanText(card.Find(".rnn-offerDetail__salary").Text())
	salaryMin, salaryMax := util.ParseSalary(salaryText)

	locText := util.CleanText(card.Find(".rnn-offerDetail__area").Text())

	var labels []string
	card.Find(".rnn-iconLabel").Each(func(_ int, l *goquery.Selection) {
		if t := util.CleanText(l.Text()); t != "" {
			labels = append(labels, t)
		}
	})

	posted := util.ParseDate(util.CleanText(card.Find(".rnn-offerDate__start").Text()))
	if posted == nil {
		now := time.Now().UTC()
		posted = &now
	}
	expires := util.ParseDate(util.CleanText(card.Find(".rnn-offerDate__end").Text()))

	return domain.RawLead{
		Identity: domain.Identity{Source: s.Source(), RecordID: recordID},

		Title:          title,
		CompanyName:    util.CleanText(card.Find(".rnn-offerCompanyName").Text()),
		CompanyLogoURL: attrOrEmpty(card.Find(".rnn-offerCompanyLogo img"), "src"),
		EmploymentType: util.CleanText(card.Find(".rnn-offerDetail__employment").Text()),
		Industry:       util.CleanText(card.Find(".rnn-offerDetail__industry").Text()),
		Description:    util.CleanText(card.Find(".rnn-offerSummary").Text()),
		Requirements:   util.CleanText(card.Find(".rnn-offerDetail__qualification").Text()),
		Benefits:       util.CleanText(card.Find(".rnn-offerDetail__welfare").Text()),
		WorkHours:      util.CleanText(card.Find(".rnn-offerDetail__workHours").Text()),
		SalaryMin:      salaryMin,
		SalaryMax:      salaryMax,
		SalaryText:     salaryText,
		Locations:      util.NormalizeLocations(locText),
		LocationText:   locText,
		Labels:         labels,
		PageURL:        pageURL,

		DatePosted:  *posted,
		DateExpires: expires,
		IsActive:    !card.HasClass("rnn-jobOfferList__item--closed"),
	}, true
}

func attrOrEmpty(sel *goquery.Selection, name string) string {
	v, _ := sel.First().Attr(name)
	return strings.TrimSpace(v)
}
