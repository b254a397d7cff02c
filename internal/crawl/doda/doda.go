// Package doda extracts job postings from doda search results.
package doda

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"leadscout-engine/internal/crawl/types"
	"leadscout-engine/internal/crawl/util"
	"leadscout-engine/internal/domain"
)

const defaultBaseURL = "https://doda.jp"

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

func (s *Scraper) Source() domain.Source { return domain.SourceDoda }

func (s *Scraper) Extract(ctx context.Context, q types.SearchQuery) types.Iterator {
	return types.NewPaged(func(ctx context.Context, page int) ([]domain.RawLead, bool, error) {
		return s.fetchPage(ctx, q, page)
	})
}

func (s *Scraper) searchURL(q types.SearchQuery, page int) string {
	v := url.Values{}
	if q.Keyword != "" {
		v.Set("k", q.Keyword)
	}
	if q.Location != "" {
		v.Set("pr", q.Location)
	}
	v.Set("page", fmt.Sprint(page))
	return fmt.Sprintf("%s/DodaFront/View/JobSearchList.action?%s", strings.TrimRight(s.cfg.BaseURL, "/"), v.Encode())
}

var reJobID = regexp.MustCompile(`j_jid__(\d+)|/JobSearchDetail[^"]*jid=(\d+)`)

func (s *Scraper) fetchPage(ctx context.Context, q types.SearchQuery, page int) ([]domain.RawLead, bool, error) {
	if page > maxPages {
		return nil, false, nil
	}

	doc, err := util.FetchDocument(ctx, s.hc, s.gate, s.Source(), page, s.searchURL(q, page))
	if err != nil {
		return nil, false, err
	}

	cards := doc.Find("article.cassette, .jobSearchList .cassette")
	if cards.Length() == 0 && page == 1 && doc.Find(".jobSearchList, .noResult").Length() == 0 {
		return nil, false, types.Extractionf(types.KindParse, s.Source(), page, "job list markup not recognized")
	}

	var out []domain.RawLead
	cards.Each(func(_ int, card *goquery.Selection) {
		lead, ok := s.parseCard(card)
		if ok {
			out = append(out, lead)
		}
	})

	// doda exposes the page count; fall back to the next arrow
	more := false
	if total := s.totalPages(doc); total > 0 {
		more = page < total
	} else {
		more = doc.Find(".pagination__next a, a.btnNext").Length() > 0
	}
	return out, more, nil
}

func (s *Scraper) totalPages(doc *goquery.Document) int {
	t := util.CleanText(doc.Find(".pagination__total").First().Text())
	t = strings.TrimSuffix(t, "ページ")
	n, err := strconv.Atoi(t)
	if err != nil {
		return 0
	}
	return n
}

func (s *Scraper) parseCard(card *goquery.Selection) (domain.RawLead, bool) {
	link := card.Find(".cassette__title a, h2 a").First()
	title := util.CleanText(link.Text())
	href, _ := link.Attr("href")
	href = strings.TrimSpace(href)
	if title == "" || href == "" {
		return domain.RawLead{}, false
	}

	pageURL := href
	if strings.HasPrefix(href, "/") {
		pageURL = strings.TrimRight(s.cfg.BaseURL, "/") + href
	}

	recordID := card.AttrOr("data-jid", "")
	if recordID == "" {
		if m := reJobID.FindStringSubmatch(href); m != nil {
			recordID = util.FirstNonEmpty(m[1], m[2])
		}
	}
	if recordID == "" {
		recordID = util.HashString("url:" + pageURL)
	}

	salaryText := util.CleanText(card.Find(".cassette__salary, .salary").First().Text())
	salaryMin, salaryMax := util.ParseSalary(salaryText)
	locText := util.CleanText(card.Find(".cassette__place, .place").First().Text())

	var keywords []string
	card.Find(".cassette__tag, .tagList li").Each(func(_ int, k *goquery.Selection) {
		if t := util.CleanText(k.Text()); t != "" {
			keywords = append(keywords, t)
		}
	})

	posted := util.ParseDate(util.CleanText(card.Find(".cassette__date--start").Text()))
	if posted == nil {
		now := time.Now().UTC()
		posted = &now
	}
	expires := util.ParseDate(util.CleanText(card.Find(".cassette__date--end").Text()))

	return domain.RawLead{
		Identity: domain.Identity{Source: s.Source(), RecordID: recordID},

		Title:          title,
		CompanyName:    util.CleanText(card.Find(".cassette__company, .company").First().Text()),
		CompanyURL:     attrOrEmpty(card.Find(".cassette__company a"), "href"),
		EmploymentType: util.CleanText(card.Find(".cassette__employment").Text()),
		Industry:       util.CleanText(card.Find(".cassette__industry").Text()),
		Description:    util.CleanText(card.Find(".cassette__summary, .jobDescription").First().Text()),
		Requirements:   util.CleanText(card.Find(".cassette__requirement").Text()),
		Benefits:       util.CleanText(card.Find(".cassette__welfare").Text()),
		WorkHours:      util.CleanText(card.Find(".cassette__workHours").Text()),
		SalaryMin:      salaryMin,
		SalaryMax:      salaryMax,
		SalaryText:     salaryText,
		Locations:      util.NormalizeLocations(locText),
		LocationText:   locText,
		Keywords:       keywords,
		PageURL:        pageURL,

		DatePosted:  *posted,
		DateExpires: expires,
		IsActive:    card.Find(".cassette__closed").Length() == 0,
	}, true
}

func attrOrEmpty(sel *goquery.Selection, name string) string {
	v, _ := sel.First().Attr(name)
	return strings.TrimSpace(v)
}
