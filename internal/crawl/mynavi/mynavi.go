// Package mynavi extracts job postings from Mynavi Tenshoku search results.
// Mynavi renders each posting as a "cassette" with a definition table of
// labeled rows, so field extraction is header-driven rather than
// class-driven.
package mynavi

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

const defaultBaseURL = "https://tenshoku.mynavi.jp"

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

func (s *Scraper) Source() domain.Source { return domain.SourceMynavi }

func (s *Scraper) Extract(ctx context.Context, q types.SearchQuery) types.Iterator {
	return types.NewPaged(func(ctx context.Context, page int) ([]domain.RawLead, bool, error) {
		return s.fetchPage(ctx, q, page)
	})
}

func (s *Scraper) searchURL(q types.SearchQuery, page int) string {
	v := url.Values{}
	if q.Keyword != "" {
		v.Set("kw", q.Keyword)
	}
	if q.Location != "" {
		v.Set("area", q.Location)
	}
	v.Set("pg", fmt.Sprint(page))
	return fmt.Sprintf("%s/list/?%s", strings.TrimRight(s.cfg.BaseURL, "/"), v.Encode())
}

var reMsgID = regexp.MustCompile(`/jobinfo-(\d+-\d+)/`)

func (s *Scraper) fetchPage(ctx context.Context, q types.SearchQuery, page int) ([]domain.RawLead, bool, error) {
	if page > maxPages {
		return nil, false, nil
	}

	doc, err := util.FetchDocument(ctx, s.hc, s.gate, s.Source(), page, s.searchURL(q, page))
	if err != nil {
		return nil, false, err
	}

	cassettes := doc.Find(".cassetteRecruit")
	if cassettes.Length() == 0 && page == 1 &&
		doc.Find(".js__searchRecruit, .emptyResult").Length() == 0 {
		return nil, false, types.Extractionf(types.KindParse, s.Source(), page, "no recruit cassettes in document")
	}

	var out []domain.RawLead
	cassettes.Each(func(_ int, card *goquery.Selection) {
		lead, ok := s.parseCassette(card)
		if ok {
			out = append(out, lead)
		}
	})

	more := doc.Find(".pager__next a, a.iconFont--arrowRight").Length() > 0
	return out, more, nil
}

func (s *Scraper) parseCassette(card *goquery.Selection) (domain.RawLead, bool) {
	link := card.Find("a.cassetteRecruit__copy, .cassetteRecruit__copy a").First()
	title := util.CleanText(link.Text())
	href, _ := link.Attr("href")
	if title == "" {
		title = util.CleanText(card.Find(".cassetteRecruit__copy").Text())
	}
	href = strings.TrimSpace(href)
	if title == "" {
		return domain.RawLead{}, false
	}

	pageURL := href
	if strings.HasPrefix(href, "/") {
		pageURL = strings.TrimRight(s.cfg.BaseURL, "/") + href
	}

	recordID := ""
	if m := reMsgID.FindStringSubmatch(href); m != nil {
		recordID = m[1]
	}
	if recordID == "" {
		recordID = util.HashString("url:" + util.FirstNonEmpty(pageURL, title))
	}

	// labeled table: 仕事内容 / 対象となる方 / 勤務地 / 給与 ...
	fields := map[string]string{}
	card.Find("table tr, .tableCondition__item").Each(func(_ int, row *goquery.Selection) {
		head := util.CleanText(row.Find("th, .tableCondition__head").First().Text())
		body := util.CleanText(row.Find("td, .tableCondition__body").First().Text())
		if head != "" && body != "" {
			fields[head] = body
		}
	})

	salaryText := fields["給与"]
	salaryMin, salaryMax := util.ParseSalary(salaryText)
	locText := fields["勤務地"]

	var labels []string
	card.Find(".labelEmploymentStatus, .cassetteRecruit__label").Each(func(_ int, l *goquery.Selection) {
		if t := util.CleanText(l.Text()); t != "" {
			labels = append(labels, t)
		}
	})

	posted := util.ParseDate(util.CleanText(card.Find(".cassetteRecruit__updateDate").Text()))
	if posted == nil {
		now := time.Now().UTC()
		posted = &now
	}
	expires := util.ParseDate(util.CleanText(card.Find(".cassetteRecruit__endDate").Text()))

	return domain.RawLead{
		Identity: domain.Identity{Source: s.Source(), RecordID: recordID},

		Title:          title,
		CompanyName:    util.CleanText(card.Find(".cassetteRecruit__name").Text()),
		EmploymentType: util.CleanText(card.Find(".labelEmploymentStatus").First().Text()),
		Industry:       fields["業種"],
		Description:    fields["仕事内容"],
		Requirements:   fields["対象となる方"],
		Benefits:       fields["福利厚生"],
		WorkHours:      fields["勤務時間"],
		SalaryMin:      salaryMin,
		SalaryMax:      salaryMax,
		SalaryText:     salaryText,
		Locations:      util.NormalizeLocations(locText),
		LocationText:   locText,
		Labels:         labels,
		PageURL:        pageURL,

		DatePosted:  *posted,
		DateExpires: expires,
		IsActive:    !strings.Contains(card.AttrOr("class", ""), "cassetteRecruit--closed"),
	}, true
}
