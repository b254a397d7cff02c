package rikunabi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadscout-engine/internal/crawl/types"
	"leadscout-engine/internal/domain"
)

const page1HTML = `<!DOCTYPE html><html><body>
<ul class="rnn-jobOfferList">
  <li class="rnn-jobOfferList__item" data-job-id="r100">
    <div class="rnn-offerTitle"><a href="/job/r100">バックエンドエンジニア【Go】</a></div>
    <div class="rnn-offerCompanyName">株式会社テック</div>
    <div class="rnn-offerDetail__salary">年収５００万円〜８００万円</div>
    <div class="rnn-offerDetail__area">東京都、神奈川県</div>
    <div class="rnn-offerDetail__employment">正社員</div>
    <div class="rnn-offerSummary">自社プロダクトのAPI開発</div>
    <span class="rnn-iconLabel">リモート可</span>
    <span class="rnn-iconLabel">未経験歓迎</span>
    <div class="rnn-offerDate__start">2024年5月1日</div>
    <div class="rnn-offerDate__end">2024年6月30日</div>
  </li>
  <li class="rnn-jobOfferList__item rnn-jobOfferList__item--closed">
    <div class="rnn-offerTitle"><a href="/rnc/docs/cp_s01.jsp?rqmt_id=r200">募集終了の求人</a></div>
    <div class="rnn-offerCompanyName">終了株式会社</div>
  </li>
</ul>
<a class="rnn-pagination__next" href="?page=2">次へ</a>
</body></html>`

const page2HTML = `<!DOCTYPE html><html><body>
<ul class="rnn-jobOfferList">
  <li class="rnn-jobOfferList__item">
    <div class="rnn-offerTitle"><a href="https://example.com/external/xyz">外部リンクの求人</a></div>
    <div class="rnn-offerCompanyName">外部株式会社</div>
  </li>
</ul>
</body></html>`

func fixtureServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "1":
			fmt.Fprint(w, page1HTML)
		case "2":
			fmt.Fprint(w, page2HTML)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func drain(t *testing.T, it types.Iterator) []domain.RawLead {
	t.Helper()
	var out []domain.RawLead
	for {
		rec, err := it.Next(context.Background())
		if errors.Is(err, types.ErrEnd) {
			return out
		}
		require.NoError(t, err)
		out = append(out, rec)
	}
}

func TestExtractWalksAllPages(t *testing.T) {
	srv := fixtureServer(t)
	s := New(Config{BaseURL: srv.URL}, nil)

	leads := drain(t, s.Extract(context.Background(), types.SearchQuery{Keyword: "Go", Location: "東京"}))
	require.Len(t, leads, 3)

	first := leads[0]
	assert.Equal(t, domain.SourceRikunabi, first.Identity.Source)
	assert.Equal(t, "r100", first.Identity.RecordID)
	assert.Equal(t, "バックエンドエンジニア【Go】", first.Title)
	assert.Equal(t, "株式会社テック", first.CompanyName)
	require.NotNil(t, first.SalaryMin)
	require.NotNil(t, first.SalaryMax)
	assert.Equal(t, 500, *first.SalaryMin, "full width digits folded before parsing")
	assert.Equal(t, 800, *first.SalaryMax)
	assert.Equal(t, []string{"東京都", "神奈川県"}, first.Locations)
	assert.Equal(t, []string{"リモート可", "未経験歓迎"}, first.Labels)
	assert.Equal(t, srv.URL+"/job/r100", first.PageURL)
	assert.Equal(t, "2024-05-01", first.DatePosted.Format("2006-01-02"))
	require.NotNil(t, first.DateExpires)
	assert.Equal(t, "2024-06-30", first.DateExpires.Format("2006-01-02"))
	assert.True(t, first.IsActive)

	closed := leads[1]
	assert.Equal(t, "r200", closed.Identity.RecordID, "record id pulled from the detail href")
	assert.False(t, closed.IsActive)

	external := leads[2]
	assert.NotEmpty(t, external.Identity.RecordID, "unrecognized href falls back to a hashed id")
	assert.Equal(t, "https://example.com/external/xyz", external.PageURL)
}

func TestExtractBlockedSite(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	s := New(Config{BaseURL: srv.URL}, nil)
	it := s.Extract(context.Background(), types.SearchQuery{Keyword: "Go"})

	_, err := it.Next(context.Background())
	var xe *types.ExtractionError
	require.ErrorAs(t, err, &xe)
	assert.Equal(t, types.KindBlocked, xe.Kind)
}

func TestExtractMissingContainer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>layout changed</p></body></html>`)
	}))
	t.Cleanup(srv.Close)

	s := New(Config{BaseURL: srv.URL}, nil)
	it := s.Extract(context.Background(), types.SearchQuery{Keyword: "Go"})

	_, err := it.Next(context.Background())
	var xe *types.ExtractionError
	require.ErrorAs(t, err, &xe)
	assert.Equal(t, types.KindParse, xe.Kind)
	assert.Equal(t, 1, xe.Page)
}

func TestExtractNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><div class="rnn-noResult">該当する求人はありません</div></body></html>`)
	}))
	t.Cleanup(srv.Close)

	s := New(Config{BaseURL: srv.URL}, nil)
	leads := drain(t, s.Extract(context.Background(), types.SearchQuery{Keyword: "存在しないキーワード"}))
	assert.Empty(t, leads)
}
