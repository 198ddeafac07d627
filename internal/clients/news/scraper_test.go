package news

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const naverPage = `<html><body><ul class="realtimeNewsList"><li class="newsList"><dl>
<dt class="articleSubject"><a href="/news/news_read.naver?article_id=1">코스피, 외국인 매수에 2,720선 회복</a></dt>
<dd class="articleSummary">요약 <span class="press">연합뉴스</span><span class="wdate">2024-06-07 15:40</span></dd>
<dt class="articleSubject"><a href="/news/news_read.naver?article_id=2">반도체株 강세 지속</a></dt>
<dd class="articleSummary">요약 <span class="press">한국경제</span><span class="wdate">2024-06-07 16:05</span></dd>
<dt class="articleSubject"><a href="/news/news_read.naver?article_id=3">코스피, 외국인 매수에 2,720선 회복</a></dt>
<dd class="articleSummary">요약 <span class="press">뉴스1</span><span class="wdate">2024-06-07 15:10</span></dd>
</dl></li></ul></body></html>`

func TestHeadlines_ParsesAndDedupes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(naverPage))
	}))
	defer server.Close()

	s := NewScraper([]string{server.URL + "/news/list"}, time.Second, time.UTC, zerolog.Nop())
	res := s.Headlines(context.Background(), 10)
	items, ok := res.Value()
	require.True(t, ok, res.Reason())
	require.Len(t, items, 2)

	// newest first
	assert.Equal(t, "반도체株 강세 지속", items[0].Title)
	assert.Equal(t, "한국경제", items[0].Press)
	assert.Equal(t, server.URL+"/news/news_read.naver?article_id=2", items[0].Link)
	assert.Equal(t, time.Date(2024, 6, 7, 16, 5, 0, 0, time.UTC), items[0].PublishedAt)
	assert.Equal(t, "naver", items[0].Source)
}

func TestHeadlines_Limit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(naverPage))
	}))
	defer server.Close()

	s := NewScraper([]string{server.URL}, time.Second, time.UTC, zerolog.Nop())
	items, ok := s.Headlines(context.Background(), 1).Value()
	require.True(t, ok)
	assert.Len(t, items, 1)
}

func TestHeadlines_PartialFailureStillOk(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(naverPage))
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer bad.Close()

	s := NewScraper([]string{bad.URL, good.URL}, time.Second, time.UTC, zerolog.Nop())
	assert.True(t, s.Headlines(context.Background(), 10).IsOk())

	onlyBad := NewScraper([]string{bad.URL}, time.Second, time.UTC, zerolog.Nop())
	res := onlyBad.Headlines(context.Background(), 10)
	assert.False(t, res.IsOk())
	assert.Contains(t, res.Reason(), "502")

	assert.False(t, NewScraper(nil, time.Second, time.UTC, zerolog.Nop()).Headlines(context.Background(), 10).IsOk())
}
