// Package news scrapes market headlines from finance portal list pages.
package news

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"golang.org/x/net/html/charset"

	"github.com/Thetason/korean-stock-daily-report/internal/domain"
	"github.com/Thetason/korean-stock-daily-report/internal/sources"
	"github.com/Thetason/korean-stock-daily-report/internal/utils"
)

const (
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
	maxTitleLength = 120
)

// profile describes where headline fields live on a list page
type profile struct {
	source string
	item   string // one element per headline
	title  string // anchor inside item
	meta   string // sibling of item holding press/date, "" when inside item
	press  string
	date   string
}

var (
	naverProfile = profile{
		source: "naver",
		item:   ".articleSubject",
		title:  "a",
		meta:   ".articleSummary",
		press:  ".press",
		date:   ".wdate",
	}
	daumProfile = profile{
		source: "daum",
		item:   "li.item_news",
		title:  "a.link_news",
		press:  ".txt_info",
		date:   ".txt_date",
	}
)

var dateLayouts = []string{"2006-01-02 15:04:05", "2006-01-02 15:04", "2006.01.02 15:04", "06.01.02 15:04"}

// Scraper collects headlines from one or more list pages
type Scraper struct {
	urls       []string
	httpClient *http.Client
	loc        *time.Location
	log        zerolog.Logger
}

// NewScraper creates a scraper for the given list page URLs
func NewScraper(urls []string, timeout time.Duration, loc *time.Location, log zerolog.Logger) *Scraper {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Scraper{
		urls:       urls,
		httpClient: &http.Client{Timeout: timeout},
		loc:        loc,
		log:        log.With().Str("component", "news_scraper").Logger(),
	}
}

// Headlines scrapes every configured page, removes duplicate titles and
// returns the newest first. It is unavailable only when every page fails.
func (s *Scraper) Headlines(ctx context.Context, limit int) sources.Result[[]domain.Headline] {
	if len(s.urls) == 0 {
		return sources.Unavailable[[]domain.Headline]("no news URLs configured")
	}

	var all []domain.Headline
	var failures []string
	for _, u := range s.urls {
		items, err := s.scrape(ctx, u)
		if err != nil {
			s.log.Warn().Err(err).Str("url", u).Msg("Failed to scrape news page")
			failures = append(failures, err.Error())
			continue
		}
		all = append(all, items...)
	}

	if len(failures) == len(s.urls) {
		return sources.Unavailable[[]domain.Headline]("%s", strings.Join(failures, "; "))
	}

	all = dedupe(all)
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].PublishedAt.After(all[j].PublishedAt)
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}

	s.log.Info().Int("headlines", len(all)).Msg("Market news collected")
	return sources.Ok(all)
}

func (s *Scraper) scrape(ctx context.Context, pageURL string) ([]domain.Headline, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("news page %s: status %d", pageURL, resp.StatusCode)
	}

	// Portal pages are often EUC-KR
	body, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("failed to detect charset: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	return s.extract(doc, pageURL), nil
}

func (s *Scraper) extract(doc *goquery.Document, pageURL string) []domain.Headline {
	base, _ := url.Parse(pageURL)
	p := profileFor(base)

	var out []domain.Headline
	doc.Find(p.item).Each(func(i int, item *goquery.Selection) {
		a := item.Find(p.title).First()
		title := strings.TrimSpace(a.Text())
		if title == "" {
			return
		}
		href, _ := a.Attr("href")

		meta := item
		if p.meta != "" {
			if next := item.NextFiltered(p.meta); next.Length() > 0 {
				meta = next
			}
		}

		out = append(out, domain.Headline{
			Title:       utils.TruncateRunes(title, maxTitleLength),
			Link:        resolve(base, href),
			Press:       strings.TrimSpace(meta.Find(p.press).First().Text()),
			PublishedAt: s.parseDate(strings.TrimSpace(meta.Find(p.date).First().Text())),
			Source:      p.source,
		})
	})
	return out
}

func profileFor(u *url.URL) profile {
	if u != nil && strings.Contains(u.Host, "daum") {
		return daumProfile
	}
	return naverProfile
}

func (s *Scraper) parseDate(v string) time.Time {
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, v, s.loc); err == nil {
			return t
		}
	}
	return time.Time{}
}

func resolve(base *url.URL, href string) string {
	if href == "" || base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func dedupe(items []domain.Headline) []domain.Headline {
	seen := make(map[string]bool, len(items))
	out := items[:0]
	for _, h := range items {
		if seen[h.Title] {
			continue
		}
		seen[h.Title] = true
		out = append(out, h)
	}
	return out
}
