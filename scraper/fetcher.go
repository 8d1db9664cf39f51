package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aluiziolira/go-catalogue-sync/config"
	"github.com/gocolly/colly/v2"
)

const (
	ctxBody   = "body"
	ctxStatus = "status"
	ctxStart  = "start"

	htmlAccept = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
)

// Fetcher retrieves single catalogue pages with a browser-like header set and
// the injected session cookie. It never retries.
type Fetcher struct {
	cfg       *config.Config
	collector *colly.Collector
	metrics   *Metrics
	pagesURL  string
}

// NewFetcher builds a fetcher for cfg. It fails before any I/O when the
// session cookie or base URL is unusable.
func NewFetcher(cfg *config.Config, metrics *Metrics) (*Fetcher, error) {
	if strings.TrimSpace(cfg.SessionCookie) == "" {
		return nil, &config.ConfigurationError{Field: "session_cookie", Reason: "session cookie is required to fetch the catalogue"}
	}
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, &config.ConfigurationError{Field: "base_url", Reason: err.Error()}
	}
	if parsed.Host == "" {
		return nil, &config.ConfigurationError{Field: "base_url", Reason: "base URL must include a host"}
	}

	collector := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.AllowedDomains(parsed.Hostname()),
		colly.UserAgent(cfg.UserAgent),
	)
	collector.SetRequestTimeout(cfg.Timeout)
	// Statuses are judged in FetchPage; colly alone fails everything from 203 up.
	collector.ParseHTTPErrorResponse = true
	collector.IgnoreRobotsTxt = !cfg.RespectRobotsTxt
	collector.DisableCookies()
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	f := &Fetcher{
		cfg:       cfg,
		collector: collector,
		metrics:   metrics,
		pagesURL:  strings.TrimSuffix(cfg.BaseURL, "/") + cfg.CataloguePath,
	}
	f.configureHandlers()
	return f, nil
}

// PageURL returns the listing URL of page for categoryID.
func (f *Fetcher) PageURL(categoryID string, page int) string {
	return fmt.Sprintf("%s?is_active=1&in_stock=1&has_positive_price=1&category_id=%s&page=%d",
		f.pagesURL, url.QueryEscape(categoryID), page)
}

// FetchPage returns the raw body of one listing page.
func (f *Fetcher) FetchPage(ctx context.Context, categoryID string, page int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	pageURL := f.PageURL(categoryID, page)
	reqCtx := colly.NewContext()
	headers := f.requestHeaders(categoryID, page)

	done := make(chan error, 1)
	go func() {
		done <- f.collector.Request(http.MethodGet, pageURL, nil, reqCtx, headers)
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case err := <-done:
		if err != nil {
			status, _ := reqCtx.GetAny(ctxStatus).(int)
			return "", &FetchError{
				Page:       page,
				URL:        pageURL,
				StatusCode: status,
				Kind:       classifyError(err, status),
				Err:        err,
			}
		}
	}

	status, _ := reqCtx.GetAny(ctxStatus).(int)
	if status != 0 && (status < http.StatusOK || status >= http.StatusMultipleChoices) {
		err := errors.New(http.StatusText(status))
		f.recordFailure(pageURL, status, err)
		return "", &FetchError{
			Page:       page,
			URL:        pageURL,
			StatusCode: status,
			Kind:       classifyError(err, status),
			Err:        err,
		}
	}

	body, _ := reqCtx.GetAny(ctxBody).([]byte)
	return string(body), nil
}

func (f *Fetcher) requestHeaders(categoryID string, page int) http.Header {
	hdr := http.Header{}
	hdr.Set("User-Agent", f.cfg.UserAgent)
	hdr.Set("Accept-Language", f.cfg.AcceptLanguage)
	hdr.Set("Cookie", f.cfg.SessionCookie)
	hdr.Set("Sec-Fetch-Site", "same-origin")

	if page > 1 {
		hdr.Set("Referer", f.PageURL(categoryID, page-1))
	} else {
		hdr.Set("Referer", f.cfg.SiteRoot())
	}

	if f.cfg.Mode == "json" {
		hdr.Set("Accept", "application/json")
		hdr.Set("X-Requested-With", "XMLHttpRequest")
		hdr.Set("Sec-Fetch-Dest", "empty")
		hdr.Set("Sec-Fetch-Mode", "cors")
		return hdr
	}

	hdr.Set("Accept", htmlAccept)
	hdr.Set("Upgrade-Insecure-Requests", "1")
	hdr.Set("Sec-Fetch-Dest", "document")
	hdr.Set("Sec-Fetch-Mode", "navigate")
	return hdr
}

func (f *Fetcher) configureHandlers() {
	f.collector.OnRequest(func(r *colly.Request) {
		r.Ctx.Put(ctxStart, time.Now())
		f.metrics.IncRequest("started")
		slog.Debug("fetching catalogue page", slog.String("url", r.URL.String()))
	})

	f.collector.OnResponse(func(r *colly.Response) {
		r.Ctx.Put(ctxBody, r.Body)
		r.Ctx.Put(ctxStatus, r.StatusCode)
		if start, ok := r.Ctx.GetAny(ctxStart).(time.Time); ok {
			f.metrics.ObserveDuration(time.Since(start))
		}
		if r.StatusCode >= http.StatusOK && r.StatusCode < http.StatusMultipleChoices {
			f.metrics.IncRequest("completed")
		}
	})

	f.collector.OnError(func(r *colly.Response, err error) {
		statusCode := 0
		pageURL := ""
		if r != nil {
			statusCode = r.StatusCode
			if r.Request != nil && r.Request.URL != nil {
				pageURL = r.Request.URL.String()
			}
			if r.Ctx != nil {
				r.Ctx.Put(ctxStatus, statusCode)
				if start, ok := r.Ctx.GetAny(ctxStart).(time.Time); ok {
					f.metrics.ObserveDuration(time.Since(start))
				}
			}
		}
		f.recordFailure(pageURL, statusCode, err)
	})
}

func (f *Fetcher) recordFailure(pageURL string, statusCode int, err error) {
	kind := errorKindLabel(classifyError(err, statusCode))
	f.metrics.IncRequest("failed")
	f.metrics.IncError(kind)
	slog.Error("request error",
		slog.String("url", pageURL),
		slog.Int("status", statusCode),
		slog.String("category", kind),
		slog.Any("error", err),
	)
}
