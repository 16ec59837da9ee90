//go:build integration

package render

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func courtSite() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/case/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><body><div id="caseDetails"><h1>%s</h1><p>Judge Smith</p></div></body></html>`, r.URL.Path)
	})
	mux.HandleFunc("/listing", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body><ul>
<li><a class="case-link" href="/case/1">2024-CF-001</a></li>
<li><a class="case-link" href="case/2">2024-CF-002</a></li>
<li><a href="/about">About</a></li>
</ul></body></html>`)
	})
	mux.HandleFunc("/search", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body><form action="/results" method="get">
<input id="caseNumber" name="q"><button id="searchBtn" type="submit">Go</button>
</form></body></html>`)
	})
	mux.HandleFunc("/results", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><body><a class="case-link" href="/case/%s">result</a></body></html>`, r.URL.Query().Get("q"))
	})
	return httptest.NewServer(mux)
}

func newChromeClient(t *testing.T) *Client {
	t.Helper()
	b, err := NewChromeBrowser(context.Background(), ChromeOptions{
		Headless: true,
		Width:    1280,
		Height:   900,
		ExecPath: os.Getenv("CHROME_PATH"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return NewClient(b, CaptureOptions{NavTimeout: 20 * time.Second, WaitTimeout: 5 * time.Second, SettleDelay: 100 * time.Millisecond})
}

func TestChrome_Capture(t *testing.T) {
	srv := courtSite()
	defer srv.Close()
	c := newChromeClient(t)

	capture, err := c.Capture(context.Background(), srv.URL+"/case/2024-CF-001", CaptureOptions{WaitSelector: "#caseDetails"})
	require.NoError(t, err)
	defer capture.Page.Close() //nolint:errcheck

	assert.True(t, bytes.HasPrefix(capture.Image, []byte("\x89PNG")))
	html, err := capture.Page.HTML(context.Background())
	require.NoError(t, err)
	assert.Contains(t, html, "Judge Smith")
}

func TestChrome_CaptureMissingSelector(t *testing.T) {
	srv := courtSite()
	defer srv.Close()
	c := newChromeClient(t)

	_, err := c.Capture(context.Background(), srv.URL+"/case/1", CaptureOptions{WaitSelector: "#nope", WaitTimeout: time.Second})
	require.Error(t, err)
	var enf *ElementNotFoundError
	assert.ErrorAs(t, err, &enf)
}

func TestChrome_DiscoverLinks(t *testing.T) {
	srv := courtSite()
	defer srv.Close()
	c := newChromeClient(t)

	links, err := c.DiscoverLinks(context.Background(), srv.URL+"/listing", "a.case-link", CaptureOptions{})
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, Link{Text: "2024-CF-001", URL: srv.URL + "/case/1"}, links[0])
	assert.Equal(t, srv.URL+"/case/2", links[1].URL)
}

func TestChrome_Search(t *testing.T) {
	srv := courtSite()
	defer srv.Close()
	c := newChromeClient(t)

	got, err := c.Search(context.Background(), SearchRequest{
		SearchURL:      srv.URL + "/search",
		CaseNumber:     "2024-CF-009",
		InputSelector:  "#caseNumber",
		ButtonSelector: "#searchBtn",
		ResultSelector: ".case-link",
	})
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/case/2024-CF-009", got)
}
