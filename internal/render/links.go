package render

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

// Link is an anchor found on a listing page.
type Link struct {
	Text string
	URL  string
}

// ExtractLinks returns the anchors matching selector, with hrefs resolved
// against pageURL. Duplicate targets and javascript:/mailto: links are
// skipped; document order is kept.
func ExtractLinks(html, pageURL, selector string) ([]Link, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, eris.Wrapf(err, "render: parse html %s", pageURL)
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, eris.Wrapf(err, "render: parse page url %s", pageURL)
	}

	seen := map[string]bool{}
	var links []Link
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			href, ok = s.Find("a[href]").First().Attr("href")
		}
		href = strings.TrimSpace(href)
		if !ok || href == "" || href == "#" {
			return
		}
		abs := ResolveHref(base, href)
		if abs == "" || seen[abs] {
			return
		}
		seen[abs] = true
		links = append(links, Link{
			Text: strings.Join(strings.Fields(s.Text()), " "),
			URL:  abs,
		})
	})
	return links, nil
}

// ResolveHref resolves href against base. It returns "" for hrefs that do
// not lead to a page.
func ResolveHref(base *url.URL, href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	switch strings.ToLower(u.Scheme) {
	case "", "http", "https":
	default:
		return ""
	}
	if base == nil {
		return u.String()
	}
	return base.ResolveReference(u).String()
}
