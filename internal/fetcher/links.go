package fetcher

import (
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/net/html"
)

// FindLinks returns the anchors in page whose href ends with ext, resolved against
// baseURL, in document order without duplicates. ext is matched case-insensitively and
// its leading dot is optional. Malformed markup is tolerated.
func FindLinks(baseURL, page, ext string) ([]string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: parse base url %q", baseURL)
	}
	suffix := "." + strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))

	var links []string
	seen := make(map[string]bool)
	z := html.NewTokenizer(strings.NewReader(page))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			// io.EOF or unrecoverable markup; either way what was found stands.
			return links, nil
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		name, hasAttr := z.TagName()
		if string(name) != "a" || !hasAttr {
			continue
		}

		for {
			key, val, more := z.TagAttr()
			if string(key) == "href" {
				if link, ok := resolveLink(base, string(val), suffix); ok && !seen[link] {
					seen[link] = true
					links = append(links, link)
				}
				break
			}
			if !more {
				break
			}
		}
	}
}

func resolveLink(base *url.URL, href, suffix string) (string, bool) {
	href = strings.TrimSpace(href)
	if !strings.HasSuffix(strings.ToLower(href), suffix) {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	return base.ResolveReference(ref).String(), true
}

// linksFromListing applies FindLinks' filtering to a plain name-per-line directory
// listing, as produced for FTP directories.
func linksFromListing(baseURL, listing, ext string) ([]string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: parse base url %q", baseURL)
	}
	suffix := "." + strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))

	var links []string
	for _, line := range strings.Split(listing, "\n") {
		name := strings.TrimSpace(line)
		if name == "" {
			continue
		}
		if link, ok := resolveLink(base, url.PathEscape(name), suffix); ok {
			links = append(links, link)
		}
	}
	return links, nil
}
