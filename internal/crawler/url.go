package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

// CanonicalURL strips the query and fragment so that link identity depends
// only on scheme, host and path. Scheme and host are lowercased.
func CanonicalURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	return u.String(), nil
}

// JobIDFromURL returns the last non-empty path segment of the URL.
func JobIDFromURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidJobURL, err)
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	last := segments[len(segments)-1]
	if last == "" {
		return "", fmt.Errorf("%w: %q has no path", ErrInvalidJobURL, rawURL)
	}
	return last, nil
}

// PageURL returns rawURL with the page query parameter set to page.
func PageURL(rawURL, param string, page int) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	q := u.Query()
	q.Set(param, fmt.Sprint(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// SearchURL builds the results URL for term and page from the listing base URL.
func SearchURL(baseURL, keywordsParam, pageParam, term string, page int) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	q := u.Query()
	q.Set(keywordsParam, term)
	if page > 1 {
		q.Set(pageParam, fmt.Sprint(page))
	} else {
		q.Del(pageParam)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
