// Package cmdi retrieves CMDI metadata records of search results so they can
// be embedded as a data view. Fetches are memoised per request; a shared
// Redis cache with a TTL can sit underneath.
package cmdi

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// MIMEType is the media type of CMDI documents.
const MIMEType = "application/x-cmdi+xml"

const maxDocumentSize = 8 << 20

// ErrNoLocation is returned when a resource has no CMDI pid to resolve.
var ErrNoLocation = errors.New("no CMDI location for resource")

// Fetcher returns the CMDI document found at a URL, without its XML
// declaration.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPFetcher fetches documents over HTTP.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher creates a fetcher whose requests time out after timeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{client: &http.Client{Timeout: timeout}}
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building CMDI request: %w", err)
	}
	req.Header.Set("Accept", MIMEType+", application/xml;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching CMDI %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching CMDI %s: unexpected status %d", u, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading CMDI %s: %w", u, err)
	}
	if len(body) > maxDocumentSize {
		return nil, fmt.Errorf("CMDI %s exceeds %d bytes", u, maxDocumentSize)
	}
	return Prepare(body)
}

// Prepare checks that doc is well-formed XML and strips a byte order mark
// and the XML declaration so it can be embedded in another document.
func Prepare(doc []byte) ([]byte, error) {
	doc = bytes.TrimPrefix(doc, []byte("\xef\xbb\xbf"))
	doc = bytes.TrimLeft(doc, " \t\r\n")
	if bytes.HasPrefix(doc, []byte("<?xml")) {
		end := bytes.Index(doc, []byte("?>"))
		if end < 0 {
			return nil, errors.New("malformed XML declaration")
		}
		doc = bytes.TrimLeft(doc[end+2:], " \t\r\n")
	}

	dec := xml.NewDecoder(bytes.NewReader(doc))
	roots := 0
	depth := 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing CMDI document: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				roots++
			}
			depth++
		case xml.EndElement:
			depth--
		case xml.ProcInst:
			if depth == 0 && t.Target == "xml" {
				return nil, errors.New("parsing CMDI document: misplaced XML declaration")
			}
		}
	}
	if roots != 1 {
		return nil, fmt.Errorf("parsing CMDI document: %d root elements", roots)
	}
	return bytes.TrimRight(doc, " \t\r\n"), nil
}

// Locate returns the URL of the CMDI record identified by pid. With an empty
// template pid must itself be an http(s) URL; otherwise the escaped pid is
// substituted for the template's %s.
func Locate(template, pid string) (string, error) {
	if pid == "" {
		return "", ErrNoLocation
	}
	if template == "" {
		if strings.HasPrefix(pid, "http://") || strings.HasPrefix(pid, "https://") {
			return pid, nil
		}
		return "", fmt.Errorf("%w: %q is not a URL", ErrNoLocation, pid)
	}
	return fmt.Sprintf(template, url.QueryEscape(pid)), nil
}
