package services

import (
	"net/url"
	"strconv"
	"strings"
)

// QueryParam is one echoed query-string entry; order is preserved.
type QueryParam struct {
	Key   string
	Value string
}

// PageLinks are the navigable links embedded in paginated responses. Next and
// prev are omitted entirely when there is no corresponding page.
type PageLinks struct {
	Self string `json:"self"`
	Next string `json:"next,omitempty"`
	Prev string `json:"prev,omitempty"`
}

// BuildPaginationLinks derives self/next/prev links from a page result. The
// query string carries the echoed params first (insertion order), then limit,
// offset, and sort (when one was requested); only the offset differs across
// the three links.
func BuildPaginationLinks(basePath string, page *Page, sort string, params []QueryParam) PageLinks {
	links := PageLinks{
		Self: pageLink(basePath, page.Offset, page.Limit, sort, params),
	}

	if page.HasNext && page.NextOffset != nil {
		links.Next = pageLink(basePath, *page.NextOffset, page.Limit, sort, params)
	}
	if page.HasPrev && page.PrevOffset != nil {
		links.Prev = pageLink(basePath, *page.PrevOffset, page.Limit, sort, params)
	}

	return links
}

func pageLink(basePath string, offset, limit int, sort string, params []QueryParam) string {
	var sb strings.Builder
	sb.WriteString(basePath)

	sep := byte('?')
	write := func(key, value string) {
		sb.WriteByte(sep)
		sep = '&'
		sb.WriteString(url.QueryEscape(key))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(value))
	}

	for _, p := range params {
		if p.Value == "" {
			continue
		}
		write(p.Key, p.Value)
	}

	write("limit", strconv.Itoa(limit))
	write("offset", strconv.Itoa(offset))
	if sort != "" {
		write("sort", sort)
	}

	return sb.String()
}
