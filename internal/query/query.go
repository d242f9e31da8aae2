// Package query filters, sorts and paginates media records for the gallery listing.
package query

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/aura-media/gallery/internal/models"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	// TypeAll disables the type filter.
	TypeAll = "all"
)

// Params is a listing request. Zero values mean "not supplied".
type Params struct {
	Search string
	Type   string
	Tags   string
	Page   int
	Limit  int
}

// Result is one page of a filtered listing.
type Result struct {
	Total       int             `json:"total"`
	CurrentPage int             `json:"currentPage"`
	TotalPages  int             `json:"totalPages"`
	Media       []*models.Media `json:"media"`
}

// ParseParams reads search, type, tags, page and limit from a query string.
// Missing or unparsable page/limit fall back to the defaults; non-positive values are clamped to 1.
func ParseParams(v url.Values) Params {
	return Params{
		Search: v.Get("search"),
		Type:   v.Get("type"),
		Tags:   v.Get("tags"),
		Page:   parseInt(v.Get("page"), DefaultPage),
		Limit:  parseLimit(v.Get("limit")),
	}
}

// parseLimit keeps an explicit zero distinct from "not supplied" so it is clamped instead of defaulted.
func parseLimit(s string) int {
	n := parseInt(s, DefaultLimit)
	if n == 0 {
		return -1
	}
	return n
}

func parseInt(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fallback
	}
	return n
}

func (p Params) normalized() Params {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	switch {
	case p.Limit == 0:
		p.Limit = DefaultLimit
	case p.Limit < 0:
		p.Limit = 1
	}
	return p
}

// Run applies the search, type and tag filters in that order, sorts newest first and slices out the page.
// The input slice is not modified.
func Run(records []*models.Media, p Params) Result {
	p = p.normalized()

	filtered := make([]*models.Media, 0, len(records))
	search := strings.ToLower(p.Search)
	filterTags := splitFilterTags(p.Tags)
	for _, m := range records {
		if search != "" && !matchesSearch(m, search) {
			continue
		}
		if p.Type != "" && p.Type != TypeAll && string(m.Type) != p.Type {
			continue
		}
		if len(filterTags) > 0 && !matchesTags(m, filterTags) {
			continue
		}
		filtered = append(filtered, m)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].UploadDate.After(filtered[j].UploadDate)
	})

	total := len(filtered)
	totalPages := total / p.Limit
	if total%p.Limit != 0 {
		totalPages++
	}

	// Pages past the end return before any offset arithmetic, so page*limit never overflows.
	page := filtered[:0:0]
	if p.Page <= totalPages {
		start := (p.Page - 1) * p.Limit
		end := total
		if total-start > p.Limit {
			end = start + p.Limit
		}
		page = filtered[start:end:end]
	}

	return Result{
		Total:       total,
		CurrentPage: p.Page,
		TotalPages:  totalPages,
		Media:       page,
	}
}

func matchesSearch(m *models.Media, term string) bool {
	if strings.Contains(strings.ToLower(m.Title), term) || strings.Contains(strings.ToLower(m.Description), term) {
		return true
	}
	for _, tag := range m.Tags {
		if strings.Contains(strings.ToLower(tag), term) {
			return true
		}
	}
	return false
}

// matchesTags reports whether every filter tag is a substring of at least one record tag.
func matchesTags(m *models.Media, filters []string) bool {
	for _, f := range filters {
		found := false
		for _, tag := range m.Tags {
			if strings.Contains(strings.ToLower(tag), f) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func splitFilterTags(s string) []string {
	tags := models.ParseTags(s)
	for i, t := range tags {
		tags[i] = strings.ToLower(t)
	}
	return tags
}
