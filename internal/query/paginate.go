package query

import (
	"strconv"

	"CrmAPI/internal/model"
)

const onEachSide = 3

// Link is one entry of the page navigation list.
type Link struct {
	URL    *string `json:"url"`
	Label  string  `json:"label"`
	Active bool    `json:"active"`
}

// Page is a paginated result as returned inside the envelope's data.
type Page struct {
	CurrentPage  int            `json:"current_page"`
	Data         []model.Record `json:"data"`
	FirstPageURL string         `json:"first_page_url"`
	From         *int           `json:"from"`
	LastPage     int            `json:"last_page"`
	LastPageURL  string         `json:"last_page_url"`
	Links        []Link         `json:"links"`
	NextPageURL  *string        `json:"next_page_url"`
	Path         string         `json:"path"`
	PerPage      int            `json:"per_page"`
	PrevPageURL  *string        `json:"prev_page_url"`
	To           *int           `json:"to"`
	Total        int64          `json:"total"`
}

// NewPage builds page metadata around items. total is the post-filter row count.
func NewPage(items []model.Record, total int64, page, perPage int, path string) Page {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if page <= 0 {
		page = 1
	}
	if items == nil {
		items = []model.Record{}
	}
	last := int((total + int64(perPage) - 1) / int64(perPage))
	if last < 1 {
		last = 1
	}

	p := Page{
		CurrentPage:  page,
		Data:         items,
		FirstPageURL: pageURL(path, 1),
		LastPage:     last,
		LastPageURL:  pageURL(path, last),
		Path:         path,
		PerPage:      perPage,
		Total:        total,
	}
	if len(items) > 0 {
		from := (page-1)*perPage + 1
		to := from + len(items) - 1
		p.From, p.To = &from, &to
	}
	if page < last {
		u := pageURL(path, page+1)
		p.NextPageURL = &u
	}
	if page > 1 {
		u := pageURL(path, page-1)
		p.PrevPageURL = &u
	}
	p.Links = buildLinks(path, page, last, p.PrevPageURL, p.NextPageURL)
	return p
}

func pageURL(path string, page int) string {
	return path + "?page=" + strconv.Itoa(page)
}

func buildLinks(path string, current, last int, prev, next *string) []Link {
	links := []Link{{URL: prev, Label: "&laquo; Previous"}}
	for _, n := range window(current, last) {
		if n == 0 {
			links = append(links, Link{Label: "..."})
			continue
		}
		u := pageURL(path, n)
		links = append(links, Link{URL: &u, Label: strconv.Itoa(n), Active: n == current})
	}
	return append(links, Link{URL: next, Label: "Next &raquo;"})
}

// window lists page numbers to show; 0 marks an ellipsis.
func window(current, last int) []int {
	w := onEachSide + 4
	if last < onEachSide*2+8 {
		return pages(1, last)
	}
	var out []int
	switch {
	case current <= w:
		out = append(out, pages(1, w+onEachSide)...)
		out = append(out, 0)
		out = append(out, last-1, last)
	case current > last-w:
		out = append(out, 1, 2, 0)
		out = append(out, pages(last-(w+onEachSide-1), last)...)
	default:
		out = append(out, 1, 2, 0)
		out = append(out, pages(current-onEachSide, current+onEachSide)...)
		out = append(out, 0, last-1, last)
	}
	return out
}

func pages(from, to int) []int {
	out := make([]int, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}
