package shared

import (
	"fmt"
	"math"
	"net/url"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/funko-store/funko-api/internal/platform/httpx"
)

const (
	// DefaultLimit applies when the request does not set one.
	DefaultLimit = 20
	// MaxLimit caps page size.
	MaxLimit = 100
)

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int
	PerPage    int
	Total      int
	TotalPages int
}

// NewPagination computes pagination metadata.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = DefaultLimit
	}
	if page <= 0 {
		page = 1
	}
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// FilterOp is the comparison applied by a filter.
type FilterOp string

const (
	OpEq  FilterOp = "$eq"
	OpNot FilterOp = "$not"
)

// ValueKind describes how a filter value is parsed.
type ValueKind int

const (
	KindText ValueKind = iota
	KindInt
	KindBool
	KindFloat
)

// Filter is one equality or negation predicate.
type Filter struct {
	Column string   `json:"column"`
	Op     FilterOp `json:"op"`
	Value  string   `json:"value"`
	Arg    any      `json:"-"`
}

// Whitelist declares what a listing endpoint accepts.
type Whitelist struct {
	Sortable    []string
	Filterable  map[string]ValueKind
	DefaultSort string
	DefaultDesc bool
}

// ListQuery is the normalized form of listing parameters. Its JSON encoding is deterministic
// and is hashed into cache keys.
type ListQuery struct {
	Page    int      `json:"page"`
	Limit   int      `json:"limit"`
	SortBy  string   `json:"sortBy"`
	Order   string   `json:"order"`
	Search  string   `json:"search,omitempty"`
	Filters []Filter `json:"filters,omitempty"`
	Path    string   `json:"path,omitempty"`
}

// Offset returns the number of rows to skip.
func (q ListQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

// Desc reports descending order.
func (q ListQuery) Desc() bool {
	return q.Order == "DESC"
}

// Filter returns the filter on column, if any.
func (q ListQuery) Filter(column string) (Filter, bool) {
	for _, f := range q.Filters {
		if f.Column == column {
			return f, true
		}
	}
	return Filter{}, false
}

// WithFilter returns a copy with an extra equality filter, replacing any existing one on column.
func (q ListQuery) WithFilter(column string, value string, arg any) ListQuery {
	out := make([]Filter, 0, len(q.Filters)+1)
	for _, f := range q.Filters {
		if f.Column != column {
			out = append(out, f)
		}
	}
	out = append(out, Filter{Column: column, Op: OpEq, Value: value, Arg: arg})
	sort.Slice(out, func(i, j int) bool { return out[i].Column < out[j].Column })
	q.Filters = out
	return q
}

// ParseListQuery reads page, limit, sortBy, search and filter.<column> parameters.
// orderBy and order are accepted as an alternative spelling of sortBy.
func ParseListQuery(values url.Values, wl Whitelist) (ListQuery, error) {
	q := ListQuery{Page: 1, Limit: DefaultLimit, SortBy: wl.DefaultSort, Order: "ASC"}
	if wl.DefaultDesc {
		q.Order = "DESC"
	}

	if raw := values.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return ListQuery{}, fmt.Errorf("%w: page must be a positive integer", httpx.ErrValidation)
		}
		q.Page = page
	}
	if raw := values.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return ListQuery{}, fmt.Errorf("%w: limit must be a positive integer", httpx.ErrValidation)
		}
		q.Limit = min(limit, MaxLimit)
	}

	column, order := "", ""
	if raw := values.Get("sortBy"); raw != "" {
		column, order, _ = strings.Cut(raw, ":")
	} else if raw := values.Get("orderBy"); raw != "" {
		column, order = raw, values.Get("order")
	}
	if column != "" {
		if !slices.Contains(wl.Sortable, column) {
			return ListQuery{}, fmt.Errorf("%w: cannot sort by %q", httpx.ErrValidation, column)
		}
		q.SortBy = column
	}
	switch strings.ToUpper(order) {
	case "":
	case "ASC":
		q.Order = "ASC"
	case "DESC":
		q.Order = "DESC"
	default:
		return ListQuery{}, fmt.Errorf("%w: sort order must be ASC or DESC", httpx.ErrValidation)
	}

	q.Search = strings.TrimSpace(values.Get("search"))

	for param, vals := range values {
		column, ok := strings.CutPrefix(param, "filter.")
		if !ok || len(vals) == 0 {
			continue
		}
		kind, allowed := wl.Filterable[column]
		if !allowed {
			return ListQuery{}, fmt.Errorf("%w: cannot filter by %q", httpx.ErrValidation, column)
		}
		f, err := parseFilter(column, vals[0], kind)
		if err != nil {
			return ListQuery{}, err
		}
		q.Filters = append(q.Filters, f)
	}
	sort.Slice(q.Filters, func(i, j int) bool { return q.Filters[i].Column < q.Filters[j].Column })
	return q, nil
}

func parseFilter(column, raw string, kind ValueKind) (Filter, error) {
	op, value := OpEq, raw
	if rest, ok := strings.CutPrefix(raw, string(OpNot)+":"); ok {
		op, value = OpNot, rest
	} else if rest, ok := strings.CutPrefix(raw, string(OpEq)+":"); ok {
		value = rest
	} else if strings.HasPrefix(raw, "$") {
		return Filter{}, fmt.Errorf("%w: unsupported filter operator in %q", httpx.ErrValidation, raw)
	}

	f := Filter{Column: column, Op: op, Value: value}
	switch kind {
	case KindInt:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return Filter{}, fmt.Errorf("%w: filter %s expects an integer", httpx.ErrValidation, column)
		}
		f.Arg = n
	case KindFloat:
		n, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return Filter{}, fmt.Errorf("%w: filter %s expects a number", httpx.ErrValidation, column)
		}
		f.Arg = n
	case KindBool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return Filter{}, fmt.Errorf("%w: filter %s expects a boolean", httpx.ErrValidation, column)
		}
		f.Value = strconv.FormatBool(b)
		f.Arg = b
	default:
		f.Arg = value
	}
	return f, nil
}

// PageMeta is the paging block of a listing envelope.
type PageMeta struct {
	ItemsPerPage int        `json:"itemsPerPage"`
	TotalItems   int        `json:"totalItems"`
	CurrentPage  int        `json:"currentPage"`
	TotalPages   int        `json:"totalPages"`
	SortBy       [][]string `json:"sortBy"`
	Search       string     `json:"search,omitempty"`
}

// PageLinks holds the self link of a listing.
type PageLinks struct {
	Current string `json:"current"`
}

// Page is the listing envelope.
type Page[T any] struct {
	Data  []T       `json:"data"`
	Meta  PageMeta  `json:"meta"`
	Links PageLinks `json:"links"`
}

// NewPage wraps a data slice with totals computed from q.
func NewPage[T any](data []T, total int, q ListQuery) Page[T] {
	if data == nil {
		data = []T{}
	}
	p := NewPagination(q.Page, q.Limit, total)
	return Page[T]{
		Data: data,
		Meta: PageMeta{
			ItemsPerPage: p.PerPage,
			TotalItems:   p.Total,
			CurrentPage:  p.Page,
			TotalPages:   p.TotalPages,
			SortBy:       [][]string{{q.SortBy, q.Order}},
			Search:       q.Search,
		},
		Links: PageLinks{Current: q.Link()},
	}
}

// Link renders the canonical self link for q.
func (q ListQuery) Link() string {
	var b strings.Builder
	b.WriteString(q.Path)
	fmt.Fprintf(&b, "?page=%d&limit=%d&sortBy=%s:%s", q.Page, q.Limit, url.QueryEscape(q.SortBy), q.Order)
	if q.Search != "" {
		b.WriteString("&search=" + url.QueryEscape(q.Search))
	}
	for _, f := range q.Filters {
		fmt.Fprintf(&b, "&filter.%s=%s:%s", f.Column, f.Op, url.QueryEscape(f.Value))
	}
	return b.String()
}
