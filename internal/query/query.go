// Package query turns listing parameters into a store filter, a page window
// and an in-memory ordering for the fetched page.
package query

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"contacts-crm/internal/models"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 20
)

// Values that mean "no filter" for a field.
var anyValues = map[string]bool{
	"":      true,
	"all":   true,
	"tutti": true,
}

// ParamError is a malformed listing parameter.
type ParamError struct {
	Param string
	Value string
	Err   error
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("invalid %s %q: %v", e.Param, e.Value, e.Err)
}

func (e *ParamError) Unwrap() error {
	return e.Err
}

type Params struct {
	Page     int
	PageSize int
	SortBy   SortKey
	Filter   models.ContactFilter
}

// Skip is the number of matching contacts before the requested page.
// A window past the int64 range is clamped, which reads as an empty page.
func (p Params) Skip() int64 {
	if p.Page < 1 || p.PageSize < 1 {
		return 0
	}
	if int64(p.Page-1) > math.MaxInt64/int64(p.PageSize) {
		return math.MaxInt64
	}
	return int64(p.Page-1) * int64(p.PageSize)
}

func (p Params) Limit() int64 {
	return int64(p.PageSize)
}

// Parse reads page, pageSize, sortBy, search and the field filters.
// Missing page values fall back to the defaults; there is no upper bound on pageSize.
func Parse(values url.Values) (Params, error) {
	p := Params{
		Page:     DefaultPage,
		PageSize: DefaultPageSize,
		SortBy:   SortUpdateStatus,
	}

	var err error
	if p.Page, err = positiveInt(values, "page", DefaultPage); err != nil {
		return Params{}, err
	}
	if p.PageSize, err = positiveInt(values, "pageSize", DefaultPageSize); err != nil {
		return Params{}, err
	}
	if int64(p.Page-1) > math.MaxInt64/int64(p.PageSize) {
		return Params{}, &ParamError{
			Param: "page",
			Value: strconv.Itoa(p.Page),
			Err:   fmt.Errorf("page window exceeds the addressable range for pageSize %d", p.PageSize),
		}
	}
	if s := strings.TrimSpace(values.Get("sortBy")); s != "" {
		p.SortBy = SortKey(s)
	}

	p.Filter, err = ParseFilter(values)
	if err != nil {
		return Params{}, err
	}
	return p, nil
}

// ParseFilter reads the field filters and the free-text search.
func ParseFilter(values url.Values) (models.ContactFilter, error) {
	var f models.ContactFilter

	if raw := values.Get("phone_status"); !isAny(raw) {
		st, err := models.ParsePhoneStatus(raw)
		if err != nil {
			return f, &ParamError{Param: "phone_status", Value: raw, Err: err}
		}
		f.PhoneStatus = &st
	}
	if raw := values.Get("interesse"); !isAny(raw) {
		lv, err := models.ParseLevel(raw)
		if err != nil {
			return f, &ParamError{Param: "interesse", Value: raw, Err: err}
		}
		f.Interesse = &lv
	}
	if raw := values.Get("reindirizzato"); !isAny(raw) {
		lv, err := models.ParseLevel(raw)
		if err != nil {
			return f, &ParamError{Param: "reindirizzato", Value: raw, Err: err}
		}
		f.Reindirizzato = &lv
	}
	if raw := values.Get("isPinned"); !isAny(raw) {
		pinned, err := strconv.ParseBool(raw)
		if err != nil {
			return f, &ParamError{Param: "isPinned", Value: raw, Err: err}
		}
		f.IsPinned = &pinned
	}

	f.Search = strings.TrimSpace(values.Get("search"))
	return f, nil
}

func isAny(raw string) bool {
	return anyValues[strings.ToLower(strings.TrimSpace(raw))]
}

func positiveInt(values url.Values, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(values.Get(name))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &ParamError{Param: name, Value: raw, Err: err}
	}
	if n < 1 {
		return 0, &ParamError{Param: name, Value: raw, Err: fmt.Errorf("must be a positive integer")}
	}
	return n, nil
}
