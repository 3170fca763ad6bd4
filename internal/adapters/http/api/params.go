package api

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/okian/devhistory/internal/domain/query"
	"github.com/okian/devhistory/internal/domain/record"
)

// parseFilter reads from, to, status, min, max and q. A bare YYYY-MM-DD
// "to" covers that whole day.
func parseFilter(v url.Values) (query.FilterSpec, error) {
	f := query.DefaultFilter()

	status, err := query.ParseStatusSelector(v.Get("status"))
	if err != nil {
		return f, err
	}
	f.Status = status

	if f.MinScore, err = intParam(v, "min", record.MinScore); err != nil {
		return f, err
	}
	if f.MaxScore, err = intParam(v, "max", record.MaxScore); err != nil {
		return f, err
	}
	f.Query = v.Get("q")

	if f.Dates, err = query.ParseDateRange(v.Get("from"), v.Get("to")); err != nil {
		return f, err
	}
	return f, nil
}

// parseSort reads sort and dir.
func parseSort(v url.Values) (query.SortSpec, error) {
	field, err := query.ParseField(v.Get("sort"))
	if err != nil {
		return query.SortSpec{}, err
	}
	dir, err := query.ParseDirection(v.Get("dir"))
	if err != nil {
		return query.SortSpec{}, err
	}
	return query.SortSpec{Field: field, Direction: dir}, nil
}

func intParam(v url.Values, key string, def int) (int, error) {
	s := strings.TrimSpace(v.Get(key))
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not an integer", query.ErrInvalidSpec, key, s)
	}
	return n, nil
}
