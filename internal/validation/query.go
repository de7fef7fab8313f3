package validation

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/zimbuild/sitebackend/internal/storage"
)

const (
	DefaultPage = 1
	MaxLimit    = 100

	QueryKeyPage  = "page"
	QueryKeyLimit = "limit"
	QueryKeySort  = "sort"
	QueryKeyToken = "token"

	messageInvalidPage  = "Page must be a positive integer"
	messageInvalidLimit = "Limit must be between 1 and 100"
)

// ErrInvalidQuery classifies QueryError values.
var ErrInvalidQuery = errors.New("validation: invalid query")

// QueryError rejects a query string parameter. Message is safe to show to clients.
type QueryError struct {
	Message string
}

func (err *QueryError) Error() string {
	return err.Message
}

func (err *QueryError) Is(target error) bool {
	return target == ErrInvalidQuery
}

// ParsePage reads page and limit, applying defaults for absent values.
func ParsePage(values url.Values, defaultLimit int) (storage.Page, error) {
	page := storage.Page{Number: DefaultPage, Limit: defaultLimit}

	if raw := strings.TrimSpace(values.Get(QueryKeyPage)); raw != "" {
		number, err := strconv.Atoi(raw)
		if err != nil || number < 1 {
			return storage.Page{}, &QueryError{Message: messageInvalidPage}
		}
		page.Number = number
	}

	if raw := strings.TrimSpace(values.Get(QueryKeyLimit)); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > MaxLimit {
			return storage.Page{}, &QueryError{Message: messageInvalidLimit}
		}
		page.Limit = limit
	}
	return page, nil
}

// CheckSort validates raw against the allowed field names. An empty raw value yields fallback.
func CheckSort(raw string, allowedFields []string, fallback string) (storage.Sort, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return storage.ParseSort(fallback), nil
	}
	parsed := storage.ParseSort(trimmed)
	for _, allowed := range allowedFields {
		if parsed.Field == allowed {
			return parsed, nil
		}
	}
	return storage.Sort{}, &QueryError{
		Message: fmt.Sprintf("Invalid sort field. Allowed fields: %s", strings.Join(allowedFields, ", ")),
	}
}

// CheckFilters rejects query keys that are neither paging, sorting, the token fallback nor an allowed filter.
func CheckFilters(values url.Values, allowedFilters []string) error {
	allowed := make(map[string]struct{}, len(allowedFilters)+4)
	for _, key := range allowedFilters {
		allowed[key] = struct{}{}
	}
	for _, key := range []string{QueryKeyPage, QueryKeyLimit, QueryKeySort, QueryKeyToken} {
		allowed[key] = struct{}{}
	}

	invalid := make([]string, 0)
	for key := range values {
		if _, ok := allowed[key]; !ok {
			invalid = append(invalid, key)
		}
	}
	if len(invalid) == 0 {
		return nil
	}
	sort.Strings(invalid)
	return &QueryError{
		Message: fmt.Sprintf(
			"Invalid filter parameters: %s. Allowed filters: %s",
			strings.Join(invalid, ", "),
			strings.Join(allowedFilters, ", "),
		),
	}
}
