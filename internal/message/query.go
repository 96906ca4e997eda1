package message

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"message-board/internal/failure"

	"github.com/google/uuid"
)

const (
	DefaultLimit     = 20
	MaxLimit         = 100
	MaxContentLength = 240
)

// ListQuery is a validated set of listing parameters
type ListQuery struct {
	Limit     int
	Cursor    string
	TagNames  []string
	AuthorIDs []uuid.UUID
	StartDate *time.Time
	EndDate   *time.Time
}

var listParams = map[string]struct{}{
	"limit":     {},
	"cursor":    {},
	"tagNames":  {},
	"authorIds": {},
	"startDate": {},
	"endDate":   {},
}

// ParseListQuery validates query string of the listing endpoint.
// tagNames and authorIds may be repeated, a single value becomes a one-item list.
func ParseListQuery(values url.Values) (ListQuery, error) {
	unknown := make([]string, 0)
	for key := range values {
		if _, ok := listParams[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return ListQuery{}, failure.Validation("property " + unknown[0] + " should not exist")
	}

	q := ListQuery{Limit: DefaultLimit}

	if v, ok := values["limit"]; ok {
		limit, err := strconv.Atoi(strings.TrimSpace(v[0]))
		if err != nil {
			return ListQuery{}, failure.Validation("limit must be an integer number")
		}
		if limit < 1 {
			return ListQuery{}, failure.Validation("limit must not be less than 1")
		}
		if limit > MaxLimit {
			return ListQuery{}, failure.Validation("limit must not be greater than " + strconv.Itoa(MaxLimit))
		}
		q.Limit = limit
	}

	q.Cursor = values.Get("cursor")

	for _, name := range values["tagNames"] {
		if name != "" {
			q.TagNames = append(q.TagNames, name)
		}
	}

	for _, raw := range values["authorIds"] {
		id, err := uuid.Parse(raw)
		if err != nil {
			return ListQuery{}, failure.Validation("each value in authorIds must be a UUID")
		}
		q.AuthorIDs = append(q.AuthorIDs, id)
	}

	var err error
	if q.StartDate, err = parseDate(values, "startDate"); err != nil {
		return ListQuery{}, err
	}
	if q.EndDate, err = parseDate(values, "endDate"); err != nil {
		return ListQuery{}, err
	}

	return q, nil
}

func parseDate(values url.Values, key string) (*time.Time, error) {
	v := values.Get(key)
	if v == "" {
		return nil, nil
	}

	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return &t, nil
		}
	}

	return nil, failure.Validation(key + " must be a valid ISO 8601 date string")
}

// CreateInput is the body of a create request
type CreateInput struct {
	Content string
	TagName string
}

func (in CreateInput) Validate() error {
	if err := validateContent(in.Content); err != nil {
		return err
	}
	return validateTagName(in.TagName)
}

// UpdateInput is the body of a partial update request, nil fields are left untouched
type UpdateInput struct {
	Content *string
	TagName *string
}

func (in UpdateInput) Validate() error {
	if in.Content != nil {
		if err := validateContent(*in.Content); err != nil {
			return err
		}
	}
	if in.TagName != nil {
		return validateTagName(*in.TagName)
	}
	return nil
}

func validateContent(content string) error {
	if content == "" {
		return failure.Validation("content should not be empty")
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return failure.Validation("Message cannot be longer than 240 characters")
	}
	return nil
}

func validateTagName(name string) error {
	if strings.TrimSpace(name) == "" {
		return failure.Validation("tagName should not be empty")
	}
	return nil
}
