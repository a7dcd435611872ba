package pagination

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// ErrInvalidCursor is returned for cursors this package did not produce.
var ErrInvalidCursor = errors.New("invalid cursor")

const cursorPrefix = "c1:"

// Limits bounds the page size a client may ask for.
type Limits struct {
	Default int
	Max     int
}

func (l Limits) normalized() Limits {
	if l.Default <= 0 {
		l.Default = DefaultLimit
	}
	if l.Max <= 0 {
		l.Max = MaxLimit
	}
	if l.Default > l.Max {
		l.Default = l.Max
	}
	return l
}

// Params holds pagination parameters extracted from a request.
type Params struct {
	Limit  int
	Cursor string
}

// FromContext extracts the "limit" and "cursor" query parameters. The
// cursor is returned as sent; use DecodeCursor to read it.
func FromContext(c echo.Context, l Limits) Params {
	l = l.normalized()
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 {
		limit = l.Default
	}
	if limit > l.Max {
		limit = l.Max
	}
	return Params{Limit: limit, Cursor: strings.TrimSpace(c.QueryParam("cursor"))}
}

// EncodeCursor turns a store position into an opaque token.
func EncodeCursor(position string) string {
	if position == "" {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString([]byte(cursorPrefix + position))
}

// DecodeCursor reverses EncodeCursor. An empty cursor means the first page.
func DecodeCursor(cursor string) (string, error) {
	if cursor == "" {
		return "", nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return "", ErrInvalidCursor
	}
	position, ok := strings.CutPrefix(string(raw), cursorPrefix)
	if !ok || position == "" {
		return "", ErrInvalidCursor
	}
	return position, nil
}

// Response wraps a cursor-paginated API response. NextCursor is null when
// HasMore is false.
type Response[T any] struct {
	Data       []T     `json:"data"`
	NextCursor *string `json:"next_cursor"`
	HasMore    bool    `json:"has_more"`
}

func NewResponse[T any](data []T, nextCursor string, hasMore bool) *Response[T] {
	if data == nil {
		data = []T{}
	}
	r := &Response[T]{Data: data, HasMore: hasMore}
	if hasMore && nextCursor != "" {
		r.NextCursor = &nextCursor
	}
	return r
}
