package pagination

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	// DefaultLimit is the standard page size when a limit is not provided.
	DefaultLimit = 25
	// MaxLimit caps how many rows any cursor query can request.
	MaxLimit = 100
)

// CreatedAt is the default keyset column.
const CreatedAt = "created_at"

// Direction orders a keyset page by (sort column, id).
type Direction string

const (
	Desc Direction = "desc"
	Asc  Direction = "asc"
)

// ParseDirection accepts "asc"/"desc" in any case; empty means Desc.
func ParseDirection(value string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(Desc):
		return Desc, nil
	case string(Asc):
		return Asc, nil
	default:
		return "", fmt.Errorf("invalid sort direction %q", value)
	}
}

// Params holds cursor pagination inputs from controllers or services.
// SortBy is a column name already checked against an allow-list; empty
// means created_at.
type Params struct {
	Limit     int
	Cursor    string
	Direction Direction
	SortBy    string
}

// Cursor represents the pagination cursor components. Value carries the sort
// column of the last row when the page is not sorted by created_at.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
	Value     string
}

// ParseSort resolves a public sort field through allowed (public name to
// column). Empty input yields created_at.
func ParseSort(value string, allowed map[string]string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(value))
	if key == "" {
		return CreatedAt, nil
	}
	column, ok := allowed[key]
	if !ok {
		return "", fmt.Errorf("unsupported sort field %q", value)
	}
	return column, nil
}

func (p Params) sortColumn() string {
	if p.SortBy == "" {
		return CreatedAt
	}
	return p.SortBy
}

// Page is one slice of a keyset-paginated listing.
type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
}

// NormalizeLimit enforces the configured default and maximum limits.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// LimitWithBuffer returns the normalization result plus one to detect the next page.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

// EncodeCursor builds a base64 cursor string from the provided values.
func EncodeCursor(cursor Cursor) string {
	payload := fmt.Sprintf("%s|%s", cursor.CreatedAt.UTC().Format(time.RFC3339Nano), cursor.ID.String())
	if cursor.Value != "" {
		payload += "|" + cursor.Value
	}
	return base64.StdEncoding.EncodeToString([]byte(payload))
}

// ParseCursor decodes the cursor string back into its components.
func ParseCursor(value string) (*Cursor, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	parts := strings.SplitN(string(decoded), "|", 3)
	if len(parts) < 2 {
		return nil, fmt.Errorf("invalid cursor format")
	}

	t, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return nil, fmt.Errorf("invalid cursor timestamp: %w", err)
	}
	id, err := uuid.Parse(parts[1])
	if err != nil {
		return nil, fmt.Errorf("invalid cursor id: %w", err)
	}
	c := &Cursor{CreatedAt: t, ID: id}
	if len(parts) == 3 {
		c.Value = parts[2]
	}
	return c, nil
}

// Apply adds keyset ordering, the cursor predicate and the buffered limit to
// qb. prefix qualifies the sort and id columns, e.g. "o." or "".
func Apply(qb *gorm.DB, prefix string, params Params) (*gorm.DB, error) {
	cursor, err := ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	op, order := "<", "DESC"
	if params.Direction == Asc {
		op, order = ">", "ASC"
	}
	column := params.sortColumn()
	if cursor != nil {
		var key any = cursor.CreatedAt
		if column != CreatedAt {
			key = cursor.Value
		}
		qb = qb.Where(
			fmt.Sprintf("(%[1]s%[2]s %[3]s ?) OR (%[1]s%[2]s = ? AND %[1]sid %[3]s ?)", prefix, column, op),
			key, key, cursor.ID,
		)
	}
	return qb.
		Order(fmt.Sprintf("%s%s %s", prefix, column, order)).
		Order(fmt.Sprintf("%sid %s", prefix, order)).
		Limit(LimitWithBuffer(params.Limit)), nil
}

// Trim cuts the buffered row off and returns the cursor for the next page.
func Trim[T any](rows []T, limit int, cursorOf func(T) Cursor) Page[T] {
	size := NormalizeLimit(limit)
	if len(rows) <= size {
		return Page[T]{Items: rows}
	}
	rows = rows[:size]
	return Page[T]{Items: rows, NextCursor: EncodeCursor(cursorOf(rows[len(rows)-1]))}
}

// Map converts the items of a page, keeping its cursor.
func Map[T, U any](page Page[T], fn func(T) U) Page[U] {
	out := make([]U, 0, len(page.Items))
	for _, item := range page.Items {
		out = append(out, fn(item))
	}
	return Page[U]{Items: out, NextCursor: page.NextCursor}
}
