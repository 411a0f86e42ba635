package result

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// UploadHeader is the first line of every upload payload.
const UploadHeader = "tag_id;timestamp;is_car"

// UploadTimeLayout formats capture times in upload rows.
const UploadTimeLayout = "2006-01-02 15:04:05"

const (
	fieldSep  = ";"
	numberSep = ","
)

// ErrMalformedRow is returned for store lines that cannot be parsed.
var ErrMalformedRow = errors.New("malformed result row")

// ValidIdentity reports whether id can be stored in a single row.
func ValidIdentity(id string) bool {
	return id != "" && !strings.ContainsAny(id, fieldSep+"\r\n")
}

// MarshalRow encodes s as identity;category;STATE;n,n;capture-time.
func MarshalRow(s Snapshot) (string, error) {
	if !ValidIdentity(s.Identity) {
		return "", fmt.Errorf("%w: identity %q not storable", ErrMalformedRow, s.Identity)
	}
	fields := []string{
		s.Identity,
		strconv.Itoa(int(s.Category)),
		s.State.String(),
		FormatNumbers(s.Numbers),
	}
	if !s.CaptureTime.IsZero() {
		fields = append(fields, s.CaptureTime.UTC().Format(time.RFC3339))
	}
	return strings.Join(fields, fieldSep), nil
}

// ParseRow decodes a line written by MarshalRow. Rows without the trailing
// capture time leave CaptureTime zero. Older files list every number in its
// own ;-separated field (identity;category;STATE;n;n;...); such rows are
// recognised because their fifth field is not a timestamp.
func ParseRow(line string) (Snapshot, error) {
	line = strings.TrimRight(line, "\r\n")
	fields := strings.Split(line, fieldSep)
	if len(fields) < 4 {
		return Snapshot{}, fmt.Errorf("%w: expected at least 4 fields, got %d", ErrMalformedRow, len(fields))
	}
	if fields[0] == "" {
		return Snapshot{}, fmt.Errorf("%w: empty identity", ErrMalformedRow)
	}
	s := Snapshot{Identity: fields[0]}

	cat, err := ParseCategory(fields[1])
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrMalformedRow, err)
	}
	s.Category = cat

	if s.State, err = ParseState(fields[2]); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrMalformedRow, err)
	}

	numberFields := fields[3:]
	if len(fields) == 5 {
		if t, err := time.Parse(time.RFC3339, fields[4]); err == nil {
			s.CaptureTime = t.UTC()
			numberFields = fields[3:4]
		}
	}
	for _, f := range numberFields {
		nums, err := ParseNumbers(f)
		if err != nil {
			return Snapshot{}, err
		}
		s.Numbers = append(s.Numbers, nums...)
	}
	return s, nil
}

// FormatNumbers joins numbers with commas.
func FormatNumbers(nums []int) string {
	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, numberSep)
}

// ParseNumbers reverses FormatNumbers. An empty field yields no numbers.
func ParseNumbers(field string) ([]int, error) {
	if strings.TrimSpace(field) == "" {
		return nil, nil
	}
	parts := strings.Split(field, numberSep)
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("%w: number %q", ErrMalformedRow, p)
		}
		out = append(out, n)
	}
	return out, nil
}

// UploadRows renders one row per number: number;timestamp;category.
func UploadRows(s Snapshot) []string {
	ts := s.CaptureTime.UTC().Format(UploadTimeLayout)
	rows := make([]string, 0, len(s.Numbers))
	for _, n := range s.Numbers {
		rows = append(rows, strconv.Itoa(n)+fieldSep+ts+fieldSep+s.Category.Name())
	}
	return rows
}
