package roster

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ParseCSV reads uid,name rows. A first row of exactly "uid,name" (any case)
// is treated as a header. Blank lines are skipped; a row without uid fails
// with its line number.
func ParseCSV(r io.Reader) ([]Pair, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var pairs []Pair
	first := true
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedCSV, err)
		}
		line, _ := cr.FieldPos(0)

		if first {
			first = false
			if isHeader(rec) {
				continue
			}
		}
		if blank(rec) {
			continue
		}

		uid := strings.TrimSpace(rec[0])
		if uid == "" {
			return nil, fmt.Errorf("line %d: %w", line, ErrMissingUID)
		}
		name := ""
		if len(rec) > 1 {
			name = rec[1]
		}
		pairs = append(pairs, Pair{UID: uid, Name: name})
	}
	return pairs, nil
}

func isHeader(rec []string) bool {
	return len(rec) >= 2 &&
		strings.EqualFold(strings.TrimSpace(rec[0]), "uid") &&
		strings.EqualFold(strings.TrimSpace(rec[1]), "name")
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
