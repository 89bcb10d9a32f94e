// Package tokens folds the per-page token counts of a volume into one row per
// distinct (lower-cased token, part-of-speech) pair.
package tokens

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/eunmann/tokenbench/pkg/volume"
)

var (
	// ErrNegativeCount is returned for a count below zero.
	ErrNegativeCount = errors.New("negative token count")
	// ErrCountOverflow is returned when a per-volume sum exceeds int64.
	ErrCountOverflow = errors.New("token count overflows int64")
)

// Row is one aggregated (volume, token, part-of-speech) count.
type Row struct {
	VolumeID     string
	Token        string
	PartOfSpeech string
	Count        int64
}

// Values returns the row as positional statement arguments in table column
// order.
func (r Row) Values() []interface{} {
	return []interface{}{r.VolumeID, r.Token, r.PartOfSpeech, r.Count}
}

type key struct {
	token string
	pos   string
}

// Aggregate sums every page's token/part-of-speech counts of doc into one row
// per (lower-cased token, pos). Row order is unspecified. A document with
// zero pages yields no rows.
//
// Missing id, features.pages or a page's body.tokenPosCount fail with
// *volume.KeyLookupError.
func Aggregate(doc *volume.Document) ([]Row, error) {
	if !doc.HasID() {
		return nil, &volume.KeyLookupError{Field: "id"}
	}
	if doc.Features == nil || doc.Features.Pages == nil {
		return nil, &volume.KeyLookupError{Field: "features.pages"}
	}

	counts := make(map[key]int64)
	for i, page := range doc.Features.Pages {
		if page.Body == nil {
			return nil, &volume.KeyLookupError{Field: fmt.Sprintf("features.pages[%d].body", i)}
		}
		if page.Body.TokenPosCount == nil {
			return nil, &volume.KeyLookupError{Field: fmt.Sprintf("features.pages[%d].body.tokenPosCount", i)}
		}

		for token, posCounts := range page.Body.TokenPosCount {
			lower := strings.ToLower(token)
			for pos, n := range posCounts {
				if n < 0 {
					return nil, fmt.Errorf("page %d token %q pos %q: %w", i, token, pos, ErrNegativeCount)
				}
				k := key{token: lower, pos: pos}
				cur := counts[k]
				if cur > math.MaxInt64-n {
					return nil, fmt.Errorf("token %q pos %q: %w", lower, pos, ErrCountOverflow)
				}
				counts[k] = cur + n
			}
		}
	}

	rows := make([]Row, 0, len(counts))
	for k, n := range counts {
		rows = append(rows, Row{
			VolumeID:     doc.ID,
			Token:        k.token,
			PartOfSpeech: k.pos,
			Count:        n,
		})
	}
	return rows, nil
}

// Total returns the sum of Count over rows.
func Total(rows []Row) int64 {
	var sum int64
	for _, r := range rows {
		sum += r.Count
	}
	return sum
}
