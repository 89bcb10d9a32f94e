// Package volume loads extracted-features volume documents: one bzip2
// compressed JSON object per file holding per-page part-of-speech tagged
// token counts.
package volume

import (
	"bytes"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Document is the decoded content of one volume file.
type Document struct {
	ID       string    `json:"id"`
	Metadata Metadata  `json:"metadata"`
	Features *Features `json:"features"`

	// set by Decode when the "id" key is absent
	idMissing bool
}

// HasID reports whether the document carries an "id" key. Documents built in
// code always do; an empty string is still an id.
func (d *Document) HasID() bool { return !d.idMissing }

// Metadata holds the volume-level descriptive fields used by the loader.
type Metadata struct {
	Language string `json:"language"`
}

// Features holds the per-page feature records.
//
// Pages is nil when the "pages" key is absent or null, and non-nil (possibly
// empty) when present.
type Features struct {
	Pages []Page `json:"pages"`
}

// Page is one page's token data.
type Page struct {
	Body *PageBody `json:"body"`
}

// PageBody holds the body section of a page.
//
// TokenPosCount maps token -> part-of-speech tag -> count. It is nil when the
// "tokenPosCount" key is absent or null.
type PageBody struct {
	TokenPosCount map[string]map[string]int64 `json:"tokenPosCount"`
}

// UnmarshalJSON keeps presence of "pages" distinguishable from an empty list.
func (f *Features) UnmarshalJSON(data []byte) error {
	var raw map[string]jsoniter.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v, ok := raw["pages"]
	if !ok || isNull(v) {
		f.Pages = nil
		return nil
	}
	pages := []Page{}
	if err := json.Unmarshal(v, &pages); err != nil {
		return fmt.Errorf("pages: %w", err)
	}
	if pages == nil {
		pages = []Page{}
	}
	f.Pages = pages
	return nil
}

// UnmarshalJSON keeps presence of "tokenPosCount" distinguishable from an
// empty mapping.
func (b *PageBody) UnmarshalJSON(data []byte) error {
	var raw map[string]jsoniter.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v, ok := raw["tokenPosCount"]
	if !ok || isNull(v) {
		b.TokenPosCount = nil
		return nil
	}
	counts := make(map[string]map[string]int64)
	if err := json.Unmarshal(v, &counts); err != nil {
		return fmt.Errorf("tokenPosCount: %w", err)
	}
	b.TokenPosCount = counts
	return nil
}

// isNull reports a JSON null. jsoniter hands a null map value over as an
// empty RawMessage rather than the literal.
func isNull(v []byte) bool {
	v = bytes.TrimSpace(v)
	return len(v) == 0 || bytes.Equal(v, []byte("null"))
}
