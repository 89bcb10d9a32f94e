package volume

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dsnet/compress/bzip2"
	jsoniter "github.com/json-iterator/go"
)

// Opener opens a named entry of an input source.
type Opener interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// Decode decompresses a single bzip2 stream from r and decodes the JSON
// document it contains. The document must carry a metadata.language key,
// which every caller filters on; its value may be empty or null. All other
// structural checks are left to the consumer that reads the field.
func Decode(r io.Reader) (*Document, error) {
	zr, err := bzip2.NewReader(r, nil)
	if err != nil {
		return nil, &DecodeError{Op: "decompress", Err: err}
	}
	defer zr.Close()

	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, &DecodeError{Op: "decompress", Err: err}
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &DecodeError{Op: "parse", Err: err}
	}

	if !hasKey(data, "metadata", "language") {
		return nil, &KeyLookupError{Field: "metadata.language"}
	}
	doc.idMissing = !hasKey(data, "id")

	return &doc, nil
}

// Load opens name from src and decodes it. Decode failures are returned as
// *DecodeError carrying the entry name.
func Load(ctx context.Context, src Opener, name string) (*Document, error) {
	rc, err := src.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer rc.Close()

	doc, err := Decode(rc)
	if err != nil {
		var de *DecodeError
		if errors.As(err, &de) {
			de.Name = name
			return nil, de
		}
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	return doc, nil
}

// hasKey reports whether the object path exists in data, null values
// included.
func hasKey(data []byte, path ...interface{}) bool {
	return json.Get(data, path...).ValueType() != jsoniter.InvalidValue
}
