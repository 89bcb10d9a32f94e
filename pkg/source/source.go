// Package source enumerates and opens compressed volume files from a local
// directory or an S3 prefix.
package source

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Ext is the suffix every input file carries.
const Ext = ".bz2"

// Source lists and opens the volume files of one location. Listing is
// non-recursive and returns names in the backend's listing order.
type Source interface {
	List(ctx context.Context) ([]string, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	String() string
}

// Open returns the Source for location: an s3://bucket/prefix URI or a local
// directory path.
func Open(ctx context.Context, location string) (Source, error) {
	if strings.HasPrefix(location, "s3://") {
		src, err := NewS3(ctx, location)
		if err != nil {
			return nil, fmt.Errorf("open source %s: %w", location, err)
		}
		return src, nil
	}
	src, err := NewDir(location)
	if err != nil {
		return nil, fmt.Errorf("open source %s: %w", location, err)
	}
	return src, nil
}
