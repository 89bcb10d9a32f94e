package volume

import (
	"fmt"
	"io"

	"github.com/dsnet/compress/bzip2"

	"github.com/eunmann/tokenbench/pkg/fileutil"
)

// Encode writes doc as JSON inside a single bzip2 stream, the format Decode
// reads.
func Encode(w io.Writer, doc *Document) error {
	zw, err := bzip2.NewWriter(w, &bzip2.WriterConfig{Level: bzip2.BestSpeed})
	if err != nil {
		return fmt.Errorf("create bzip2 writer: %w", err)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		zw.Close()
		return fmt.Errorf("marshal document: %w", err)
	}
	if _, err := zw.Write(data); err != nil {
		zw.Close()
		return fmt.Errorf("compress document: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish bzip2 stream: %w", err)
	}
	return nil
}

// WriteFile encodes doc into path, replacing any existing file. The file
// appears under path only once it is complete.
func WriteFile(path string, doc *Document) error {
	if err := fileutil.WriteTmpThenMove(path, func(w io.Writer) error {
		return Encode(w, doc)
	}); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
