package backup

import (
	"strings"

	"github.com/klauspost/compress/zstd"
)

// encodeFor returns data compressed with zstd when name ends in ".zst",
// otherwise data unchanged.
func encodeFor(name string, data []byte) ([]byte, error) {
	if !strings.HasSuffix(name, ".zst") {
		return data, nil
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
}

// contentTypeFor returns the object content type matching encodeFor.
func contentTypeFor(name string) string {
	if strings.HasSuffix(name, ".zst") {
		return "application/zstd"
	}
	return "application/x-ndjson"
}
