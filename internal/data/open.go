package data

import (
	"bytes"
	"io"
	"os"

	"github.com/TomasB/geolookup/internal/geodat"
)

// mmdbMarker starts the metadata section of every MMDB file.
var mmdbMarker = []byte("\xAB\xCD\xEFMaxMind.com")

const mmdbMetadataWindow = 128 * 1024

// Open opens the database at path, choosing the MMDB or legacy .dat
// engine from the file contents.
func Open(path string, cs geodat.Charset) (Database, error) {
	isMMDB, err := sniffMMDB(path)
	if err != nil {
		return nil, &geodat.OpenError{Path: path, Err: err}
	}
	if isMMDB {
		r, err := NewMmdbReader(path)
		if err != nil {
			return nil, err
		}
		r.SetCharset(cs)
		return r, nil
	}
	return geodat.Open(path, geodat.WithCharset(cs))
}

func sniffMMDB(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return false, err
	}
	size := fi.Size()
	off := max(size-mmdbMetadataWindow, 0)
	buf := make([]byte, size-off)
	if _, err := f.ReadAt(buf, off); err != nil && err != io.EOF {
		return false, err
	}
	return bytes.Contains(buf, mmdbMarker), nil
}
