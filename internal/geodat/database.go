// Package geodat reads legacy GeoIP binary databases (GeoIP.dat,
// GeoLiteCity.dat and their relatives).
//
// A database is a binary trie over address bits followed by a record
// table and a trailing structure info block that names the edition. Once
// opened a DB is safe for concurrent lookups; only the charset may change
// afterwards.
package geodat

import (
	"bytes"
	"fmt"
	"io"
	"net/netip"
	"sync/atomic"

	"golang.org/x/exp/mmap"
)

const (
	structureInfoMaxSize = 20
	databaseInfoMaxSize  = 100
)

// source is the byte region a database is read from.
type source interface {
	io.ReaderAt
	io.Closer
	Size() int64
}

type mmapSource struct {
	*mmap.ReaderAt
}

func (s mmapSource) Size() int64 { return int64(s.Len()) }

type bytesSource []byte

func (s bytesSource) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(s)) {
		return 0, io.EOF
	}
	n := copy(p, s[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (s bytesSource) Close() error { return nil }

func (s bytesSource) Size() int64 { return int64(len(s)) }

// Option configures a DB at open time.
type Option func(*DB)

// WithCharset sets the charset record strings are returned in.
func WithCharset(cs Charset) Option {
	return func(db *DB) { db.charset.Store(uint32(cs)) }
}

// DB is an opened legacy GeoIP database.
type DB struct {
	src          source
	path         string
	edition      Edition
	segments     uint32
	recordLength int
	info         string
	charset      atomic.Uint32
}

// Open memory-maps the database at path and validates its structure info.
func Open(path string, opts ...Option) (*DB, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}
	db, err := newDB(mmapSource{r}, path, opts)
	if err != nil {
		_ = r.Close()
		return nil, &OpenError{Path: path, Err: err}
	}
	return db, nil
}

// FromBytes opens a database held in memory. The slice must not be
// modified while the DB is in use.
func FromBytes(b []byte, opts ...Option) (*DB, error) {
	db, err := newDB(bytesSource(b), "", opts)
	if err != nil {
		return nil, &OpenError{Err: err}
	}
	return db, nil
}

func newDB(src source, path string, opts []Option) (*DB, error) {
	db := &DB{src: src, path: path}
	for _, opt := range opts {
		opt(db)
	}
	if err := db.setupSegments(); err != nil {
		return nil, err
	}
	db.info = db.readInfo()
	return db, nil
}

func (db *DB) readAt(off int64, n int) ([]byte, error) {
	if off < 0 || off+int64(n) > db.src.Size() {
		return nil, fmt.Errorf("read %d bytes at %d: %w", n, off, ErrCorrupt)
	}
	buf := make([]byte, n)
	if _, err := db.src.ReadAt(buf, off); err != nil && err != io.EOF {
		return nil, err
	}
	return buf, nil
}

// setupSegments scans backwards from the end of the file for the
// structure info delimiter and derives the edition and segment count.
func (db *DB) setupSegments() error {
	size := db.src.Size()
	delim := []byte{0xff, 0xff, 0xff}
	for i := 0; i < structureInfoMaxSize; i++ {
		off := size - 3 - int64(i)
		if off < 0 {
			break
		}
		buf, err := db.readAt(off, 3)
		if err != nil {
			return err
		}
		if !bytes.Equal(buf, delim) {
			continue
		}
		t, err := db.readAt(off+3, 1)
		if err != nil {
			return ErrInvalidDatabase
		}
		edition := t[0]
		if edition >= 106 {
			edition -= 105
		}
		db.edition = Edition(edition)
		return db.layoutSegments(off + 4)
	}
	return ErrInvalidDatabase
}

func (db *DB) layoutSegments(segOff int64) error {
	layout, segments, recordLength := db.edition.layout()
	switch layout {
	case layoutFixed:
		db.segments = segments
	case layoutStored:
		buf, err := db.readAt(segOff, segmentRecordLength)
		if err != nil {
			return fmt.Errorf("%s: segment count: %w", db.edition, ErrInvalidDatabase)
		}
		db.segments = le24(buf)
		if db.segments == 0 || int64(db.segments)*2*int64(recordLength) > db.src.Size() {
			return fmt.Errorf("%s: segment count %d out of range: %w", db.edition, db.segments, ErrInvalidDatabase)
		}
	default:
		return fmt.Errorf("%w: %d", ErrUnknownEdition, uint8(db.edition))
	}
	db.recordLength = recordLength
	return nil
}

// readInfo returns the database info string stored after three zero bytes
// near the end of the file, or "" when absent.
func (db *DB) readInfo() string {
	size := db.src.Size()
	for i := 0; i < databaseInfoMaxSize; i++ {
		off := size - 3 - int64(i)
		if off < 0 {
			return ""
		}
		buf, err := db.readAt(off, 3)
		if err != nil {
			return ""
		}
		if buf[0] != 0 || buf[1] != 0 || buf[2] != 0 {
			continue
		}
		info, err := db.readAt(off+3, i)
		if err != nil {
			return ""
		}
		if n := bytes.IndexAny(info, "\x00\xff"); n >= 0 {
			info = info[:n]
		}
		return string(info)
	}
	return ""
}

// Path returns the file the database was opened from, if any.
func (db *DB) Path() string { return db.path }

// Edition returns the edition declared in the structure info.
func (db *DB) Edition() Edition { return db.edition }

// Kind returns the record variant this database produces.
func (db *DB) Kind() Kind { return db.edition.Kind() }

// Info returns the database info string, e.g. its build date.
func (db *DB) Info() string { return db.info }

// Segments returns the number of index segments.
func (db *DB) Segments() uint32 { return db.segments }

// Charset returns the charset record strings are returned in.
func (db *DB) Charset() Charset { return Charset(db.charset.Load()) }

// SetCharset changes the charset of subsequently decoded records.
func (db *DB) SetCharset(cs Charset) { db.charset.Store(uint32(cs)) }

// Supports reports whether addr belongs to the family the database indexes.
func (db *DB) Supports(addr netip.Addr) bool {
	if !addr.IsValid() {
		return false
	}
	addr = addr.Unmap()
	if db.edition.IsV6() {
		return addr.Is6()
	}
	return addr.Is4()
}

// Close releases the backing region.
func (db *DB) Close() error {
	return db.src.Close()
}

// CountryID returns the country table id for addr. Id 0 means the
// address is in no assigned block.
func (db *DB) CountryID(addr netip.Addr) (int, error) {
	if db.Kind() != KindCountry || !db.Supports(addr) {
		return 0, nil
	}
	x, _, err := db.seek(addr)
	if err != nil {
		return 0, err
	}
	return int(x - db.segments), nil
}

// Country looks up the country record of addr. It returns nil, nil when
// the address maps to no block or the database is not a country edition.
func (db *DB) Country(addr netip.Addr) (*CountryRecord, error) {
	id, err := db.CountryID(addr)
	if err != nil || id == 0 {
		return nil, err
	}
	return NewCountryRecord(id, db.Charset())
}

// City looks up the city record of addr. It returns nil, nil when the
// address maps to no record or the database is not a city edition.
func (db *DB) City(addr netip.Addr) (*CityRecord, error) {
	if db.Kind() != KindCity || !db.Supports(addr) {
		return nil, nil
	}
	x, _, err := db.seek(addr)
	if err != nil {
		return nil, err
	}
	if x == db.segments {
		return nil, nil
	}
	ptr := int64(x) + int64(2*db.recordLength-1)*int64(db.segments)
	size := db.src.Size()
	if ptr >= size {
		return nil, fmt.Errorf("record pointer %d: %w", ptr, ErrCorrupt)
	}
	n := int64(fullRecordLength)
	if ptr+n > size {
		n = size - ptr
	}
	buf, err := db.readAt(ptr, int(n))
	if err != nil {
		return nil, err
	}
	return decodeCity(buf, db.edition, db.Charset())
}
