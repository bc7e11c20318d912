package geodat

import (
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
)

// Charset is the text encoding of record strings.
type Charset uint32

const (
	ISO88591 Charset = iota
	UTF8
)

func (c Charset) String() string {
	if c == UTF8 {
		return "UTF-8"
	}
	return "ISO-8859-1"
}

// ParseCharset maps an IANA charset name or alias to a Charset. Only
// ISO-8859-1 and UTF-8 are accepted.
func ParseCharset(name string) (Charset, error) {
	enc, err := ianaindex.IANA.Encoding(strings.TrimSpace(name))
	if err != nil || enc == nil {
		return 0, &UnsupportedEncodingError{Name: name}
	}
	switch enc {
	case charmap.ISO8859_1:
		return ISO88591, nil
	case unicode.UTF8:
		return UTF8, nil
	}
	switch canonical, _ := ianaindex.IANA.Name(enc); canonical {
	case "ISO-8859-1":
		return ISO88591, nil
	case "UTF-8":
		return UTF8, nil
	}
	return 0, &UnsupportedEncodingError{Name: name}
}

// decodeRaw turns ISO-8859-1 bytes read from disk into a string in c.
func (c Charset) decodeRaw(raw []byte) string {
	if c != UTF8 {
		return string(raw)
	}
	s, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(s)
}

// transcode re-encodes s from one charset to another. Runes that
// ISO-8859-1 cannot represent are replaced.
func transcode(s string, from, to Charset) string {
	if from == to || s == "" {
		return s
	}
	var (
		out string
		err error
	)
	if to == UTF8 {
		out, err = charmap.ISO8859_1.NewDecoder().String(s)
	} else {
		out, err = encoding.ReplaceUnsupported(charmap.ISO8859_1.NewEncoder()).String(s)
	}
	if err != nil {
		return s
	}
	return out
}
