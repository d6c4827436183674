package fingerprint

import (
	"strconv"
	"strings"
	"unicode/utf16"
)

const fallbackDelimiter = "|"

// StorageFlags records which browser storage capabilities are present.
type StorageFlags struct {
	LocalStorage   bool
	SessionStorage bool
	IndexedDB      bool
}

// Inputs are the environment signals the fallback hash is computed over.
type Inputs struct {
	UserAgent      string
	Language       string
	ScreenWidth    int
	ScreenHeight   int
	TimezoneOffset int
	Storage        StorageFlags
	Canvas         string
}

func (in Inputs) components() []string {
	return []string{
		in.UserAgent,
		in.Language,
		strconv.Itoa(in.ScreenWidth) + "x" + strconv.Itoa(in.ScreenHeight),
		strconv.Itoa(in.TimezoneOffset),
		strconv.FormatBool(in.Storage.LocalStorage),
		strconv.FormatBool(in.Storage.SessionStorage),
		strconv.FormatBool(in.Storage.IndexedDB),
		in.Canvas,
	}
}

// Fallback hashes the inputs into a base-36 identifier. It is a pure function.
func Fallback(in Inputs) string {
	return strconv.FormatInt(abs(hash32(strings.Join(in.components(), fallbackDelimiter))), 36)
}

// hash32 is the rolling h*31+c hash over UTF-16 code units, wrapping at 32 bits.
func hash32(s string) int32 {
	var h int32
	for _, unit := range utf16.Encode([]rune(s)) {
		h = h*31 + int32(unit)
	}
	return h
}

func abs(h int32) int64 {
	v := int64(h)
	if v < 0 {
		return -v
	}
	return v
}
