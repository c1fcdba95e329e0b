package decode

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wippyai/stackvm/code"
	"github.com/wippyai/stackvm/errors"
)

// Format names a program encoding.
type Format string

const (
	FormatAuto   Format = ""
	FormatText   Format = "text"
	FormatTuples Format = "tuples"
)

// ParseFormat accepts "text", "tuples", "json", "yaml" and the empty string
// for detection by file name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return FormatAuto, nil
	case "text", "wat":
		return FormatText, nil
	case "tuples", "json", "yaml", "yml":
		return FormatTuples, nil
	}
	return FormatAuto, fmt.Errorf("unknown format %q (want text or tuples)", s)
}

// Detect picks a format from a file name: .json, .yaml and .yml hold
// tuples, everything else is text.
func Detect(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return FormatTuples
	}
	return FormatText
}

// Bytes decodes data in format f. name is only used for detection when f is
// FormatAuto.
func Bytes(f Format, name string, data []byte) (*code.Program, error) {
	if f == FormatAuto {
		f = Detect(name)
	}
	switch f {
	case FormatTuples:
		return Tuples(data)
	case FormatText:
		return Text(string(data))
	}
	return nil, errors.InvalidInput(errors.PhaseDecode, fmt.Sprintf("unknown format %q", f))
}

// File reads and decodes a program file.
func File(path string, f Format) (*code.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseDecode, errors.KindInvalidInput, err, "read "+path)
	}
	return Bytes(f, path, data)
}
