package extract

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Format identifies an archive container.
type Format string

const (
	FormatUnknown Format = ""
	FormatZip     Format = "zip"
	FormatRar     Format = "rar"
)

var signatures = []struct {
	magic  []byte
	format Format
}{
	{[]byte("PK\x03\x04"), FormatZip},
	{[]byte("PK\x05\x06"), FormatZip},
	{[]byte("PK\x07\x08"), FormatZip},
	{[]byte("Rar!\x1a\x07\x01\x00"), FormatRar},
	{[]byte("Rar!\x1a\x07\x00"), FormatRar},
}

// Detect determines the archive format of path from its leading bytes and its
// extension.
//
//   - a known extension whose signature names another format is a mismatch
//   - a known extension without any recognizable signature is corrupt
//   - an unknown extension falls back to the signature
//   - neither known is a mismatch
func Detect(path string) (Format, error) {
	byExt := formatForExtension(path)
	bySig, err := sniff(path)
	if err != nil {
		return FormatUnknown, newError(ReasonCorruptArchive, path, err)
	}

	switch {
	case byExt != FormatUnknown && bySig == byExt:
		return byExt, nil
	case byExt != FormatUnknown && bySig != FormatUnknown:
		return FormatUnknown, newError(ReasonFormatMismatch, path,
			fmt.Errorf("extension says %s but content is %s", byExt, bySig))
	case byExt != FormatUnknown:
		return FormatUnknown, newError(ReasonCorruptArchive, path,
			fmt.Errorf("no %s signature found", byExt))
	case bySig != FormatUnknown:
		return bySig, nil
	default:
		return FormatUnknown, newError(ReasonFormatMismatch, path,
			fmt.Errorf("unsupported archive type %q", filepath.Ext(path)))
	}
}

func formatForExtension(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip":
		return FormatZip
	case ".rar":
		return FormatRar
	default:
		return FormatUnknown
	}
}

func sniff(path string) (Format, error) {
	file, err := os.Open(path)
	if err != nil {
		return FormatUnknown, err
	}
	defer file.Close()

	head := make([]byte, 8)
	n, err := io.ReadFull(file, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return FormatUnknown, err
	}
	head = head[:n]
	for _, sig := range signatures {
		if bytes.HasPrefix(head, sig.magic) {
			return sig.format, nil
		}
	}
	return FormatUnknown, nil
}
