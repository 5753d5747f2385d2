package pipeline

import (
	"bytes"
	"fmt"
	"path"
	"strings"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/xlsx"
)

// DecodeSnapshot decodes raw records from a file name and its content. The
// extension selects the format: .xlsx workbooks or .json documents.
func DecodeSnapshot(name string, data []byte) ([]domain.RawRecord, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".xlsx":
		recs, err := xlsx.ReadRecords(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("DecodeSnapshot: %s: %w", name, err)
		}
		return recs, nil
	case ".json":
		recs, err := RecordsFromJSON(data)
		if err != nil {
			return nil, fmt.Errorf("DecodeSnapshot: %s: %w", name, err)
		}
		return recs, nil
	default:
		return nil, fmt.Errorf("DecodeSnapshot: unsupported snapshot format %q", name)
	}
}

// ExtractFilenameFromGCSURI extracts the filename from a GCS URI.
// e.g., "gs://bucket/folder/ledger.xlsx" → "ledger.xlsx"
func ExtractFilenameFromGCSURI(uri string) string {
	trimmed := strings.TrimPrefix(uri, "gs://")

	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) < 2 {
		return trimmed
	}

	return path.Base(parts[1])
}
