// Package migrations embeds the versioned schema files of each storage
// backend. Files are named NNNN_name.sql and applied in version order.
package migrations

import (
	"crypto/sha256"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

//go:embed bigquery/*.sql
var BigQuery embed.FS

//go:embed sqlite/*.sql
var SQLite embed.FS

// Directories of the embedded file systems.
const (
	BigQueryDir = "bigquery"
	SQLiteDir   = "sqlite"
)

// Pattern to match migration files: 0001_name.sql
var filenamePattern = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

// Migration represents a single migration file
type Migration struct {
	Version  int
	Name     string
	Filename string
	SQL      string
	Checksum string
}

// Label is the NNNN_name form used in logs.
func (m Migration) Label() string {
	return fmt.Sprintf("%04d_%s", m.Version, m.Name)
}

// ParseFilename splits a migration file name into its version and name.
func ParseFilename(filename string) (version int, name string, ok bool) {
	matches := filenamePattern.FindStringSubmatch(filename)
	if matches == nil {
		return 0, "", false
	}
	version, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0, "", false
	}
	return version, matches[2], true
}

// Checksum returns the hex sha256 of a migration's original content.
func Checksum(content []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(content))
}

// Load reads the migrations of dir in fsys, sorted by version. Each
// {{KEY}} placeholder is replaced by vars[KEY]. Checksums are computed before
// replacement, so applying the same files to another dataset keeps them.
// Files that do not match the naming pattern are ignored; two files with
// the same version are an error.
func Load(fsys fs.FS, dir string, vars map[string]string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("Load: reading migrations directory: %w", err)
	}

	seen := make(map[int]string)
	var out []Migration
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version, name, ok := ParseFilename(entry.Name())
		if !ok {
			continue
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("Load: %s and %s share version %04d", prev, entry.Name(), version)
		}
		seen[version] = entry.Name()

		content, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("Load: reading file %s: %w", entry.Name(), err)
		}

		sql := string(content)
		for key, value := range vars {
			sql = strings.ReplaceAll(sql, "{{"+key+"}}", value)
		}

		out = append(out, Migration{
			Version:  version,
			Name:     name,
			Filename: entry.Name(),
			SQL:      sql,
			Checksum: Checksum(content),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Version < out[j].Version
	})
	return out, nil
}

// Pending returns the migrations whose version is not in applied, and the
// ones whose checksum differs from the recorded one.
func Pending(all []Migration, applied map[int]string) (pending, drifted []Migration) {
	for _, m := range all {
		sum, ok := applied[m.Version]
		if !ok {
			pending = append(pending, m)
			continue
		}
		if sum != "" && sum != m.Checksum {
			drifted = append(drifted, m)
		}
	}
	return pending, drifted
}
