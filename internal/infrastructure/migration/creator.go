package migration

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
	"time"
)

// versionLayout orders migrations lexically by creation time
const versionLayout = "20060102150405"

var migrationTemplates = []struct {
	suffix string
	tmpl   *template.Template
}{
	{".up.sql", template.Must(template.New("up").Parse(`-- Migration: {{.Name}}
-- Created: {{.Timestamp}}
-- Description: {{.Description}}
-- ledger_entries is append-only: never UPDATE or DELETE its rows here.

-- Write your UP migration SQL here
`))},
	{".down.sql", template.Must(template.New("down").Parse(`-- Migration: {{.Name}} (Rollback)
-- Created: {{.Timestamp}}

-- Write your DOWN migration SQL here
`))},
}

// MigrationFile describes a generated up/down pair
type MigrationFile struct {
	Version     string
	Name        string
	Description string
	Timestamp   string
	UpPath      string
	DownPath    string
}

// CreateMigration writes an empty up/down pair named after the current
// time into dir, creating dir when needed. Either both files are written
// or neither is.
func CreateMigration(dir, name, description string) (*MigrationFile, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create migrations directory: %w", err)
	}

	now := time.Now()
	mf := &MigrationFile{
		Version:     now.Format(versionLayout),
		Name:        name,
		Description: description,
		Timestamp:   now.Format(time.RFC3339),
	}
	base := filepath.Join(dir, mf.Version+"_"+sanitizeName(name))
	mf.UpPath = base + ".up.sql"
	mf.DownPath = base + ".down.sql"

	var written []string
	for _, t := range migrationTemplates {
		path := base + t.suffix
		var buf bytes.Buffer
		err := t.tmpl.Execute(&buf, mf)
		if err == nil {
			err = os.WriteFile(path, buf.Bytes(), 0o644)
		}
		if err != nil {
			for _, p := range written {
				_ = os.Remove(p)
			}
			return nil, fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
		}
		written = append(written, path)
	}
	return mf, nil
}

// sanitizeName lowercases name and keeps letters and digits, collapsing
// runs of spaces, dashes and underscores into a single underscore
func sanitizeName(name string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(name) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			pendingSep = true
		}
	}
	return b.String()
}

// ListMigrations returns the base names of the migration pairs found in
// fsys, in version order. A missing directory yields an empty list.
func ListMigrations(fsys fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	migrations := make([]string, 0, len(entries)/2)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if base, ok := strings.CutSuffix(entry.Name(), ".up.sql"); ok && base != "" {
			migrations = append(migrations, base)
		}
	}
	sort.Strings(migrations)

	return migrations, nil
}
