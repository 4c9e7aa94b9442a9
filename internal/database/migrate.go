package database

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"
)

// Migration is one embedded NNNNNN_name.up.sql / .down.sql pair.
type Migration struct {
	Version    int
	Name       string
	UpScript   string
	DownScript string
}

func (m *Migration) String() string {
	return fmt.Sprintf("%06d_%s", m.Version, m.Name)
}

//go:embed migrations/*.sql
var migrationFS embed.FS

// migrations is sorted by version.
var migrations = mustParseMigrations(migrationFS, "migrations")

func mustParseMigrations(fsys fs.FS, dir string) []Migration {
	list, err := parseMigrations(fsys, dir)
	if err != nil {
		panic(fmt.Sprintf("embedded migrations: %v", err))
	}
	return list
}

// parseMigrations reads every *.up.sql in dir with its .down.sql partner.
// Malformed names, duplicate versions and missing down scripts are errors.
func parseMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	ups, err := fs.Glob(fsys, path.Join(dir, "*.up.sql"))
	if err != nil {
		return nil, err
	}

	seen := make(map[int]string, len(ups))
	list := make([]Migration, 0, len(ups))
	for _, up := range ups {
		base := strings.TrimSuffix(path.Base(up), ".up.sql")
		num, name, ok := strings.Cut(base, "_")
		version, convErr := strconv.Atoi(num)
		if !ok || name == "" || convErr != nil || version <= 0 {
			return nil, fmt.Errorf("%s: want NNNNNN_name.up.sql", up)
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("version %d used by both %s and %s", version, prev, base)
		}
		seen[version] = base

		upSQL, err := fs.ReadFile(fsys, up)
		if err != nil {
			return nil, err
		}
		downSQL, err := fs.ReadFile(fsys, path.Join(dir, base+".down.sql"))
		if err != nil {
			return nil, fmt.Errorf("%s has no down script: %w", base, err)
		}
		list = append(list, Migration{Version: version, Name: name, UpScript: string(upSQL), DownScript: string(downSQL)})
	}

	slices.SortFunc(list, func(a, b Migration) int { return a.Version - b.Version })
	return list, nil
}

// GetMigrations returns the embedded migrations in version order.
func GetMigrations() []Migration {
	return migrations
}

// GetMigrationByVersion returns the migration with the given version, or nil.
func GetMigrationByVersion(version int) *Migration {
	i := slices.IndexFunc(migrations, func(m Migration) bool { return m.Version == version })
	if i < 0 {
		return nil
	}
	return &migrations[i]
}
