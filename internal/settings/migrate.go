package settings

import "fmt"

// CurrentVersion is the latest settings schema version.
const CurrentVersion = 1

// migration transforms a raw YAML map from FromVersion to
// FromVersion+1, mirroring the teacher's configMigration chain.
type migration struct {
	FromVersion int
	Migrate     func(raw map[string]any) error
}

// migrations is the ordered migration chain. Today's schema has never
// changed shape since its introduction, so the single identity step
// below exists only to give the chain somewhere to start (see
// DESIGN.md's Open Question decision on the settings-migration stub).
var migrations = []migration{
	{FromVersion: 0, Migrate: migrateV0toV1},
}

// Migrate applies every pending migration to raw in place, returning
// the resulting version and whether anything changed.
func Migrate(raw map[string]any) (version int, migrated bool, err error) {
	switch v := raw["version"].(type) {
	case int:
		version = v
	case float64:
		version = int(v)
	default:
		version = 0
	}

	start := version
	for _, m := range migrations {
		if m.FromVersion != version {
			continue
		}
		if err := m.Migrate(raw); err != nil {
			return version, version != start,
				fmt.Errorf("settings migration v%d->v%d: %w", m.FromVersion, m.FromVersion+1, err)
		}
		version++
		raw["version"] = version
	}
	return version, version != start, nil
}

// migrateV0toV1 is the identity migration from the unversioned
// (pre-schema) settings file to version 1: no field renames are
// needed, this step only stamps the version so future migrations have
// a starting point to chain from.
func migrateV0toV1(raw map[string]any) error {
	return nil
}
