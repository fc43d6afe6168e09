package cache

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/habedi/reauth/db"
)

// Backend kinds accepted by Open.
const (
	KindMemory = "memory"
	KindFile   = "file"
	KindSQLite = "sqlite"
)

// Kinds lists every backend kind Open understands.
var Kinds = []string{KindMemory, KindFile, KindSQLite}

// Open builds the backend named by kind for the slot called name. dir is used
// by the file backend, repo by the sqlite backend.
func Open(kind, name, dir string, repo db.SlotRepository) (Cache, error) {
	switch strings.ToLower(kind) {
	case KindMemory, "":
		return NewMemory(""), nil
	case KindFile:
		if dir == "" {
			return nil, fmt.Errorf("file cache for %q needs a directory", name)
		}
		return NewFile(filepath.Join(dir, name+".json")), nil
	case KindSQLite:
		if repo == nil {
			return nil, fmt.Errorf("sqlite cache for %q needs a database", name)
		}
		return NewStore(repo, name), nil
	default:
		return nil, fmt.Errorf("unknown cache kind %q (must be one of: %s)", kind, strings.Join(Kinds, ", "))
	}
}
