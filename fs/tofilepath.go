package fs

import (
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/sharedcode/livepers"
)

// documentNamespace seeds the name-based UUIDs that map entity IDs to file names.
var documentNamespace = uuid.MustParse("5d1f1c2e-8a4b-4f0e-9d43-6c1f0b7a2e91")

// ToFilePathFunc formats a base path and entity ID into the path of the entity's document.
type ToFilePathFunc func(basePath string, id livepers.ID) string

// ToFilePath holds the global path formatting function used by the back-end.
// Applications may override this to control file placement and partitioning.
var ToFilePath ToFilePathFunc = DefaultToFilePath

// DefaultToFilePath maps id to a name-based UUID and stores the document under a 4-level
// folder hierarchy derived from it. Entity IDs may contain any character, the UUID form
// is safe on every filesystem and spreads documents evenly across folders.
func DefaultToFilePath(basePath string, id livepers.ID) string {
	u := uuid.NewSHA1(documentNamespace, []byte(id))
	if len(basePath) > 0 && basePath[len(basePath)-1] == os.PathSeparator {
		return fmt.Sprintf("%s%s%c%s.json", basePath, Apply4LevelHierarchy(u), os.PathSeparator, u)
	}
	return fmt.Sprintf("%s%c%s%c%s.json", basePath, os.PathSeparator, Apply4LevelHierarchy(u), os.PathSeparator, u)
}

// Apply4LevelHierarchy maps a UUID to a 4-level directory structure using its first four hex digits.
// Example: abcd-... -> a/b/c/d.
func Apply4LevelHierarchy(id uuid.UUID) string {
	s := id.String()
	ps := os.PathSeparator
	return fmt.Sprintf("%c%c%c%c%c%c%c", s[0], ps, s[1], ps, s[2], ps, s[3])
}
