package reading

import (
	"log"
	"os"
)

// RemoveTempFiles deletes every staged local file created during
// materialization, then the invocation's staging directory itself. It runs
// regardless of whether the reading succeeded; a failed deletion is logged
// and the remaining deletions still happen. Returns the number of deletion
// attempts made.
func RemoveTempFiles(tempDir string, paths []string) int {
	attempted := 0
	for _, path := range paths {
		attempted++
		if err := os.Remove(path); err != nil {
			log.Printf("⚠️ [CLEANUP] Failed to remove temp file %s: %v", path, err)
		}
	}

	if tempDir != "" {
		if err := os.Remove(tempDir); err != nil && !os.IsNotExist(err) {
			log.Printf("⚠️ [CLEANUP] Failed to remove staging dir %s: %v", tempDir, err)
		}
	}

	return attempted
}
