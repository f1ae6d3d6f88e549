package cache

import (
	"fmt"
	"os"
)

// ShouldUseCache reports whether a previously persisted artifact at
// cacheFilePath may be reused. When forceRebuild is set, any existing
// cache file is deleted first so the fresh build that follows cannot be
// short-circuited by its own stale entry. Otherwise this is a pure
// existence check: no content validation, no hashing, no expiry.
func ShouldUseCache(cacheFilePath string, forceRebuild bool) (bool, error) {
	if forceRebuild {
		if err := os.Remove(cacheFilePath); err != nil && !os.IsNotExist(err) {
			return false, fmt.Errorf("failed to remove stale cache file: %w", err)
		}

		return false, nil
	}

	info, err := os.Stat(cacheFilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}

		return false, err
	}

	return info.Mode().IsRegular(), nil
}
