package lua

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/samaelod/fixdesk/types"
)

// SaveToRecent saves profiles to a new file in recentDir. It uses the
// original filename as a base and appends an incrementing number. Lua
// sources are copied verbatim. Returns the path to the newly created file.
func SaveToRecent(recentDir string, p *types.Profiles, originalPath string) (string, error) {
	if recentDir == "" {
		recentDir = "recent"
	}

	if err := os.MkdirAll(recentDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create recent directory: %w", err)
	}

	baseName := filepath.Base(originalPath)
	ext := filepath.Ext(baseName)
	nameWithoutExt := strings.TrimSuffix(baseName, ext)
	if nameWithoutExt == "" || nameWithoutExt == "." {
		nameWithoutExt = "session"
	}

	// pattern: name_1.lua, name_2.lua, etc.
	counter := 1
	var newPath string
	for {
		newFilename := fmt.Sprintf("%s_%d.lua", nameWithoutExt, counter)
		newPath = filepath.Join(recentDir, newFilename)

		if _, err := os.Stat(newPath); os.IsNotExist(err) {
			break
		}
		counter++
	}

	f, err := os.Create(newPath)
	if err != nil {
		return "", fmt.Errorf("failed to create profile file: %w", err)
	}
	defer f.Close()

	if strings.HasSuffix(originalPath, ".lua") {
		// Copy Lua sources verbatim to keep comments and layout
		src, err := os.Open(originalPath)
		if err != nil {
			return "", fmt.Errorf("failed to open source lua file: %w", err)
		}
		defer src.Close()

		if _, err := io.Copy(f, src); err != nil {
			return "", fmt.Errorf("failed to copy lua content: %w", err)
		}
	} else {
		if err := WriteProfiles(f, p); err != nil {
			return "", fmt.Errorf("failed to write profiles to lua: %w", err)
		}
	}

	return newPath, nil
}
