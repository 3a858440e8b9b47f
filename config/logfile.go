package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const allTxt = "ALL.TXT"

// DefaultLogFile returns the first ALL.TXT that exists in WSJT-X's usual
// locations for this platform.
func DefaultLogFile() (string, error) {
	home, _ := os.UserHomeDir()
	candidates := logFileCandidates(runtime.GOOS, home, os.Getenv("LOCALAPPDATA"))
	for _, path := range candidates {
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w; tried %s", ErrNoLogFile, strings.Join(candidates, ", "))
}

func logFileCandidates(goos, home, localAppData string) []string {
	var out []string
	switch goos {
	case "darwin":
		if home != "" {
			out = append(out, filepath.Join(home, "Library", "Application Support", "WSJT-X", allTxt))
		}
		out = append(out, filepath.Join("/Applications", "WSJT-X", allTxt))
	case "windows":
		if localAppData != "" {
			out = append(out, filepath.Join(localAppData, "WSJT-X", allTxt))
		}
	default:
		if home != "" {
			out = append(out, filepath.Join(home, ".local", "share", "WSJT-X", allTxt))
		}
	}
	return out
}
