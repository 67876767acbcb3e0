package openh264

import (
	"os"
	"path/filepath"
	"runtime"
)

// Environment variable naming the shared library, overriding the search.
const EnvLibrary = "ALOHACAR_OPENH264"

// libraryPaths lists the candidates tried, in order, when loading the
// library. explicit comes first if set, then $ALOHACAR_OPENH264.
func libraryPaths(explicit string) []string {
	var paths []string
	if explicit != "" {
		paths = append(paths, explicit)
	}
	if env := os.Getenv(EnvLibrary); env != "" {
		paths = append(paths, env)
	}

	var names, dirs []string
	switch runtime.GOOS {
	case "darwin":
		names = []string{"libopenh264.dylib", "libopenh264.7.dylib", "libopenh264.6.dylib"}
		dirs = []string{"/opt/homebrew/lib", "/usr/local/lib"}
	default:
		names = []string{"libopenh264.so.7", "libopenh264.so.6", "libopenh264.so"}
		dirs = []string{"/usr/lib", "/usr/local/lib"}
	}

	// Next to the executable, for bundled installs.
	if exe, err := os.Executable(); err == nil {
		for _, n := range names {
			paths = append(paths, filepath.Join(filepath.Dir(exe), n))
		}
	}
	// Bare names go through the dynamic linker's own search.
	paths = append(paths, names...)
	for _, d := range dirs {
		for _, n := range names {
			paths = append(paths, filepath.Join(d, n))
		}
	}
	return paths
}
