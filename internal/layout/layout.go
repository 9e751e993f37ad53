package layout

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

func VersionDir(root, id string) string {
	return filepath.Join(root, "versions", id)
}

func VersionJar(root, id string) string {
	return filepath.Join(VersionDir(root, id), id+".jar")
}

func VersionJSON(root, id string) string {
	return filepath.Join(VersionDir(root, id), id+".json")
}

func ReceiptPath(root, id string) string {
	return filepath.Join(VersionDir(root, id), id+".receipt.yaml")
}

func LibrariesDir(root string) string {
	return filepath.Join(root, "libraries")
}

// LibraryPath joins a manifest-relative artifact path under the libraries
// directory. Paths escaping the directory are rejected.
func LibraryPath(root, rel string) (string, error) {
	return within(LibrariesDir(root), rel)
}

// MavenPath converts group:artifact:version[:classifier] into the relative
// repository path used when a library carries no explicit artifact path.
func MavenPath(name string) (string, error) {
	parts := strings.Split(name, ":")
	if len(parts) < 3 {
		return "", fmt.Errorf("invalid library name: %q", name)
	}
	group, artifact, version := parts[0], parts[1], parts[2]
	file := artifact + "-" + version
	if len(parts) > 3 && parts[3] != "" {
		file += "-" + parts[3]
	}
	segments := append(strings.Split(group, "."), artifact, version, file+".jar")
	return filepath.ToSlash(filepath.Join(segments...)), nil
}

func NativesDir(root, id string) string {
	return filepath.Join(root, "natives", id)
}

func AssetsDir(root string) string {
	return filepath.Join(root, "assets")
}

func AssetIndexPath(root, indexID string) string {
	return filepath.Join(AssetsDir(root), "indexes", indexID+".json")
}

// AssetObjectPath is the content-addressed location of an asset object.
func AssetObjectPath(root, hash string) string {
	return filepath.Join(AssetsDir(root), "objects", AssetObjectKey(hash))
}

var assetHash = regexp.MustCompile(`^[0-9a-f]{40}$`)

// ValidAssetHash reports whether hash is a lowercase hex SHA-1, the only
// form allowed to become an object path.
func ValidAssetHash(hash string) bool {
	return assetHash.MatchString(hash)
}

// AssetObjectKey is the hash[0:2]/hash convention shared by the local store
// and the resources server.
func AssetObjectKey(hash string) string {
	if len(hash) < 2 {
		return hash
	}
	return hash[:2] + "/" + hash
}

func RuntimeDir(root, name string) string {
	return filepath.Join(root, "runtime", name)
}

func CacheDir(root string) string {
	return filepath.Join(root, "cache")
}

func ManifestCachePath(root string) string {
	return filepath.Join(CacheDir(root), "json", "version_manifest.json")
}

func VersionCachePath(root, id string) string {
	return filepath.Join(CacheDir(root), "json", "versions", id+".json")
}

func RunReportPath(root string) string {
	return filepath.Join(CacheDir(root), "last_run.yaml")
}

func DownloadLockPath(root string) string {
	return filepath.Join(CacheDir(root), "download.lock")
}

func LaunchLockPath(root string) string {
	return filepath.Join(CacheDir(root), "launch.lock")
}

func LogDir(root string) string {
	return filepath.Join(root, "logs")
}

func LauncherLogPath(root string, now time.Time) string {
	return filepath.Join(LogDir(root), fmt.Sprintf("launcher-%s.log", now.Format("2006-01-02")))
}

func CrashLogPath(root string, now time.Time) string {
	return filepath.Join(LogDir(root), fmt.Sprintf("crash_%s.log", now.Format("20060102-150405.000")))
}

func ProfilesPath(root string) string {
	return filepath.Join(root, "launcher_profiles.json")
}

func SetupDirectories(dirs ...string) error {
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// SafeJoin joins rel under base and fails if the result escapes base.
func SafeJoin(base, rel string) (string, error) {
	return within(base, rel)
}

func within(base, rel string) (string, error) {
	full := filepath.Join(base, filepath.FromSlash(rel))
	r, err := filepath.Rel(base, full)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes %s", rel, base)
	}
	return full, nil
}
