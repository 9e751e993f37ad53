package archive

import (
	"archive/tar"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mclaunch/internal/fault"
)

func buildZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := zip.NewWriter(f)
	for name, content := range files {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
}

type tarEntry struct {
	name string
	body string
	mode int64
	dir  bool
}

func buildTarGz(t *testing.T, path string, entries []tarEntry) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Mode: e.mode, Size: int64(len(e.body)), Typeflag: tar.TypeReg}
		if e.dir {
			hdr.Typeflag = tar.TypeDir
			hdr.Size = 0
		}
		require.NoError(t, tw.WriteHeader(hdr))
		if !e.dir {
			_, err := tw.Write([]byte(e.body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
}

func TestDetect(t *testing.T) {
	assert.Equal(t, Zip, Detect("OpenJDK24.ZIP"))
	assert.Equal(t, Zip, Detect("lwjgl-natives-linux.jar"))
	assert.Equal(t, TarGz, Detect("jdk.tar.gz"))
	assert.Equal(t, TarGz, Detect("jdk.tgz"))
	assert.Equal(t, Unknown, Detect("jdk.7z"))
}

func TestExtractZipSkipsMetaInf(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "natives.jar")
	buildZip(t, src, map[string]string{
		"liblwjgl.so":          "elf",
		"sub/libopenal.so":     "elf2",
		"META-INF/MANIFEST.MF": "x",
	})

	dest := filepath.Join(dir, "out")
	require.NoError(t, Extract(src, dest, SkipMetaInf))

	assert.FileExists(t, filepath.Join(dest, "liblwjgl.so"))
	assert.FileExists(t, filepath.Join(dest, "sub", "libopenal.so"))
	assert.NoDirExists(t, filepath.Join(dest, "META-INF"))
}

func TestExtractZipRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "evil.zip")
	buildZip(t, src, map[string]string{"../../escape.txt": "x"})

	err := Extract(src, filepath.Join(dir, "out"), nil)
	assert.ErrorIs(t, err, fault.ErrExtraction)
	assert.NoFileExists(t, filepath.Join(dir, "..", "escape.txt"))
}

func TestExtractTarGzKeepsMode(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "jdk.tar.gz")
	buildTarGz(t, src, []tarEntry{
		{name: "jdk-21.0.2/", dir: true, mode: 0o755},
		{name: "jdk-21.0.2/bin/java", body: "#!/bin/sh\n", mode: 0o755},
		{name: "jdk-21.0.2/release", body: "JAVA_VERSION=\"21.0.2\"", mode: 0o644},
	})

	dest := filepath.Join(dir, "runtime")
	require.NoError(t, Extract(src, dest, nil))

	info, err := os.Stat(filepath.Join(dest, "jdk-21.0.2", "bin", "java"))
	require.NoError(t, err)
	assert.NotZero(t, info.Mode().Perm()&0o100, "executable bit preserved")
}

func TestExtractUnsupported(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.rar")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))
	assert.ErrorIs(t, Extract(src, dir, nil), fault.ErrExtraction)
}

func TestExtractCorrupt(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.zip")
	require.NoError(t, os.WriteFile(src, []byte("not a zip"), 0o644))
	assert.ErrorIs(t, Extract(src, dir, nil), fault.ErrExtraction)
}

func TestFlatten(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "jdk-24.0.1", "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "jdk-24.0.1", "bin", "java"), nil, 0o755))

	ok, err := Flatten(dir, RuntimeWrapper)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.FileExists(t, filepath.Join(dir, "bin", "java"))
	assert.NoDirExists(t, filepath.Join(dir, "jdk-24.0.1"))

	ok, err = Flatten(dir, RuntimeWrapper)
	require.NoError(t, err)
	assert.False(t, ok, "already flat")
}

func TestFlattenIgnoresUnrelated(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "bin"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "legal"), 0o755))

	ok, err := Flatten(dir, RuntimeWrapper)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.DirExists(t, filepath.Join(dir, "bin"))
}

func TestRuntimeWrapperPattern(t *testing.T) {
	for _, name := range []string{"jdk-21.0.2+13", "jre8", "zulu21.30.15-ca-jdk21", "openjdk-17", "temurin_21"} {
		assert.True(t, RuntimeWrapper.MatchString(name), name)
	}
	for _, name := range []string{"bin", "jdk", "legal", "myjdk-21"} {
		assert.False(t, RuntimeWrapper.MatchString(name), name)
	}
}
