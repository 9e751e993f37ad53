package check

import (
	"context"
	"fmt"
	"io"
	"os"

	"mclaunch/internal/config"
	"mclaunch/internal/jvm"
	"mclaunch/internal/layout"
	"mclaunch/internal/manifest"
	"mclaunch/internal/platform"
	"mclaunch/internal/remote"
)

// Run verifies that cfg can be used for a download and a launch on this
// machine, printing one line per passed check.
func Run(ctx context.Context, cfg *config.Config, caps platform.Capabilities, out io.Writer) error {
	fmt.Fprintln(out, "config: OK")

	if err := rootWritable(cfg.RootDir); err != nil {
		return fmt.Errorf("root %s: %w", cfg.RootDir, err)
	}
	fmt.Fprintf(out, "root %s: OK\n", cfg.RootDir)

	client := manifest.NewClient(cfg.RootDir, cfg.Endpoints.Manifest, nil)
	if err := client.Probe(ctx); err != nil {
		return fmt.Errorf("manifest: %w", err)
	}
	fmt.Fprintf(out, "manifest %s: OK\n", client.ManifestURL())

	javaPath := jvm.ExecutablePath(cfg.RootDir, cfg.Java.Path, cfg.RuntimeName(), caps)
	v, err := jvm.Validate(ctx, javaPath, cfg.Java.MinMajor)
	if err != nil {
		if cfg.Java.Download && cfg.Java.Path == "" && cfg.RuntimeURL(caps.Name) != "" {
			fmt.Fprintf(out, "java: not installed yet, will be downloaded from %s\n", cfg.RuntimeURL(caps.Name))
		} else {
			return fmt.Errorf("java: %w", err)
		}
	} else {
		fmt.Fprintf(out, "java %s (%s): OK\n", v, javaPath)
	}

	if cfg.CrashUpload.Enabled {
		store, err := remote.NewS3(ctx, cfg.CrashUpload.Bucket, cfg.CrashUpload.Region,
			cfg.CrashUpload.Prefix, cfg.CrashUpload.Endpoint, cfg.CrashUploadRetryAttempts())
		if err != nil {
			return fmt.Errorf("S3 init: %w", err)
		}
		if err := store.VerifyCredentials(ctx); err != nil {
			return fmt.Errorf("S3 credentials: %w", err)
		}
		fmt.Fprintf(out, "S3 bucket %s: OK\n", cfg.CrashUpload.Bucket)
	}

	fmt.Fprintln(out, "all checks passed")
	return nil
}

func rootWritable(root string) error {
	if err := layout.SetupDirectories(root, layout.CacheDir(root)); err != nil {
		return err
	}
	f, err := os.CreateTemp(layout.CacheDir(root), ".check-*")
	if err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}
