// Package install places the artifacts of a version under the launcher
// root: shared libraries, native binaries, content assets and the client
// package with its metadata document.
//
// Every fetcher plans its work as a list of Items first. The plan is used
// twice: once to register declared sizes with the progress aggregator
// before any transfer starts, then to download whatever is missing.
package install

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"mclaunch/internal/event"
	"mclaunch/internal/manifest"
	"mclaunch/internal/platform"
	"mclaunch/internal/progress"
	"mclaunch/internal/transfer"
	"mclaunch/internal/workpool"
)

const DefaultResourcesURL = "https://resources.download.minecraft.net"

type Fetcher interface {
	Fetch(ctx context.Context, task transfer.Task) (string, error)
}

// Reporter is the part of the progress aggregator the installer drives
// directly. Byte counts are reported by the transfer engine.
type Reporter interface {
	Register(c progress.Category, url string, size int64)
	Skip(url string)
}

// Item is one planned download.
type Item struct {
	Name string
	Size int64
	Task transfer.Task
}

// FileError is a failed Item. It is contained at the file level for every
// category except the package.
type FileError struct {
	Item Item
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Item.Task.Category, e.Item.Name, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

func (e *FileError) Failure() manifest.Failure {
	return manifest.Failure{
		Category: string(e.Item.Task.Category),
		URL:      e.Item.Task.URL,
		Path:     e.Item.Task.Dest,
		Error:    e.Err.Error(),
	}
}

// Failures converts the errors of a phase into report entries.
func Failures(errs []error) []manifest.Failure {
	out := make([]manifest.Failure, 0, len(errs))
	for _, err := range errs {
		var fe *FileError
		if errors.As(err, &fe) {
			out = append(out, fe.Failure())
			continue
		}
		out = append(out, manifest.Failure{Error: err.Error()})
	}
	return out
}

type Installer struct {
	root         string
	caps         platform.Capabilities
	fetcher      Fetcher
	reporter     Reporter
	sink         event.Sink
	resourcesURL string
	libraryLimit int
	assetLimit   int
}

type Option func(*Installer)

func WithReporter(r Reporter) Option {
	return func(i *Installer) { i.reporter = r }
}

func WithSink(s event.Sink) Option {
	return func(i *Installer) { i.sink = s }
}

func WithResourcesURL(u string) Option {
	return func(i *Installer) {
		if u != "" {
			i.resourcesURL = u
		}
	}
}

func WithLimits(libraries, assets int) Option {
	return func(i *Installer) {
		if libraries > 0 {
			i.libraryLimit = libraries
		}
		if assets > 0 {
			i.assetLimit = assets
		}
	}
}

func New(root string, caps platform.Capabilities, fetcher Fetcher, opts ...Option) *Installer {
	i := &Installer{
		root:         root,
		caps:         caps,
		fetcher:      fetcher,
		resourcesURL: DefaultResourcesURL,
		libraryLimit: workpool.LibraryLimit,
		assetLimit:   workpool.AssetLimit,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Estimate registers the declared size of every item.
func (i *Installer) Estimate(items []Item) {
	if i.reporter == nil {
		return
	}
	for _, it := range items {
		i.reporter.Register(it.Task.Category, it.Task.URL, it.Size)
	}
}

// download applies the skip-if-present policy and downloads one item.
func (i *Installer) download(ctx context.Context, it Item) error {
	if transfer.Exists(it.Task.Dest) {
		if i.reporter != nil {
			i.reporter.Skip(it.Task.URL)
		}
		return nil
	}
	if _, err := i.fetcher.Fetch(ctx, it.Task); err != nil {
		return &FileError{Item: it, Err: err}
	}
	return nil
}

// fetch is download for the contained categories: a failure is also
// reported as a category-scoped error event.
func (i *Installer) fetch(ctx context.Context, it Item) error {
	err := i.download(ctx, it)
	if err != nil && ctx.Err() == nil {
		slog.Warn("Download failed", "category", it.Task.Category, "name", it.Name, "error", err)
		i.sink.Emit(event.Event{Kind: event.Error, Category: string(it.Task.Category), Message: err.Error()})
	}
	return err
}

func (i *Installer) progress(msg string) {
	i.sink.Emit(event.Event{Kind: event.Progress, Message: msg})
}
