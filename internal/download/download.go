// Package download sequences one installation run of a version: probe,
// resolve, runtime, metadata, size estimate, then the four artifact
// categories. The run is an explicit state machine that publishes exactly
// one terminal event, done or error, on its sink.
package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"mclaunch/internal/event"
	"mclaunch/internal/fault"
	"mclaunch/internal/install"
	"mclaunch/internal/jvm"
	"mclaunch/internal/layout"
	"mclaunch/internal/lock"
	"mclaunch/internal/manifest"
	"mclaunch/internal/platform"
	"mclaunch/internal/progress"
	"mclaunch/internal/resolve"
	"mclaunch/internal/transfer"
)

type State string

const (
	Init                State = "init"
	CheckingConnection  State = "checking-connection"
	ResolvingVersion    State = "resolving-version"
	ProvisioningRuntime State = "provisioning-runtime"
	FetchingMetadata    State = "fetching-metadata"
	EstimatingTotals    State = "estimating-totals"
	FetchingLibraries   State = "fetching-libraries"
	FetchingNatives     State = "fetching-natives"
	FetchingAssets      State = "fetching-assets"
	FetchingPackage     State = "fetching-package"
	Done                State = "done"
	Failed              State = "failed"
)

var pipeline = []State{
	Init,
	CheckingConnection,
	ResolvingVersion,
	ProvisioningRuntime,
	FetchingMetadata,
	EstimatingTotals,
	FetchingLibraries,
	FetchingNatives,
	FetchingAssets,
	FetchingPackage,
	Done,
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == Done || s == Failed
}

// next returns the state following s on the success path.
func (s State) next() (State, bool) {
	i := slices.Index(pipeline, s)
	if i < 0 || i == len(pipeline)-1 {
		return "", false
	}
	return pipeline[i+1], true
}

// Source is the remote side of a run.
type Source interface {
	Probe(ctx context.Context) error
	FetchManifest(ctx context.Context) (*manifest.VersionManifest, error)
	FetchVersionMetadata(ctx context.Context, id string) (*manifest.VersionMetadata, error)
	FetchAssetIndex(ctx context.Context, ref manifest.AssetIndexRef) (*manifest.AssetIndex, error)
}

type Runtime interface {
	Ensure(ctx context.Context) (bool, error)
}

// Orchestrator owns the progress accounting of its runs. Only one run may
// be active at a time, both within this process and across processes
// sharing the root.
type Orchestrator struct {
	mu sync.Mutex

	root           string
	caps           platform.Capabilities
	source         Source
	channel        string
	sink           event.Sink
	agg            *progress.Aggregator
	engine         *transfer.Engine
	installer      *install.Installer
	runtime        Runtime
	extraLibraries []string
	fatalLibraries bool

	stateMu sync.Mutex
	state   State

	// per run
	failures []manifest.Failure
}

type settings struct {
	channel        string
	sink           event.Sink
	runtimeName    string
	runtimeURL     string
	resourcesURL   string
	extraLibraries []string
	fatalLibraries bool
	libraryLimit   int
	assetLimit     int
	tick           time.Duration
	transfer       []transfer.Option
}

type Option func(*settings)

func WithChannel(channel string) Option {
	return func(s *settings) { s.channel = channel }
}

func WithSink(sink event.Sink) Option {
	return func(s *settings) { s.sink = sink }
}

// WithRuntime enables runtime provisioning from archiveURL. Without it the
// ProvisioningRuntime state passes through.
func WithRuntime(name, archiveURL string) Option {
	return func(s *settings) {
		s.runtimeName = name
		s.runtimeURL = archiveURL
	}
}

func WithResourcesURL(u string) Option {
	return func(s *settings) { s.resourcesURL = u }
}

func WithExtraLibraries(urls []string) Option {
	return func(s *settings) { s.extraLibraries = urls }
}

// WithFatalLibraries escalates any failed library download to a failed run.
func WithFatalLibraries(fatal bool) Option {
	return func(s *settings) { s.fatalLibraries = fatal }
}

func WithLimits(libraries, assets int) Option {
	return func(s *settings) {
		s.libraryLimit = libraries
		s.assetLimit = assets
	}
}

func WithTickInterval(d time.Duration) Option {
	return func(s *settings) { s.tick = d }
}

func WithTransferOptions(opts ...transfer.Option) Option {
	return func(s *settings) { s.transfer = append(s.transfer, opts...) }
}

func New(root string, caps platform.Capabilities, source Source, opts ...Option) *Orchestrator {
	s := settings{channel: resolve.Release}
	for _, opt := range opts {
		opt(&s)
	}

	var aggOpts []progress.Option
	if s.tick > 0 {
		aggOpts = append(aggOpts, progress.WithInterval(s.tick))
	}
	agg := progress.New(aggOpts...)
	sink := event.Serialize(s.sink)
	engine := transfer.New(append(s.transfer, transfer.WithReporter(agg))...)

	o := &Orchestrator{
		root:           root,
		caps:           caps,
		source:         source,
		channel:        s.channel,
		sink:           sink,
		agg:            agg,
		engine:         engine,
		extraLibraries: s.extraLibraries,
		fatalLibraries: s.fatalLibraries,
		state:          Init,
	}
	o.installer = install.New(root, caps, engine,
		install.WithReporter(agg),
		install.WithSink(sink),
		install.WithResourcesURL(s.resourcesURL),
		install.WithLimits(s.libraryLimit, s.assetLimit),
	)
	if s.runtimeURL != "" {
		o.runtime = jvm.NewProvisioner(root, s.runtimeName, s.runtimeURL, caps, engine)
	}
	return o
}

// State returns the state of the current or last run.
func (o *Orchestrator) State() State {
	o.stateMu.Lock()
	defer o.stateMu.Unlock()
	return o.state
}

// Progress exposes the accounting of the current or last run.
func (o *Orchestrator) Progress() *progress.Aggregator {
	return o.agg
}

// advance moves the run one step along the pipeline. Any other transition
// is a bug in the caller.
func (o *Orchestrator) advance(to State) {
	o.stateMu.Lock()
	from := o.state
	want, ok := from.next()
	if !ok || want != to {
		o.stateMu.Unlock()
		panic(fmt.Sprintf("download: invalid transition %s -> %s", from, to))
	}
	o.state = to
	o.stateMu.Unlock()
	slog.Debug("Download state", "from", from, "to", to)
}

// terminate moves the run into Done or Failed and publishes the terminal
// event. Done is only reachable from the last pipeline state. It reports
// false when the run had already terminated.
func (o *Orchestrator) terminate(id string, err error) bool {
	o.stateMu.Lock()
	if o.state.Terminal() {
		o.stateMu.Unlock()
		return false
	}
	if next, _ := o.state.next(); err == nil && next != Done {
		err = fmt.Errorf("download stopped in state %s", o.state)
	}
	if err != nil {
		o.state = Failed
	} else {
		o.state = Done
	}
	o.stateMu.Unlock()

	if err != nil {
		o.sink.Emit(event.Event{Kind: event.Error, Message: err.Error()})
	} else {
		o.sink.Emit(event.Event{Kind: event.Done, Message: id})
	}
	return true
}

func (o *Orchestrator) progress(msg string) {
	o.sink.Emit(event.Event{Kind: event.Progress, Message: msg})
}

// Run installs requested, or the latest version of the configured channel
// when requested is empty, and returns the resolved id. Individual library,
// native and asset failures do not fail the run; they are published as
// category-scoped error events and recorded in the run report.
func (o *Orchestrator) Run(ctx context.Context, requested string) (string, error) {
	if !o.mu.TryLock() {
		return "", fault.ErrBusy
	}
	defer o.mu.Unlock()

	o.stateMu.Lock()
	o.state = Init
	o.stateMu.Unlock()
	o.failures = nil
	o.agg.Reset()

	started := time.Now()
	id, err := o.run(ctx, requested)
	if err != nil {
		slog.Error("Download failed", "version", id, "state", o.State(), "error", err)
	} else {
		slog.Info("Download finished", "version", id, "failures", len(o.failures), "elapsed", time.Since(started).Round(time.Millisecond))
	}
	o.terminate(id, err)
	return id, err
}

func (o *Orchestrator) run(ctx context.Context, requested string) (id string, err error) {
	o.advance(CheckingConnection)
	o.progress("Checking connection")
	if err := o.source.Probe(ctx); err != nil {
		// nothing on disk has been touched yet
		return "", err
	}

	release, err := lock.Acquire(layout.DownloadLockPath(o.root))
	if err != nil {
		if errors.Is(err, lock.ErrHeld) {
			return "", fmt.Errorf("%w: %w", fault.ErrBusy, err)
		}
		return "", fmt.Errorf("failed to acquire download lock: %w", err)
	}
	defer func() {
		if rerr := release(); rerr != nil {
			slog.Warn("Failed to release download lock", "error", rerr)
		}
	}()

	started := time.Now()
	defer func() {
		o.writeReport(id, started, err)
	}()

	stop := o.agg.Start(ctx, o.sink)
	defer stop()

	o.advance(ResolvingVersion)
	o.progress("Resolving version")
	id, err = resolve.New(o.source, o.channel).Resolve(ctx, requested)
	if err != nil {
		return "", err
	}
	slog.Info("Resolved version", "version", id, "requested", requested)

	o.advance(ProvisioningRuntime)
	if o.runtime != nil {
		o.progress("Checking Java runtime")
		present, err := o.runtime.Ensure(ctx)
		if err != nil {
			return id, fmt.Errorf("failed to provision runtime: %w", err)
		}
		if !present {
			o.progress("Java runtime installed")
		}
	}

	o.advance(FetchingMetadata)
	o.progress(fmt.Sprintf("Fetching metadata for %s", id))
	meta, err := o.source.FetchVersionMetadata(ctx, id)
	if err != nil {
		return id, err
	}
	extras, err := install.ExtraLibraries(o.extraLibraries)
	if err != nil {
		return id, err
	}
	libs := slices.Concat(meta.Libraries, extras)

	o.advance(EstimatingTotals)
	o.progress("Estimating download size")
	var index *manifest.AssetIndex
	if meta.AssetIndex.URL != "" {
		ref := meta.AssetIndex
		ref.ID = meta.AssetIndexID()
		if index, err = o.installer.AssetIndex(ctx, o.source, ref); err != nil {
			return id, err
		}
	}
	pkg, err := o.installer.PackageItem(id, meta)
	if err != nil {
		return id, err
	}
	o.installer.Estimate(o.installer.LibraryItems(libs))
	o.installer.Estimate(o.installer.NativeItems(libs))
	o.installer.Estimate(o.installer.AssetItems(index))
	o.installer.Estimate([]install.Item{pkg})

	o.advance(FetchingLibraries)
	if err := o.contain(ctx, progress.Library, o.installer.FetchLibraries(ctx, libs)); err != nil {
		return id, err
	}

	o.advance(FetchingNatives)
	if err := o.contain(ctx, progress.Native, o.installer.FetchNatives(ctx, libs, id)); err != nil {
		return id, err
	}

	o.advance(FetchingAssets)
	if index != nil {
		if err := o.contain(ctx, progress.Asset, o.installer.FetchAssets(ctx, index)); err != nil {
			return id, err
		}
	}

	o.advance(FetchingPackage)
	if err := o.installer.FetchPackage(ctx, id, meta); err != nil {
		return id, err
	}
	if err := o.installer.WriteReceipt(id, o.failures); err != nil {
		slog.Warn("Failed to write install receipt", "version", id, "error", err)
	}

	stop()
	o.agg.Emit(o.sink)
	return id, nil
}

// contain records the per-file failures of a phase. It returns an error
// only when the phase failed as a whole: cancellation, a failure that is
// not scoped to a file, or a library failure under the fatal policy.
func (o *Orchestrator) contain(ctx context.Context, c progress.Category, errs []error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, err := range errs {
		var fe *install.FileError
		if !errors.As(err, &fe) || fault.Fatal(err) {
			return err
		}
	}
	if len(errs) == 0 {
		return nil
	}
	o.failures = append(o.failures, install.Failures(errs)...)
	slog.Warn("Some downloads failed", "category", c, "count", len(errs))
	if c == progress.Library && o.fatalLibraries {
		return fmt.Errorf("%d required libraries failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

func (o *Orchestrator) writeReport(id string, started time.Time, runErr error) {
	r := &manifest.RunReport{
		Version:    id,
		StartedAt:  started.Unix(),
		FinishedAt: time.Now().Unix(),
		State:      string(Done),
		Failures:   o.failures,
	}
	if runErr != nil {
		r.State = string(Failed)
		r.Error = runErr.Error()
	}
	if err := manifest.WriteRunReport(layout.RunReportPath(o.root), r); err != nil {
		slog.Warn("Failed to write run report", "error", err)
	}
}

// LastRun reads the report of the most recent run under root.
func LastRun(root string) (*manifest.RunReport, error) {
	return manifest.ReadRunReport(layout.RunReportPath(root))
}
