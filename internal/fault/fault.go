// Package fault defines the error taxonomy shared by the download and launch
// pipelines. Components wrap these sentinels with fmt.Errorf("...: %w") and
// callers classify failures with errors.Is.
package fault

import "errors"

var (
	// ErrConnectivity means the manifest endpoint could not be reached.
	ErrConnectivity = errors.New("connectivity check failed")
	// ErrNetwork is a non-200 response or transport failure on a JSON fetch.
	ErrNetwork = errors.New("network error")
	// ErrNotFound means the requested version id is absent from the manifest.
	ErrNotFound = errors.New("not found")
	// ErrParse is malformed cached or remote JSON.
	ErrParse = errors.New("parse error")
	// ErrTransfer is a failed file transfer after all retries.
	ErrTransfer = errors.New("transfer failed")
	// ErrExtraction is an archive that could not be unpacked.
	ErrExtraction = errors.New("extraction failed")
	// ErrMissingArtifact means the package artifact or version metadata is absent.
	ErrMissingArtifact = errors.New("missing artifact")
	// ErrJavaInvalid means the runtime executable is missing or too old.
	ErrJavaInvalid = errors.New("invalid java runtime")
	// ErrProcess is a spawn or runtime failure of the launched process.
	ErrProcess = errors.New("process error")
	// ErrAlreadyRunning rejects a launch while a previous one is alive.
	ErrAlreadyRunning = errors.New("already running")
	// ErrBusy rejects a download while another run is active.
	ErrBusy = errors.New("download already in progress")
)

// Fatal reports whether err must terminate an orchestration run. Transfer
// and extraction failures of individual files are contained by their callers
// and never reach this check unless they concern a required artifact.
func Fatal(err error) bool {
	if err == nil {
		return false
	}
	for _, target := range []error{ErrConnectivity, ErrNetwork, ErrNotFound, ErrParse, ErrMissingArtifact, ErrJavaInvalid} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
