package manifest

import "time"

// Latest points at the newest id of each channel.
type Latest struct {
	Release  string `json:"release"`
	Snapshot string `json:"snapshot"`
}

// VersionRef is one entry of the version manifest.
type VersionRef struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	URL         string    `json:"url"`
	ReleaseTime time.Time `json:"releaseTime"`
	SHA1        string    `json:"sha1,omitempty"`
}

// VersionManifest is the top-level index of available versions.
type VersionManifest struct {
	Latest   Latest       `json:"latest"`
	Versions []VersionRef `json:"versions"`
}

// Find returns the entry for id.
func (m *VersionManifest) Find(id string) (*VersionRef, bool) {
	for i := range m.Versions {
		if m.Versions[i].ID == id {
			return &m.Versions[i], true
		}
	}
	return nil, false
}

// Artifact is a downloadable file.
type Artifact struct {
	Path string `json:"path,omitempty"`
	URL  string `json:"url"`
	SHA1 string `json:"sha1,omitempty"`
	Size int64  `json:"size,omitempty"`
}

type LibraryDownloads struct {
	Artifact    *Artifact           `json:"artifact,omitempty"`
	Classifiers map[string]Artifact `json:"classifiers,omitempty"`
}

type OSRule struct {
	Name string `json:"name,omitempty"`
	Arch string `json:"arch,omitempty"`
}

type Rule struct {
	Action string  `json:"action"`
	OS     *OSRule `json:"os,omitempty"`
}

// Library is a shared-library dependency of a version.
type Library struct {
	Name      string            `json:"name"`
	Downloads *LibraryDownloads `json:"downloads,omitempty"`
	Natives   map[string]string `json:"natives,omitempty"`
	Rules     []Rule            `json:"rules,omitempty"`
}

// AssetIndexRef points at the asset index of a version.
type AssetIndexRef struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	SHA1      string `json:"sha1,omitempty"`
	Size      int64  `json:"size,omitempty"`
	TotalSize int64  `json:"totalSize,omitempty"`
}

type JavaVersion struct {
	Component    string `json:"component,omitempty"`
	MajorVersion int    `json:"majorVersion,omitempty"`
}

// VersionMetadata is the per-version document. Raw holds the document as
// received so it can be persisted without dropping fields this package does
// not model.
type VersionMetadata struct {
	ID          string        `json:"id"`
	Type        string        `json:"type,omitempty"`
	MainClass   string        `json:"mainClass,omitempty"`
	Assets      string        `json:"assets,omitempty"`
	AssetIndex  AssetIndexRef `json:"assetIndex"`
	JavaVersion *JavaVersion  `json:"javaVersion,omitempty"`
	Downloads   struct {
		Client *Artifact `json:"client,omitempty"`
	} `json:"downloads"`
	Libraries []Library `json:"libraries"`

	Raw []byte `json:"-"`
}

// AssetIndexID returns the asset index id, falling back to the version id
// for documents that omit it.
func (v *VersionMetadata) AssetIndexID() string {
	if v.AssetIndex.ID != "" {
		return v.AssetIndex.ID
	}
	return v.ID
}

type AssetObject struct {
	Hash string `json:"hash"`
	Size int64  `json:"size"`
}

// AssetIndex maps logical asset names to content-addressed objects.
type AssetIndex struct {
	Objects map[string]AssetObject `json:"objects"`

	Raw []byte `json:"-"`
}

// Failure is one per-file failure of an orchestration run.
type Failure struct {
	Category string `json:"category" yaml:"category"`
	URL      string `json:"url" yaml:"url"`
	Path     string `json:"path" yaml:"path"`
	Error    string `json:"error" yaml:"error"`
}

// RunReport is the record of the last orchestration run.
type RunReport struct {
	Version    string    `yaml:"version"`
	StartedAt  int64     `yaml:"started_at"`
	FinishedAt int64     `yaml:"finished_at"`
	State      string    `yaml:"state"`
	Error      string    `yaml:"error,omitempty"`
	Failures   []Failure `yaml:"failures"`
}

// Receipt is written next to an installed version's metadata document.
type Receipt struct {
	Version       string    `yaml:"version"`
	InstalledAt   int64     `yaml:"installed_at"`
	PackageBlake3 string    `yaml:"package_blake3"`
	Failures      []Failure `yaml:"failures,omitempty"`
}
