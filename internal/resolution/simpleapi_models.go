package resolution

// SimpleAPIProjectDetail is the PEP 691 JSON response body for a project
// page: GET {base_simple_url}/{project}/, Accept: application/vnd.pypi.simple.v1+json.
type SimpleAPIProjectDetail struct {
	Name     string           `json:"name"`
	Versions []string         `json:"versions"`
	Files    []SimpleAPIFile  `json:"files"`
	Meta     SimpleAPIMeta    `json:"meta"`
}

// SimpleAPIMeta carries the Simple API schema version.
type SimpleAPIMeta struct {
	APIVersion string `json:"api-version"`
}

// SimpleAPIFile is one downloadable artifact (wheel or sdist) listed on a
// project's Simple API page.
type SimpleAPIFile struct {
	Filename        string            `json:"filename"`
	URL             string            `json:"url"`
	Hashes          map[string]string `json:"hashes"`
	RequiresPython  string            `json:"requires-python,omitempty"`
	Yanked          any               `json:"yanked,omitempty"`
	Size            int64             `json:"size,omitempty"`

	// DistInfoMetadata / CoreMetadata signal PEP 658 sidecar availability.
	// Either may be a bool or a hash mapping: true or a non-empty mapping
	// means "the sidecar exists"; false, an empty mapping or absence means
	// it does not.
	DistInfoMetadata any `json:"dist-info-metadata,omitempty"`
	CoreMetadata     any `json:"core-metadata,omitempty"`
}

// HasMetadataSidecar reports whether the Simple API marked this file as
// having a PEP 658 ".metadata" sidecar available.
func (f SimpleAPIFile) HasMetadataSidecar() bool {
	return hasTruthyMetadataMarker(f.CoreMetadata) || hasTruthyMetadataMarker(f.DistInfoMetadata)
}

func hasTruthyMetadataMarker(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case map[string]any:
		return len(x) > 0
	default:
		return true
	}
}

// IsYanked reports whether the Simple API marked this file as yanked. Per
// PEP 691, "yanked" is either a bool or a string giving the yank reason
// (including an empty string); absent or false means not yanked.
func (f SimpleAPIFile) IsYanked() bool {
	switch x := f.Yanked.(type) {
	case nil:
		return false
	case bool:
		return x
	default:
		return true
	}
}
