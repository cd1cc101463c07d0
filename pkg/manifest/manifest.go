// Package manifest provides loading and validation of petrel analytics job
// manifests.
//
// A job manifest is a YAML or JSON file that defines one analytics job: its
// identity, the analysis to run, and the source and destination indices.
//
// Manifests are validated against a JSON Schema to ensure correctness before
// execution. The schema enforces strict typing and disallows unknown
// properties.
//
// Example manifest (YAML):
//
//	version: "1.0"
//	job:
//	  id: churn-q3
//	  description: Customer churn classification over Q3 events
//	analysis:
//	  type: classification
//	  dependent_variable: churned
//	  model_memory_limit: 1gb
//	source:
//	  index: events-q3
//	dest:
//	  index: churn-q3-results
package manifest

// Manifest represents a validated analytics job manifest.
//
// Required fields are Version, Job, Analysis, Source, and Dest.
type Manifest struct {
	// Schema is an optional JSON Schema reference for editor support.
	Schema string `json:"$schema,omitempty" yaml:"$schema,omitempty"`

	// Version is the manifest schema version. Must be "1.0".
	Version string `json:"version" yaml:"version"`

	// Job identifies the analytics job.
	Job JobConfig `json:"job" yaml:"job"`

	// Analysis configures the analysis to run.
	Analysis AnalysisConfig `json:"analysis" yaml:"analysis"`

	// Source names where input data is read from.
	Source IndexConfig `json:"source" yaml:"source"`

	// Dest names where results are written.
	Dest IndexConfig `json:"dest" yaml:"dest"`
}

// JobConfig identifies the analytics job.
type JobConfig struct {
	// ID is the job identifier. Lowercase alphanumerics, hyphens, and
	// underscores; it is embedded in state document ids.
	ID string `json:"id" yaml:"id"`

	// Description is free-form operator text. Optional.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Analysis types supported by the runner.
const (
	AnalysisOutlierDetection = "outlier_detection"
	AnalysisRegression       = "regression"
	AnalysisClassification   = "classification"
)

// AnalysisConfig configures the analysis to run.
type AnalysisConfig struct {
	// Type is one of outlier_detection, regression, classification.
	Type string `json:"type" yaml:"type"`

	// DependentVariable is the field being predicted. Required for
	// regression and classification; ignored for outlier detection.
	DependentVariable string `json:"dependent_variable,omitempty" yaml:"dependent_variable,omitempty"`

	// ModelMemoryLimit caps model memory, e.g. "512mb", "1gb". Optional.
	ModelMemoryLimit string `json:"model_memory_limit,omitempty" yaml:"model_memory_limit,omitempty"`
}

// IndexConfig names a backing index.
type IndexConfig struct {
	// Index is the index name.
	Index string `json:"index" yaml:"index"`
}

// Default values for optional configuration fields.
const (
	// DefaultVersion is the current manifest schema version.
	DefaultVersion = "1.0"

	// DefaultModelMemoryLimit is applied when the manifest omits a limit.
	DefaultModelMemoryLimit = "1gb"
)

// ApplyDefaults fills in default values for optional fields.
//
// This should be called after loading and validating the manifest so callers
// don't need to reason about empty strings.
func (m *Manifest) ApplyDefaults() {
	if m.Analysis.ModelMemoryLimit == "" {
		m.Analysis.ModelMemoryLimit = DefaultModelMemoryLimit
	}
}
