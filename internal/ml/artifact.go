package ml

import (
	"encoding/json"
	"fmt"
	"time"
)

// ArtifactFormatVersion tags the current envelope schema.
const ArtifactFormatVersion = 1

// Artifact is the versioned serialized form of a trained classifier
// plus its metadata. Legacy artifacts (bare model documents without an
// envelope) are normalized on decode: SelectedFeatures comes back nil.
type Artifact struct {
	FormatVersion    int             `json:"format_version"`
	ModelKind        Kind            `json:"model_kind"`
	SelectedFeatures []string        `json:"selected_features,omitempty"`
	TrainedAt        time.Time       `json:"trained_at"`
	Metrics          *Evaluation     `json:"metrics,omitempty"`
	Model            json.RawMessage `json:"model"`
}

// EncodeArtifact serializes a fitted classifier into the current
// envelope format.
func EncodeArtifact(c Classifier, selected []string, trainedAt time.Time, metrics *Evaluation) ([]byte, error) {
	model, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal model: %w", err)
	}
	env := Artifact{
		FormatVersion:    ArtifactFormatVersion,
		ModelKind:        c.Kind(),
		SelectedFeatures: selected,
		TrainedAt:        trainedAt,
		Metrics:          metrics,
		Model:            model,
	}
	return json.Marshal(&env)
}

// DecodeArtifact parses an artifact, branching on the explicit format
// tag. Documents without the tag are legacy bare models: the model kind
// is inferred from its shape and the selected-feature list is nil.
func DecodeArtifact(data []byte) (*Artifact, error) {
	var probe struct {
		FormatVersion int `json:"format_version"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("parse artifact: %w", err)
	}

	if probe.FormatVersion == 0 {
		return decodeLegacy(data)
	}
	if probe.FormatVersion != ArtifactFormatVersion {
		return nil, fmt.Errorf("unsupported artifact format version %d", probe.FormatVersion)
	}

	var env Artifact
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parse artifact envelope: %w", err)
	}
	if _, err := ParseKind(string(env.ModelKind)); err != nil {
		return nil, err
	}
	return &env, nil
}

func decodeLegacy(data []byte) (*Artifact, error) {
	var shape struct {
		Trees    json.RawMessage `json:"trees"`
		BasePred *float64        `json:"base_pred"`
	}
	if err := json.Unmarshal(data, &shape); err != nil {
		return nil, fmt.Errorf("parse legacy artifact: %w", err)
	}
	if shape.Trees == nil {
		return nil, fmt.Errorf("legacy artifact has no recognizable model document")
	}

	kind := KindRandomForest
	if shape.BasePred != nil {
		kind = KindGradientBoost
	}
	return &Artifact{
		FormatVersion: ArtifactFormatVersion,
		ModelKind:     kind,
		Model:         json.RawMessage(data),
	}, nil
}

// Instantiate deserializes the embedded model document into a usable
// classifier.
func (a *Artifact) Instantiate() (Classifier, error) {
	switch a.ModelKind {
	case KindGradientBoost:
		var m GradientBoost
		if err := json.Unmarshal(a.Model, &m); err != nil {
			return nil, fmt.Errorf("unmarshal gradient boost model: %w", err)
		}
		m.Fitted = len(m.Trees) > 0
		return &m, nil
	case KindRandomForest:
		var m RandomForest
		if err := json.Unmarshal(a.Model, &m); err != nil {
			return nil, fmt.Errorf("unmarshal random forest model: %w", err)
		}
		return &m, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, a.ModelKind)
	}
}
