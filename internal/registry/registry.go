// Package registry stores trained model bundles on disk and serves the
// currently promoted bundle per target. Promotion is atomic: a temp file
// rename swaps the pointer, and an in-memory copy makes reads lock-free.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/crickview/prediction-api/internal/features"
	"github.com/crickview/prediction-api/internal/model"
	"github.com/crickview/prediction-api/internal/models"
)

// ModelUnavailableError marks a target that cannot be served right now. The
// prediction service reports it as a partial-result entry rather than a
// request failure.
type ModelUnavailableError struct {
	Target string
	Reason string
}

func (e *ModelUnavailableError) Error() string {
	return fmt.Sprintf("model for target %q unavailable: %s", e.Target, e.Reason)
}

// Loaded pairs a bundle with its deserialized, ready-to-predict regressor.
type Loaded struct {
	Bundle *models.TrainedModelBundle
	Model  model.Regressor
}

type pointerFile struct {
	BundleID string `json:"bundle_id"`
}

// Registry persists bundles under dir/<target>/<id>.json with a current.json
// pointer per target. The expected schema fingerprint is fixed at
// construction; bundles fingerprinted differently are refused at load and at
// promote.
type Registry struct {
	dir         string
	fingerprint string
	logger      *zap.SugaredLogger

	mu      sync.Mutex // serializes Save/Promote
	current map[string]*atomic.Pointer[Loaded]
}

func New(dir string, schema *features.Schema, logger *zap.Logger) (*Registry, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating bundle dir: %w", err)
	}
	r := &Registry{
		dir:         dir,
		fingerprint: schema.Fingerprint(),
		logger:      logger.Sugar(),
		current:     make(map[string]*atomic.Pointer[Loaded]),
	}
	for _, target := range models.Targets() {
		r.current[target] = &atomic.Pointer[Loaded]{}
	}
	return r, nil
}

// LoadAll hydrates the in-memory pointers from disk. Targets with no
// promoted bundle, or whose bundle no longer matches the schema fingerprint,
// stay unavailable; this is not an error at startup.
func (r *Registry) LoadAll() {
	for _, target := range models.Targets() {
		loaded, err := r.loadCurrentFromDisk(target)
		if err != nil {
			r.logger.Warnw("No servable model at startup", "target", target, "reason", err)
			continue
		}
		r.current[target].Store(loaded)
		r.logger.Infow("Loaded promoted model",
			"target", target, "bundle_id", loaded.Bundle.ID, "algorithm", loaded.Bundle.Algorithm)
	}
}

// Save writes a bundle to disk without promoting it.
func (r *Registry) Save(b *models.TrainedModelBundle) error {
	if b.SchemaFingerprint != r.fingerprint {
		return fmt.Errorf("bundle %s: schema fingerprint %q does not match current %q",
			b.ID, b.SchemaFingerprint, r.fingerprint)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	dir := filepath.Join(r.dir, b.Target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating target dir: %w", err)
	}
	return writeJSONAtomic(filepath.Join(dir, b.ID+".json"), b)
}

// Promote makes a saved bundle the served model for its target. The pointer
// file and the in-memory pointer flip together under the lock, so readers
// see either the old model or the new one, never a partial state.
func (r *Registry) Promote(target, bundleID string) error {
	ptr, ok := r.current[target]
	if !ok {
		return fmt.Errorf("unknown target %q", target)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	bundle, err := r.readBundle(target, bundleID)
	if err != nil {
		return err
	}
	if bundle.SchemaFingerprint != r.fingerprint {
		return fmt.Errorf("refusing to promote bundle %s: schema fingerprint mismatch", bundleID)
	}
	reg, err := model.Unmarshal(bundle.Algorithm, bundle.Params)
	if err != nil {
		return fmt.Errorf("promoting bundle %s: %w", bundleID, err)
	}

	pf := filepath.Join(r.dir, target, "current.json")
	if err := writeJSONAtomic(pf, pointerFile{BundleID: bundleID}); err != nil {
		return err
	}

	ptr.Store(&Loaded{Bundle: bundle, Model: reg})
	r.logger.Infow("Promoted model", "target", target, "bundle_id", bundleID, "algorithm", bundle.Algorithm)
	return nil
}

// LoadCurrent returns the promoted model for a target, or a
// *ModelUnavailableError when none is servable.
func (r *Registry) LoadCurrent(target string) (*Loaded, error) {
	ptr, ok := r.current[target]
	if !ok {
		return nil, &ModelUnavailableError{Target: target, Reason: "unknown target"}
	}
	loaded := ptr.Load()
	if loaded == nil {
		return nil, &ModelUnavailableError{Target: target, Reason: "no promoted bundle"}
	}
	return loaded, nil
}

func (r *Registry) loadCurrentFromDisk(target string) (*Loaded, error) {
	data, err := os.ReadFile(filepath.Join(r.dir, target, "current.json"))
	if err != nil {
		return nil, fmt.Errorf("reading pointer: %w", err)
	}
	var pf pointerFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("decoding pointer: %w", err)
	}

	bundle, err := r.readBundle(target, pf.BundleID)
	if err != nil {
		return nil, err
	}
	if bundle.SchemaFingerprint != r.fingerprint {
		return nil, fmt.Errorf("bundle %s was trained against a different feature schema", bundle.ID)
	}
	reg, err := model.Unmarshal(bundle.Algorithm, bundle.Params)
	if err != nil {
		return nil, err
	}
	return &Loaded{Bundle: bundle, Model: reg}, nil
}

func (r *Registry) readBundle(target, id string) (*models.TrainedModelBundle, error) {
	data, err := os.ReadFile(filepath.Join(r.dir, target, id+".json"))
	if err != nil {
		return nil, fmt.Errorf("reading bundle %s: %w", id, err)
	}
	var b models.TrainedModelBundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decoding bundle %s: %w", id, err)
	}
	return &b, nil
}

// writeJSONAtomic writes to a temp file in the same directory and renames
// over the destination, so a crash mid-write never leaves a torn file.
func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing %s: %w", filepath.Base(path), err)
	}
	return nil
}
