package kustomize

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"sigs.k8s.io/kustomize/api/krusty"
	"sigs.k8s.io/kustomize/api/types"
	"sigs.k8s.io/kustomize/kyaml/filesys"
	yaml "sigs.k8s.io/yaml/goyaml.v3"

	"github.com/moolen/publicenv/pkg/injector"
	"github.com/moolen/publicenv/pkg/publisher/config"
	"github.com/moolen/publicenv/pkg/render"
)

const (
	kustomizationFile = "kustomization.yaml"
	valuesDir         = ".publicenv-values"
)

var ErrNoKustomization = errors.New("base has no " + kustomizationFile)

type Patch struct {
	PatchYAML string
}

// Renderer renders a record through a kustomize configMapGenerator,
// optionally layered on top of an existing base.
type Renderer struct {
	name       string
	namespace  string
	base       fs.FS
	hashSuffix bool
	immutable  bool
	patches    []Patch
}

// NewRenderer creates a renderer generating a ConfigMap called name in
// namespace. Empty values fall back to the config package defaults.
func NewRenderer(name, namespace string) *Renderer {
	if name == "" {
		name = config.DefaultName
	}
	if namespace == "" {
		namespace = config.DefaultNamespace
	}
	return &Renderer{
		name:      name,
		namespace: namespace,
		patches:   []Patch{},
	}
}

// WithBase layers the generated ConfigMap on top of base, which must
// contain a kustomization.yaml at its root.
func (r *Renderer) WithBase(base fs.FS) *Renderer {
	r.base = base
	return r
}

// WithHashSuffix toggles kustomize's content hash suffix on the ConfigMap name.
func (r *Renderer) WithHashSuffix(enabled bool) *Renderer {
	r.hashSuffix = enabled
	return r
}

// WithImmutable marks the generated ConfigMap immutable.
func (r *Renderer) WithImmutable(immutable bool) *Renderer {
	r.immutable = immutable
	return r
}

// AddPatch adds a patch applied after generation.
func (r *Renderer) AddPatch(yaml string) {
	r.patches = append(r.patches, Patch{
		PatchYAML: yaml,
	})
}

// Render runs kustomize and returns the resulting resources as YAML.
func (r *Renderer) Render(rec *injector.Record) ([]byte, error) {
	tmpDir := filepath.Join(os.TempDir(), "publicenv-kustomize-"+uuid.New().String())
	if err := os.MkdirAll(tmpDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	kustomization, err := r.loadKustomization(tmpDir)
	if err != nil {
		return nil, err
	}

	generator, err := r.generator(tmpDir, rec)
	if err != nil {
		return nil, err
	}
	kustomization.ConfigMapGenerator = append(kustomization.ConfigMapGenerator, generator)

	for i, patch := range r.patches {
		patchFilename := fmt.Sprintf("publicenv-patch-%d.yaml", i)
		if err := os.WriteFile(filepath.Join(tmpDir, patchFilename), []byte(patch.PatchYAML), 0644); err != nil {
			return nil, fmt.Errorf("failed to write patch file: %w", err)
		}
		kustomization.Patches = append(kustomization.Patches, types.Patch{
			Path: patchFilename,
		})
	}

	data, err := yaml.Marshal(kustomization)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal kustomization: %w", err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, kustomizationFile), data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", kustomizationFile, err)
	}

	k := krusty.MakeKustomizer(krusty.MakeDefaultOptions())
	resMap, err := k.Run(filesys.MakeFsOnDisk(), tmpDir)
	if err != nil {
		return nil, fmt.Errorf("kustomize build failed: %w", err)
	}

	yml, err := resMap.AsYaml()
	if err != nil {
		return nil, fmt.Errorf("failed to convert to YAML: %w", err)
	}
	return yml, nil
}

func (r *Renderer) loadKustomization(tmpDir string) (*types.Kustomization, error) {
	kustomization := &types.Kustomization{}
	if r.base == nil {
		kustomization.APIVersion = types.KustomizationVersion
		kustomization.Kind = types.KustomizationKind
		return kustomization, nil
	}

	if err := copyFS(r.base, ".", tmpDir); err != nil {
		return nil, fmt.Errorf("failed to copy base: %w", err)
	}
	data, err := os.ReadFile(filepath.Join(tmpDir, kustomizationFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoKustomization
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", kustomizationFile, err)
	}
	if err := yaml.Unmarshal(data, kustomization); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", kustomizationFile, err)
	}
	return kustomization, nil
}

// generator builds the configMapGenerator entry. Values kustomize would
// alter as literals (surrounding quotes) are passed as file sources.
func (r *Renderer) generator(tmpDir string, rec *injector.Record) (types.ConfigMapArgs, error) {
	// The generated kustomization is YAML, which cannot hold such values as-is.
	if err := render.CheckUTF8(rec); err != nil {
		return types.ConfigMapArgs{}, err
	}
	keys := make([]string, 0, len(rec.Env))
	for k := range rec.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sources types.KvPairSources
	for _, k := range keys {
		v := rec.Env[k]
		if literalSafe(v) {
			sources.LiteralSources = append(sources.LiteralSources, k+"="+v)
			continue
		}
		rel := filepath.Join(valuesDir, k)
		if err := os.MkdirAll(filepath.Join(tmpDir, valuesDir), 0755); err != nil {
			return types.ConfigMapArgs{}, fmt.Errorf("failed to create values dir: %w", err)
		}
		if err := os.WriteFile(filepath.Join(tmpDir, rel), []byte(v), 0644); err != nil {
			return types.ConfigMapArgs{}, fmt.Errorf("failed to write value of %s: %w", k, err)
		}
		sources.FileSources = append(sources.FileSources, k+"="+rel)
	}
	logrus.Debugf("generating ConfigMap %s/%s with %d entries", r.namespace, r.name, len(keys))

	return types.ConfigMapArgs{
		GeneratorArgs: types.GeneratorArgs{
			Namespace:     r.namespace,
			Name:          r.name,
			KvPairSources: sources,
			Options: &types.GeneratorOptions{
				Labels:                map[string]string{config.ManagedByLabel: config.ManagedByValue},
				DisableNameSuffixHash: !r.hashSuffix,
				Immutable:             r.immutable,
			},
		},
	}, nil
}

func literalSafe(v string) bool {
	if len(v) < 2 {
		return true
	}
	first, last := v[0], v[len(v)-1]
	return first != last || (first != '"' && first != '\'')
}

// copyFS copies src to dst on disk.
func copyFS(src fs.FS, basePath, dst string) error {
	return fs.WalkDir(src, basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		targetPath := filepath.Join(dst, path)
		if d.IsDir() {
			return os.MkdirAll(targetPath, 0755)
		}

		data, err := fs.ReadFile(src, path)
		if err != nil {
			return err
		}
		return os.WriteFile(targetPath, data, 0644)
	})
}
