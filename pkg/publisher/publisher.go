// Package publisher delivers configuration records to a Kubernetes cluster
// as ConfigMaps so workloads can read the same values at run time.
package publisher

import (
	"context"
	"fmt"
	"io"

	"k8s.io/apimachinery/pkg/runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/moolen/publicenv/pkg/injector"
	"github.com/moolen/publicenv/pkg/publisher/config"
	"github.com/moolen/publicenv/pkg/publisher/kustomize"
)

type Publisher struct {
	client    client.Client
	scheme    *runtime.Scheme
	config    config.Options
	kustomize *kustomize.Renderer
	dryRun    io.Writer
}

// New returns a publisher applying through cl. cl may be nil when only
// building manifests or running dry.
func New(cl client.Client, opts config.Options) *Publisher {
	return &Publisher{
		client: cl,
		scheme: newScheme(),
		config: opts,
	}
}

// WithKustomize renders manifests through r instead of the plain ConfigMap
// serializer.
func (p *Publisher) WithKustomize(r *kustomize.Renderer) *Publisher {
	p.kustomize = r
	return p
}

// WithDryRun makes Publish write manifests to w instead of applying them.
func (p *Publisher) WithDryRun(w io.Writer) *Publisher {
	p.dryRun = w
	return p
}

func (p *Publisher) BuildManifests(rec *injector.Record) ([]byte, error) {
	if p.kustomize != nil {
		return p.kustomize.Render(rec)
	}
	return config.Render(rec, p.config)
}

// Publish builds the manifests for rec and applies them.
func (p *Publisher) Publish(ctx context.Context, rec *injector.Record) error {
	manifests, err := p.BuildManifests(rec)
	if err != nil {
		return fmt.Errorf("failed to build manifests: %w", err)
	}
	if p.dryRun != nil {
		_, err := p.dryRun.Write(manifests)
		return err
	}
	return p.Apply(ctx, manifests)
}

// Apply creates or updates every object in the multi-document YAML.
func (p *Publisher) Apply(ctx context.Context, manifests []byte) error {
	if p.client == nil {
		return fmt.Errorf("no kubernetes client configured")
	}
	return applyYAMLManifests(ctx, p.client, p.scheme, manifests)
}
