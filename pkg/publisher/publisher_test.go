package publisher

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	"github.com/moolen/publicenv/pkg/injector"
	"github.com/moolen/publicenv/pkg/publisher/config"
	"github.com/moolen/publicenv/pkg/publisher/kustomize"
)

func record(env map[string]string) *injector.Record {
	return injector.Inject(injector.FromMap(env))
}

func getConfigMap(t *testing.T, cl client.Client, name, namespace string) *corev1.ConfigMap {
	t.Helper()
	cm := &corev1.ConfigMap{}
	require.NoError(t, cl.Get(context.Background(), types.NamespacedName{Name: name, Namespace: namespace}, cm))
	return cm
}

func TestPublishCreates(t *testing.T) {
	cl := fake.NewClientBuilder().WithScheme(newScheme()).Build()
	p := New(cl, config.Options{Namespace: "web"})

	err := p.Publish(context.Background(), record(map[string]string{injector.DeployedURL: "https://example.com"}))
	require.NoError(t, err)

	cm := getConfigMap(t, cl, config.DefaultName, "web")
	assert.Equal(t, map[string]string{injector.DeployedURL: "https://example.com"}, cm.Data)
	assert.Equal(t, config.ManagedByValue, cm.Labels[config.ManagedByLabel])
}

func TestPublishUpdatesExisting(t *testing.T) {
	existing := &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{Name: config.DefaultName, Namespace: config.DefaultNamespace},
		Data:       map[string]string{injector.DeployedURL: "https://old.example", "STALE": "1"},
	}
	cl := fake.NewClientBuilder().WithScheme(newScheme()).WithObjects(existing).Build()
	p := New(cl, config.Options{})

	err := p.Publish(context.Background(), record(map[string]string{injector.DeployedURL: ""}))
	require.NoError(t, err)

	cm := getConfigMap(t, cl, config.DefaultName, config.DefaultNamespace)
	assert.Equal(t, map[string]string{injector.DeployedURL: ""}, cm.Data)
}

func TestPublishIsIdempotent(t *testing.T) {
	cl := fake.NewClientBuilder().WithScheme(newScheme()).Build()
	p := New(cl, config.Options{})
	rec := record(map[string]string{injector.DeployedURL: "https://example.com"})

	require.NoError(t, p.Publish(context.Background(), rec))
	require.NoError(t, p.Publish(context.Background(), rec))

	list := &corev1.ConfigMapList{}
	require.NoError(t, cl.List(context.Background(), list))
	require.Len(t, list.Items, 1)
	assert.Equal(t, "https://example.com", list.Items[0].Data[injector.DeployedURL])
}

func TestPublishWithKustomize(t *testing.T) {
	cl := fake.NewClientBuilder().WithScheme(newScheme()).Build()
	p := New(cl, config.Options{}).WithKustomize(kustomize.NewRenderer("frontend-env", "web"))

	err := p.Publish(context.Background(), record(map[string]string{injector.DeployedURL: "https://example.com"}))
	require.NoError(t, err)

	cm := getConfigMap(t, cl, "frontend-env", "web")
	assert.Equal(t, "https://example.com", cm.Data[injector.DeployedURL])
}

func TestPublishDryRun(t *testing.T) {
	var buf bytes.Buffer
	p := New(nil, config.Options{}).WithDryRun(&buf)

	err := p.Publish(context.Background(), record(map[string]string{injector.DeployedURL: "https://example.com"}))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "kind: ConfigMap")
	assert.Contains(t, buf.String(), "PUBLIC_DEPLOYED_URL: https://example.com")
}

func TestApplyWithoutClient(t *testing.T) {
	err := New(nil, config.Options{}).Apply(context.Background(), []byte("apiVersion: v1\nkind: ConfigMap\n"))
	require.Error(t, err)
}

func TestApplySkipsEmptyDocuments(t *testing.T) {
	cl := fake.NewClientBuilder().WithScheme(newScheme()).Build()
	manifests := []byte(`---
apiVersion: v1
kind: ConfigMap
metadata:
  name: a
  namespace: default
data:
  PUBLIC_DEPLOYED_URL: https://a.example
---
---
apiVersion: v1
kind: ConfigMap
metadata:
  name: b
  namespace: default
`)
	require.NoError(t, New(cl, config.Options{}).Apply(context.Background(), manifests))

	assert.Equal(t, "https://a.example", getConfigMap(t, cl, "a", "default").Data[injector.DeployedURL])
	getConfigMap(t, cl, "b", "default")
}

func TestApplyRejectsUnknownKind(t *testing.T) {
	cl := fake.NewClientBuilder().WithScheme(newScheme()).Build()
	manifests := []byte("apiVersion: example.com/v1\nkind: Widget\nmetadata:\n  name: w\n")

	err := New(cl, config.Options{}).Apply(context.Background(), manifests)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode typed object")
}

func TestGetKubeConfigExplicitPathMissing(t *testing.T) {
	_, err := getKubeConfig("/nonexistent/kubeconfig")
	require.Error(t, err)
}
