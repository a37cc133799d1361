package config

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/serializer/json"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/utils/ptr"

	"github.com/moolen/publicenv/pkg/injector"
)

const (
	DefaultName      = "public-env"
	DefaultNamespace = "default"

	ManagedByLabel = "app.kubernetes.io/managed-by"
	ManagedByValue = "publicenv"
)

type Options struct {
	Name      string
	Namespace string
	Labels    map[string]string
	Immutable bool
}

func (o Options) withDefaults() Options {
	if o.Name == "" {
		o.Name = DefaultName
	}
	if o.Namespace == "" {
		o.Namespace = DefaultNamespace
	}
	return o
}

// ConfigMap builds the ConfigMap carrying rec's env entries. Values that
// are not valid UTF-8 go to binaryData so they survive unchanged.
func ConfigMap(rec *injector.Record, opts Options) *corev1.ConfigMap {
	opts = opts.withDefaults()
	labels := mergeMaps(opts.Labels, map[string]string{ManagedByLabel: ManagedByValue})

	cm := &corev1.ConfigMap{
		TypeMeta:   metav1.TypeMeta{Kind: "ConfigMap", APIVersion: "v1"},
		ObjectMeta: metav1.ObjectMeta{Name: opts.Name, Namespace: opts.Namespace, Labels: labels},
		Data:       map[string]string{},
	}
	for k, v := range rec.Env {
		if utf8.ValidString(v) {
			cm.Data[k] = v
			continue
		}
		if cm.BinaryData == nil {
			cm.BinaryData = map[string][]byte{}
		}
		cm.BinaryData[k] = []byte(v)
	}
	if opts.Immutable {
		cm.Immutable = ptr.To(true)
	}
	return cm
}

// Render serializes the ConfigMap for rec as YAML.
func Render(rec *injector.Record, opts Options) ([]byte, error) {
	scheme := runtime.NewScheme()
	_ = clientgoscheme.AddToScheme(scheme)

	serializer := json.NewSerializerWithOptions(
		json.DefaultMetaFactory, scheme, scheme,
		json.SerializerOptions{Yaml: true, Pretty: true, Strict: true},
	)

	var buf bytes.Buffer
	if err := serializer.Encode(ConfigMap(rec, opts), &buf); err != nil {
		return nil, fmt.Errorf("failed to serialize ConfigMap: %w", err)
	}
	return buf.Bytes(), nil
}

func mergeMaps(maps ...map[string]string) map[string]string {
	merged := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			merged[k] = v
		}
	}
	return merged
}
