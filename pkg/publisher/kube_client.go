package publisher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/serializer"
	utilyaml "k8s.io/apimachinery/pkg/util/yaml"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/yaml"
)

// getKubeConfig returns a Kubernetes REST config from the explicit path if
// given, else in-cluster config, else $KUBECONFIG or ~/.kube/config.
func getKubeConfig(kubeconfig string) (*rest.Config, error) {
	if kubeconfig == "" {
		if config, err := rest.InClusterConfig(); err == nil {
			return config, nil
		}

		kubeconfig = os.Getenv("KUBECONFIG")
		if kubeconfig == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("cannot determine home directory: %w", err)
			}
			kubeconfig = filepath.Join(homeDir, ".kube", "config")
		}
	}

	config, err := clientcmd.BuildConfigFromFlags("", kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("failed to build config from kubeconfig: %w", err)
	}
	return config, nil
}

func newScheme() *runtime.Scheme {
	scheme := runtime.NewScheme()
	_ = clientgoscheme.AddToScheme(scheme)
	return scheme
}

// NewKubeClient builds a controller-runtime client for the cluster kubeconfig points at.
func NewKubeClient(kubeconfig string) (client.Client, error) {
	config, err := getKubeConfig(kubeconfig)
	if err != nil {
		return nil, err
	}
	cl, err := client.New(config, client.Options{Scheme: newScheme()})
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes client: %w", err)
	}
	return cl, nil
}

// applyYAMLManifests creates or updates every object in yamlData.
func applyYAMLManifests(ctx context.Context, cl client.Client, scheme *runtime.Scheme, yamlData []byte) error {
	decoder := utilyaml.NewYAMLOrJSONDecoder(bytes.NewReader(yamlData), 4096)
	universal := serializer.NewCodecFactory(scheme).UniversalDeserializer()

	for {
		raw := map[string]interface{}{}
		if err := decoder.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("failed to decode YAML: %w", err)
		}
		if len(raw) == 0 {
			continue
		}

		objYAML, err := yaml.Marshal(raw)
		if err != nil {
			return fmt.Errorf("failed to marshal raw object: %w", err)
		}

		obj, gvk, err := universal.Decode(objYAML, nil, nil)
		if err != nil {
			return fmt.Errorf("failed to decode typed object: %w", err)
		}

		cObj, ok := obj.(client.Object)
		if !ok {
			return fmt.Errorf("decoded object is not a client.Object: %T", obj)
		}
		if err := createOrUpdate(ctx, cl, cObj); err != nil {
			return fmt.Errorf("failed to apply %s %s/%s: %w",
				gvk.Kind, cObj.GetNamespace(), cObj.GetName(), err)
		}
	}

	return nil
}

func createOrUpdate(ctx context.Context, cl client.Client, desired client.Object) error {
	existing, ok := desired.DeepCopyObject().(client.Object)
	if !ok {
		return fmt.Errorf("cannot copy %T", desired)
	}
	err := cl.Get(ctx, client.ObjectKeyFromObject(desired), existing)
	if err != nil {
		if apierrors.IsNotFound(err) {
			logrus.Infof("Creating %s/%s", desired.GetNamespace(), desired.GetName())
			return cl.Create(ctx, desired)
		}
		return err
	}

	desired.SetResourceVersion(existing.GetResourceVersion())
	logrus.Infof("Updating %s/%s", desired.GetNamespace(), desired.GetName())
	return cl.Update(ctx, desired)
}
