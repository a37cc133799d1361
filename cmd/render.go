package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/moolen/publicenv/pkg/publisher/config"
	"github.com/moolen/publicenv/pkg/publisher/kustomize"
	"github.com/moolen/publicenv/pkg/render"
)

const (
	formatConfigMap = "configmap"
	formatKustomize = "kustomize"
)

type manifestOptions struct {
	name       string
	namespace  string
	immutable  bool
	base       string
	hashSuffix bool
}

func (o *manifestOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.name, "name", config.DefaultName, "ConfigMap name")
	cmd.Flags().StringVarP(&o.namespace, "namespace", "n", config.DefaultNamespace, "ConfigMap namespace")
	cmd.Flags().BoolVar(&o.immutable, "immutable", false, "Mark the ConfigMap immutable")
	cmd.Flags().StringVar(&o.base, "base", "", "Kustomize base directory to layer the ConfigMap on")
	cmd.Flags().BoolVar(&o.hashSuffix, "hash-suffix", false, "Append kustomize's content hash to the ConfigMap name")
}

func (o *manifestOptions) configOptions() config.Options {
	return config.Options{Name: o.name, Namespace: o.namespace, Immutable: o.immutable}
}

func (o *manifestOptions) kustomizeRenderer() *kustomize.Renderer {
	r := kustomize.NewRenderer(o.name, o.namespace).WithHashSuffix(o.hashSuffix).WithImmutable(o.immutable)
	if o.base != "" {
		r.WithBase(os.DirFS(o.base))
	}
	return r
}

func newRenderCmd(root *rootOptions) *cobra.Command {
	var (
		format   string
		prefixes []string
		manifest manifestOptions
	)
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Print the configuration record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := root.inject()
			if err != nil {
				return err
			}

			var out []byte
			switch format {
			case formatConfigMap:
				out, err = config.Render(rec, manifest.configOptions())
			case formatKustomize:
				out, err = manifest.kustomizeRenderer().Render(rec)
			default:
				f, perr := render.ParseFormat(format)
				if perr != nil {
					return fmt.Errorf("%w (want json, yaml, define, %s or %s)", perr, formatConfigMap, formatKustomize)
				}
				out, err = render.Encode(rec, f, prefixes...)
			}
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	cmd.Flags().StringVarP(&format, "format", "o", string(render.FormatJSON), "Output format: json, yaml, define, configmap or kustomize")
	cmd.Flags().StringSliceVar(&prefixes, "prefix", []string{render.DefaultPrefix}, "Expression namespace for the define format; repeatable")
	manifest.addFlags(cmd)
	return cmd
}
