package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/moolen/publicenv/pkg/publisher"
)

func newApplyCmd(root *rootOptions) *cobra.Command {
	var (
		kubeconfig   string
		dryRun       bool
		useKustomize bool
		manifest     manifestOptions
	)
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Publish the configuration record as a ConfigMap",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := root.inject()
			if err != nil {
				return err
			}

			var p *publisher.Publisher
			if dryRun {
				p = publisher.New(nil, manifest.configOptions()).WithDryRun(cmd.OutOrStdout())
			} else {
				cl, err := publisher.NewKubeClient(kubeconfig)
				if err != nil {
					return err
				}
				p = publisher.New(cl, manifest.configOptions())
			}
			if useKustomize || manifest.base != "" {
				p.WithKustomize(manifest.kustomizeRenderer())
			}

			logrus.Debugf("Publishing ConfigMap %s/%s", manifest.namespace, manifest.name)
			return p.Publish(cmd.Context(), rec)
		},
	}
	cmd.Flags().StringVar(&kubeconfig, "kubeconfig", "", "Path to kubeconfig (default: in-cluster, $KUBECONFIG, ~/.kube/config)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print manifests instead of applying them")
	cmd.Flags().BoolVar(&useKustomize, "kustomize", false, "Render through kustomize")
	manifest.addFlags(cmd)
	return cmd
}
