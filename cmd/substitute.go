package cmd

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/moolen/publicenv/pkg/render"
	"github.com/moolen/publicenv/pkg/substitute"
)

func newSubstituteCmd(root *rootOptions) *cobra.Command {
	var (
		opts   substitute.Options
		outDir string
	)
	cmd := &cobra.Command{
		Use:   "substitute [FILE...]",
		Short: "Inline forwarded values into JavaScript or TypeScript sources",
		Long: `substitute replaces references such as import.meta.env.PUBLIC_DEPLOYED_URL with
the forwarded value as a string literal, or undefined when the variable is
unset. Without files it reads source from stdin.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := root.inject()
			if err != nil {
				return err
			}

			if len(args) == 0 {
				src, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				out, err := substitute.Transform(string(src), rec, opts)
				if err != nil {
					return err
				}
				_, err = io.WriteString(cmd.OutOrStdout(), out)
				return err
			}

			if outDir != "" {
				return substitute.Files(cmd.Context(), args, outDir, rec, opts)
			}
			for _, path := range args {
				out, err := substitute.File(path, rec, opts)
				if err != nil {
					return err
				}
				if _, err := io.WriteString(cmd.OutOrStdout(), out); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&opts.Prefixes, "prefix", []string{render.DefaultPrefix}, "Expression namespace to rewrite; repeatable")
	cmd.Flags().StringVar(&opts.Loader, "loader", "", "Source loader: js, jsx, ts or tsx (default: from file extension)")
	cmd.Flags().BoolVar(&opts.Minify, "minify", false, "Minify output")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "Write transformed files here instead of stdout")
	return cmd
}
