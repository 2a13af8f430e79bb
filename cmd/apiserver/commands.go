// 文件路径: cmd/apiserver/commands.go
// 模块说明: 辅助子命令：version 与 CORS 白名单查看、校验。
package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/creamcroissant/apiserver/internal/config"
	"github.com/creamcroissant/apiserver/internal/cors"
)

func init() {
	// Version
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "apiserver %s (commit %s, built %s)\n", Version, Commit, BuildTime)
		},
	})

	// CORS
	corsCmd := &cobra.Command{
		Use:   "cors",
		Short: "Inspect the effective CORS allow-list",
	}
	corsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print the allowed origins and trusted suffix",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := loadPolicy()
			if err != nil {
				return err
			}
			printPolicy(cmd.OutOrStdout(), policy)
			return nil
		},
	})
	corsCmd.AddCommand(&cobra.Command{
		Use:   "check <origin>",
		Short: "Report whether an origin would be admitted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := loadPolicy()
			if err != nil {
				return err
			}
			d := policy.Admit(args[0])
			verdict := "blocked"
			if d.Allowed {
				verdict = "allowed"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t(%s)\n", d.Origin, verdict, d.Reason)
			if !d.Allowed {
				return fmt.Errorf("origin %q is not allowed", d.Origin)
			}
			return nil
		},
	})
	rootCmd.AddCommand(corsCmd)
}

func loadPolicy() (*cors.Policy, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	return cors.NewPolicy(cfg.CORS.PolicyOptions())
}

func printPolicy(out io.Writer, policy *cors.Policy) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "#\tORIGIN")
	for i, origin := range policy.Origins() {
		fmt.Fprintf(w, "%d\t%s\n", i+1, origin)
	}
	if suffix, match := policy.TrustedSuffix(); suffix != "" {
		fmt.Fprintf(w, "*\t%s (%s)\n", suffix, match)
	}
}
