package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/why-cli/why/internal/provider"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List backends and whether they are ready to use",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaultKind, err := provider.Resolve(flagProvider, cfg)
		if err != nil {
			return err
		}

		for _, kind := range provider.Kinds {
			info := provider.InfoFor(kind)

			status := "ready"
			if info.EnvKey != "" && !provider.KeySet(kind) {
				status = "no API key (" + info.EnvKey + ")"
			}
			marker := " "
			if kind == defaultKind {
				marker = "*"
			}

			pc := cfg.Provider(string(kind))
			modelName := pc.Model
			if modelName == "" {
				modelName = info.DefaultModel
			}
			fmt.Printf("%s %-11s %-32s %s\n", marker, kind, modelName, status)
		}
		fmt.Println("\n* = selected by current config and environment")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(providersCmd)
}
