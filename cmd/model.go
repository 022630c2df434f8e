package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/why-cli/why/internal/model"
	"github.com/why-cli/why/internal/trailer"
)

var (
	flagEmbedOut    string
	flagEmbedFamily string
	flagExtractOut  string
)

var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Inspect and manage the embedded local model",
}

var modelInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show whether this binary carries a model and where the cache lives",
	RunE: func(cmd *cobra.Command, args []string) error {
		selfExe, err := os.Executable()
		if err != nil {
			return err
		}
		f, err := os.Open(selfExe)
		if err != nil {
			return err
		}
		defer f.Close()

		t, err := trailer.Decode(f)
		if err != nil {
			return err
		}
		if t == nil {
			fmt.Println("This binary carries no embedded model.")
		} else {
			fmt.Printf("Embedded model: %d bytes, family %s\n", t.ModelSize, t.Family)
		}

		cache, err := model.CachePath()
		if err != nil {
			return err
		}
		if info, statErr := os.Stat(cache); statErr == nil {
			fmt.Printf("Cache: %s (%d bytes)\n", cache, info.Size())
		} else {
			fmt.Printf("Cache: %s (not extracted yet)\n", cache)
		}
		return nil
	},
}

var modelExtractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract the embedded model to the cache or a chosen path",
	RunE: func(cmd *cobra.Command, args []string) error {
		selfExe, err := os.Executable()
		if err != nil {
			return err
		}

		if flagExtractOut == "" {
			src, err := model.Locate(selfExe, "")
			if err != nil {
				if errors.Is(err, model.ErrNoEmbeddedModel) {
					return errors.New("this binary carries no embedded model")
				}
				return err
			}
			fmt.Printf("Model available at %s\n", src.Path)
			return nil
		}

		f, err := os.Open(selfExe)
		if err != nil {
			return err
		}
		defer f.Close()
		t, err := trailer.Decode(f)
		if err != nil {
			return err
		}
		if t == nil {
			return errors.New("this binary carries no embedded model")
		}

		out, err := os.Create(flagExtractOut)
		if err != nil {
			return err
		}
		if err := trailer.ExtractTo(out, f, t); err != nil {
			out.Close()
			os.Remove(flagExtractOut)
			return err
		}
		if err := out.Close(); err != nil {
			return err
		}
		fmt.Printf("Extracted %d bytes to %s\n", t.ModelSize, flagExtractOut)
		return nil
	},
}

var modelEmbedCmd = &cobra.Command{
	Use:   "embed <binary> <model.gguf>",
	Short: "Append a model to a binary, producing a self-carrying executable",
	Long: `Builds a carrier executable: the model file is appended to the binary
with a trailer record, so the combined file runs normally and can extract
its own model on first use.

  why model embed ./why ./qwen2.5-0.5b-instruct-q4.gguf -o ./why-bundled`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		fam, err := trailer.ParseFamily(flagEmbedFamily)
		if err != nil {
			return err
		}

		binData, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading binary: %w", err)
		}
		modelData, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("reading model: %w", err)
		}

		out := flagEmbedOut
		if out == "" {
			out = args[0] + "-bundled"
		}
		combined := trailer.Encode(binData, modelData, fam)
		if err := os.WriteFile(out, combined, 0o755); err != nil {
			return fmt.Errorf("writing %s: %w", out, err)
		}
		fmt.Printf("Wrote %s (%d bytes, model family %s)\n", out, len(combined), fam)
		return nil
	},
}

func init() {
	modelEmbedCmd.Flags().StringVarP(&flagEmbedOut, "output", "o", "", "output path (default: <binary>-bundled)")
	modelEmbedCmd.Flags().StringVar(&flagEmbedFamily, "family", "qwen", "prompt family: qwen, gemma, smollm")
	modelExtractCmd.Flags().StringVarP(&flagExtractOut, "output", "o", "", "write the model here instead of the cache")
	modelCmd.AddCommand(modelInfoCmd, modelExtractCmd, modelEmbedCmd)
	rootCmd.AddCommand(modelCmd)
}
