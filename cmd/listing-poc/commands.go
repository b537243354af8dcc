package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/raine/sellsmart-bot/internal/config"
	"github.com/raine/sellsmart-bot/internal/listing"
	"github.com/raine/sellsmart-bot/internal/llm"
	"github.com/raine/sellsmart-bot/internal/prompt"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listing-poc",
		Short: "Try the listing models on local photos",
		Long: `listing-poc analyzes, edits and restyles product photos with the same
gateway the bot uses. GEMINI_API_KEY is read from the environment, a .env
file in the working directory or the bot's config.env.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
			config.LoadEnvFile()
		},
	}

	cmd.AddCommand(newAnalyzeCmd(), newEditCmd(), newGenerateCmd(), newPromptCmd())
	return cmd
}

func readImage(path string) (listing.Payload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return listing.Payload{}, fmt.Errorf("failed to read image: %w", err)
	}
	return listing.Capture(data)
}

func newGateway(cmd *cobra.Command) (*llm.GeminiGateway, error) {
	key := os.Getenv("GEMINI_API_KEY")
	if key == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is not set")
	}
	return llm.NewGeminiGateway(cmd.Context(), key)
}

// writeImage saves img to out, adding the extension for its format when out
// has none.
func writeImage(cmd *cobra.Command, img listing.Payload, out string) error {
	if filepath.Ext(out) == "" {
		out += img.Extension()
	}
	if err := os.WriteFile(out, img.Data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%s, %d bytes)\n", out, img.MIMEType, len(img.Data))
	return nil
}

func printUsage(cmd *cobra.Command, u llm.Usage) {
	fmt.Fprintf(cmd.ErrOrStderr(), "tokens: %d in, %d out, cost $%.4f\n", u.InputTokens, u.OutputTokens, u.CostUSD)
}

func newAnalyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <image>",
		Short: "Generate listing details for a photo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := readImage(args[0])
			if err != nil {
				return err
			}
			gw, err := newGateway(cmd)
			if err != nil {
				return err
			}

			start := time.Now()
			result, err := gw.Analyze(cmd.Context(), img)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(result.Draft, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n", strings.Join(result.Draft.DisplayHashtags(), " "))
			fmt.Fprintf(cmd.ErrOrStderr(), "analyzed in %s\n", time.Since(start).Round(time.Millisecond))
			printUsage(cmd, result.Usage)
			return nil
		},
	}
}

func newEditCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:     "edit <image> <instruction>",
		Short:   "Apply a free-text edit to a photo",
		Example: `  listing-poc edit chair.jpg "Remove the background" -o chair-clean`,
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := readImage(args[0])
			if err != nil {
				return err
			}
			instruction, err := prompt.QuickEdit(strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			gw, err := newGateway(cmd)
			if err != nil {
				return err
			}

			result, err := gw.Edit(cmd.Context(), img, instruction)
			if err != nil {
				return err
			}
			printUsage(cmd, result.Usage)
			return writeImage(cmd, result.Image, out)
		},
	}

	cmd.Flags().StringVarP(&out, "output", "o", "edited", "Output file")
	return cmd
}

// selectionFlags binds the generation options to flags.
type selectionFlags struct {
	model, location, style, resolution, details string
}

func (f *selectionFlags) register(cmd *cobra.Command) {
	def := prompt.DefaultSelection()
	cmd.Flags().StringVar(&f.model, "model", def.Model.Key(), "Model: none, female, male, hand")
	cmd.Flags().StringVar(&f.location, "location", def.Location.Key(), "Location: studio, living-room, urban, nature, concrete, luxury")
	cmd.Flags().StringVar(&f.style, "style", def.Style.Key(), "Style: neutral, streetwear, vintage, formal, boho")
	cmd.Flags().StringVar(&f.resolution, "resolution", string(def.Resolution), "Resolution: 1K, 2K, 4K")
	cmd.Flags().StringVar(&f.details, "details", "", "Custom details added to the prompt")
}

func (f *selectionFlags) selection() (prompt.Selection, error) {
	var (
		sel prompt.Selection
		err error
	)
	if sel.Model, err = prompt.ParseModelChoice(f.model); err != nil {
		return sel, err
	}
	if sel.Location, err = prompt.ParseLocationChoice(f.location); err != nil {
		return sel, err
	}
	if sel.Style, err = prompt.ParseStyleChoice(f.style); err != nil {
		return sel, err
	}
	if sel.Resolution, err = listing.ParseResolution(f.resolution); err != nil {
		return sel, err
	}
	sel.CustomDetails = f.details
	return sel, nil
}

func newGenerateCmd() *cobra.Command {
	var (
		flags     selectionFlags
		out       string
		simulated bool
		delay     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "generate <image>",
		Short: "Generate a styled studio photo",
		Example: `  listing-poc generate jacket.jpg --model female --location urban --resolution 2K
  listing-poc generate jacket.jpg --simulated --delay 0s`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := readImage(args[0])
			if err != nil {
				return err
			}
			sel, err := flags.selection()
			if err != nil {
				return err
			}

			var gen llm.Generator
			if simulated {
				gen = llm.NewSimulatedGenerator(delay)
			} else if gen, err = newGateway(cmd); err != nil {
				return err
			}

			result, err := gen.Generate(cmd.Context(), img, prompt.ComposeGeneration(sel), sel.Resolution)
			if err != nil {
				return err
			}
			printUsage(cmd, result.Usage)
			return writeImage(cmd, result.Image, out)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&out, "output", "o", "generated", "Output file")
	cmd.Flags().BoolVar(&simulated, "simulated", false, "Return the input photo instead of calling the model")
	cmd.Flags().DurationVar(&delay, "delay", llm.DefaultSimulatedDelay, "Simulated generation delay")
	return cmd
}

func newPromptCmd() *cobra.Command {
	var flags selectionFlags

	cmd := &cobra.Command{
		Use:   "prompt",
		Short: "Print the generation prompt for a selection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sel, err := flags.selection()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), prompt.ComposeGeneration(sel))
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}
