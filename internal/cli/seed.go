package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"messagecore/pkg/domain"
)

// SeedFile is the YAML fixture format read by the seed command.
type SeedFile struct {
	Messages []map[string]any `yaml:"messages"`
}

// SeedOptions holds flags for the seed command.
type SeedOptions struct {
	*RootOptions
	File string
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SeedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create messages from a YAML fixture",
		Long: `Create every message listed in a YAML fixture through the service, so
validation and timestamp hooks apply as they would for API clients.

Example:
  messagecore seed --storage sqlite --file fixtures/messages.yaml

Fixture format:
  messages:
    - text: Message created on server
      counter: 1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "YAML fixture to load (required)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

// ReadSeedFile parses a YAML fixture.
func ReadSeedFile(path string) (SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SeedFile{}, fmt.Errorf("read seed file: %w", err)
	}
	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return SeedFile{}, fmt.Errorf("parse seed file: %w", err)
	}
	return seed, nil
}

func runSeed(cmd *cobra.Command, opts *SeedOptions) error {
	seed, err := ReadSeedFile(opts.File)
	if err != nil {
		return err
	}
	app, err := newApp(cmd.Context(), opts.Config(), cmd.ErrOrStderr(), withSnapshot(opts.Snapshot), withDatabaseVariant())
	if err != nil {
		return err
	}
	created := 0
	for i, fields := range seed.Messages {
		if _, err := app.Service.Create(cmd.Context(), domain.Record(fields)); err != nil {
			_ = app.Close()
			return fmt.Errorf("seed message %d: %w", i, err)
		}
		created++
	}
	if err := app.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "seeded %d messages\n", created)
	return nil
}
