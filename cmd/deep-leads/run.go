package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mikeboe/deep-leads/pkg/leads"
	"github.com/mikeboe/deep-leads/pkg/research"
)

type runOptions struct {
	params leads.ResearchParams
	multi  bool
	out    string
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Search for leads",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("who") || !cmd.Flags().Changed("what") {
				if err := promptParams(os.Stdin, cmd.OutOrStdout(), &opts.params); err != nil {
					return err
				}
			}
			if err := leads.Validate(opts.params); err != nil {
				return err
			}
			return runSearch(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.params.Who, "who", "", "Who to look for, e.g. \"Professors\"")
	cmd.Flags().StringVar(&opts.params.What, "what", "", "Field of study or work")
	cmd.Flags().StringVar(&opts.params.Where, "where", "", "Location, optional")
	cmd.Flags().StringVar(&opts.params.Context, "context", "", "Additional context, optional")
	cmd.Flags().BoolVar(&opts.multi, "multi", false, "Use an orchestrator that delegates to researcher agents")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "Write the leads as JSON to this file")
	return cmd
}

// promptParams asks for the parameters that were not given as flags.
func promptParams(in io.Reader, out io.Writer, p *leads.ResearchParams) error {
	reader := bufio.NewReader(in)
	ask := func(label string, dst *string, required bool) error {
		if *dst != "" {
			return nil
		}
		fmt.Fprintf(out, "%s: ", label)
		input, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		*dst = strings.TrimSpace(input)
		if required && *dst == "" {
			return fmt.Errorf("%s cannot be empty", strings.ToLower(label))
		}
		return nil
	}

	if err := ask("Who are you looking for", &p.Who, true); err != nil {
		return err
	}
	if err := ask("What is their field", &p.What, true); err != nil {
		return err
	}
	if err := ask("Where are they located (optional)", &p.Where, false); err != nil {
		return err
	}
	return ask("Additional context (optional)", &p.Context, false)
}

func runSearch(cmd *cobra.Command, opts runOptions) error {
	ctx := cmd.Context()

	engine, err := research.NewEngineFromConfig(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("error initializing engine: %w", err)
	}

	mode := research.ModeSingle
	if opts.multi {
		mode = research.ModeMulti
	}
	logger.Info("Starting lead search", "who", opts.params.Who, "what", opts.params.What, "mode", mode)

	out, err := engine.Run(ctx, opts.params, mode)
	if err != nil {
		return fmt.Errorf("error running lead search: %w", err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Found %d leads (%s after %d iterations)\n\n", len(out.Leads.Leads), out.StopReason, out.Iterations)
	fmt.Fprintln(w, out.Leads.String())

	if opts.out == "" {
		return nil
	}
	data, err := json.MarshalIndent(out.Leads, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(opts.out, data, 0o644); err != nil {
		return fmt.Errorf("failed to write leads: %w", err)
	}
	logger.Info("Leads written", "path", opts.out)
	return nil
}
