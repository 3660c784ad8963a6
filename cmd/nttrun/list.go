package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/nttrun/pkg/selection"
	"github.com/ormasoftchile/nttrun/pkg/suite"
)

// selectFlags are shared by list and run.
type selectFlags struct {
	lister string
	where  string
	names  []string
}

func (f *selectFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.lister, "lister", "", "How listings are obtained: file, command or jsonrpc (default from nttrun.yaml)")
	cmd.Flags().StringVar(&f.where, "where", "", `Selection expression, e.g. 'module == "m1" && !hasTag("@wip")'`)
	cmd.Flags().AddFlagSet(selection.Flags())
}

// resolveSource returns the suite source from the arguments or the
// configuration.
func resolveSource(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if cfg != nil && cfg.Suite.Source != "" {
		return cfg.Path(cfg.Suite.Source), nil
	}
	return "", fmt.Errorf("no suite source: pass one as argument or set suite.source in nttrun.yaml")
}

// selectTests loads the suite at source and applies the basket flags,
// the environment baskets and the where expression.
func selectTests(ctx context.Context, cmd *cobra.Command, f *selectFlags, source string) ([]suite.Test, error) {
	lister, err := cfg.Lister(f.lister, log)
	if err != nil {
		return nil, err
	}
	if c, ok := lister.(io.Closer); ok {
		defer c.Close()
	}

	s, err := suite.Load(ctx, lister, source)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("source", source).Int("tests", s.Len()).Msg("suite loaded")

	basket, err := selection.NewBasketWithFlags("command line", cmd.Flags())
	if err != nil {
		return nil, err
	}
	if err := basket.LoadBaskets(cfg.BasketLookup(os.LookupEnv, selection.EnvBaskets), selection.EnvBaskets); err != nil {
		return nil, err
	}
	return selection.Query{Names: f.names, Basket: &basket, Where: f.where}.Apply(s)
}

// --- list ---

var (
	listFlags    selectFlags
	listWithTags bool
	listJSON     bool
)

var listCmd = &cobra.Command{
	Use:   "list [source]",
	Short: "List the tests of a suite",
	Long: `Load a suite listing and print the selected test names.

Baskets from NTT_LIST_BASKETS (or the baskets section of nttrun.yaml)
further restrict the selection.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runList,
}

func runList(cmd *cobra.Command, args []string) error {
	source, err := resolveSource(args)
	if err != nil {
		return err
	}
	tests, err := selectTests(cmd.Context(), cmd, &listFlags, source)
	if err != nil {
		return err
	}
	return printTests(cmd.OutOrStdout(), tests, listWithTags, listJSON)
}

func printTests(w io.Writer, tests []suite.Test, withTags, asJSON bool) error {
	if asJSON {
		records := make([]suite.Record, len(tests))
		for i, t := range tests {
			records[i] = suite.Record{Name: t.Name(), Tags: t.Tags(), Mod: t.Module()}
			if records[i].Tags == nil {
				records[i].Tags = []string{}
			}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}
	for _, t := range tests {
		line := t.Name()
		if withTags && len(t.Tags()) > 0 {
			line += "\t" + strings.Join(t.Tags(), " ")
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	listFlags.register(listCmd)
	listCmd.Flags().BoolVar(&listWithTags, "with-tags", false, "Print the tags of each test")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Print the selection as a JSON listing")
}
