// Command paccctl is PACC's CLI: install, list, remove, update and sync
// extensions in the user or project scope.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/roivaz/pacc/internal/config"
	"github.com/roivaz/pacc/internal/engine"
	"github.com/roivaz/pacc/internal/kinds"
	"github.com/roivaz/pacc/internal/mcpserver"
	"github.com/roivaz/pacc/internal/source"
	"github.com/roivaz/pacc/internal/store"
	"github.com/roivaz/pacc/internal/txn"
)

var rootCmd = &cobra.Command{
	Use:   "paccctl",
	Short: "Install, remove and sync Claude Code extensions",
}

var installCmd = &cobra.Command{
	Use:           "install <path>",
	Short:         "Install extensions found under path into the selected scope",
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithEngine(cmd, func(eng *engine.Engine) (txn.TransactionResult, error) {
			candidates, err := source.NewLocalDir(args[0]).Scan()
			if err != nil {
				return txn.TransactionResult{}, err
			}
			if len(candidates) == 0 {
				return txn.TransactionResult{}, fmt.Errorf("no installable extensions found under %s", args[0])
			}
			return eng.Install(candidates, store.PreferIncoming)
		})
	},
}

var updateCmd = &cobra.Command{
	Use:           "update <path>",
	Short:         "Reinstall extensions found under path, overwriting existing entries",
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithEngine(cmd, func(eng *engine.Engine) (txn.TransactionResult, error) {
			candidates, err := source.NewLocalDir(args[0]).Scan()
			if err != nil {
				return txn.TransactionResult{}, err
			}
			return eng.Update(candidates)
		})
	},
}

var removeCmd = &cobra.Command{
	Use:           "remove <kind> <name>",
	Short:         "Remove an installed extension",
	Args:          cobra.ExactArgs(2),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := kinds.Kind(args[0])
		if !kind.Valid() {
			return fmt.Errorf("unknown kind %q", args[0])
		}
		return runWithEngine(cmd, func(eng *engine.Engine) (txn.TransactionResult, error) {
			return eng.Remove([]kinds.Key{{Kind: kind, LogicalName: args[1]}})
		})
	},
}

var listCmd = &cobra.Command{
	Use:           "list",
	Short:         "List installed extensions in the selected scope",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := buildEngine(cmd)
		if err != nil {
			return err
		}
		records, err := eng.List()
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	},
}

var syncCmd = &cobra.Command{
	Use:           "sync <syncDocPath>",
	Short:         "Resolve a team sync document and install everything it pins",
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithEngine(cmd, func(eng *engine.Engine) (txn.TransactionResult, error) {
			doc, err := source.LoadSyncDoc(args[0])
			if err != nil {
				return txn.TransactionResult{}, err
			}
			return eng.Sync(doc)
		})
	},
}

var serveCmd = &cobra.Command{
	Use:           "serve-mcp",
	Short:         "Serve PACC's install/list/remove/sync tools over MCP (stdio)",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		scope, scopeRoot, err := resolveScope(cmd)
		if err != nil {
			return err
		}
		srv := mcpserver.New(mcpserver.Config{
			ScopeRoot:  scopeRoot,
			Scope:      scope,
			Strict:     config.Strict(),
			Force:      config.Force(),
			LockBudget: config.LockTimeout(),
		})
		return srv.Serve(cmd.Context())
	},
}

func main() {
	config.Init(rootCmd)

	rootCmd.PersistentFlags().String("scope", "user", "Scope to operate on: user or project")
	rootCmd.PersistentFlags().Bool("strict", false, "Promote validation warnings to errors")
	rootCmd.PersistentFlags().Bool("force", false, "Install despite validation errors")
	_ = viper.BindPFlag("strict", rootCmd.PersistentFlags().Lookup("strict"))
	_ = viper.BindPFlag("force", rootCmd.PersistentFlags().Lookup("force"))

	rootCmd.AddCommand(installCmd, updateCmd, removeCmd, listCmd, syncCmd, serveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "paccctl: %v\n", err)
		os.Exit(1)
	}
}

func resolveScope(cmd *cobra.Command) (kinds.Scope, string, error) {
	scopeFlag, _ := cmd.Flags().GetString("scope")
	scope := kinds.Scope(scopeFlag)
	if !scope.Valid() {
		return "", "", fmt.Errorf("scope must be %q or %q, got %q", kinds.ScopeUser, kinds.ScopeProject, scopeFlag)
	}
	var root string
	if scope == kinds.ScopeUser {
		root = config.UserScopeRoot()
	} else {
		root = config.ProjectScopeRoot()
	}
	if root == "" {
		return "", "", errors.New("could not resolve scope root")
	}
	return scope, root, nil
}

func buildEngine(cmd *cobra.Command) (*engine.Engine, error) {
	scope, scopeRoot, err := resolveScope(cmd)
	if err != nil {
		return nil, err
	}
	return engine.New(scopeRoot, scope, config.Strict(), config.Force(), config.LockTimeout()), nil
}

// runWithEngine builds an Engine for the selected scope, runs fn, recovers
// any prior unfinished transaction first, and renders the result as a
// human-readable summary.
func runWithEngine(cmd *cobra.Command, fn func(*engine.Engine) (txn.TransactionResult, error)) error {
	eng, err := buildEngine(cmd)
	if err != nil {
		return err
	}
	if _, err := eng.Recover(); err != nil {
		return fmt.Errorf("recovering prior transaction: %w", err)
	}

	result, err := fn(eng)
	if err != nil {
		return err
	}
	return printResult(cmd, result)
}

func printResult(cmd *cobra.Command, result txn.TransactionResult) error {
	out := cmd.OutOrStdout()
	switch result.Kind {
	case txn.ResultCommitted:
		fmt.Fprintf(out, "committed: installed=%v updated=%v removed=%v\n", result.Installed, result.Updated, result.Removed)
		return nil
	case txn.ResultAborted:
		fmt.Fprintf(out, "aborted at %s: %s\n", result.Phase, result.Reason)
		for _, d := range result.Diagnostics {
			fmt.Fprintf(out, "  %s\n", d)
		}
		return errors.New("transaction aborted")
	default:
		fmt.Fprintf(out, "%+v\n", result)
		return nil
	}
}
