// Package main provides the MimirKB CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/orneryd/mimirkb/pkg/audit"
	"github.com/orneryd/mimirkb/pkg/config"
	"github.com/orneryd/mimirkb/pkg/entry"
	"github.com/orneryd/mimirkb/pkg/kb"
	"github.com/orneryd/mimirkb/pkg/metrics"
	"github.com/orneryd/mimirkb/pkg/notify"
	"github.com/orneryd/mimirkb/pkg/store"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

var (
	flagStoreDir   string
	flagBackend    string
	flagConfigFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mimirkb",
		Short: "MimirKB - File-Backed Knowledge Graph Engine",
		Long: `MimirKB manages a graph of knowledge entries stored one document
per file under a directory tree. Entries link to each other through typed
relationships; symmetric kinds are mirrored on both endpoints and the engine
keeps references consistent across moves and deletes.

Features:
  • One JSON document per entry - the directory tree is the database
  • Typed relationships with automatic mirror maintenance
  • Store-wide reference rewriting on move and delete
  • Cycle-safe depth-bounded graph traversal
  • Optional BadgerDB backend with at-rest encryption
  • JSONL mutation audit trail`,
	}

	rootCmd.PersistentFlags().StringVar(&flagStoreDir, "store-dir", "", "Store directory (default $MIMIRKB_STORE_DIR or ./knowledge)")
	rootCmd.PersistentFlags().StringVar(&flagBackend, "backend", "", "Store backend: file or badger")
	rootCmd.PersistentFlags().StringVar(&flagConfigFile, "config", "", "YAML config file")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("MimirKB v%s (%s)\n", version, commit)
		},
	})

	createCmd := &cobra.Command{
		Use:   "create <path>",
		Short: "Create a knowledge entry",
		Long: `Create a knowledge entry at the given path. The entry document is
read from --file or stdin as JSON. Relation targets must already exist.`,
		Args: cobra.ExactArgs(1),
		RunE: runCreate,
	}
	createCmd.Flags().String("file", "", "Entry JSON file (default stdin)")
	rootCmd.AddCommand(createCmd)

	getCmd := &cobra.Command{
		Use:   "get <path>",
		Short: "Read a single entry",
		Args:  cobra.ExactArgs(1),
		RunE:  runGet,
	}
	rootCmd.AddCommand(getCmd)

	treeCmd := &cobra.Command{
		Use:   "tree <path>",
		Short: "Read an entry with its linked neighborhood",
		Long: `Read an entry together with N hops of its related entries, expanded
inline. The walk is cycle-safe: revisited ancestors become circular-reference
markers instead of looping.`,
		Args: cobra.ExactArgs(1),
		RunE: runTree,
	}
	treeCmd.Flags().Int("depth", 2, "Relation hops to expand")
	rootCmd.AddCommand(treeCmd)

	updateCmd := &cobra.Command{
		Use:   "update <path>",
		Short: "Apply a field-level patch to an entry",
		Long: `Apply a partial update read from --file or stdin as JSON. Only
provided fields are validated and overwritten. A "target_path" field in the
patch relocates the entry (see also: move).`,
		Args: cobra.ExactArgs(1),
		RunE: runUpdate,
	}
	updateCmd.Flags().String("file", "", "Patch JSON file (default stdin)")
	rootCmd.AddCommand(updateCmd)

	deleteCmd := &cobra.Command{
		Use:   "delete <path>",
		Short: "Delete an entry and clean up references to it",
		Args:  cobra.ExactArgs(1),
		RunE:  runDelete,
	}
	deleteCmd.Flags().Bool("no-cascade", false, "Skip stripping references from other entries")
	rootCmd.AddCommand(deleteCmd)

	moveCmd := &cobra.Command{
		Use:   "move <old-path> <new-path>",
		Short: "Move an entry and rewire incoming references",
		Long: `Relocate an entry. Every other entry's relations targeting the old
path are rewritten to the new one. A collision at the destination is resolved
by deriving a unique alternate path, never by overwriting.`,
		Args: cobra.ExactArgs(2),
		RunE: runMove,
	}
	rootCmd.AddCommand(moveCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every entry path in the store",
		RunE:  runList,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "repair",
		Short: "Re-create missing mirror relations for symmetric kinds",
		RunE:  runRepair,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Report dangling references and missing mirrors without fixing them",
		RunE:  runCheck,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Print entry and relation counts",
		RunE:  runStats,
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig merges the config file (if any), environment, and flags.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if flagConfigFile != "" {
		cfg, err = config.LoadFile(flagConfigFile)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.LoadFromEnv()
	}
	if flagStoreDir != "" {
		cfg.Store.Dir = flagStoreDir
	}
	if flagBackend != "" {
		cfg.Store.Backend = strings.ToLower(flagBackend)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openKB builds the engine from configuration: store backend, notification
// registry, audit consumer, metrics. The returned cleanup closes all of it.
func openKB() (*kb.KB, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	var st store.Store
	switch cfg.Store.Backend {
	case config.BackendBadger:
		st, err = store.NewBadgerStore(store.BadgerOptions{
			DataDir:    cfg.Store.Dir,
			SyncWrites: cfg.Store.SyncWrites,
			Passphrase: cfg.Store.EncryptionPassphrase,
		})
	default:
		st, err = store.NewFileStore(cfg.Store.Dir)
	}
	if err != nil {
		return nil, nil, err
	}
	if cfg.Store.CacheSize > 0 {
		st = store.NewCachedStore(st, cfg.Store.CacheSize, time.Minute)
	}

	engineCfg := &kb.Config{
		MaxTraversalDepth: cfg.Engine.MaxTraversalDepth,
		MoveRetryLimit:    cfg.Engine.MoveRetryLimit,
	}

	registry := notify.NewRegistry()
	engineCfg.Sink = registry

	var auditLogger *audit.Logger
	auditDone := make(chan struct{})
	if cfg.Audit.Enabled {
		auditLogger, err = audit.NewLogger(audit.Config{LogPath: cfg.Audit.LogPath})
		if err != nil {
			st.Close()
			return nil, nil, err
		}
		events, _ := registry.Subscribe()
		go func() {
			defer close(auditDone)
			if dropped := auditLogger.Consume(events); dropped > 0 {
				log.Printf("⚠️  audit: %d records dropped", dropped)
			}
		}()
	} else {
		close(auditDone)
	}

	if cfg.Metrics.Enabled {
		engineCfg.Metrics = metrics.NewPromCollector()
	}

	k := kb.New(st, engineCfg)
	cleanup := func() {
		k.Close()
		registry.Close()
		<-auditDone
		if auditLogger != nil {
			auditLogger.Close()
		}
	}
	return k, cleanup, nil
}

// readDocument loads JSON from --file or stdin into v.
func readDocument(cmd *cobra.Command, v any) error {
	file, _ := cmd.Flags().GetString("file")
	var data []byte
	var err error
	if file != "" {
		data, err = os.ReadFile(file)
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return fmt.Errorf("reading document: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing document: %w", err)
	}
	return nil
}

// printJSON renders v as indented JSON on stdout.
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func printWarnings(warnings []kb.Warning) {
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "⚠️  %s\n", w)
	}
}

func runCreate(cmd *cobra.Command, args []string) error {
	k, cleanup, err := openKB()
	if err != nil {
		return err
	}
	defer cleanup()

	var e entry.Entry
	if err := readDocument(cmd, &e); err != nil {
		return err
	}
	res, err := k.Create(context.Background(), args[0], &e)
	if err != nil {
		return err
	}
	printWarnings(res.Warnings)
	return printJSON(res.Entry)
}

func runGet(cmd *cobra.Command, args []string) error {
	k, cleanup, err := openKB()
	if err != nil {
		return err
	}
	defer cleanup()

	e, err := k.Get(context.Background(), args[0])
	if err != nil {
		return err
	}
	return printJSON(e)
}

func runTree(cmd *cobra.Command, args []string) error {
	k, cleanup, err := openKB()
	if err != nil {
		return err
	}
	defer cleanup()

	depth, _ := cmd.Flags().GetInt("depth")
	node, err := k.ReadWithDepth(context.Background(), args[0], depth)
	if err != nil {
		return err
	}
	return printJSON(node)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	k, cleanup, err := openKB()
	if err != nil {
		return err
	}
	defer cleanup()

	var patch kb.Patch
	if err := readDocument(cmd, &patch); err != nil {
		return err
	}
	res, err := k.Update(context.Background(), args[0], &patch)
	if err != nil {
		return err
	}
	printWarnings(res.Warnings)
	if res.Moved {
		fmt.Fprintf(os.Stderr, "moved %s → %s\n", res.OldPath, res.Path)
	}
	return printJSON(res.Entry)
}

func runDelete(cmd *cobra.Command, args []string) error {
	k, cleanup, err := openKB()
	if err != nil {
		return err
	}
	defer cleanup()

	noCascade, _ := cmd.Flags().GetBool("no-cascade")
	res, err := k.Delete(context.Background(), args[0], !noCascade)
	if err != nil {
		return err
	}
	printWarnings(res.Warnings)
	fmt.Printf("deleted %s (%d entries cleaned)\n", res.Path, res.Cleaned)
	return nil
}

func runMove(cmd *cobra.Command, args []string) error {
	k, cleanup, err := openKB()
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := k.Move(context.Background(), args[0], args[1])
	if err != nil {
		return err
	}
	printWarnings(res.Warnings)
	if res.IncomingRefs > 0 {
		fmt.Fprintf(os.Stderr, "rewired %d/%d referencing entries\n", res.Rewritten, res.IncomingRefs)
	}
	fmt.Printf("moved %s → %s\n", res.OldPath, res.Path)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	k, cleanup, err := openKB()
	if err != nil {
		return err
	}
	defer cleanup()

	paths, err := k.List(context.Background())
	if err != nil {
		return err
	}
	sort.Strings(paths)
	for _, p := range paths {
		fmt.Println(p)
	}
	return nil
}

func runRepair(cmd *cobra.Command, args []string) error {
	k, cleanup, err := openKB()
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := k.RepairMirrors(context.Background())
	if err != nil {
		return err
	}
	printWarnings(res.Warnings)
	fmt.Printf("scanned %d entries, added %d mirrors\n", res.Scanned, res.MirrorsAdded)
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	k, cleanup, err := openKB()
	if err != nil {
		return err
	}
	defer cleanup()

	report, err := k.CheckIntegrity(context.Background())
	if err != nil {
		return err
	}
	if report.Clean() {
		fmt.Printf("scanned %d entries, no problems found\n", report.Scanned)
		return nil
	}
	return printJSON(report)
}

func runStats(cmd *cobra.Command, args []string) error {
	k, cleanup, err := openKB()
	if err != nil {
		return err
	}
	defer cleanup()

	stats, err := k.Stats(context.Background())
	if err != nil {
		return err
	}
	return printJSON(stats)
}
