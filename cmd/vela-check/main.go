// Package main provides the entry point for the Vela checker.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vela-lang/vela/internal/ast"
	"github.com/vela-lang/vela/internal/checker"
	"github.com/vela-lang/vela/internal/config"
	"github.com/vela-lang/vela/internal/modules"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	var (
		showVersion   = flag.Bool("version", false, "show version information")
		showHelp      = flag.Bool("help", false, "show help information")
		configPath    = flag.String("config", "vela.yaml", "configuration file")
		watch         = flag.Bool("watch", false, "re-check whenever an input file changes")
		strictUnknown = flag.Bool("strict-unknown", false, "treat inconclusive solver results as errors")
	)

	flag.Parse()

	if *showVersion {
		fmt.Printf("vela-check v%s (%s)\n", version, commit)
		return
	}

	if *showHelp {
		showUsage()
		return
	}

	files := flag.Args()
	if len(files) == 0 {
		fmt.Println("Error: No input files specified")
		showUsage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Configuration failed: %v", err)
	}

	if *strictUnknown {
		cfg.StrictUnknown = true
	}

	if *watch {
		if err := watchLoop(cfg, files); err != nil {
			log.Fatalf("Watch failed: %v", err)
		}

		return
	}

	if !runCheck(cfg, files) {
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println("Vela Checker")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("    vela-check [OPTIONS] <UNIT_FILE>...")
	fmt.Println()
	fmt.Println("Each unit file holds one JSON-encoded compilation unit as")
	fmt.Println("emitted by the parser.")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("    --version         Show version information")
	fmt.Println("    --help            Show this help message")
	fmt.Println("    --config PATH     Configuration file (default vela.yaml)")
	fmt.Println("    --watch           Re-check whenever an input file changes")
	fmt.Println("    --strict-unknown  Treat inconclusive solver results as errors")
}

// runCheck loads every unit, checks the whole graph and prints the
// diagnostics. It returns false when any unit has errors.
func runCheck(cfg *config.Config, files []string) bool {
	graph := modules.NewGraph()

	for _, file := range files {
		prog, err := loadUnit(file)
		if err != nil {
			log.Printf("Error: %v", err)
			return false
		}

		if err := graph.Add(prog); err != nil {
			log.Printf("Error: %v", err)
			return false
		}
	}

	opts := checker.Options{
		StrictUnknown: cfg.StrictUnknown,
		MaxErrors:     cfg.MaxErrors,
	}

	results, err := graph.CheckAll(context.Background(), cfg.Pool(), opts)
	if err != nil {
		log.Printf("Check failed: %v", err)
		return false
	}

	clean := true

	for _, res := range results {
		for _, d := range res.Errs.All() {
			fmt.Println(d.Error())
		}

		if res.Errs.HasErrors() {
			clean = false
		}
	}

	if clean {
		fmt.Printf("checked %d unit(s), no errors\n", len(results))
	} else {
		total := 0
		for _, res := range results {
			total += res.Errs.ErrorCount()
		}

		fmt.Printf("checked %d unit(s), %d error(s)\n", len(results), total)
	}

	return clean
}

func loadUnit(path string) (*ast.Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open unit %s: %w", path, err)
	}
	defer f.Close()

	prog, err := ast.DecodeProgram(f)
	if err != nil {
		return nil, fmt.Errorf("unit %s: %w", path, err)
	}

	return prog, nil
}

// watchLoop re-runs the check whenever one of the input files is
// rewritten. Events are debounced because editors commonly produce
// several writes per save.
func watchLoop(cfg *config.Config, files []string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	watched := make(map[string]bool, len(files))

	for _, file := range files {
		abs, err := filepath.Abs(file)
		if err != nil {
			return err
		}

		watched[abs] = true

		// Watch the directory, not the file: editors replace files on
		// save, which drops a watch registered on the file itself.
		if err := watcher.Add(filepath.Dir(abs)); err != nil {
			return err
		}
	}

	runCheck(cfg, files)
	log.Printf("watching %d file(s)", len(files))

	var timer *time.Timer

	pending := make(chan struct{}, 1)

	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}

			abs, err := filepath.Abs(ev.Name)
			if err != nil || !watched[abs] {
				continue
			}

			if timer != nil {
				timer.Stop()
			}

			timer = time.AfterFunc(200*time.Millisecond, func() {
				select {
				case pending <- struct{}{}:
				default:
				}
			})
		case <-pending:
			fmt.Println("---")
			runCheck(cfg, files)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			log.Printf("watch error: %v", err)
		}
	}
}
