// Command webx runs and scaffolds webx projects. It is the thinnest
// possible glue around the runtime: parse flags, load a project, wire the
// actor, HTTP server, and file watcher together, and map startup failures
// to process exit codes.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/webx-run/webx"
	"github.com/webx-run/webx/internal/projectconfig"
	"github.com/webx-run/webx/internal/werrors"
)

func main() {
	root := &cobra.Command{
		Use:   "webx",
		Short: "webx runs and scaffolds webx projects",
	}
	root.AddCommand(newNewCmd(), newRunCmd())

	if err := root.Execute(); err != nil {
		logger := webx.NewLogger()
		if we, ok := err.(*werrors.Error); ok {
			logger.Error("", 0, we.Error())
			os.Exit(we.ExitCode())
		}
		logger.Fatal(err.Error())
	}
}

func newNewCmd() *cobra.Command {
	var override bool
	cmd := &cobra.Command{
		Use:   "new <name>",
		Short: "scaffold a new webx project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return scaffoldProject(args[0], override)
		},
	}
	cmd.Flags().BoolVar(&override, "override", false, "overwrite an existing directory")
	return cmd
}

func newRunCmd() *cobra.Command {
	var prod bool
	var level int
	cmd := &cobra.Command{
		Use:   "run [project]",
		Short: "run a webx project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			project := "."
			if len(args) == 1 {
				project = args[0]
			}
			if level < 1 || level > 4 {
				level = 1
			}
			return runProject(project, webx.RunMode{Dev: !prod, DebugLevel: level})
		},
	}
	cmd.Flags().BoolVar(&prod, "prod", false, "run in production mode")
	cmd.Flags().IntVar(&level, "level", 1, "debug level 1-4")
	return cmd
}

func scaffoldProject(name string, override bool) error {
	if _, err := os.Stat(name); err == nil && !override {
		return werrors.New(werrors.ProjectConfig, "directory %q already exists (use --override)", name)
	}

	srcDir := filepath.Join(name, "src")
	if err := os.MkdirAll(srcDir, 0o755); err != nil {
		return werrors.New(werrors.ProjectConfig, "scaffolding %q: %v", name, err)
	}

	configPath := filepath.Join(name, "webx.toml")
	config := fmt.Sprintf("name = %q\nversion = \"0.1.0\"\nhost = \"127.0.0.1\"\nport = 8080\nsource_dir = \"src\"\n", name)
	if err := os.WriteFile(configPath, []byte(config), 0o644); err != nil {
		return werrors.New(werrors.ProjectConfig, "writing project config: %v", err)
	}

	starter := "get / {\n  \"hello, webx\"\n}\n"
	if err := os.WriteFile(filepath.Join(srcDir, "main.webx"), []byte(starter), 0o644); err != nil {
		return werrors.New(werrors.ReadModules, "writing starter module: %v", err)
	}
	return nil
}

func runProject(projectDir string, mode webx.RunMode) error {
	cfg, err := loadProjectConfig(projectDir)
	if err != nil {
		return err
	}

	sourceDir := filepath.Join(projectDir, cfg.SourceDir)
	logger := webx.NewLogger()
	logger.DebugLevel = mode.DebugLevel

	// The runtime's project-root is the project directory, not the source
	// subdirectory: the static() intrinsic reads paths relative to the
	// project root, while sourceDir below is only where modules themselves
	// are loaded from and watched.
	rt := webx.NewRuntime(mode, projectDir, logger)

	mods, err := parseModuleFiles(sourceDir)
	if err != nil {
		return err
	}

	// Validate the whole module set before opening the listener: a
	// circular include, duplicate route, or invalid route aborts startup
	// with no TCP listener opened, a different policy from the "log and
	// keep old state" behavior Runtime.recompile applies to a hot-reload
	// failure.
	if _, err := webx.Analyze(mods); err != nil {
		return werrors.New(startupAnalysisKind(err), "%v", err)
	}

	shutdown := &atomic.Bool{}

	go rt.Run(shutdown)

	for _, mod := range mods {
		rt.Send(webx.NewModuleMsg{Module: mod})
	}

	srv := webx.NewServer(mode, rt, logger)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(shutdown) }()

	if mode.Dev {
		watcher, err := webx.NewWatcher(sourceDir, rt, logger)
		if err != nil {
			logger.Warnf("", 0, "hot reload disabled: %v", err)
		} else {
			go watcher.Run(shutdown)
		}
	}

	waitForSignal(shutdown)

	// Grace period: every goroutine exits at its next timeout boundary, so
	// the longest wait is one shutdown-poll interval plus slack.
	select {
	case err := <-errCh:
		if err != nil {
			return werrors.New(werrors.ExecRoute, "server error: %v", err)
		}
	case <-time.After(mode.ShutdownPollInterval() + 2*time.Second):
	}
	return nil
}

// waitForSignal blocks until SIGINT/SIGTERM, then flips shutdown so every
// polling goroutine notices on its next timeout boundary.
func waitForSignal(shutdown *atomic.Bool) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	shutdown.Store(true)
}

// loadProjectConfig tries webx.toml, webx.yaml, webx.yml, then webx.json
// in projectDir, in that order.
func loadProjectConfig(projectDir string) (*projectconfig.Config, error) {
	for _, name := range []string{"webx.toml", "webx.yaml", "webx.yml", "webx.json"} {
		path := filepath.Join(projectDir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		cfg, err := projectconfig.Load(path)
		if err != nil {
			return nil, werrors.New(werrors.ProjectConfig, "%v", err)
		}
		return cfg, nil
	}
	return nil, werrors.New(werrors.ProjectConfig, "no project config (webx.toml/.yaml/.json) found in %q", projectDir)
}

// parseModuleFiles walks sourceDir for .webx/.wx files and parses each one.
// Module paths are stored relative to sourceDir, matching the keys the
// runtime and the watcher use. It does not touch the runtime: the caller
// analyzes the full set before deciding whether startup may proceed.
func parseModuleFiles(sourceDir string) ([]*webx.Module, error) {
	var files []string
	err := filepath.Walk(sourceDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".webx") || strings.HasSuffix(path, ".wx") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, werrors.New(werrors.ReadModules, "walking %q: %v", sourceDir, err)
	}

	mods := make([]*webx.Module, 0, len(files))
	for _, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, werrors.New(werrors.ReadModules, "reading %q: %v", path, err)
		}

		rel, err := filepath.Rel(sourceDir, path)
		if err != nil {
			rel = path
		}

		mod, perr := webx.Parse(rel, string(content))
		if perr != nil {
			return nil, werrors.New(parseErrorKind(perr), "%v", perr)
		}
		mods = append(mods, mod)
	}
	return mods, nil
}

// startupAnalysisKind maps a startup-time Analyze failure to its exit-code
// kind. werrors.New wraps plain errors with Message only, so Analyze's own
// *werrors.Error is unwrapped directly when available.
func startupAnalysisKind(err error) werrors.Kind {
	if we, ok := err.(*werrors.Error); ok {
		return we.Kind
	}
	return werrors.InvalidRoute
}

// parseErrorKind maps a *webx.ParseError onto the exit-code-bearing werrors
// taxonomy so the top-level handler has one place to turn any startup
// failure into a process exit code.
func parseErrorKind(perr *webx.ParseError) werrors.Kind {
	if perr.ExitCode() == 4 {
		return werrors.ParseIO
	}
	return werrors.Syntax
}
