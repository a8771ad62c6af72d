package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fleetship/fleetship/internal/core/compose"
	"github.com/fleetship/fleetship/internal/core/deploy"
	"github.com/fleetship/fleetship/internal/shell/docker"
	"github.com/fleetship/fleetship/internal/shell/fleetapi"
	"github.com/fleetship/fleetship/internal/shell/history"
	"github.com/fleetship/fleetship/internal/shell/source"
)

// =============================================================================
// deploy Command
// =============================================================================

// timeRound trims durations for display.
const timeRound = 100 * time.Millisecond

// keyValueFlag collects repeatable KEY=VALUE flag occurrences.
type keyValueFlag map[string]string

func (f keyValueFlag) String() string {
	parts := make([]string, 0, len(f))
	for k, v := range f {
		parts = append(parts, k+"="+v)
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

func (f keyValueFlag) Set(s string) error {
	k, v, ok := strings.Cut(s, "=")
	if !ok || k == "" {
		return fmt.Errorf("expected KEY=VALUE, got %q", s)
	}
	f[k] = v
	return nil
}

func runDeploy(args []string) int {
	fs := flag.NewFlagSet("deploy", flag.ContinueOnError)
	var (
		configPath  = fs.String("config", "", "Path to config file")
		sourceDir   = fs.String("source", ".", "Project directory containing the compose file")
		build       = fs.Bool("build", false, "Force a rebuild of every service before deploying")
		nologupload = fs.Bool("nologupload", false, "Do not upload build logs with the release")
		emulated    = fs.Bool("emulated", false, "Use emulation when building for a foreign architecture")
	)
	fs.BoolVar(build, "b", false, "Force a rebuild of every service (shorthand)")
	buildVars := keyValueFlag{}
	fs.Var(buildVars, "buildvar", "Build argument KEY=VALUE applied to every built service (repeatable)")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: fleetship deploy <fleet> [image] [flags]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return ExitUsageError
	}

	fleetName := fs.Arg(0)
	imageRef := fs.Arg(1)
	if fleetName == "" {
		fmt.Fprintln(os.Stderr, "a fleet name is required")
		fs.Usage()
		return ExitUsageError
	}
	if imageRef != "" && *build {
		fmt.Fprintln(os.Stderr, "--build cannot be combined with an explicit image; the image is deployed as-is")
		return ExitUsageError
	}

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return ExitConfigError
	}
	logger := SetupLogger(cfg)

	projectDir, err := filepath.Abs(*sourceDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid source directory: %v\n", err)
		return ExitUsageError
	}
	projectName := filepath.Base(projectDir)

	var project *compose.Project
	if imageRef != "" {
		project = compose.SingleImageProject(projectName, projectDir, imageRef)
	} else {
		project, err = compose.LoadProject(projectDir, projectName)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load project: %v\n", err)
			return ExitConfigError
		}
	}

	ctx := context.Background()

	dockerClient, err := docker.NewClient(cfg.Docker.Host)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to Docker: %v\n", err)
		return ExitDockerError
	}
	defer dockerClient.Close()
	if err := dockerClient.Ping(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Docker daemon not reachable: %v\n", err)
		return ExitDockerError
	}

	api := fleetapi.NewClient(fleetapi.Config{
		BaseURL: cfg.API.URL,
		Token:   cfg.API.Token,
		Timeout: cfg.API.Timeout,
	}, logger)

	dc, err := api.Resolve(ctx, fleetName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return ExitAPIError
	}
	fleet := dc.Application.FleetInfo()

	srcInfo, err := source.Describe(projectDir, logger)
	if err != nil {
		logger.Warn("failed to read source metadata", "error", err)
		srcInfo = nil
	}

	// History recording is best effort; an unusable database only
	// loses the local record, never the deploy.
	var recorder deploy.Recorder
	if cfg.History.DSN != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.History.DSN), 0o755); err != nil {
			logger.Warn("cannot create history directory", "error", err)
		} else if store, err := history.NewSQLiteStore(cfg.History.DSN); err != nil {
			logger.Warn("cannot open history database", "error", err)
		} else {
			defer store.Close()
			recorder = history.NewRecorder(store)
		}
	}

	orch := deploy.NewOrchestrator(deploy.Options{
		Prober:           dockerClient,
		Builder:          docker.NewImageBuilder(dockerClient, logger),
		Legacy:           fleetapi.NewLegacyReleaser(api, dc.User),
		Modern:           fleetapi.NewMulticontainerReleaser(api, dc.User),
		Recorder:         recorder,
		ProbeConcurrency: cfg.Deploy.ProbeConcurrency,
		Logger:           logger,
	})

	outcome, err := orch.Run(ctx, deploy.Request{
		Project:           project,
		Fleet:             fleet,
		ForceRebuild:      *build,
		Emulated:          *emulated,
		SuppressLogUpload: *nologupload,
		Source:            srcInfo,
		BuildOptions:      buildVars,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return ExitDeployError
	}

	fmt.Printf("Release %s created on fleet %s (%d services, %d skipped, %s)\n",
		outcome.ReleaseCommit, fleet.Name,
		len(outcome.Images), outcome.SkippedCount,
		outcome.Duration.Round(timeRound))
	return ExitSuccess
}
