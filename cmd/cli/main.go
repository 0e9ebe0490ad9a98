// SPDX-License-Identifier: Apache-2.0

// Command cli bundles repo maintenance subcommands. "validate" runs the
// same formatting, vet, and test gauntlet CI runs, including the
// integration suites when DATABASE_URL points at a live database.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mavrk/apihub/internal/logging"
)

// integrationPackages are the suites gated behind the integration build
// tag; they need a reachable Postgres from DATABASE_URL.
var integrationPackages = []string{
	"./internal/repository",
	"./internal/persistence/postgres",
}

type step struct {
	name string
	run  func(context.Context, *slog.Logger) error
}

func main() {
	logger := logging.NewLogger(os.Getenv("ENV"))

	if len(os.Args) < 2 || os.Args[1] != "validate" {
		fmt.Fprintln(os.Stderr, "usage: go run ./cmd/cli validate")
		os.Exit(2)
	}

	if err := validate(context.Background(), logger); err != nil {
		logger.Error("validation failed", "error", err)
		os.Exit(1)
	}
	logger.Info("validation passed")
}

func validate(ctx context.Context, logger *slog.Logger) error {
	started := time.Now()

	steps := []step{
		{name: "gofmt", run: checkFormatting},
		{name: "go vet", run: goTool("vet", "./...")},
		{name: "unit tests", run: goTool("test", "./...")},
	}

	if strings.TrimSpace(os.Getenv("DATABASE_URL")) != "" {
		args := append([]string{"test", "-count=1", "-tags=integration"}, integrationPackages...)
		steps = append(steps, step{name: "integration tests", run: goTool(args...)})
	} else {
		logger.Info("skipping integration tests", "reason", "DATABASE_URL is not set")
	}

	for _, s := range steps {
		stepStart := time.Now()
		logger.Info("running step", "step", s.name)

		if err := s.run(ctx, logger); err != nil {
			logger.Error("step failed",
				"step", s.name,
				"duration_ms", time.Since(stepStart).Milliseconds(),
			)
			return err
		}
		logger.Info("step completed",
			"step", s.name,
			"duration_ms", time.Since(stepStart).Milliseconds(),
		)
	}

	logger.Info("validation complete", "duration_ms", time.Since(started).Milliseconds())
	return nil
}

func goTool(args ...string) func(context.Context, *slog.Logger) error {
	return func(ctx context.Context, logger *slog.Logger) error {
		logger.Info("exec", "command", "go "+strings.Join(args, " "))

		cmd := exec.CommandContext(ctx, "go", args...)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		cmd.Env = os.Environ()

		if err := cmd.Run(); err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				return fmt.Errorf("go %s: exit code %d", args[0], exitErr.ExitCode())
			}
			return err
		}
		return nil
	}
}

func checkFormatting(ctx context.Context, logger *slog.Logger) error {
	files, err := goFiles(".")
	if err != nil {
		return fmt.Errorf("list go files: %w", err)
	}
	if len(files) == 0 {
		logger.Info("skipping gofmt", "reason", "no go files found")
		return nil
	}

	cmd := exec.CommandContext(ctx, "gofmt", append([]string{"-l"}, files...)...)
	cmd.Stderr = os.Stderr

	out, err := cmd.Output()
	if err != nil {
		return fmt.Errorf("gofmt: %w", err)
	}
	if dirty := strings.TrimSpace(string(out)); dirty != "" {
		return fmt.Errorf("gofmt would change files:\n%s", dirty)
	}
	return nil
}

func goFiles(root string) ([]string, error) {
	files := make([]string, 0, 64)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			switch d.Name() {
			case ".git", ".cache", ".gocache", ".gomodcache", "vendor":
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) == ".go" {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}
