// Command testrunner runs prebuilt package test binaries (go test -c output)
// inside the release image, unit packages first and then, optionally, one
// integration package serially.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"
)

type options struct {
	testsDir        string
	workDir         string
	short           bool
	parallel        int
	count           int
	verbose         bool
	integrationRun  string
	integrationPath string
}

func main() {
	var opts options
	flag.StringVar(&opts.testsDir, "tests-dir", "/app/tests", "directory containing compiled test binaries")
	flag.StringVar(&opts.workDir, "work-dir", "/app", "fallback working directory, where .env is found")
	flag.BoolVar(&opts.short, "short", false, "run tests with -test.short")
	flag.IntVar(&opts.parallel, "pkg-parallel", runtime.NumCPU(), "number of packages to run in parallel")
	flag.IntVar(&opts.count, "count", 1, "pass -test.count to disable caching when set to 1")
	flag.BoolVar(&opts.verbose, "v", true, "add -test.v to test binaries")
	flag.StringVar(&opts.integrationRun, "integration-run", "", "regex of integration test(s) to run with -test.run")
	flag.StringVar(&opts.integrationPath, "integration-path", "api/router", "package path holding the integration tests")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := run(opts); err != nil {
		logger.Error("test run failed", "err", err)
		os.Exit(1)
	}
	logger.Info("all tests passed")
}

func run(opts options) error {
	bins, err := collectTestBinaries(opts.testsDir)
	if err != nil {
		return err
	}
	if len(bins) == 0 {
		return errors.New("no test binaries found")
	}

	var integrationBin string
	if opts.integrationRun != "" {
		integrationBin = filepath.Join(opts.testsDir, filepath.FromSlash(opts.integrationPath)+".test")
		if _, err := os.Stat(integrationBin); err != nil {
			return fmt.Errorf("integration binary not found at %s: %w", integrationBin, err)
		}
	}

	// The integration package runs on its own below, not in the unit pass.
	unitBins := slices.DeleteFunc(bins, func(b string) bool {
		return integrationBin != "" && sameFile(b, integrationBin)
	})

	slog.Info("running unit tests", "packages", len(unitBins))
	if err := runBinaries(unitBins, opts.testArgs(0), opts.parallel, opts.workDir); err != nil {
		return err
	}

	if integrationBin != "" {
		slog.Info("running integration tests", "package", opts.integrationPath, "run", opts.integrationRun)
		args := append(opts.testArgs(1), "-test.run", opts.integrationRun)
		if err := runBinaries([]string{integrationBin}, args, 1, opts.workDir); err != nil {
			return err
		}
	}
	return nil
}

func collectTestBinaries(root string) ([]string, error) {
	var bins []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".test") {
			bins = append(bins, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(bins)
	return bins, nil
}

func (o options) testArgs(testParallel int) []string {
	var args []string
	if o.verbose {
		args = append(args, "-test.v")
	}
	if o.short {
		args = append(args, "-test.short")
	}
	if o.count > 0 {
		args = append(args, fmt.Sprintf("-test.count=%d", o.count))
	}
	if testParallel > 0 {
		args = append(args, fmt.Sprintf("-test.parallel=%d", testParallel))
	}
	return args
}

// runBinaries runs every binary with at most parallel in flight and reports
// the first failure after all have finished.
func runBinaries(bins []string, args []string, parallel int, workDir string) error {
	var g errgroup.Group
	g.SetLimit(max(parallel, 1))
	for _, b := range bins {
		g.Go(func() error {
			cmd := exec.Command(b, args...)
			cmd.Stdout = os.Stdout
			cmd.Stderr = os.Stderr
			cmd.Env = os.Environ()
			cmd.Dir = binaryDir(b, workDir)
			slog.Info("run", "binary", b, "args", strings.Join(args, " "))
			if err := cmd.Run(); err != nil {
				return fmt.Errorf("%s failed: %w", b, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// binaryDir runs a binary from its package-like directory when one sits next
// to it, else from workDir.
func binaryDir(bin, workDir string) string {
	wd := strings.TrimSuffix(bin, ".test")
	if fi, err := os.Stat(wd); err == nil && fi.IsDir() {
		return wd
	}
	return workDir
}

func sameFile(a, b string) bool {
	ap, _ := filepath.Abs(a)
	bp, _ := filepath.Abs(b)
	return ap == bp
}
