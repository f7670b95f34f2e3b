package cmd

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/khanhnv2901/seca-posture/internal/checker"
	"github.com/khanhnv2901/seca-posture/internal/domain/posture"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// stubScanner normalizes like the orchestrator and returns a fixed report.
type stubScanner struct {
	mu    sync.Mutex
	calls []string
	score int
	cms   string
}

func (s *stubScanner) Scan(ctx context.Context, raw string) (*posture.Report, error) {
	s.mu.Lock()
	s.calls = append(s.calls, raw)
	s.mu.Unlock()

	domain, err := checker.NormalizeDomain(raw)
	if err != nil {
		return nil, fmt.Errorf("normalize domain: %w", err)
	}
	return posture.NewReport(domain.String(), s.score,
		[]string{"No DMARC record found"},
		[]string{"Port 443 (HTTPS) open"},
		s.cms, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), 1500*time.Millisecond), nil
}

func (s *stubScanner) called() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// useStubScanner swaps the scanner factory for the duration of the test.
func useStubScanner(t *testing.T, score int, cms string) *stubScanner {
	t.Helper()
	stub := &stubScanner{score: score, cms: cms}
	original := newScanner
	newScanner = func(*AppContext) domainScanner { return stub }
	t.Cleanup(func() { newScanner = original })
	return stub
}

// runCommand executes the root command with args and returns stdout.
// Global flag and config state is restored when the test ends.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	t.Setenv("HOME", t.TempDir())
	originalNoColor := color.NoColor
	color.NoColor = true
	originalCtx := globalAppContext

	t.Cleanup(func() {
		color.NoColor = originalNoColor
		globalAppContext = originalCtx
		viper.Reset()
		cfgFile = ""
		resetFlags(rootCmd)
		*cliConfig = *newCLIConfig()
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace([]string{})
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, child := range cmd.Commands() {
		resetFlags(child)
	}
}
