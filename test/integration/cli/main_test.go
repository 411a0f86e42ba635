package cli_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/bibwatch/test/integration/cli/support"
)

// InitializeScenario gives every scenario a fresh working directory.
func InitializeScenario(sc *godog.ScenarioContext) {
	tc, err := support.NewTestContext()
	if err != nil {
		panic(fmt.Sprintf("Failed to create test context: %v", err))
	}

	tc.RegisterCommonSteps(sc)
	tc.RegisterStoreSteps(sc)
	tc.RegisterReviewSteps(sc)

	sc.After(func(ctx context.Context, _ *godog.Scenario, _ error) (context.Context, error) {
		if err := tc.Cleanup(); err != nil {
			fmt.Printf("Warning: failed to clean up scenario: %v\n", err)
		}
		return ctx, nil
	})
}

// TestFeatures runs every feature file in features/.
func TestFeatures(t *testing.T) {
	features, err := filepath.Abs("features")
	if err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(features)
	if err != nil {
		t.Fatalf("failed to read features directory: %v", err)
	}

	format := os.Getenv("GODOG_FORMAT")
	if format == "" {
		format = "pretty"
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".feature") {
			continue
		}
		path := filepath.Join(features, e.Name())
		t.Run(e.Name(), func(t *testing.T) {
			suite := godog.TestSuite{
				ScenarioInitializer: InitializeScenario,
				Options: &godog.Options{
					Format:   format,
					Tags:     os.Getenv("GODOG_TAGS"),
					Paths:    []string{path},
					TestingT: t,
					Strict:   true,
				},
			}
			if suite.Run() != 0 {
				t.Fatal("non-zero status returned, failed to run feature tests")
			}
		})
	}
}
