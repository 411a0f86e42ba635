package support

import (
	"bytes"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/bibwatch/cmd/bibwatch/cmd"
	"github.com/MeKo-Tech/bibwatch/internal/collector"
)

// TestContext holds the state of one scenario.
type TestContext struct {
	TempDir string

	LastCommand string
	LastOutput  string
	LastError   error

	origDir string
	origEnv map[string]*string

	// review scenarios
	collector    *collector.Collector
	reviewSrv    *httptest.Server
	uploadSrv    *httptest.Server
	uploads      *uploadRecorder
	lastStatus   int
	lastBody     []byte
	lastIdentity string
}

// NewTestContext creates a scenario working directory and switches into it,
// with HOME and XDG_CONFIG_HOME pointing inside so no user config leaks in.
func NewTestContext() (*TestContext, error) {
	orig, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	tmp, err := os.MkdirTemp("", "bibwatch-test-*")
	if err != nil {
		return nil, fmt.Errorf("create temp directory: %w", err)
	}
	tc := &TestContext{TempDir: tmp, origDir: orig, origEnv: map[string]*string{}}

	if err := os.Chdir(tmp); err != nil {
		return nil, err
	}
	tc.setEnv("HOME", filepath.Join(tmp, "home"))
	tc.setEnv("XDG_CONFIG_HOME", filepath.Join(tmp, "xdg"))
	return tc, nil
}

func (tc *TestContext) setEnv(key, value string) {
	if _, seen := tc.origEnv[key]; !seen {
		if v, ok := os.LookupEnv(key); ok {
			tc.origEnv[key] = &v
		} else {
			tc.origEnv[key] = nil
		}
	}
	_ = os.Setenv(key, value)
}

// Path resolves name inside the scenario directory.
func (tc *TestContext) Path(name string) string {
	return filepath.Join(tc.TempDir, name)
}

// Cleanup restores the process state and removes scenario files.
func (tc *TestContext) Cleanup() error {
	if tc.reviewSrv != nil {
		tc.reviewSrv.Close()
	}
	if tc.uploadSrv != nil {
		tc.uploadSrv.Close()
	}
	if tc.collector != nil {
		_ = tc.collector.Close()
	}
	for k, v := range tc.origEnv {
		if v == nil {
			_ = os.Unsetenv(k)
		} else {
			_ = os.Setenv(k, *v)
		}
	}
	if err := os.Chdir(tc.origDir); err != nil {
		return err
	}
	return os.RemoveAll(tc.TempDir)
}

// RegisterCommonSteps registers CLI steps.
func (tc *TestContext) RegisterCommonSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the environment variable "([^"]*)" is "([^"]*)"$`, tc.theEnvironmentVariableIs)
	sc.Step(`^I run "bibwatch ?([^"]*)"$`, tc.iRunCommand)
	sc.Step(`^the command should succeed$`, tc.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, tc.theCommandShouldFail)
	sc.Step(`^the output should contain "([^"]*)"$`, tc.theOutputShouldContain)
	sc.Step(`^the output should not contain "([^"]*)"$`, tc.theOutputShouldNotContain)
	sc.Step(`^the error should mention "([^"]*)"$`, tc.theErrorShouldMention)
	sc.Step(`^the file "([^"]*)" should exist$`, tc.theFileShouldExist)
}

func (tc *TestContext) theEnvironmentVariableIs(key, value string) error {
	tc.setEnv(key, value)
	return nil
}

// iRunCommand executes the root command in-process. Arguments are split on
// whitespace; quoting is not supported.
func (tc *TestContext) iRunCommand(args string) error {
	tc.LastCommand = "bibwatch " + args

	root := cmd.GetRootCommand()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(strings.Fields(args))
	defer cmd.ResetFlags()
	tc.LastError = root.Execute()
	tc.LastOutput = buf.String()
	return nil
}

func (tc *TestContext) theCommandShouldSucceed() error {
	if tc.LastError != nil {
		return fmt.Errorf("%q failed: %v\noutput:\n%s", tc.LastCommand, tc.LastError, tc.LastOutput)
	}
	return nil
}

func (tc *TestContext) theCommandShouldFail() error {
	if tc.LastError == nil {
		return fmt.Errorf("%q succeeded unexpectedly\noutput:\n%s", tc.LastCommand, tc.LastOutput)
	}
	return nil
}

func (tc *TestContext) theOutputShouldContain(text string) error {
	if !strings.Contains(tc.LastOutput, text) {
		return fmt.Errorf("output does not contain %q:\n%s", text, tc.LastOutput)
	}
	return nil
}

func (tc *TestContext) theOutputShouldNotContain(text string) error {
	if strings.Contains(tc.LastOutput, text) {
		return fmt.Errorf("output unexpectedly contains %q", text)
	}
	return nil
}

func (tc *TestContext) theErrorShouldMention(text string) error {
	if tc.LastError == nil {
		return fmt.Errorf("expected an error mentioning %q", text)
	}
	if !strings.Contains(tc.LastError.Error(), text) {
		return fmt.Errorf("error %q does not mention %q", tc.LastError, text)
	}
	return nil
}

func (tc *TestContext) theFileShouldExist(name string) error {
	if _, err := os.Stat(tc.Path(name)); err != nil {
		return fmt.Errorf("expected %s: %w", name, err)
	}
	return nil
}
