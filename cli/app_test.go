package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.viam.com/test"
)

const (
	testConfig   = "../config/data/navigation.json5"
	testScenario = "../sim/data/district.json5"
)

func runApp(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := NewApp(&out, &errOut).Run(append([]string{"navsim", "--config", testConfig}, args...))
	return out.String(), errOut.String(), err
}

func TestSchemaAction(t *testing.T) {
	out, _, err := runApp(t, "schema")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "movement_modes")
	test.That(t, out, test.ShouldContainSubstring, "max_snap_distance")
}

func TestValidateAction(t *testing.T) {
	out, _, err := runApp(t, "validate", testScenario)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, testConfig+": ok")
	test.That(t, out, test.ShouldContainSubstring, testScenario+": ok")

	bad := filepath.Join(t.TempDir(), "bad.json5")
	test.That(t, os.WriteFile(bad, []byte(`{name: "bad", `), 0o600), test.ShouldBeNil)
	_, _, err = runApp(t, "validate", testScenario, bad)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "bad.json5")

	var out2, errOut bytes.Buffer
	err = NewApp(&out2, &errOut).Run([]string{"navsim", "--config", "does/not/exist.json5", "validate"})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "cannot load config")
}

func TestRunAction(t *testing.T) {
	out, _, err := runApp(t, "run", "--summary", "--scenario", testScenario)
	test.That(t, err, test.ShouldBeNil)
	rendered := strings.ToLower(out)
	test.That(t, rendered, test.ShouldContainSubstring, "district")
	test.That(t, rendered, test.ShouldContainSubstring, "2/4 arrived")
	test.That(t, rendered, test.ShouldContainSubstring, "arrival mean")

	_, _, err = runApp(t, "run")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestLogFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "navsim.log")
	out, errOut, err := runApp(t, "--debug", "--log-file", logFile, "validate")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, ": ok")

	contents, err := os.ReadFile(logFile)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(contents), test.ShouldContainSubstring, "Log level initialized")
	test.That(t, errOut, test.ShouldContainSubstring, "Log level initialized")
}
