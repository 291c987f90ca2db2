package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"go.viam.com/test"
)

type BasicStruct struct {
	X int
	y string
}

type User struct {
	Name string
}

type StructWithStruct struct {
	x int
	Y User
}

// assertLogMatches will fuzzy match log lines. It checks that the time parses, but ignores the
// exact time. And it expects a match on the filename, but the exact line number can be wrong.
func assertLogMatches(t *testing.T, actual *bytes.Buffer, expected string) {
	t.Helper()

	output, err := actual.ReadString('\n')
	test.That(t, err, test.ShouldBeNil)

	actualParts := strings.Split(strings.TrimSuffix(output, "\n"), "\t")
	expectedParts := strings.Split(expected, "\t")
	test.That(t, len(actualParts), test.ShouldEqual, len(expectedParts))

	_, err = time.Parse(DefaultTimeFormatStr, actualParts[0])
	test.That(t, err, test.ShouldBeNil)
	// Log level and logger name.
	test.That(t, actualParts[1], test.ShouldEqual, expectedParts[1])
	test.That(t, actualParts[2], test.ShouldEqual, expectedParts[2])

	// Filename:line_number.
	actualFilename, actualLineNumber, found := strings.Cut(actualParts[3], ":")
	test.That(t, found, test.ShouldBeTrue)
	expectedFilename, _, found := strings.Cut(expectedParts[3], ":")
	test.That(t, found, test.ShouldBeTrue)
	test.That(t, actualFilename, test.ShouldEqual, expectedFilename)
	_, err = strconv.Atoi(actualLineNumber)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, actualParts[4], test.ShouldEqual, expectedParts[4])
	if len(actualParts) == 5 {
		return
	}

	expectedMap := make(map[string]any)
	test.That(t, json.Unmarshal([]byte(expectedParts[5]), &expectedMap), test.ShouldBeNil)
	actualMap := make(map[string]any)
	test.That(t, json.Unmarshal([]byte(actualParts[5]), &actualMap), test.ShouldBeNil)
	test.That(t, actualMap, test.ShouldResemble, expectedMap)
}

func newBufferLogger(name string, level Level) (Logger, *bytes.Buffer) {
	notStdout := &bytes.Buffer{}
	return &impl{name, NewAtomicLevelAt(level), true, []Appender{NewWriterAppender(notStdout)}}, notStdout
}

func TestConsoleOutputFormat(t *testing.T) {
	logger, notStdout := newBufferLogger("navcore", DEBUG)

	logger.Info("impl Info log")
	assertLogMatches(t, notStdout,
		`2023-10-30T09:12:09.459Z	INFO	navcore	logging/impl_test.go:75	impl Info log`)

	logger.CDebugf(context.Background(), "impl %s log", "debugf")
	assertLogMatches(t, notStdout,
		`2023-10-30T09:12:09.459Z	DEBUG	navcore	logging/impl_test.go:79	impl debugf log`)

	logger.CDebugw(context.Background(), "impl logw", "key", "value")
	assertLogMatches(t, notStdout,
		`2023-10-30T09:12:09.459Z	DEBUG	navcore	logging/impl_test.go:83	impl logw	{"key":"value"}`)

	logger.Warnw("StructWithStruct", "key", "val", "StructWithStruct", StructWithStruct{1, User{"alice"}})
	assertLogMatches(t, notStdout,
		`2023-10-30T09:12:09.459Z	WARN	navcore	logging/impl_test.go:87	StructWithStruct	{"StructWithStruct":{"Y":{"Name":"alice"}},"key":"val"}`)

	logger.CWarnw(context.Background(), "BasicStruct", "BasicStruct", BasicStruct{1, "alice"})
	assertLogMatches(t, notStdout,
		`2023-10-30T09:12:09.459Z	WARN	navcore	logging/impl_test.go:91	BasicStruct	{"BasicStruct":{"X":1}}`)

	// An unpaired key is reported rather than silently dropped.
	logger.Warnw("unpaired", "lonely")
	assertLogMatches(t, notStdout,
		`2023-10-30T09:12:09.459Z	WARN	navcore	logging/impl_test.go:96	unpaired	{"lonely":"unpaired log key"}`)
}

func TestLevels(t *testing.T) {
	logger, notStdout := newBufferLogger("navcore", WARN)

	logger.Debug("dropped")
	logger.Info("dropped")
	test.That(t, notStdout.Len(), test.ShouldEqual, 0)

	logger.Warnw("kept")
	test.That(t, notStdout.Len(), test.ShouldBeGreaterThan, 0)
	notStdout.Reset()

	// Debug mode on the context bypasses the level for the C-prefixed variants.
	ctx := EnableDebugMode(context.Background(), "")
	test.That(t, IsDebugMode(ctx), test.ShouldBeTrue)
	test.That(t, IsDebugMode(context.Background()), test.ShouldBeFalse)
	logger.CDebugf(ctx, "tick %d", 3)
	assertLogMatches(t, notStdout,
		`2023-10-30T09:12:09.459Z	DEBUG	navcore	logging/impl_test.go:116	tick 3`)

	logger.SetLevel(DEBUG)
	logger.Debug("now kept")
	test.That(t, notStdout.Len(), test.ShouldBeGreaterThan, 0)
}

func TestSublogger(t *testing.T) {
	logger, notStdout := newBufferLogger("navcore", INFO)
	sub := logger.Sublogger("move").Sublogger("42")

	sub.Info("hello")
	assertLogMatches(t, notStdout,
		`2023-10-30T09:12:09.459Z	INFO	navcore.move.42	logging/impl_test.go:132	hello`)

	// Subloggers copy the level at creation; changing the child does not change the parent.
	sub.SetLevel(ERROR)
	sub.Warnw("dropped")
	test.That(t, notStdout.Len(), test.ShouldEqual, 0)
	logger.Info("parent")
	assertLogMatches(t, notStdout,
		`2023-10-30T09:12:09.459Z	INFO	navcore	logging/impl_test.go:139	parent`)

	blank := NewBlankLogger("").Sublogger("x")
	test.That(t, blank.(*impl).name, test.ShouldEqual, "x")
}

func TestObservedTestLogger(t *testing.T) {
	logger, observed := NewObservedTestLogger(t)
	logger.Warnw("stuck", "entity", 7)
	entries := observed.FilterMessage("stuck").All()
	test.That(t, entries, test.ShouldHaveLength, 1)
	test.That(t, entries[0].ContextMap()["entity"], test.ShouldEqual, int64(7))
}

func TestLevelFromString(t *testing.T) {
	for _, tc := range []struct {
		in       string
		expected Level
	}{
		{"debug", DEBUG},
		{"INFO", INFO},
		{"warning", WARN},
		{" error ", ERROR},
	} {
		level, err := LevelFromString(tc.in)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, level, test.ShouldEqual, tc.expected)
	}

	_, err := LevelFromString("loud")
	test.That(t, err, test.ShouldNotBeNil)

	var level Level
	test.That(t, json.Unmarshal([]byte(`"warn"`), &level), test.ShouldBeNil)
	test.That(t, level, test.ShouldEqual, WARN)
}

func TestFileAppender(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "navsim.log")
	appender := NewFileAppender(filename)
	logger := NewBlankLogger("file")
	logger.AddAppender(appender)

	logger.Warnw("order finished", "agent", 3)
	test.That(t, appender.Close(), test.ShouldBeNil)

	contents, err := os.ReadFile(filename)
	test.That(t, err, test.ShouldBeNil)
	line := string(contents)
	test.That(t, line, test.ShouldContainSubstring, "WARN\tfile")
	test.That(t, line, test.ShouldContainSubstring, "order finished")
	test.That(t, line, test.ShouldContainSubstring, `{"agent":3}`)
}
