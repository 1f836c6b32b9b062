package text_test

import (
	"testing"

	"github.com/book-expert/tts-gateway/internal/tts/text"
)

// sanitizerTestCase defines a standard test case for the sanitizer.
type sanitizerTestCase struct {
	name     string
	input    string
	expected string
}

// runSanitizerTests is a helper function to run table-driven tests for a given
// sanitizing function.
func runSanitizerTests(
	t *testing.T,
	tests []sanitizerTestCase,
	sanitizeFunc func(s *text.Sanitizer, input string) string,
) {
	t.Helper()

	sanitizer := text.NewSanitizer()

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			result := sanitizeFunc(sanitizer, testCase.input)
			if result != testCase.expected {
				t.Errorf("Expected %q, got %q", testCase.expected, result)
			}
		})
	}
}

func TestForCommandLine(t *testing.T) {
	t.Parallel()

	tests := []sanitizerTestCase{
		{name: "plain", input: "Hello world", expected: "Hello world"},
		{name: "line breaks", input: "Hello\r\nworld\tagain", expected: "Hello world again"},
		{name: "surrounding space", input: "  padded  ", expected: "padded"},
		{name: "leading dash", input: "-v is not a flag", expected: " -v is not a flag"},
		{name: "smart punctuation", input: "wait… “quoted” — done", expected: `wait... "quoted" - done`},
	}

	runSanitizerTests(t, tests, (*text.Sanitizer).ForCommandLine)
}

func TestForScheme(t *testing.T) {
	t.Parallel()

	tests := []sanitizerTestCase{
		{name: "plain", input: "Hello world", expected: "Hello world"},
		{name: "quotes", input: `say "hi"`, expected: `say \"hi\"`},
		{name: "backslash", input: `a\b`, expected: `a\\b`},
		{name: "smart quotes", input: "“hi”", expected: `\"hi\"`},
		{name: "newlines", input: "one\ntwo", expected: "one two"},
	}

	runSanitizerTests(t, tests, (*text.Sanitizer).ForScheme)
}
