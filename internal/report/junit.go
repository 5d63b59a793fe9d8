// SPDX-License-Identifier: MPL-2.0

// Package report reads the JUnit report the Levo CLI exports into the
// workspace and condenses it into totals for the build log.
package report

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"
)

// ErrMalformedReport is returned when a report is not JUnit XML.
var ErrMalformedReport = errors.New("malformed JUnit report")

type (
	// Summary holds the totals of a JUnit report.
	Summary struct {
		Suites   int
		Tests    int
		Failures int
		Errors   int
		Skipped  int
	}

	xmlSuites struct {
		XMLName  xml.Name
		Tests    *int       `xml:"tests,attr"`
		Failures *int       `xml:"failures,attr"`
		Errors   *int       `xml:"errors,attr"`
		Skipped  *int       `xml:"skipped,attr"`
		Suites   []xmlSuite `xml:"testsuite"`
		Cases    []xmlCase  `xml:"testcase"`
	}

	xmlSuite struct {
		Tests    *int      `xml:"tests,attr"`
		Failures *int      `xml:"failures,attr"`
		Errors   *int      `xml:"errors,attr"`
		Skipped  *int      `xml:"skipped,attr"`
		Cases    []xmlCase `xml:"testcase"`
	}

	xmlCase struct {
		Failure *struct{} `xml:"failure"`
		Error   *struct{} `xml:"error"`
		Skipped *struct{} `xml:"skipped"`
	}
)

// Passed returns the number of tests that neither failed, errored nor were skipped.
func (s Summary) Passed() int {
	return max(s.Tests-s.Failures-s.Errors-s.Skipped, 0)
}

// OK reports whether the report contains no failures or errors.
func (s Summary) OK() bool { return s.Failures == 0 && s.Errors == 0 }

// String renders the totals on one line.
func (s Summary) String() string {
	return fmt.Sprintf("%d tests, %d passed, %d failed, %d errors, %d skipped",
		s.Tests, s.Passed(), s.Failures, s.Errors, s.Skipped)
}

// Parse reads a JUnit document whose root is <testsuites> or a single <testsuite>.
// Totals come from the attributes when present and from the test cases otherwise.
func Parse(r io.Reader) (Summary, error) {
	var doc xmlSuites
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return Summary{}, fmt.Errorf("%w: %w", ErrMalformedReport, err)
	}

	switch doc.XMLName.Local {
	case "testsuite":
		s := suiteSummary(xmlSuite{
			Tests: doc.Tests, Failures: doc.Failures, Errors: doc.Errors, Skipped: doc.Skipped, Cases: doc.Cases,
		})
		s.Suites = 1
		return s, nil
	case "testsuites":
	default:
		return Summary{}, fmt.Errorf("%w: unexpected root element <%s>", ErrMalformedReport, doc.XMLName.Local)
	}

	var sum Summary
	for _, suite := range doc.Suites {
		s := suiteSummary(suite)
		sum.Tests += s.Tests
		sum.Failures += s.Failures
		sum.Errors += s.Errors
		sum.Skipped += s.Skipped
	}
	sum.Suites = len(doc.Suites)

	// Root attributes win when the producer wrote them.
	override(&sum.Tests, doc.Tests)
	override(&sum.Failures, doc.Failures)
	override(&sum.Errors, doc.Errors)
	override(&sum.Skipped, doc.Skipped)
	return sum, nil
}

// ReadFile parses the report at path. found is false when the file does not exist.
func ReadFile(fs afero.Fs, path string) (sum Summary, found bool, err error) {
	f, err := fs.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Summary{}, false, nil
		}
		return Summary{}, false, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	sum, err = Parse(f)
	if err != nil {
		return Summary{}, true, fmt.Errorf("%s: %w", path, err)
	}
	return sum, true, nil
}

func suiteSummary(s xmlSuite) Summary {
	var sum Summary
	for _, c := range s.Cases {
		sum.Tests++
		switch {
		case c.Failure != nil:
			sum.Failures++
		case c.Error != nil:
			sum.Errors++
		case c.Skipped != nil:
			sum.Skipped++
		}
	}
	override(&sum.Tests, s.Tests)
	override(&sum.Failures, s.Failures)
	override(&sum.Errors, s.Errors)
	override(&sum.Skipped, s.Skipped)
	return sum
}

func override(dst, attr *int) {
	if attr != nil {
		*dst = *attr
	}
}
