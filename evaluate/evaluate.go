// Package evaluate scores predictions against reference answers.
package evaluate

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Report holds character and line level accuracy counts.
type Report struct {
	Lines        int
	LinesCorrect int
	Chars        int
	CharsCorrect int
}

// Compare scores results against answers line by line. Characters are
// compared by position; a missing result line counts as entirely wrong.
func Compare(results, answers []string) Report {
	var r Report
	for i, ans := range answers {
		got := ""
		if i < len(results) {
			got = results[i]
		}
		r.Add(got, ans)
	}
	return r
}

// Add scores one line.
func (r *Report) Add(result, answer string) {
	want := []rune(answer)
	got := []rune(result)
	r.Lines++
	if result == answer {
		r.LinesCorrect++
	}
	r.Chars += len(want)
	for i := 0; i < len(want) && i < len(got); i++ {
		if got[i] == want[i] {
			r.CharsCorrect++
		}
	}
}

func (r Report) CharAccuracy() float64 {
	if r.Chars == 0 {
		return 0
	}
	return float64(r.CharsCorrect) / float64(r.Chars)
}

func (r Report) LineAccuracy() float64 {
	if r.Lines == 0 {
		return 0
	}
	return float64(r.LinesCorrect) / float64(r.Lines)
}

func (r Report) String() string {
	return fmt.Sprintf("chars %d/%d (%.2f%%), lines %d/%d (%.2f%%)",
		r.CharsCorrect, r.Chars, r.CharAccuracy()*100,
		r.LinesCorrect, r.Lines, r.LineAccuracy()*100)
}

// ReadLines returns the trimmed non-empty lines of r.
func ReadLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 1024*1024)
	scanner.Buffer(buf, 1024*1024)
	for scanner.Scan() {
		if t := strings.TrimSpace(scanner.Text()); t != "" {
			lines = append(lines, t)
		}
	}
	return lines, scanner.Err()
}
