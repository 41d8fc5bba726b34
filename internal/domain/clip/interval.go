package clip

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// IntervalHeader is the header row of a cut sheet.
var IntervalHeader = []string{"Start_min", "Start_sec", "End_min", "End_sec", "Name"}

// MaxNameLength bounds interval names, which end up in file names.
const MaxNameLength = 120

var safeNameRegex = regexp.MustCompile(`^[\p{L}\p{N} _.-]+$`)

// Interval is one row of a cut sheet: a named segment of a source video.
// PRE: Start() < End()
type Interval struct {
	StartMin int
	StartSec int
	EndMin   int
	EndSec   int
	Name     string
}

// Start returns the segment start offset.
func (iv Interval) Start() time.Duration {
	return time.Duration(iv.StartMin)*time.Minute + time.Duration(iv.StartSec)*time.Second
}

// End returns the segment end offset.
func (iv Interval) End() time.Duration {
	return time.Duration(iv.EndMin)*time.Minute + time.Duration(iv.EndSec)*time.Second
}

// Validate checks the interval's invariants.
// PRE: none
// POST: returns nil if valid, error describing the first violation otherwise
func (iv Interval) Validate() error {
	if err := ValidateName(iv.Name); err != nil {
		return err
	}
	if iv.StartMin < 0 || iv.StartSec < 0 || iv.EndMin < 0 || iv.EndSec < 0 {
		return errors.New("interval offsets cannot be negative")
	}
	if iv.StartSec >= 60 || iv.EndSec >= 60 {
		return errors.New("interval seconds must be below 60")
	}
	if iv.Start() >= iv.End() {
		return errors.New("interval start must be before end")
	}
	return nil
}

// ValidateName checks a name that becomes part of a file name.
func ValidateName(name string) error {
	if name == "" {
		return errors.New("name cannot be empty")
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("name cannot exceed %d characters", MaxNameLength)
	}
	if !safeNameRegex.MatchString(name) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("name %q contains unsupported characters", name)
	}
	return nil
}

// OutputName is the processed clip's base name for a source video.
func (iv Interval) OutputName(sourceBase string) string {
	return sourceBase + "_" + iv.Name
}

// ParseIntervals reads a cut sheet. Columns are matched by header name so
// sheets with reordered columns still parse.
// PRE: r yields CSV with IntervalHeader columns
// POST: returns every row as a validated Interval, or the first error with its line
func ParseIntervals(r io.Reader) ([]Interval, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cut sheet header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, want := range IntervalHeader {
		if _, ok := cols[want]; !ok {
			return nil, fmt.Errorf("cut sheet missing column %q", want)
		}
	}

	var out []Interval
	line := 1
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("cut sheet line %d: %w", line, err)
		}
		if isBlank(rec) {
			continue
		}

		var iv Interval
		ints := []struct {
			col string
			dst *int
		}{
			{"Start_min", &iv.StartMin},
			{"Start_sec", &iv.StartSec},
			{"End_min", &iv.EndMin},
			{"End_sec", &iv.EndSec},
		}
		for _, f := range ints {
			n, err := strconv.Atoi(strings.TrimSpace(rec[cols[f.col]]))
			if err != nil {
				return nil, fmt.Errorf("cut sheet line %d: %s: %w", line, f.col, err)
			}
			*f.dst = n
		}
		iv.Name = strings.TrimSpace(rec[cols["Name"]])

		if err := iv.Validate(); err != nil {
			return nil, fmt.Errorf("cut sheet line %d: %w", line, err)
		}
		out = append(out, iv)
	}
	return out, nil
}

// WriteIntervalHeader writes an empty cut sheet.
func WriteIntervalHeader(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(IntervalHeader); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

func isBlank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
