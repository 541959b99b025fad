package corpus

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// RequiredSections are the sections at least one task needs.
var RequiredSections = []Section{SectionBusiness, SectionRiskFactors, SectionMDA}

// YearReport summarizes the documents of one fiscal year.
type YearReport struct {
	Year            int             `json:"year"`
	Documents       int             `json:"documents"`
	MissingSections map[Section]int `json:"missing_sections,omitempty"`
	Unreadable      []string        `json:"unreadable,omitempty"`
}

// Report is the outcome of a dataset validation pass.
type Report struct {
	Root           string       `json:"root"`
	TotalDocuments int          `json:"total_documents"`
	Years          []YearReport `json:"years"`
	Errors         []string     `json:"errors,omitempty"`
	Warnings       []string     `json:"warnings,omitempty"`
}

// OK reports whether the dataset is usable.
func (r Report) OK() bool {
	return len(r.Errors) == 0
}

// Validate scans every document of years and reports section coverage.
// A year without documents is an error; unreadable files and short or absent
// required sections are warnings. Cached listings and documents are dropped
// first so the report reflects the files on disk now.
func (c *FileCorpus) Validate(ctx context.Context, years []int) (Report, error) {
	c.Refresh()
	report := Report{Root: c.root}
	sorted := append([]int(nil), years...)
	sort.Ints(sorted)

	for _, year := range sorted {
		keys, err := c.List(ctx, year)
		if err != nil {
			return report, err
		}
		yr := YearReport{Year: year, Documents: len(keys), MissingSections: map[Section]int{}}
		if len(keys) == 0 {
			report.Errors = append(report.Errors, fmt.Sprintf("no filings for %d", year))
		}

		for _, key := range keys {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			filing, err := c.Load(ctx, key)
			if err != nil {
				yr.Unreadable = append(yr.Unreadable, key.String())
				continue
			}
			for _, section := range RequiredSections {
				if len(strings.TrimSpace(filing.Sections[section])) < max(c.minSectionChars, 1) {
					yr.MissingSections[section]++
				}
			}
		}

		if len(yr.Unreadable) > 0 {
			report.Warnings = append(report.Warnings, fmt.Sprintf("%d: %d unreadable filings", year, len(yr.Unreadable)))
		}
		for _, section := range RequiredSections {
			if n := yr.MissingSections[section]; n > 0 {
				report.Warnings = append(report.Warnings, fmt.Sprintf("%d: %d filings without %s", year, n, section))
			}
		}
		report.TotalDocuments += yr.Documents
		report.Years = append(report.Years, yr)
	}
	return report, nil
}
