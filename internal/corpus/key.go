package corpus

import (
	"fmt"
	"strings"
	"unicode"
)

// DocumentKey identifies one disclosure filing.
type DocumentKey struct {
	Year      int    `json:"year"`
	CompanyID string `json:"company_id"`
}

// NewDocumentKey builds a key with a normalized company id.
func NewDocumentKey(year int, companyID string) DocumentKey {
	return DocumentKey{Year: year, CompanyID: NormalizeCompanyID(companyID)}
}

func (k DocumentKey) String() string {
	return fmt.Sprintf("%s_%d", k.CompanyID, k.Year)
}

// NormalizeCompanyID removes whitespace and leading zeros so that
// "0000320193", " 320193" and "320193" compare equal. An all-zero id
// normalizes to "0".
func NormalizeCompanyID(raw string) string {
	id := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, raw)
	if id == "" {
		return ""
	}
	trimmed := strings.TrimLeft(id, "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}

// Section names a span of a filing.
type Section string

const (
	SectionBusiness    Section = "section_1"
	SectionRiskFactors Section = "section_1A"
	SectionMDA         Section = "section_7"
	SectionMarketRisk  Section = "section_7A"
)

// Sections lists every section a filing may carry.
var Sections = []Section{SectionBusiness, SectionRiskFactors, SectionMDA, SectionMarketRisk}

// Title returns the human readable name of the section.
func (s Section) Title() string {
	switch s {
	case SectionBusiness:
		return "Item 1 (Business)"
	case SectionRiskFactors:
		return "Item 1A (Risk Factors)"
	case SectionMDA:
		return "Item 7 (Management's Discussion and Analysis)"
	case SectionMarketRisk:
		return "Item 7A (Market Risk Disclosures)"
	}
	return string(s)
}
