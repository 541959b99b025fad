package corpus

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finbench/internal/domain/benchmark"
)

func longText(word string) string {
	return strings.Repeat(word+" ", 40)
}

func writeFiling(t *testing.T, root string, year int, fileID string, sections map[string]any) {
	t.Helper()
	dir := filepath.Join(root, strconv.Itoa(year))
	require.NoError(t, os.MkdirAll(dir, 0o755))
	data, err := json.Marshal(sections)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, fileID+"_"+strconv.Itoa(year)+".json"), data, 0o644))
}

func newTestCorpus(t *testing.T) (*FileCorpus, string) {
	t.Helper()
	root := t.TempDir()
	writeFiling(t, root, 2019, "0000320193", map[string]any{
		"section_1":  longText("business"),
		"section_1A": longText("risk"),
		"section_7":  longText("mdna"),
		"cik":        320193,
	})
	writeFiling(t, root, 2019, "1018724", map[string]any{
		"section_1":  longText("retail"),
		"section_1A": "too short",
		"section_7":  nil,
	})
	c, err := NewFileCorpus(root, WithDocCacheSize(4))
	require.NoError(t, err)
	return c, root
}

func TestNormalizeCompanyID(t *testing.T) {
	assert.Equal(t, "320193", NormalizeCompanyID(" 0000320193 "))
	assert.Equal(t, "320193", NormalizeCompanyID("320193"))
	assert.Equal(t, "0", NormalizeCompanyID("0000"))
	assert.Equal(t, "", NormalizeCompanyID("   "))
}

func TestListIsSortedAndNormalized(t *testing.T) {
	c, _ := newTestCorpus(t)

	keys, err := c.List(context.Background(), 2019)
	require.NoError(t, err)
	assert.Equal(t, []DocumentKey{{Year: 2019, CompanyID: "1018724"}, {Year: 2019, CompanyID: "320193"}}, keys)

	keys, err = c.List(context.Background(), 2016)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestFetchMatchesPaddedIdentifiers(t *testing.T) {
	c, _ := newTestCorpus(t)

	text, err := c.Fetch(context.Background(), DocumentKey{Year: 2019, CompanyID: "320193"}, SectionRiskFactors)
	require.NoError(t, err)
	assert.Contains(t, text, "risk")

	_, err = c.Fetch(context.Background(), DocumentKey{Year: 2019, CompanyID: "00320193"}, SectionBusiness)
	assert.NoError(t, err)
}

func TestFetchReportsMissingDocumentAndSection(t *testing.T) {
	c, _ := newTestCorpus(t)
	ctx := context.Background()

	_, err := c.Fetch(ctx, DocumentKey{Year: 2019, CompanyID: "42"}, SectionBusiness)
	assert.ErrorIs(t, err, benchmark.ErrDocumentNotFound)

	_, err = c.Fetch(ctx, DocumentKey{Year: 2019, CompanyID: "1018724"}, SectionRiskFactors)
	assert.ErrorIs(t, err, benchmark.ErrSectionMissing, "short section counts as missing")

	_, err = c.Fetch(ctx, DocumentKey{Year: 2019, CompanyID: "1018724"}, SectionMDA)
	assert.ErrorIs(t, err, benchmark.ErrSectionMissing, "null section counts as missing")

	_, err = c.Fetch(ctx, DocumentKey{Year: 2019, CompanyID: "320193"}, SectionMarketRisk)
	assert.ErrorIs(t, err, benchmark.ErrSectionMissing)
}

func TestMissingYearDirectoryIsNotCached(t *testing.T) {
	c, root := newTestCorpus(t)
	ctx := context.Background()

	keys, err := c.List(ctx, 2020)
	require.NoError(t, err)
	require.Empty(t, keys)

	writeFiling(t, root, 2020, "789019", map[string]any{"section_1": longText("software")})

	keys, err = c.List(ctx, 2020)
	require.NoError(t, err)
	assert.Equal(t, []DocumentKey{{Year: 2020, CompanyID: "789019"}}, keys)
}

func TestRefreshPicksUpNewFiles(t *testing.T) {
	c, root := newTestCorpus(t)
	ctx := context.Background()

	keys, err := c.List(ctx, 2019)
	require.NoError(t, err)
	require.Len(t, keys, 2)

	writeFiling(t, root, 2019, "789019", map[string]any{"section_1": longText("software")})
	keys, err = c.List(ctx, 2019)
	require.NoError(t, err)
	assert.Len(t, keys, 2, "listing is cached until refreshed")

	c.Refresh()
	keys, err = c.List(ctx, 2019)
	require.NoError(t, err)
	assert.Len(t, keys, 3)
}

func TestValidateReportsCoverage(t *testing.T) {
	c, root := newTestCorpus(t)
	_, err := c.List(context.Background(), 2019)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, "2019", "55_2019.json"), []byte("{broken"), 0o644))

	report, err := c.Validate(context.Background(), []int{2019, 2018})
	require.NoError(t, err)

	assert.False(t, report.OK())
	assert.Equal(t, 3, report.TotalDocuments)
	require.Len(t, report.Years, 2)
	assert.Equal(t, 2018, report.Years[0].Year)
	assert.Equal(t, 0, report.Years[0].Documents)

	y2019 := report.Years[1]
	assert.Equal(t, []string{"55_2019"}, y2019.Unreadable)
	assert.Equal(t, 1, y2019.MissingSections[SectionRiskFactors])
	assert.Equal(t, 1, y2019.MissingSections[SectionMDA])
	assert.Equal(t, 0, y2019.MissingSections[SectionBusiness])
	assert.Contains(t, report.Errors, "no filings for 2018")
}
