// Package statement_text turns the visual lines of a card statement (as
// extracted from a PDF) into transaction candidates.
package statement_text

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/aqlanhadi/fatura/extractor/bank"
	"github.com/aqlanhadi/fatura/extractor/common"
	"github.com/aqlanhadi/fatura/reference"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	defaultMinDescriptionLength = 4
	defaultLookahead            = 2
	categoryWindow              = 3
	cityWindow                  = 2
	minCityLength               = 4

	defaultFullDatePattern  = `\b(\d{1,2})/(\d{1,2})/(\d{4})\b`
	defaultShortDatePattern = `\b(\d{1,2})/(\d{1,2})\b`
	defaultAmountPattern    = `(?:^|\s)((?:-\s?)?(?:R\$\s?)?-?\s?(?:\d{1,3}(?:\.\d{3})+|\d+),\d{2}-?)\s*$`
)

type config struct {
	FullDate             *regexp.Regexp
	ShortDate            *regexp.Regexp
	Amount               *regexp.Regexp
	MinDescriptionLength int
	Lookahead            int
}

func loadConfig() config {
	cfg := config{
		FullDate:             compileOr(viper.GetString("statement_text.patterns.full_date"), defaultFullDatePattern),
		ShortDate:            compileOr(viper.GetString("statement_text.patterns.short_date"), defaultShortDatePattern),
		Amount:               compileOr(viper.GetString("statement_text.patterns.amount"), defaultAmountPattern),
		MinDescriptionLength: defaultMinDescriptionLength,
		Lookahead:            defaultLookahead,
	}
	if viper.IsSet("statement_text.min_description_length") {
		cfg.MinDescriptionLength = viper.GetInt("statement_text.min_description_length")
	}
	if viper.IsSet("statement_text.lookahead") {
		cfg.Lookahead = max(viper.GetInt("statement_text.lookahead"), 0)
	}
	return cfg
}

func compileOr(pattern, fallback string) *regexp.Regexp {
	if pattern != "" {
		if re, err := regexp.Compile(pattern); err == nil {
			return re
		}
		logrus.WithField("pattern", pattern).Warn("invalid statement_text pattern, using default")
	}
	return regexp.MustCompile(fallback)
}

// Result is the outcome of parsing one statement.
type Result struct {
	Bank       reference.Bank     `json:"bank"`
	Candidates []common.Candidate `json:"candidates"`
	Warnings   []common.Warning   `json:"warnings,omitempty"`
	// Rejected counts dated rows dropped as boilerplate or too short.
	Rejected int `json:"rejected"`
}

// Extract parses statement lines. filename supplies the year for dd/mm dates
// and a bank hint. A nil table means the embedded reference table.
func Extract(lines []string, filename string, table *reference.Table) Result {
	if table == nil {
		table = reference.Default()
	}
	cfg := loadConfig()

	result := Result{
		Bank:       bank.NewDetector(table).Detect(strings.Join(lines, "\n"), filename),
		Candidates: []common.Candidate{},
	}

	hintYear, hintMonth, _ := common.FilenameHint(filename)

	for i, line := range lines {
		iso, dateLoc, ok := findDate(cfg, line, hintYear, hintMonth)
		if !ok {
			continue
		}

		amount, amountLine, amountLoc, found := findAmount(cfg, lines, i)
		if !found {
			result.Warnings = append(result.Warnings, common.Warning{
				Line:    i + 1,
				Message: fmt.Sprintf("date %s without an amount: %q", iso, strings.TrimSpace(line)),
			})
			continue
		}

		description := describe(cfg, lines, i, dateLoc, amountLine, amountLoc)
		if rejected(cfg, table, description) {
			result.Rejected++
			continue
		}

		result.Candidates = append(result.Candidates, common.Candidate{
			Date:        iso,
			Amount:      common.RoundAmount(amount.Abs()),
			Description: description,
			Category:    categorize(table, lines, i, description),
			City:        findCity(cityLines(cfg, lines, i), description),
			Line:        i + 1,
		})
	}

	logrus.WithFields(logrus.Fields{
		"file":       filename,
		"candidates": len(result.Candidates),
		"warnings":   len(result.Warnings),
		"rejected":   result.Rejected,
	}).Debug("parsed statement text")

	return result
}

// findDate returns the ISO date of the line and the byte span of the token.
func findDate(cfg config, line string, hintYear int, hintMonth time.Month) (string, []int, bool) {
	if loc := cfg.FullDate.FindStringIndex(line); loc != nil {
		if iso, ok := common.ToISODate(line[loc[0]:loc[1]], 0); ok {
			return iso, loc, true
		}
	}

	m := cfg.ShortDate.FindStringSubmatchIndex(line)
	if m == nil {
		return "", nil, false
	}
	iso, ok := common.ToISODateHinted(line[m[0]:m[1]], hintYear, hintMonth)
	if !ok {
		return "", nil, false
	}
	return iso, m[:2], true
}

// findAmount searches the dated line and up to Lookahead following lines for a
// trailing amount. A following line that carries its own date closes the
// window.
func findAmount(cfg config, lines []string, start int) (amount decimal.Decimal, lineIdx int, loc []int, ok bool) {
	last := min(start+cfg.Lookahead, len(lines)-1)
	for j := start; j <= last; j++ {
		if j > start && hasDate(cfg, lines[j]) {
			break
		}
		m := cfg.Amount.FindStringSubmatchIndex(lines[j])
		if m == nil {
			continue
		}
		value, parsed := common.ParseMoney(lines[j][m[2]:m[3]])
		if !parsed {
			continue
		}
		return value, j, m[2:4], true
	}
	return decimal.Zero, -1, nil, false
}

func hasDate(cfg config, line string) bool {
	return cfg.FullDate.MatchString(line) || cfg.ShortDate.MatchString(line)
}

// describe strips the date and amount tokens from the dated line, falling
// back to the next undated line.
func describe(cfg config, lines []string, i int, dateLoc []int, amountLine int, amountLoc []int) string {
	spans := [][]int{dateLoc}
	if amountLine == i {
		spans = append(spans, amountLoc)
	}

	desc := cleanDescription(cut(lines[i], spans))
	if desc != "" || i+1 >= len(lines) || hasDate(cfg, lines[i+1]) {
		return desc
	}

	next := lines[i+1]
	if m := cfg.Amount.FindStringSubmatchIndex(next); m != nil {
		next = cut(next, [][]int{m[2:4]})
	}
	return cleanDescription(next)
}

// cut removes non-overlapping byte spans from s.
func cut(s string, spans [][]int) string {
	sort.Slice(spans, func(a, b int) bool { return spans[a][0] > spans[b][0] })
	for _, sp := range spans {
		s = s[:sp[0]] + " " + s[sp[1]:]
	}
	return s
}

func cleanDescription(s string) string {
	s = strings.ReplaceAll(s, "R$", " ")
	s = common.CollapseSpaces(s)
	return strings.Trim(s, " -–|:")
}

func rejected(cfg config, table *reference.Table, description string) bool {
	normalized := common.NormalizeDescription(description)
	if normalized == "" || utf8.RuneCountInString(normalized) < cfg.MinDescriptionLength {
		return true
	}
	return table.IsBoilerplate(description)
}

// categorize prefers the description and falls back to the surrounding lines.
func categorize(table *reference.Table, lines []string, i int, description string) string {
	if slug := table.Categorize(description); slug != "" {
		return slug
	}
	return table.Categorize(strings.Join(window(lines, i, categoryWindow), " "))
}

func window(lines []string, start, size int) []string {
	end := min(start+size, len(lines))
	return lines[start:end]
}

// cityLines is the city window of the row at start. It ends before the next
// dated line, which belongs to another transaction.
func cityLines(cfg config, lines []string, start int) []string {
	w := window(lines, start, cityWindow)
	for j := 1; j < len(w); j++ {
		if hasDate(cfg, w[j]) {
			return w[:j]
		}
	}
	return w
}

// findCity returns the first all-uppercase token of at least four letters in
// the window that is not part of the description.
func findCity(lines []string, description string) string {
	own := make(map[string]bool)
	for _, tok := range strings.Fields(description) {
		own[tok] = true
	}
	for _, line := range lines {
		for _, tok := range strings.Fields(line) {
			tok = strings.Trim(tok, ".,;:-()")
			if own[tok] || !isUpperWord(tok) {
				continue
			}
			return tok
		}
	}
	return ""
}

func isUpperWord(tok string) bool {
	if utf8.RuneCountInString(tok) < minCityLength {
		return false
	}
	for _, r := range tok {
		if !unicode.IsLetter(r) || !unicode.IsUpper(r) {
			return false
		}
	}
	return true
}
