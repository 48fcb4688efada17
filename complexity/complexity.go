// Package complexity implements the weighted, capped complexity scorer for
// routine bodies (§4.2): a pure function of the body text, with exact
// pinned weights and category thresholds that must be bit-exact across
// implementations.
package complexity

import (
	"regexp"
	"strings"

	"github.com/dbforensic/dbforensic/catalog"
)

// dimension weights and caps, pinned by contract.
const (
	weightSizePerLine       = 0.1
	capSize                 = 30.0
	weightJoinPerJoin       = 3.0
	capJoins                = 30.0
	weightSubqueryPerLevel  = 5.0
	capSubqueries           = 25.0
	weightCursorEach        = 8.0
	capCursors              = 16.0
	weightTempTableEach     = 2.0
	capTempTables           = 12.0
	weightDynamicSQL        = 10.0
	capDynamicSQL           = 10.0
	weightControlFlowEach   = 1.0
	capControlFlow          = 15.0

	thresholdSimpleMax = 20.0
	thresholdMediumMax = 50.0
)

var (
	joinKeywordRe   = regexp.MustCompile(`(?i)\bJOIN\b`)
	cursorRe        = regexp.MustCompile(`(?i)\bDECLARE\b[^;]*?\bCURSOR\b`)
	tempTableRe     = regexp.MustCompile(`#[A-Za-z_][A-Za-z0-9_]*`)
	dynamicSQLRe    = regexp.MustCompile(`(?i)(EXEC\s*\(\s*@|sp_executesql)`)
	controlFlowRe   = regexp.MustCompile(`(?i)\b(IF|WHILE|CASE\s+WHEN)\b`)
	selectKeywordRe = regexp.MustCompile(`(?i)\bSELECT\b`)
)

// Score is the result of scoring a single routine body.
type Score struct {
	Total    float64
	Category catalog.ComplexityCategory

	Size        float64
	Joins       float64
	Subqueries  float64
	Cursors     float64
	TempTables  float64
	DynamicSQL  float64
	ControlFlow float64
}

func cap(v, c float64) float64 {
	if v > c {
		return c
	}
	return v
}

// Compute scores body per the pinned dimension table. An empty body scores 0
// and is Simple (testable property #12).
func Compute(body string) Score {
	if strings.TrimSpace(body) == "" {
		return Score{Total: 0, Category: catalog.ComplexitySimple}
	}

	nonBlankLines := 0
	for _, line := range strings.Split(body, "\n") {
		if strings.TrimSpace(line) != "" {
			nonBlankLines++
		}
	}
	size := cap(float64(nonBlankLines)*weightSizePerLine, capSize)

	joinCount := len(joinKeywordRe.FindAllString(body, -1))
	joins := cap(float64(joinCount)*weightJoinPerJoin, capJoins)

	subDepth := maxSubqueryDepth(body)
	subqueries := cap(float64(subDepth)*weightSubqueryPerLevel, capSubqueries)

	cursorCount := len(cursorRe.FindAllString(body, -1))
	cursors := cap(float64(cursorCount)*weightCursorEach, capCursors)

	tempNames := make(map[string]bool)
	for _, m := range tempTableRe.FindAllString(body, -1) {
		if !strings.HasPrefix(m, "##") {
			tempNames[strings.ToUpper(m)] = true
		}
	}
	tempTables := cap(float64(len(tempNames))*weightTempTableEach, capTempTables)

	dynamicSQL := 0.0
	if dynamicSQLRe.MatchString(body) {
		dynamicSQL = cap(weightDynamicSQL, capDynamicSQL)
	}

	controlFlowCount := len(controlFlowRe.FindAllString(body, -1))
	controlFlow := cap(float64(controlFlowCount)*weightControlFlowEach, capControlFlow)

	total := size + joins + subqueries + cursors + tempTables + dynamicSQL + controlFlow

	return Score{
		Total:       total,
		Category:    categorize(total),
		Size:        size,
		Joins:       joins,
		Subqueries:  subqueries,
		Cursors:     cursors,
		TempTables:  tempTables,
		DynamicSQL:  dynamicSQL,
		ControlFlow: controlFlow,
	}
}

// categorize applies the §4.2 tie-break rule: boundaries round down.
func categorize(score float64) catalog.ComplexityCategory {
	switch {
	case score < thresholdSimpleMax:
		return catalog.ComplexitySimple
	case score <= thresholdMediumMax:
		return catalog.ComplexityMedium
	default:
		return catalog.ComplexityComplex
	}
}

// maxSubqueryDepth finds the maximum nesting depth of '(' immediately
// preceding a SELECT keyword (ignoring whitespace), a cheap proxy for
// subquery nesting that does not require a full parser.
func maxSubqueryDepth(body string) int {
	depth := 0
	maxDepth := 0
	parenStack := make([]bool, 0, 16) // true if this '(' opened a subquery

	i := 0
	for i < len(body) {
		c := body[i]
		switch c {
		case '(':
			isSubquery := false
			j := i + 1
			for j < len(body) && (body[j] == ' ' || body[j] == '\t' || body[j] == '\n' || body[j] == '\r') {
				j++
			}
			if selectKeywordRe.MatchString(body[j:min(j+7, len(body))]) {
				isSubquery = true
			}
			parenStack = append(parenStack, isSubquery)
			if isSubquery {
				depth++
				if depth > maxDepth {
					maxDepth = depth
				}
			}
		case ')':
			if len(parenStack) > 0 {
				top := parenStack[len(parenStack)-1]
				parenStack = parenStack[:len(parenStack)-1]
				if top {
					depth--
				}
			}
		}
		i++
	}
	return maxDepth
}
