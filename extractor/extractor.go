// Package extractor implements the SQL reference extractor: a lexical,
// state-machine scan (not a full SQL parser) over a routine or view body
// that recovers table references, join pairs, CRUD attribution, called
// routines and anti-pattern hits, grounded on the tokenizer package.
package extractor

import (
	"strings"

	"github.com/dbforensic/dbforensic/catalog"
	"github.com/dbforensic/dbforensic/tokenizer"
)

// Warning records a non-fatal condition encountered while scanning a body,
// such as an ambiguous unqualified identifier.
type Warning struct {
	Message string
}

// Result is the output of scanning a single routine/view body.
type Result struct {
	Referenced     map[string]catalog.FQN // keyed by FQN display string, deduplicated
	Joins          [][2]catalog.FQN       // canonicalized, smaller FQN first
	Crud           map[string]catalog.CrudFlags
	CalledRoutines map[string]catalog.FQN
	AntiPatterns   map[catalog.AntiPattern]bool
	// ColumnRefs records every alias.column (or bare-table.column) reference
	// seen anywhere in the body, keyed by the owning table's FQN display
	// string then lowercase column name; used by the orphan-column detector.
	ColumnRefs map[string]map[string]bool
	Warnings   []Warning
}

func newResult() *Result {
	return &Result{
		Referenced:     make(map[string]catalog.FQN),
		Crud:           make(map[string]catalog.CrudFlags),
		CalledRoutines: make(map[string]catalog.FQN),
		AntiPatterns:   make(map[catalog.AntiPattern]bool),
		ColumnRefs:     make(map[string]map[string]bool),
	}
}

// Resolver resolves an unqualified or schema-qualified name against a known
// catalog, following the same preference order as catalog.Catalog.ResolveFQN.
// Extracted as an interface so the extractor can be tested without building
// a full catalog.
type Resolver interface {
	ResolveFQN(schema, name string) (fqn catalog.FQN, ok bool, ambiguous bool)
}

// state is the scanner's small state machine (§4.1 step 2).
type state int

const (
	stateDefault state = iota
	stateAfterFrom
	stateAfterJoin
	stateAfterUpdate
	stateAfterInto
	stateAfterCall
)

// aliasBinding maps an alias (or bare table name used as its own alias) to the
// table FQN it refers to, for attributing alias.column references.
type aliasBinding struct {
	fqn catalog.FQN
}

// Extract scans body and returns the extracted references. default_schema
// and the resolver are used to resolve unqualified identifiers. Malformed
// input never panics or returns an error: unreadable segments simply
// contribute nothing (§4.1 failure mode).
func Extract(body string, defaultSchema string, resolver Resolver) *Result {
	res := newResult()

	tok := tokenizer.NewSqlTokenizer(body, tokenizer.DialectANSI, tokenizer.TokenizerOptions{
		SkipWhitespace: true,
		SkipComments:   true,
		PreserveCase:   true,
	})

	tokens, _ := tok.AllTokens() // partial results on error are still useful; errors degrade silently per spec

	s := &scanner{
		tokens:    tokens,
		resolver:  resolver,
		defaultSc: defaultSchema,
		aliases:   make(map[string]aliasBinding),
		ctes:      make(map[string]bool),
		result:    res,
	}
	s.run()
	s.pos = 0
	s.scanColumnRefs()
	return res
}

type scanner struct {
	tokens    []tokenizer.Token
	pos       int
	resolver  Resolver
	defaultSc string
	aliases   map[string]aliasBinding
	ctes      map[string]bool
	result    *Result
}

func (s *scanner) peek() tokenizer.Token {
	if s.pos >= len(s.tokens) {
		return tokenizer.Token{Type: tokenizer.EOF}
	}
	return s.tokens[s.pos]
}

func (s *scanner) peekAt(offset int) tokenizer.Token {
	if s.pos+offset >= len(s.tokens) {
		return tokenizer.Token{Type: tokenizer.EOF}
	}
	return s.tokens[s.pos+offset]
}

func (s *scanner) advance() tokenizer.Token {
	t := s.peek()
	if s.pos < len(s.tokens) {
		s.pos++
	}
	return t
}

// upperWordValue returns a token's keyword name in uppercase, regardless of
// whether the tokenizer gave it a dedicated TokenType (FROM, WHERE, ON, ...)
// or left it as a generic WORD (JOIN, EXEC, CURSOR, ...): TokenType.String()
// for the keyword types is already the keyword's own spelling.
func upperWordValue(t tokenizer.Token) string {
	switch t.Type {
	case tokenizer.WORD:
		return strings.ToUpper(t.Value)
	case tokenizer.SELECT, tokenizer.INSERT, tokenizer.UPDATE, tokenizer.DELETE,
		tokenizer.FROM, tokenizer.WHERE, tokenizer.GROUP, tokenizer.HAVING,
		tokenizer.ORDER, tokenizer.BY, tokenizer.UNION, tokenizer.ALL,
		tokenizer.DISTINCT, tokenizer.AS, tokenizer.WITH, tokenizer.AND,
		tokenizer.OR, tokenizer.NOT, tokenizer.IN, tokenizer.EXISTS,
		tokenizer.BETWEEN, tokenizer.LIKE, tokenizer.IS, tokenizer.NULL,
		tokenizer.OVER, tokenizer.PARTITION, tokenizer.ROWS, tokenizer.RANGE,
		tokenizer.UNBOUNDED, tokenizer.PRECEDING, tokenizer.FOLLOWING,
		tokenizer.CURRENT, tokenizer.ROW, tokenizer.ON, tokenizer.CONFLICT,
		tokenizer.DUPLICATE, tokenizer.KEY:
		return t.Type.String()
	default:
		return ""
	}
}

func (s *scanner) run() {
	s.scanCTEs()
	s.pos = 0

	for s.peek().Type != tokenizer.EOF {
		t := s.peek()

		switch upperWordValue(t) {
		case "SELECT":
			s.advance()
			if s.isSelectStar() {
				s.result.AntiPatterns[catalog.AntiPatternSelectStar] = true
			}
		case "FROM":
			s.advance()
			s.consumeTableRefList(catalog.CrudRead)
		case "JOIN", "INNER", "LEFT", "RIGHT", "FULL", "CROSS":
			s.consumeJoinKeyword()
		case "UPDATE":
			s.advance()
			s.consumeTableRef(catalog.CrudUpdate)
		case "INSERT":
			s.advance()
			if upperWordValue(s.peek()) == "INTO" {
				s.advance()
			}
			s.consumeTableRef(catalog.CrudCreate)
		case "DELETE":
			s.advance()
			if upperWordValue(s.peek()) == "FROM" {
				s.advance()
			}
			s.consumeTableRef(catalog.CrudDelete)
		case "MERGE":
			s.advance()
			if upperWordValue(s.peek()) == "INTO" {
				s.advance()
			}
			s.consumeTableRef(catalog.CrudUpdate)
		case "ON":
			s.advance()
			s.consumeJoinPredicate()
		case "EXEC", "EXECUTE":
			s.advance()
			s.consumeCalledRoutine()
		case "CALL":
			s.advance()
			s.consumeCalledRoutine()
		case "DECLARE":
			s.advance()
			s.checkCursorDeclaration()
		case "WITH":
			s.advance() // NOLOCK is lexed as WORD "WITH" then "(" "NOLOCK" ")"
			s.checkNolockHint()
		case "NOLOCK":
			s.advance()
			s.result.AntiPatterns[catalog.AntiPatternNolock] = true
		case "SP_EXECUTESQL":
			s.advance()
			s.result.AntiPatterns[catalog.AntiPatternDynamicSQL] = true
		default:
			s.checkGlobalTempLiteral(t)
			s.advance()
		}
	}
}

// scanCTEs does a lightweight pre-pass collecting WITH name AS ( ... ) CTE
// names so they're excluded from referenced tables (§4.1 step 2).
func (s *scanner) scanCTEs() {
	for i := 0; i < len(s.tokens); i++ {
		if upperWordValue(s.tokens[i]) == "WITH" {
			j := i + 1
			for j < len(s.tokens) {
				if s.tokens[j].Type != tokenizer.WORD {
					break
				}
				name := s.tokens[j].Value
				j++
				if upperWordValue(s.peekTok(j)) == "AS" {
					j++
				}
				if s.peekTok(j).Type == tokenizer.OPENED_PARENS {
					depth := 0
					for j < len(s.tokens) {
						if s.tokens[j].Type == tokenizer.OPENED_PARENS {
							depth++
						} else if s.tokens[j].Type == tokenizer.CLOSED_PARENS {
							depth--
							if depth == 0 {
								j++
								break
							}
						}
						j++
					}
				}
				s.ctes[strings.ToUpper(name)] = true
				if s.peekTok(j).Type == tokenizer.COMMA {
					j++
					continue
				}
				break
			}
		}
	}
}

// scanColumnRefs runs after aliases are fully bound, scanning the whole token
// stream a second time for alias.column pairs and attributing each to its
// owning table (§4.5 OrphanColumn: "including via alias").
func (s *scanner) scanColumnRefs() {
	for i := 0; i < len(s.tokens); i++ {
		t := s.tokens[i]
		if t.Type != tokenizer.WORD && t.Type != tokenizer.IDENT {
			continue
		}
		if i+2 >= len(s.tokens) {
			continue
		}
		if s.tokens[i+1].Type != tokenizer.DOT {
			continue
		}
		colTok := s.tokens[i+2]
		if colTok.Type != tokenizer.WORD && colTok.Type != tokenizer.IDENT {
			continue
		}
		if colTok.Value == "*" {
			continue
		}
		fqn, ok := s.lookupAlias(t.Value)
		if !ok {
			continue
		}
		if s.result.ColumnRefs[fqn.String()] == nil {
			s.result.ColumnRefs[fqn.String()] = make(map[string]bool)
		}
		s.result.ColumnRefs[fqn.String()][strings.ToLower(colTok.Value)] = true
	}
}

func (s *scanner) peekTok(i int) tokenizer.Token {
	if i >= len(s.tokens) {
		return tokenizer.Token{Type: tokenizer.EOF}
	}
	return s.tokens[i]
}

// isSelectStar reports whether the token immediately following the just
// consumed SELECT is a bare '*' (not e.g. COUNT(*)).
func (s *scanner) isSelectStar() bool {
	return s.peek().Type == tokenizer.MULTIPLY
}

func (s *scanner) consumeJoinKeyword() {
	// Consume INNER/LEFT/RIGHT/FULL/CROSS (optional) then JOIN.
	for {
		w := upperWordValue(s.peek())
		if w == "INNER" || w == "LEFT" || w == "RIGHT" || w == "FULL" || w == "CROSS" || w == "OUTER" {
			s.advance()
			continue
		}
		break
	}
	if upperWordValue(s.peek()) == "JOIN" {
		s.advance()
		s.consumeTableRefList(catalog.CrudRead)
	}
}

// readQualifiedName reads an optional `schema.name` or bare `name`, stripping
// quoting (already done by the tokenizer for IDENT tokens).
func (s *scanner) readQualifiedName() (schema, name string, ok bool) {
	first := s.peek()
	if first.Type != tokenizer.WORD && first.Type != tokenizer.IDENT {
		return "", "", false
	}
	s.advance()
	if s.peek().Type == tokenizer.DOT {
		s.advance()
		second := s.peek()
		if second.Type != tokenizer.WORD && second.Type != tokenizer.IDENT {
			return "", "", false
		}
		s.advance()
		return first.Value, second.Value, true
	}
	return "", first.Value, true
}

// isTempOrVariable reports whether name denotes a local temp table (#name),
// a global temp table (##name) or a table variable (@name) per §4.1 step 4.
func isTempOrVariable(name string) bool {
	return strings.HasPrefix(name, "#") || strings.HasPrefix(name, "@")
}

func (s *scanner) consumeTableRef(crud catalog.CrudFlags) {
	schema, name, ok := s.readQualifiedName()
	if !ok {
		return
	}
	if isTempOrVariable(name) {
		if strings.HasPrefix(name, "##") {
			s.result.AntiPatterns[catalog.AntiPatternGlobalTemp] = true
		}
		return
	}
	if schema == "" && s.ctes[strings.ToUpper(name)] {
		return
	}

	fqn, resolved := s.bindAliasIfPresent(schema, name)
	s.recordReference(fqn, resolved, crud)
}

// consumeTableRefList handles one or more comma-separated table references
// after FROM, e.g. "FROM a, b c".
func (s *scanner) consumeTableRefList(crud catalog.CrudFlags) {
	for {
		s.consumeTableRef(crud)
		if s.peek().Type == tokenizer.COMMA {
			s.advance()
			continue
		}
		break
	}
}

// bindAliasIfPresent reads an optional `AS alias` or bare alias token
// following a table reference and records it for later alias.column
// attribution. It does not consume keywords (JOIN/ON/WHERE/etc). It returns
// the table's resolution result so the caller does not resolve it again.
func (s *scanner) bindAliasIfPresent(schema, name string) (catalog.FQN, bool) {
	resolved, ok := s.resolve(schema, name)
	fqn := resolved
	if !ok {
		fqn = catalog.NewFQN(schema, name)
	}

	alias := name
	if upperWordValue(s.peek()) == "AS" {
		s.advance()
		if s.peek().Type == tokenizer.WORD || s.peek().Type == tokenizer.IDENT {
			alias = s.peek().Value
			s.advance()
		}
	} else if s.peek().Type == tokenizer.WORD && !isReservedFollower(upperWordValue(s.peek())) {
		alias = s.peek().Value
		s.advance()
	}

	s.aliases[strings.ToUpper(alias)] = aliasBinding{fqn: fqn}
	s.aliases[strings.ToUpper(name)] = aliasBinding{fqn: fqn}
	return resolved, ok
}

func isReservedFollower(word string) bool {
	switch word {
	case "JOIN", "INNER", "LEFT", "RIGHT", "FULL", "CROSS", "ON", "WHERE",
		"GROUP", "ORDER", "HAVING", "UNION", "SET", "VALUES":
		return true
	}
	return false
}

func (s *scanner) resolve(schema, name string) (catalog.FQN, bool) {
	if s.resolver == nil {
		return catalog.FQN{}, false
	}
	fqn, ok, ambiguous := s.resolver.ResolveFQN(schema, name)
	if ambiguous {
		s.result.Warnings = append(s.result.Warnings, Warning{
			Message: "ambiguous table reference: " + name,
		})
		return catalog.FQN{}, false
	}
	return fqn, ok
}

func (s *scanner) recordReference(fqn catalog.FQN, ok bool, crud catalog.CrudFlags) {
	if !ok {
		// Unresolved references never appear in `referenced` per §4.1 step 7.
		return
	}
	s.result.Referenced[fqn.String()] = fqn
	s.result.Crud[fqn.String()] |= crud
}

// consumeJoinPredicate scans a single ON predicate for alias1.col1 = alias2.col2
// equalities, adding canonicalized join pairs (§4.1 step 3). Non-equality
// predicates, and predicates mixing literals, are ignored.
func (s *scanner) consumeJoinPredicate() {
	for {
		t := s.peek()
		if t.Type == tokenizer.EOF {
			return
		}
		if w := upperWordValue(t); w == "WHERE" || w == "GROUP" || w == "ORDER" ||
			w == "JOIN" || w == "INNER" || w == "LEFT" || w == "RIGHT" || w == "FULL" || w == "CROSS" {
			return
		}

		leftAlias, leftCol, leftOK := s.readAliasDotColumn()
		if !leftOK {
			s.advance()
			continue
		}
		if s.peek().Type != tokenizer.EQUAL {
			continue
		}
		s.advance()
		rightAlias, rightCol, rightOK := s.readAliasDotColumn()
		if !rightOK {
			continue
		}

		leftFQN, leftHas := s.lookupAlias(leftAlias)
		rightFQN, rightHas := s.lookupAlias(rightAlias)
		if leftHas && rightHas && !leftFQN.Equal(rightFQN) {
			s.addJoin(leftFQN, rightFQN)
		}
		_ = leftCol
		_ = rightCol

		if upperWordValue(s.peek()) != "AND" {
			return
		}
		s.advance()
	}
}

func (s *scanner) readAliasDotColumn() (alias, column string, ok bool) {
	first := s.peek()
	if first.Type != tokenizer.WORD && first.Type != tokenizer.IDENT {
		return "", "", false
	}
	s.advance()
	if s.peek().Type != tokenizer.DOT {
		return "", "", false
	}
	s.advance()
	second := s.peek()
	if second.Type != tokenizer.WORD && second.Type != tokenizer.IDENT {
		return "", "", false
	}
	s.advance()
	return first.Value, second.Value, true
}

func (s *scanner) lookupAlias(alias string) (catalog.FQN, bool) {
	b, ok := s.aliases[strings.ToUpper(alias)]
	if !ok || b.fqn == (catalog.FQN{}) {
		return catalog.FQN{}, false
	}
	return b.fqn, true
}

// addJoin records a canonicalized join pair: smaller FQN first per §4.1 step 3.
func (s *scanner) addJoin(a, b catalog.FQN) {
	if a.Compare(b) > 0 {
		a, b = b, a
	}
	for _, existing := range s.result.Joins {
		if existing[0].Equal(a) && existing[1].Equal(b) {
			return
		}
	}
	s.result.Joins = append(s.result.Joins, [2]catalog.FQN{a, b})
}

func (s *scanner) consumeCalledRoutine() {
	schema, name, ok := s.readQualifiedName()
	if !ok {
		// EXEC(@sql) / EXEC (@sql): dynamic SQL with no routine name at all.
		if s.peek().Type == tokenizer.OPENED_PARENS && s.peekContainsVariable() {
			s.result.AntiPatterns[catalog.AntiPatternDynamicSQL] = true
		}
		return
	}
	fqn, resolvedOK := s.resolve(schema, name)
	if !resolvedOK {
		fqn = catalog.NewFQN(schema, name)
	}
	s.result.CalledRoutines[fqn.String()] = fqn

	if s.peek().Type == tokenizer.OPENED_PARENS && s.peekContainsVariable() {
		s.result.AntiPatterns[catalog.AntiPatternDynamicSQL] = true
	}
}

// peekContainsVariable reports whether the immediately following parenthesized
// argument list contains a bound variable, which combined with a preceding
// EXEC/sp_executesql is the dynamic-SQL anti-pattern (EXEC(@var)).
func (s *scanner) peekContainsVariable() bool {
	if s.peek().Type != tokenizer.OPENED_PARENS {
		return false
	}
	depth := 0
	for i := s.pos; i < len(s.tokens); i++ {
		t := s.tokens[i]
		if t.Type == tokenizer.OPENED_PARENS {
			depth++
		} else if t.Type == tokenizer.CLOSED_PARENS {
			depth--
			if depth == 0 {
				return false
			}
		} else if t.Type == tokenizer.WORD && strings.HasPrefix(t.Value, "@") {
			return true
		}
	}
	return false
}

func (s *scanner) checkCursorDeclaration() {
	if s.peek().Type == tokenizer.WORD {
		s.advance() // cursor variable name
	}
	if upperWordValue(s.peek()) == "CURSOR" {
		s.result.AntiPatterns[catalog.AntiPatternCursor] = true
	}
}

func (s *scanner) checkNolockHint() {
	if s.peek().Type != tokenizer.OPENED_PARENS {
		return
	}
	depth := 0
	for i := s.pos; i < len(s.tokens); i++ {
		t := s.tokens[i]
		if t.Type == tokenizer.OPENED_PARENS {
			depth++
		} else if t.Type == tokenizer.CLOSED_PARENS {
			depth--
			if depth == 0 {
				break
			}
		} else if upperWordValue(t) == "NOLOCK" {
			s.result.AntiPatterns[catalog.AntiPatternNolock] = true
		}
	}
}

func (s *scanner) checkGlobalTempLiteral(t tokenizer.Token) {
	if t.Type == tokenizer.WORD && strings.HasPrefix(t.Value, "##") {
		s.result.AntiPatterns[catalog.AntiPatternGlobalTemp] = true
	}
}
