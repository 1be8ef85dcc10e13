package alias

import (
	"strings"

	"github.com/leapstack-labs/legacyscan/pkg/core"
	"github.com/leapstack-labs/legacyscan/pkg/token"
)

type frameKind int

const (
	frameGroup frameKind = iota
	frameFunction
	frameDerived
)

// frame is one level of parentheses.
type frame struct {
	kind     frameKind
	skipFrom bool   // EXTRACT(x FROM y) and friends
	anchor   string // binding key of the first FROM item in this scope

	// derived tables only
	role     core.TableRole
	inList   bool // more FROM items may follow the alias
	isAnchor bool // the alias becomes the enclosing scope's anchor
	isJoined bool // the alias is the right side of a JOIN
}

// cond is one "q1.f1 = q2.f2" join condition.
type cond struct {
	left, right string
	text        string
}

type pendingJoin struct {
	anchor string
	joined string
	conds  []cond
	on     []string
}

// skipFromFuncs take a FROM inside their argument list.
var skipFromFuncs = map[string]bool{
	"extract":   true,
	"substring": true,
	"substr":    true,
	"trim":      true,
	"position":  true,
	"overlay":   true,
}

// stopAliases are identifiers that follow a table name without being its alias.
var stopAliases = map[string]bool{
	"natural": true, "tablesample": true, "window": true, "sort": true,
	"distribute": true, "cluster": true, "pivot": true, "unpivot": true,
	"final": true, "for": true, "version": true, "fetch": true,
	"offset": true, "returning": true, "stored": true, "location": true,
	"row": true, "partitioned": true, "tblproperties": true, "lock": true,
	"default": true, "go": true, "matched": true, "directory": true,
	"local": true, "format": true, "options": true, "inpath": true,
	"apply": true, "anti": true, "semi": true, "minus": true,
	"start": true, "connect": true, "sample": true, "clustered": true,
}

type resolver struct {
	toks   []token.Token
	i      int
	m      *Map
	frames []frame

	joins          []*pendingJoin
	lastJoin       *pendingJoin
	pendingDerived *frame
	mergeUsing     bool
	mergeTarget    string
	deletePending  bool
}

func (r *resolver) top() *frame {
	return &r.frames[len(r.frames)-1]
}

func (r *resolver) at(i int) (token.Token, bool) {
	if i < 0 || i >= len(r.toks) {
		return token.Token{}, false
	}
	return r.toks[i], true
}

func (r *resolver) is(i int, tt token.TokenType) bool {
	t, ok := r.at(i)
	return ok && t.Type == tt
}

// linked reports whether tokens a and b come from the same run of text:
// both from one string literal's contents or both from host code.
func (r *resolver) linked(a, b int) bool {
	ta, ok1 := r.at(a)
	tb, ok2 := r.at(b)
	return ok1 && ok2 && ta.Embedded == tb.Embedded
}

func (r *resolver) run() {
	for r.i = 0; r.i < len(r.toks); r.i++ {
		tok := r.toks[r.i]
		switch tok.Type {
		case token.LPAREN:
			r.openParen()
			continue
		case token.RPAREN:
			r.closeParen()
			continue
		}

		// spark.read.table(...), df.join(...) are method calls, not clauses.
		if r.is(r.i-1, token.DOT) {
			continue
		}

		switch tok.Type {
		case token.WITH, token.RECURSIVE, token.COMMA:
			r.cte()
		case token.FROM:
			if r.top().skipFrom {
				continue
			}
			role := core.RoleRead
			if r.deletePending {
				role = core.RoleWrite
				r.deletePending = false
			}
			r.fromList(role, true, true)
		case token.JOIN:
			r.joinClause()
		case token.INTO:
			if r.intoWrites() {
				r.writeClause()
			}
		case token.OVERWRITE:
			if r.is(r.i-1, token.INSERT) && !r.is(r.i+1, token.INTO) {
				r.writeClause()
			}
		case token.CREATE:
			r.createClause()
		case token.UPDATE:
			r.updateClause()
		case token.MERGE:
			r.mergeUsing = true
		case token.USING:
			r.usingClause()
		case token.DELETE:
			r.deletePending = r.is(r.i+1, token.FROM)
		case token.ON:
			r.onClause()
		}
	}
}

func (r *resolver) openParen() {
	f := frame{kind: frameGroup}
	if r.pendingDerived != nil {
		f = *r.pendingDerived
		r.pendingDerived = nil
	} else if prev, ok := r.at(r.i - 1); ok {
		switch prev.Type {
		case token.IDENT, token.CAST, token.LEFT, token.RIGHT, token.REPLACE:
			f.kind = frameFunction
			f.skipFrom = skipFromFuncs[strings.ToLower(prev.Literal)]
		}
	}
	r.frames = append(r.frames, f)
}

func (r *resolver) closeParen() {
	if len(r.frames) <= 1 {
		return // unbalanced
	}
	f := r.frames[len(r.frames)-1]
	r.frames = r.frames[:len(r.frames)-1]
	if f.kind != frameDerived {
		return
	}

	j := r.i + 1
	if r.is(j, token.AS) {
		j++
	}
	key := ""
	if t, ok := r.at(j); ok && isAlias(t) {
		r.m.bind(t.Literal, t.Literal, BindDerived, t.Pos.Line)
		r.m.refs[t.Pos.Offset] = true
		key = strings.ToLower(t.Literal)
		r.i = j
	}

	if key != "" {
		if f.isAnchor {
			r.top().anchor = key
		}
		if f.isJoined {
			r.startJoin(key)
		}
	}
	if f.inList && r.is(r.i+1, token.COMMA) {
		r.i++
		r.fromList(f.role, true, false)
	}
}

// fromList parses one or more comma-separated FROM items after r.i.
func (r *resolver) fromList(role core.TableRole, list, anchor bool) string {
	first := ""
	for {
		key, derived := r.fromItem(role, list, anchor && first == "", false)
		if first == "" {
			first = key
			if anchor && key != "" {
				r.top().anchor = key
			}
		}
		if derived || !list || !r.is(r.i+1, token.COMMA) {
			return first
		}
		next, ok := r.at(r.i + 2)
		if !ok || !(next.Type == token.IDENT || next.Type == token.LPAREN || next.Type == token.DOLLAR || next.Type == token.LBRACE) {
			return first
		}
		r.i++ // comma
		anchor = false
	}
}

// fromItem parses "name [AS] alias" or "(subquery) alias" after r.i.
// It returns the binding key and whether a derived table is pending.
func (r *resolver) fromItem(role core.TableRole, list, anchor, joined bool) (string, bool) {
	j := r.i + 1
	if !r.linked(r.i, j) {
		return "", false
	}
	if r.is(j, token.LATERAL) {
		j++
	}
	if r.is(j, token.LPAREN) {
		r.pendingDerived = &frame{kind: frameDerived, role: role, inList: list, isAnchor: anchor, isJoined: joined}
		r.i = j - 1
		return "", true
	}

	name, end, ok := r.parseName(j)
	if !ok {
		return "", false
	}
	// Python "from a.b import c" is an import, not a table.
	if r.is(end+1, token.IMPORT) {
		r.i = end + 1
		return "", false
	}

	r.markRefs(j, end)
	r.i = end
	alias := r.parseAlias(end + 1)
	return r.addTable(name, alias, role, r.toks[j].Pos.Line), false
}

// parseAlias reads "[AS] alias" starting at k and advances r.i past it.
func (r *resolver) parseAlias(k int) string {
	j := k
	if r.is(j, token.AS) {
		j++
	}
	t, ok := r.at(j)
	if !ok || !isAlias(t) || !r.linked(k-1, j) {
		return ""
	}
	r.m.refs[t.Pos.Offset] = true
	r.i = j
	return t.Literal
}

func isAlias(t token.Token) bool {
	return t.Type == token.IDENT && !stopAliases[strings.ToLower(t.Literal)]
}

// addTable records a table reference and its bindings, returning the key
// under which it can be looked up.
func (r *resolver) addTable(name, alias string, role core.TableRole, line int) string {
	if !strings.Contains(name, ".") {
		if b, ok := r.m.Lookup(name); ok && b.Kind == BindCTE {
			if alias != "" {
				r.m.bind(alias, b.Target, BindCTE, line)
				return strings.ToLower(alias)
			}
			return strings.ToLower(name)
		}
	}

	r.m.Tables = append(r.m.Tables, core.TableRef{Name: name, Alias: alias, Role: role, Line: line})
	if alias != "" {
		r.m.bind(alias, name, BindTable, line)
		return strings.ToLower(alias)
	}
	r.m.bind(name, name, BindTable, line)
	if base := core.BaseName(name); base != name {
		r.m.bind(base, name, BindTable, line)
	}
	return strings.ToLower(name)
}

func (r *resolver) markRefs(from, to int) {
	for k := from; k <= to; k++ {
		r.m.refs[r.toks[k].Pos.Offset] = true
	}
}

// parseName reads a possibly qualified, possibly templated table name
// starting at j. It returns the name and the index of its last token.
func (r *resolver) parseName(j int) (string, int, bool) {
	var b strings.Builder
	hasIdent := false
	k := j
	expectPart := true

	for k < len(r.toks) && r.linked(j, k) {
		t := r.toks[k]
		if expectPart {
			switch {
			case t.Type == token.IDENT || k > j && r.is(k-1, token.DOT) && t.IsWord():
				b.WriteString(t.Literal)
				hasIdent = true
				k++
			case t.Type == token.NUMBER && k > j && adjacent(r.toks[k-1], t):
				b.WriteString(t.Literal)
				k++
			case t.Type == token.DOLLAR || t.Type == token.LBRACE:
				text, next, ok := r.template(k)
				if !ok {
					return r.finishName(b.String(), j, k-1, hasIdent, expectPart)
				}
				b.WriteString(text)
				k = next
			default:
				return r.finishName(b.String(), j, k-1, hasIdent, expectPart)
			}
			expectPart = false
			continue
		}

		if t.Type == token.DOT {
			b.WriteByte('.')
			expectPart = true
			k++
			continue
		}
		// {schema}_tbl and tbl_{env}: parts glued without a separator
		if adjacent(r.toks[k-1], t) && (t.Type == token.IDENT || t.Type == token.NUMBER || t.Type == token.DOLLAR || t.Type == token.LBRACE) {
			expectPart = true
			continue
		}
		break
	}
	return r.finishName(b.String(), j, k-1, hasIdent, expectPart)
}

func (r *resolver) finishName(name string, start, end int, hasIdent, trailingDot bool) (string, int, bool) {
	if trailingDot && end >= start && r.is(end, token.DOT) {
		name = strings.TrimSuffix(name, ".")
		end--
	}
	if !hasIdent || end < start {
		return "", 0, false
	}
	switch strings.ToLower(name) {
	case "directory", "local":
		return "", 0, false
	}
	return name, end, true
}

// template reads ${x}, $x or {x} at k and returns its text and the next index.
func (r *resolver) template(k int) (string, int, bool) {
	t := r.toks[k]
	if t.Type == token.DOLLAR {
		next, ok := r.at(k + 1)
		if !ok || !adjacent(t, next) {
			return "", 0, false
		}
		if next.Type == token.IDENT {
			return "$" + next.Literal, k + 2, true
		}
		if next.Type != token.LBRACE {
			return "", 0, false
		}
		text, end, ok := r.braces(k + 1)
		return "$" + text, end, ok
	}
	return r.braces(k)
}

// braces reads a balanced {...} group starting at k.
func (r *resolver) braces(k int) (string, int, bool) {
	var b strings.Builder
	depth := 0
	for j := k; j < len(r.toks); j++ {
		t := r.toks[j]
		switch t.Type {
		case token.LBRACE:
			depth++
		case token.RBRACE:
			depth--
		}
		b.WriteString(t.Literal)
		if depth == 0 {
			return b.String(), j + 1, true
		}
	}
	return "", 0, false
}

func adjacent(a, b token.Token) bool {
	return b.Pos.Offset == a.End.Offset+1
}

// cte binds "name AS (" and "name (cols) AS (" after WITH, RECURSIVE or a comma.
func (r *resolver) cte() {
	name, ok := r.at(r.i + 1)
	if !ok || name.Type != token.IDENT {
		return
	}
	k := r.i + 2
	if r.is(k, token.LPAREN) {
		depth := 0
		for ; k < len(r.toks); k++ {
			if r.toks[k].Type == token.LPAREN {
				depth++
			} else if r.toks[k].Type == token.RPAREN {
				depth--
				if depth == 0 {
					break
				}
			}
		}
		k++
	}
	if !r.is(k, token.AS) || !r.is(k+1, token.LPAREN) {
		return
	}
	r.m.bind(name.Literal, name.Literal, BindCTE, name.Pos.Line)
	r.m.refs[name.Pos.Offset] = true
	r.i = k
}

func (r *resolver) joinClause() {
	key, derived := r.fromItem(core.RoleRead, false, false, true)
	if derived || key == "" {
		return
	}
	r.startJoin(key)
}

func (r *resolver) startJoin(key string) {
	pj := &pendingJoin{anchor: r.top().anchor, joined: key}
	r.joins = append(r.joins, pj)
	r.lastJoin = pj
}

// intoWrites reports whether the INTO at r.i names a written table.
// PL/SQL "SELECT a INTO v" does not.
func (r *resolver) intoWrites() bool {
	prev, ok := r.at(r.i - 1)
	if !ok {
		return false
	}
	switch prev.Type {
	case token.INSERT, token.MERGE, token.OVERWRITE, token.STRING, token.REPLACE:
		return true
	}
	return prev.Type == token.IDENT && strings.EqualFold(prev.Literal, "upsert")
}

// writeClause parses "[TABLE] name [alias]" after INTO or OVERWRITE.
func (r *resolver) writeClause() {
	j := r.i + 1
	if r.is(j, token.TABLE) {
		j++
	}
	name, end, ok := r.parseName(j)
	if !ok {
		return
	}
	r.markRefs(j, end)
	r.i = end
	alias := ""
	if r.mergeUsing {
		alias = r.parseAlias(end + 1)
	}
	key := r.addTable(name, alias, core.RoleWrite, r.toks[j].Pos.Line)
	if r.mergeUsing {
		r.mergeTarget = key
	}
}

// createClause parses CREATE [modifiers] TABLE|VIEW [IF NOT EXISTS] name.
func (r *resolver) createClause() {
	j := r.i + 1
	for ; j < len(r.toks) && j <= r.i+6; j++ {
		t := r.toks[j]
		if t.Type == token.TABLE || t.Type == token.VIEW {
			break
		}
		if !t.IsWord() {
			return
		}
	}
	if !r.is(j, token.TABLE) && !r.is(j, token.VIEW) {
		return
	}
	j++
	if r.is(j, token.IF) && r.is(j+1, token.NOT) && r.is(j+2, token.EXISTS) {
		j += 3
	}
	name, end, ok := r.parseName(j)
	if !ok {
		return
	}
	r.markRefs(j, end)
	r.i = end
	r.addTable(name, "", core.RoleWrite, r.toks[j].Pos.Line)
}

// updateClause parses UPDATE name [[AS] alias].
func (r *resolver) updateClause() {
	j := r.i + 1
	name, end, ok := r.parseName(j)
	if !ok {
		return
	}
	r.markRefs(j, end)
	r.i = end
	alias := r.parseAlias(end + 1)
	r.addTable(name, alias, core.RoleWrite, r.toks[j].Pos.Line)
}

// usingClause handles MERGE ... USING source and JOIN ... USING (cols).
func (r *resolver) usingClause() {
	if r.mergeUsing {
		r.mergeUsing = false
		key, derived := r.fromItem(core.RoleRead, false, false, false)
		if !derived && key != "" && r.mergeTarget != "" {
			pj := &pendingJoin{anchor: r.mergeTarget, joined: key}
			r.joins = append(r.joins, pj)
			r.lastJoin = pj
		}
		return
	}
	if r.lastJoin == nil || !r.is(r.i+1, token.LPAREN) {
		return
	}
	var cols []string
	for j := r.i + 2; j < len(r.toks) && r.toks[j].Type != token.RPAREN; j++ {
		if r.toks[j].IsWord() {
			cols = append(cols, r.toks[j].Literal)
		}
	}
	r.lastJoin.on = append(r.lastJoin.on, "USING ("+strings.Join(cols, ", ")+")")
	r.lastJoin = nil
}

// onTerminators end a join condition.
var onTerminators = map[token.TokenType]bool{
	token.JOIN: true, token.LEFT: true, token.RIGHT: true, token.INNER: true,
	token.FULL: true, token.CROSS: true, token.WHERE: true, token.GROUP: true,
	token.ORDER: true, token.HAVING: true, token.LIMIT: true, token.UNION: true,
	token.QUALIFY: true, token.SEMICOLON: true, token.WHEN: true, token.INTERSECT: true,
	token.EXCEPT: true,
}

// onClause collects "q1.f1 = q2.f2" conditions for the last join.
func (r *resolver) onClause() {
	pj := r.lastJoin
	if pj == nil {
		return
	}
	r.lastJoin = nil

	depth := 0
	for j := r.i + 1; j < len(r.toks); j++ {
		t := r.toks[j]
		if depth == 0 && onTerminators[t.Type] {
			return
		}
		switch t.Type {
		case token.LPAREN:
			depth++
			continue
		case token.RPAREN:
			if depth == 0 {
				return
			}
			depth--
			continue
		}

		left, next, ok := r.chain(j)
		if !ok || !r.is(next, token.EQ) {
			continue
		}
		right, after, ok := r.chain(next + 1)
		if !ok {
			continue
		}
		c := cond{
			left:  qualifier(left),
			right: qualifier(right),
			text:  strings.Join(left, ".") + " = " + strings.Join(right, "."),
		}
		pj.conds = append(pj.conds, c)
		pj.on = append(pj.on, c.text)
		j = after - 1
	}
}

// chain reads word(.word)+ at j and returns its parts and the next index.
func (r *resolver) chain(j int) ([]string, int, bool) {
	t, ok := r.at(j)
	if !ok || !t.IsWord() || r.is(j-1, token.DOT) {
		return nil, j, false
	}
	parts := []string{t.Literal}
	k := j + 1
	for r.is(k, token.DOT) {
		next, ok := r.at(k + 1)
		if !ok || !next.IsWord() {
			break
		}
		parts = append(parts, next.Literal)
		k += 2
	}
	if len(parts) < 2 {
		return nil, j, false
	}
	return parts, k, true
}

func qualifier(parts []string) string {
	return strings.Join(parts[:len(parts)-1], ".")
}

// resolveJoins turns pending joins into base-table Join records.
func (r *resolver) resolveJoins() {
	for _, pj := range r.joins {
		var joins []core.Join
		index := make(map[string]int)
		for _, c := range pj.conds {
			lb, lok := r.m.Resolve(c.left)
			rb, rok := r.m.Resolve(c.right)
			if !lok || !rok || !lb.IsTable() || !rb.IsTable() || strings.EqualFold(lb.Target, rb.Target) {
				continue
			}
			key := strings.ToLower(lb.Target) + "\x00" + strings.ToLower(rb.Target)
			if n, ok := index[key]; ok {
				joins[n].On = append(joins[n].On, c.text)
				continue
			}
			index[key] = len(joins)
			joins = append(joins, core.Join{Left: lb.Target, Right: rb.Target, On: []string{c.text}})
		}

		if len(joins) == 0 {
			ab, aok := r.m.Lookup(pj.anchor)
			jb, jok := r.m.Lookup(pj.joined)
			if aok && jok && ab.IsTable() && jb.IsTable() && !strings.EqualFold(ab.Target, jb.Target) {
				joins = append(joins, core.Join{Left: ab.Target, Right: jb.Target, On: pj.on})
			}
		}
		r.m.Joins = append(r.m.Joins, joins...)
	}
}
