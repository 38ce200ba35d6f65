package transform

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/graphqlite/graphqlite/pkg/cypher/ast"
	"github.com/graphqlite/graphqlite/pkg/errs"
)

// lowerExpr renders e as SQL text plus an ordered parameter vector, substituting every literal and
// parameter reference as a host placeholder rather than interpolating it into the text (spec
// §4.3(3)(4): values never appear as literals in generated SQL, only as bound parameters).
func (c *compiler) lowerExpr(e ast.Expr) (string, []any, error) {
	switch v := e.(type) {
	case *ast.Literal:
		return c.lowerLiteral(v)
	case *ast.Ident:
		entry, ok := c.scope.Resolve(v.Name)
		if !ok {
			return "", nil, errs.At(errs.Transform, errs.Pos{Line: v.Pos.Line, Col: v.Pos.Column}, "unbound variable %q", v.Name)
		}
		return entry.Alias, nil, nil
	case *ast.Parameter:
		val, ok := c.params[v.Name]
		if !ok {
			return "", nil, errs.At(errs.Transform, errs.Pos{Line: v.Pos.Line, Col: v.Pos.Column}, "undeclared parameter $%s", v.Name)
		}
		return "?", []any{val}, nil
	case *ast.PropertyAccess:
		return c.lowerPropertyAccess(v)
	case *ast.IndexAccess:
		return c.lowerIndexAccess(v)
	case *ast.BinaryOp:
		return c.lowerBinaryOp(v)
	case *ast.UnaryOp:
		return c.lowerUnaryOp(v)
	case *ast.IsNullCheck:
		return c.lowerIsNullCheck(v)
	case *ast.FuncCall:
		return c.lowerFuncCall(v)
	case *ast.CaseExpr:
		return c.lowerCaseExpr(v)
	case *ast.ListLiteral:
		return c.lowerListLiteral(v)
	case *ast.MapLiteral:
		return c.lowerMapLiteral(v)
	case *ast.ListComprehension:
		return c.lowerListComprehension(v)
	case *ast.Reduce:
		return c.lowerReduce(v)
	case *ast.PatternPredicate:
		return c.lowerPatternPredicate(v)
	default:
		return "", nil, errs.New(errs.Transform, "unsupported expression type %T", e)
	}
}

func (c *compiler) lowerLiteral(l *ast.Literal) (string, []any, error) {
	switch l.Kind {
	case ast.LitNull:
		return "NULL", nil, nil
	case ast.LitBool:
		return "?", []any{l.Bool}, nil
	case ast.LitInteger:
		return "?", []any{l.Int}, nil
	case ast.LitFloat:
		return "?", []any{l.Flt}, nil
	case ast.LitString:
		return "?", []any{l.Str}, nil
	default:
		return "", nil, errs.New(errs.Transform, "unsupported literal kind %d", l.Kind)
	}
}

// lowerPropertyAccess lowers `target.key`. When target is a bound node/edge variable, this is a
// correlated lookup against the typed property tables (spec §4.3(4)); any other target (e.g. a map
// expression) is rejected, since GraphQLite has no general record type to index into.
func (c *compiler) lowerPropertyAccess(e *ast.PropertyAccess) (string, []any, error) {
	id, ok := e.Target.(*ast.Ident)
	if !ok {
		return "", nil, errs.At(errs.Transform, errs.Pos{Line: e.Pos.Line, Col: e.Pos.Column}, "property access target must be a bound variable")
	}
	entry, ok := c.scope.Resolve(id.Name)
	if !ok {
		return "", nil, errs.At(errs.Transform, errs.Pos{Line: id.Pos.Line, Col: id.Pos.Column}, "unbound variable %q", id.Name)
	}
	if entry.Kind == KindScalar {
		return "", nil, errs.At(errs.Transform, errs.Pos{Line: e.Pos.Line, Col: e.Pos.Column}, "%q is not a node or relationship", id.Name)
	}
	sql, params := c.propertyValueSQL(c.schemaPrefix, entry.Alias, entry.Kind, e.Key)
	return sql, params, nil
}

func (c *compiler) lowerIndexAccess(e *ast.IndexAccess) (string, []any, error) {
	targetSQL, targetParams, err := c.lowerExpr(e.Target)
	if err != nil {
		return "", nil, err
	}
	idxSQL, idxParams, err := c.lowerExpr(e.Index)
	if err != nil {
		return "", nil, err
	}
	sql := fmt.Sprintf("json_extract(%s, '$[' || (%s) || ']')", targetSQL, idxSQL)
	params := append(append([]any{}, targetParams...), idxParams...)
	return sql, params, nil
}

var binaryOpSQL = map[string]string{
	"+": "+", "-": "-", "*": "*", "/": "/", "%": "%", "^": "POWER",
	"=": "=", "<>": "!=", "<": "<", "<=": "<=", ">": ">", ">=": ">=",
	"AND": "AND", "OR": "OR", "XOR": "XOR",
}

func (c *compiler) lowerBinaryOp(e *ast.BinaryOp) (string, []any, error) {
	op := strings.ToUpper(e.Op)
	switch op {
	case "IN":
		return c.lowerInOp(e)
	case "STARTS WITH":
		return c.lowerLikeOp(e, "", "%")
	case "ENDS WITH":
		return c.lowerLikeOp(e, "%", "")
	case "CONTAINS":
		return c.lowerLikeOp(e, "%", "%")
	case "=~":
		return c.lowerRegexOp(e)
	case "^":
		leftSQL, leftParams, err := c.lowerExpr(e.Left)
		if err != nil {
			return "", nil, err
		}
		rightSQL, rightParams, err := c.lowerExpr(e.Right)
		if err != nil {
			return "", nil, err
		}
		sql := fmt.Sprintf("POWER(%s, %s)", leftSQL, rightSQL)
		return sql, append(append([]any{}, leftParams...), rightParams...), nil
	}

	sqlOp, ok := binaryOpSQL[op]
	if !ok {
		return "", nil, errs.At(errs.Transform, errs.Pos{Line: e.Pos.Line, Col: e.Pos.Column}, "unsupported operator %q", e.Op)
	}
	leftSQL, leftParams, err := c.lowerComparisonOperand(e.Left, op, e.Right)
	if err != nil {
		return "", nil, err
	}
	rightSQL, rightParams, err := c.lowerComparisonOperand(e.Right, op, e.Left)
	if err != nil {
		return "", nil, err
	}
	sql := fmt.Sprintf("(%s %s %s)", leftSQL, sqlOp, rightSQL)
	params := append(append([]any{}, leftParams...), rightParams...)
	return sql, params, nil
}

// lowerComparisonOperand lowers one side of a comparison (spec §4.3(4)). When this side is a
// node/edge property access and the other side's scalar type is statically known (a literal or an
// already-bound parameter), it narrows the lookup to the single matching typed table instead of
// coalescing across all four.
func (c *compiler) lowerComparisonOperand(operand ast.Expr, op string, other ast.Expr) (string, []any, error) {
	if !isComparisonOp(op) {
		return c.lowerExpr(operand)
	}
	prop, ok := operand.(*ast.PropertyAccess)
	if !ok {
		return c.lowerExpr(operand)
	}
	id, ok := prop.Target.(*ast.Ident)
	if !ok {
		return c.lowerExpr(operand)
	}
	entry, bound := c.scope.Resolve(id.Name)
	if !bound || entry.Kind == KindScalar {
		return c.lowerExpr(operand)
	}
	scalarKind, known := c.scalarKindOfValue(other)
	if !known {
		return c.lowerExpr(operand)
	}
	sql, params := c.propertyValueSQLTyped(c.schemaPrefix, entry.Alias, entry.Kind, prop.Key, scalarKind)
	return sql, params, nil
}

func isComparisonOp(op string) bool {
	switch op {
	case "=", "<>", "<", "<=", ">", ">=":
		return true
	default:
		return false
	}
}

// lowerInOp lowers `expr IN list_expr`. A literal list lowers to a plain `IN (...)`; a list-valued
// parameter lowers to a membership test against the host's json_each table function over the
// parameter's JSON encoding, per spec §4.3(4). Any other right-hand side is rejected.
func (c *compiler) lowerInOp(e *ast.BinaryOp) (string, []any, error) {
	leftSQL, leftParams, err := c.lowerExpr(e.Left)
	if err != nil {
		return "", nil, err
	}
	if list, ok := e.Right.(*ast.ListLiteral); ok {
		var parts []string
		var params []any
		params = append(params, leftParams...)
		for _, el := range list.Elements {
			sql, p, err := c.lowerExpr(el)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, sql)
			params = append(params, p...)
		}
		return fmt.Sprintf("(%s IN (%s))", leftSQL, strings.Join(parts, ", ")), params, nil
	}

	if param, ok := e.Right.(*ast.Parameter); ok {
		val, bound := c.params[param.Name]
		if !bound {
			return "", nil, errs.At(errs.Transform, errs.Pos{Line: param.Pos.Line, Col: param.Pos.Column}, "undeclared parameter $%s", param.Name)
		}
		encoded, err := json.Marshal(val)
		if err != nil {
			return "", nil, errs.Wrap(errs.Transform, err, "encoding list parameter $%s", param.Name)
		}
		sql := fmt.Sprintf("(%s IN (SELECT value FROM json_each(?)))", leftSQL)
		params := append(append([]any{}, leftParams...), string(encoded))
		return sql, params, nil
	}

	return "", nil, errs.At(errs.Transform, errs.Pos{Line: e.Pos.Line, Col: e.Pos.Column}, "IN requires a list literal or list-valued parameter")
}

func (c *compiler) lowerLikeOp(e *ast.BinaryOp, prefixWild, suffixWild string) (string, []any, error) {
	leftSQL, leftParams, err := c.lowerExpr(e.Left)
	if err != nil {
		return "", nil, err
	}
	rightSQL, rightParams, err := c.lowerExpr(e.Right)
	if err != nil {
		return "", nil, err
	}
	sql := fmt.Sprintf("(%s LIKE (? || %s || ?))", leftSQL, rightSQL)
	params := append(append([]any{}, leftParams...), prefixWild)
	params = append(params, rightParams...)
	params = append(params, suffixWild)
	return sql, params, nil
}

// lowerRegexOp lowers `expr =~ pattern` to the regexp(pattern, value) scalar function registered
// with the host (pkg/bindings), since SQLite has no native regex support (spec §4.2's `=~` operator).
func (c *compiler) lowerRegexOp(e *ast.BinaryOp) (string, []any, error) {
	leftSQL, leftParams, err := c.lowerExpr(e.Left)
	if err != nil {
		return "", nil, err
	}
	rightSQL, rightParams, err := c.lowerExpr(e.Right)
	if err != nil {
		return "", nil, err
	}
	sql := fmt.Sprintf("regexp(%s, %s)", rightSQL, leftSQL)
	params := append(append([]any{}, rightParams...), leftParams...)
	return sql, params, nil
}

func (c *compiler) lowerUnaryOp(e *ast.UnaryOp) (string, []any, error) {
	operandSQL, params, err := c.lowerExpr(e.Operand)
	if err != nil {
		return "", nil, err
	}
	switch strings.ToUpper(e.Op) {
	case "-":
		return fmt.Sprintf("(-%s)", operandSQL), params, nil
	case "NOT":
		return fmt.Sprintf("(NOT %s)", operandSQL), params, nil
	case "+":
		return operandSQL, params, nil
	default:
		return "", nil, errs.At(errs.Transform, errs.Pos{Line: e.Pos.Line, Col: e.Pos.Column}, "unsupported unary operator %q", e.Op)
	}
}

func (c *compiler) lowerIsNullCheck(e *ast.IsNullCheck) (string, []any, error) {
	if prop, ok := e.Operand.(*ast.PropertyAccess); ok {
		id, ok := prop.Target.(*ast.Ident)
		if ok {
			entry, bound := c.scope.Resolve(id.Name)
			if bound {
				sql, params := c.propertyExistsSQL(c.schemaPrefix, entry.Alias, entry.Kind, prop.Key)
				if e.Negate {
					return sql, params, nil
				}
				return fmt.Sprintf("(NOT %s)", sql), params, nil
			}
		}
	}
	operandSQL, params, err := c.lowerExpr(e.Operand)
	if err != nil {
		return "", nil, err
	}
	if e.Negate {
		return fmt.Sprintf("(%s IS NOT NULL)", operandSQL), params, nil
	}
	return fmt.Sprintf("(%s IS NULL)", operandSQL), params, nil
}

// aggregateFuncs are RETURN-position aggregates that must be rendered as SQL aggregates rather
// than dispatched as CALL procedures or algorithm functions.
var aggregateFuncs = map[string]string{
	"count": "COUNT", "sum": "SUM", "avg": "AVG", "min": "MIN", "max": "MAX",
	"collect": "json_group_array",
}

var scalarFuncs = map[string]string{
	"tolower": "LOWER", "toupper": "UPPER", "trim": "TRIM",
	"ltrim": "LTRIM", "rtrim": "RTRIM", "size": "LENGTH",
	"abs": "ABS", "round": "ROUND", "sqrt": "SQRT",
	"coalesce": "COALESCE",
}

func (c *compiler) lowerFuncCall(f *ast.FuncCall) (string, []any, error) {
	name := strings.ToLower(f.Name)

	if name == "count" && len(f.Args) == 1 {
		if id, ok := f.Args[0].(*ast.Ident); ok && id.Name == "*" {
			return "COUNT(*)", nil, nil
		}
	}

	if name == "id" && len(f.Args) == 1 {
		return c.lowerIDFunc(f.Args[0])
	}
	if name == "type" && len(f.Args) == 1 {
		return c.lowerTypeFunc(f.Args[0])
	}
	if name == "labels" && len(f.Args) == 1 {
		return c.lowerLabelsFunc(f.Args[0])
	}
	if name == "exists" && len(f.Args) == 1 {
		return c.lowerExistsFunc(f.Args[0])
	}

	if sqlName, ok := aggregateFuncs[name]; ok {
		var args []string
		var params []any
		for _, a := range f.Args {
			sql, p, err := c.lowerExpr(a)
			if err != nil {
				return "", nil, err
			}
			args = append(args, sql)
			params = append(params, p...)
		}
		if f.Distinct && len(args) == 1 {
			return fmt.Sprintf("%s(DISTINCT %s)", sqlName, args[0]), params, nil
		}
		return fmt.Sprintf("%s(%s)", sqlName, strings.Join(args, ", ")), params, nil
	}

	switch name {
	case "tostring":
		return c.lowerCastFunc(f.Args, "TEXT")
	case "toint":
		return c.lowerCastFunc(f.Args, "INTEGER")
	case "tofloat":
		return c.lowerCastFunc(f.Args, "REAL")
	}

	if sqlName, ok := scalarFuncs[name]; ok {
		var args []string
		var params []any
		for _, a := range f.Args {
			sql, p, err := c.lowerExpr(a)
			if err != nil {
				return "", nil, err
			}
			args = append(args, sql)
			params = append(params, p...)
		}
		return fmt.Sprintf("%s(%s)", sqlName, strings.Join(args, ", ")), params, nil
	}

	// These algorithm functions have no SQL meaning: the driving query selects a placeholder and
	// the executor overwrites the column after running the CSR-backed algorithm post-process step
	// (isAlgorithmFuncItem in return.go routes the column through ResultAlgorithm).
	switch name {
	case "pagerank", "labelpropagation", "degreecentrality":
		c.plan.PostProcess = append(c.plan.PostProcess, &AlgorithmStep{Name: name, Args: f.Args})
		return "NULL", nil, nil
	}

	return "", nil, errs.New(errs.Transform, "unsupported function %q", f.Name)
}

func (c *compiler) lowerCastFunc(args []ast.Expr, sqlType string) (string, []any, error) {
	if len(args) != 1 {
		return "", nil, errs.New(errs.Transform, "cast function requires exactly one argument")
	}
	argSQL, params, err := c.lowerExpr(args[0])
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("CAST(%s AS %s)", argSQL, sqlType), params, nil
}

func (c *compiler) lowerIDFunc(arg ast.Expr) (string, []any, error) {
	id, ok := arg.(*ast.Ident)
	if !ok {
		return "", nil, errs.New(errs.Transform, "id() requires a bound variable")
	}
	entry, ok := c.scope.Resolve(id.Name)
	if !ok {
		return "", nil, errs.New(errs.Transform, "unbound variable %q", id.Name)
	}
	return fmt.Sprintf("%s.id", entry.Alias), nil, nil
}

func (c *compiler) lowerTypeFunc(arg ast.Expr) (string, []any, error) {
	id, ok := arg.(*ast.Ident)
	if !ok {
		return "", nil, errs.New(errs.Transform, "type() requires a bound relationship variable")
	}
	entry, ok := c.scope.Resolve(id.Name)
	if !ok || entry.Kind != KindEdge {
		return "", nil, errs.New(errs.Transform, "%q is not a bound relationship", id.Name)
	}
	return fmt.Sprintf("%s.type", entry.Alias), nil, nil
}

func (c *compiler) lowerLabelsFunc(arg ast.Expr) (string, []any, error) {
	id, ok := arg.(*ast.Ident)
	if !ok {
		return "", nil, errs.New(errs.Transform, "labels() requires a bound node variable")
	}
	entry, ok := c.scope.Resolve(id.Name)
	if !ok || entry.Kind != KindNode {
		return "", nil, errs.New(errs.Transform, "%q is not a bound node", id.Name)
	}
	sql := fmt.Sprintf(
		"(SELECT json_group_array(label) FROM %snode_labels WHERE node_id = %s.id)",
		c.schemaPrefix, entry.Alias)
	return sql, nil, nil
}

// lowerExistsFunc handles the property-check form EXISTS(n.prop); the pattern-predicate form is
// parsed directly into *ast.PatternPredicate and never reaches here.
func (c *compiler) lowerExistsFunc(arg ast.Expr) (string, []any, error) {
	prop, ok := arg.(*ast.PropertyAccess)
	if !ok {
		return "", nil, errs.New(errs.Transform, "EXISTS() requires a property access or pattern")
	}
	id, ok := prop.Target.(*ast.Ident)
	if !ok {
		return "", nil, errs.New(errs.Transform, "EXISTS() target must be a bound variable")
	}
	entry, ok := c.scope.Resolve(id.Name)
	if !ok {
		return "", nil, errs.New(errs.Transform, "unbound variable %q", id.Name)
	}
	sql, params := c.propertyExistsSQL(c.schemaPrefix, entry.Alias, entry.Kind, prop.Key)
	return sql, params, nil
}

func (c *compiler) lowerCaseExpr(e *ast.CaseExpr) (string, []any, error) {
	var b strings.Builder
	var params []any
	b.WriteString("(CASE")
	if e.Test != nil {
		testSQL, testParams, err := c.lowerExpr(e.Test)
		if err != nil {
			return "", nil, err
		}
		fmt.Fprintf(&b, " %s", testSQL)
		params = append(params, testParams...)
	}
	for _, w := range e.Whens {
		whenSQL, whenParams, err := c.lowerExpr(w.When)
		if err != nil {
			return "", nil, err
		}
		thenSQL, thenParams, err := c.lowerExpr(w.Then)
		if err != nil {
			return "", nil, err
		}
		fmt.Fprintf(&b, " WHEN %s THEN %s", whenSQL, thenSQL)
		params = append(params, whenParams...)
		params = append(params, thenParams...)
	}
	if e.Default != nil {
		defSQL, defParams, err := c.lowerExpr(e.Default)
		if err != nil {
			return "", nil, err
		}
		fmt.Fprintf(&b, " ELSE %s", defSQL)
		params = append(params, defParams...)
	}
	b.WriteString(" END)")
	return b.String(), params, nil
}

func (c *compiler) lowerListLiteral(e *ast.ListLiteral) (string, []any, error) {
	var parts []string
	var params []any
	for _, el := range e.Elements {
		sql, p, err := c.lowerExpr(el)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		params = append(params, p...)
	}
	return fmt.Sprintf("json_array(%s)", strings.Join(parts, ", ")), params, nil
}

func (c *compiler) lowerMapLiteral(e *ast.MapLiteral) (string, []any, error) {
	var parts []string
	var params []any
	for _, entry := range e.Entries {
		valSQL, valParams, err := c.lowerExpr(entry.Value)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, "?", valSQL)
		params = append(params, entry.Key)
		params = append(params, valParams...)
	}
	return fmt.Sprintf("json_object(%s)", strings.Join(parts, ", ")), params, nil
}

// lowerListComprehension has no direct SQL equivalent for an arbitrary source; GraphQLite supports
// it only over a literal list or a bound list-valued variable, rendered via json_each at evaluation
// time with the predicate/projection folded into the subquery.
func (c *compiler) lowerListComprehension(e *ast.ListComprehension) (string, []any, error) {
	sourceSQL, sourceParams, err := c.lowerExpr(e.Source)
	if err != nil {
		return "", nil, err
	}
	inner := NewScope()
	for k, v := range c.scope.entries {
		inner.entries[k] = v
	}
	inner.entries[e.Variable] = ScopeEntry{Alias: "je.value", Kind: KindScalar}
	sub := &compiler{scope: inner, params: c.params, schemaPrefix: c.schemaPrefix, maxVarHopsDefault: c.maxVarHopsDefault}

	proj := "je.value"
	var projParams []any
	if e.Proj != nil {
		proj, projParams, err = sub.lowerExpr(e.Proj)
		if err != nil {
			return "", nil, err
		}
	}
	var whereSQL string
	var whereParams []any
	if e.Where != nil {
		whereSQL, whereParams, err = sub.lowerExpr(e.Where)
		if err != nil {
			return "", nil, err
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "(SELECT json_group_array(%s) FROM json_each(%s) AS je", proj, sourceSQL)
	if whereSQL != "" {
		fmt.Fprintf(&b, " WHERE %s", whereSQL)
	}
	b.WriteString(")")

	params := append(append([]any{}, sourceParams...), projParams...)
	params = append(params, whereParams...)
	return b.String(), params, nil
}

func (c *compiler) lowerReduce(e *ast.Reduce) (string, []any, error) {
	sourceSQL, sourceParams, err := c.lowerExpr(e.Source)
	if err != nil {
		return "", nil, err
	}
	initSQL, initParams, err := c.lowerExpr(e.Init)
	if err != nil {
		return "", nil, err
	}
	inner := NewScope()
	for k, v := range c.scope.entries {
		inner.entries[k] = v
	}
	inner.entries[e.Accumulator] = ScopeEntry{Alias: "acc.value", Kind: KindScalar}
	inner.entries[e.Variable] = ScopeEntry{Alias: "je.value", Kind: KindScalar}
	sub := &compiler{scope: inner, params: c.params, schemaPrefix: c.schemaPrefix, maxVarHopsDefault: c.maxVarHopsDefault}
	bodySQL, bodyParams, err := sub.lowerExpr(e.Body)
	if err != nil {
		return "", nil, err
	}
	// Lowered as a recursive CTE: each step joins the next json_each element by rowid and folds it
	// into the accumulator; the row with the highest rowid holds the result.
	sql := fmt.Sprintf(
		"(WITH RECURSIVE acc(rowid, value) AS ("+
			"SELECT 0, (%s) "+
			"UNION ALL "+
			"SELECT je.rowid, (%s) FROM json_each(%s) AS je JOIN acc ON je.rowid = acc.rowid + 1"+
			") SELECT value FROM acc ORDER BY rowid DESC LIMIT 1)",
		initSQL, bodySQL, sourceSQL)
	params := append(append(append([]any{}, initParams...), bodyParams...), sourceParams...)
	return sql, params, nil
}

// lowerPatternPredicate lowers a pattern used as a boolean (`EXISTS((a)-->(b))` or a bare pattern
// in WHERE) to an EXISTS-wrapped correlated subquery reusing the normal fixed-hop join lowering
// for a fresh, isolated compiler sharing the outer scope (so shared variable bindings correlate).
func (c *compiler) lowerPatternPredicate(e *ast.PatternPredicate) (string, []any, error) {
	inner := NewScope()
	for k, v := range c.scope.entries {
		inner.entries[k] = v
	}
	sub := &compiler{scope: inner, params: c.params, schemaPrefix: c.schemaPrefix, maxVarHopsDefault: c.maxVarHopsDefault}

	var frag matchFragment
	if err := sub.lowerPath(e.Path, false, &frag); err != nil {
		return "", nil, err
	}
	if len(frag.From) == 0 {
		return "", nil, errs.New(errs.Transform, "pattern predicate produced no table references")
	}

	var b strings.Builder
	b.WriteString("EXISTS(SELECT 1 FROM ")
	b.WriteString(strings.Join(frag.From, ", "))
	for _, j := range frag.Joins {
		b.WriteString(" ")
		b.WriteString(j)
	}
	var params []any
	params = append(params, frag.JoinParams...)
	if len(frag.WhereParts) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(frag.WhereParts, " AND "))
		params = append(params, frag.WhereParams...)
	}
	b.WriteString(")")

	if e.Negate {
		return fmt.Sprintf("(NOT %s)", b.String()), params, nil
	}
	return b.String(), params, nil
}
