package ast

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/vela-lang/vela/internal/position"
)

// The parser emits compilation units as JSON trees; the checker reads
// them back here. Every node object carries a "node" discriminator and
// a "span"; child nodes are nested objects decoded by kind.

// DecodeProgram reads one JSON-encoded compilation unit.
func DecodeProgram(r io.Reader) (*Program, error) {
	var raw struct {
		Span    jsonSpan          `json:"span"`
		Unit    string            `json:"unit"`
		Version string            `json:"version"`
		Decls   []json.RawMessage `json:"decls"`
	}

	dec := json.NewDecoder(r)
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode program: %w", err)
	}

	prog := &Program{
		Span:    raw.Span.span(),
		Unit:    raw.Unit,
		Version: raw.Version,
	}

	for i, msg := range raw.Decls {
		decl, err := decodeDecl(msg)
		if err != nil {
			return nil, fmt.Errorf("decl %d: %w", i, err)
		}

		prog.Declarations = append(prog.Declarations, decl)
	}

	return prog, nil
}

// jsonSpan is the wire form of a source span.
type jsonSpan struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	EndLine int    `json:"end_line"`
	EndCol  int    `json:"end_col"`
}

func (s jsonSpan) span() position.Span {
	return position.NewSpan(
		position.Position{Filename: s.File, Line: s.Line, Column: s.Col},
		position.Position{Filename: s.File, Line: s.EndLine, Column: s.EndCol},
	)
}

// kindOf peels the discriminator off a node object.
func kindOf(msg json.RawMessage) (string, error) {
	var probe struct {
		Node string `json:"node"`
	}

	if err := json.Unmarshal(msg, &probe); err != nil {
		return "", err
	}

	if probe.Node == "" {
		return "", fmt.Errorf("node object missing discriminator")
	}

	return probe.Node, nil
}

// ===== Declarations =====

func decodeDecl(msg json.RawMessage) (Declaration, error) {
	kind, err := kindOf(msg)
	if err != nil {
		return nil, err
	}

	switch kind {
	case "function":
		return decodeFunction(msg)
	case "struct":
		return decodeStruct(msg)
	case "trait":
		return decodeTrait(msg)
	case "effect":
		return decodeEffect(msg)
	case "handler":
		return decodeHandler(msg)
	case "linear":
		return decodeLinear(msg)
	case "variable":
		return decodeVariable(msg)
	case "alias":
		return decodeAlias(msg)
	case "use":
		return decodeUse(msg)
	case "region":
		var raw struct {
			Span    jsonSpan        `json:"span"`
			Name    string          `json:"name"`
			Allowed []string        `json:"allowed"`
			Body    json.RawMessage `json:"body"`
		}
		if err := json.Unmarshal(msg, &raw); err != nil {
			return nil, err
		}

		body, err := decodeBlock(raw.Body)
		if err != nil {
			return nil, err
		}

		return &RegionDecl{Span: raw.Span.span(), Name: raw.Name, Allowed: raw.Allowed, Body: body}, nil
	default:
		return nil, fmt.Errorf("unknown declaration node: %s", kind)
	}
}

func decodeFunction(msg json.RawMessage) (*FunctionDecl, error) {
	var raw struct {
		Span       jsonSpan          `json:"span"`
		Name       string            `json:"name"`
		TypeParams []json.RawMessage `json:"type_params"`
		Params     []json.RawMessage `json:"params"`
		ReturnType json.RawMessage   `json:"return_type"`
		Effects    []string          `json:"effects"`
		Body       json.RawMessage   `json:"body"`
	}

	if err := json.Unmarshal(msg, &raw); err != nil {
		return nil, err
	}

	fn := &FunctionDecl{Span: raw.Span.span(), Name: raw.Name, Effects: raw.Effects}

	var err error
	if fn.TypeParams, err = decodeTypeParams(raw.TypeParams); err != nil {
		return nil, err
	}

	if fn.Params, err = decodeParams(raw.Params); err != nil {
		return nil, err
	}

	if fn.ReturnType, err = decodeOptionalType(raw.ReturnType); err != nil {
		return nil, err
	}

	if len(raw.Body) > 0 && string(raw.Body) != "null" {
		if fn.Body, err = decodeBlock(raw.Body); err != nil {
			return nil, err
		}
	}

	return fn, nil
}

func decodeStruct(msg json.RawMessage) (*StructDecl, error) {
	var raw struct {
		Span       jsonSpan          `json:"span"`
		Name       string            `json:"name"`
		TypeParams []json.RawMessage `json:"type_params"`
		Fields     []json.RawMessage `json:"fields"`
		Methods    []json.RawMessage `json:"methods"`
	}

	if err := json.Unmarshal(msg, &raw); err != nil {
		return nil, err
	}

	s := &StructDecl{Span: raw.Span.span(), Name: raw.Name}

	var err error
	if s.TypeParams, err = decodeTypeParams(raw.TypeParams); err != nil {
		return nil, err
	}

	for _, f := range raw.Fields {
		var rf struct {
			Span jsonSpan        `json:"span"`
			Name string          `json:"name"`
			Type json.RawMessage `json:"type"`
		}
		if err := json.Unmarshal(f, &rf); err != nil {
			return nil, err
		}

		t, err := decodeType(rf.Type)
		if err != nil {
			return nil, err
		}

		s.Fields = append(s.Fields, &Field{Span: rf.Span.span(), Name: rf.Name, Type: t})
	}

	for _, m := range raw.Methods {
		fn, err := decodeFunction(m)
		if err != nil {
			return nil, err
		}

		s.Methods = append(s.Methods, fn)
	}

	return s, nil
}

func decodeTrait(msg json.RawMessage) (*TraitDecl, error) {
	var raw struct {
		Span       jsonSpan          `json:"span"`
		Name       string            `json:"name"`
		TypeParams []json.RawMessage `json:"type_params"`
		Methods    []json.RawMessage `json:"methods"`
	}

	if err := json.Unmarshal(msg, &raw); err != nil {
		return nil, err
	}

	t := &TraitDecl{Span: raw.Span.span(), Name: raw.Name}

	var err error
	if t.TypeParams, err = decodeTypeParams(raw.TypeParams); err != nil {
		return nil, err
	}

	for _, m := range raw.Methods {
		var rm struct {
			Span       jsonSpan          `json:"span"`
			Name       string            `json:"name"`
			Params     []json.RawMessage `json:"params"`
			ReturnType json.RawMessage   `json:"return_type"`
			Effects    []string          `json:"effects"`
		}
		if err := json.Unmarshal(m, &rm); err != nil {
			return nil, err
		}

		sig := &MethodSig{Span: rm.Span.span(), Name: rm.Name, Effects: rm.Effects}
		if sig.Params, err = decodeParams(rm.Params); err != nil {
			return nil, err
		}

		if sig.ReturnType, err = decodeOptionalType(rm.ReturnType); err != nil {
			return nil, err
		}

		t.Methods = append(t.Methods, sig)
	}

	return t, nil
}

func decodeEffect(msg json.RawMessage) (*EffectDecl, error) {
	var raw struct {
		Span       jsonSpan          `json:"span"`
		Name       string            `json:"name"`
		Operations []json.RawMessage `json:"operations"`
	}

	if err := json.Unmarshal(msg, &raw); err != nil {
		return nil, err
	}

	e := &EffectDecl{Span: raw.Span.span(), Name: raw.Name}

	for _, op := range raw.Operations {
		var ro struct {
			Span       jsonSpan          `json:"span"`
			Name       string            `json:"name"`
			Params     []json.RawMessage `json:"params"`
			ReturnType json.RawMessage   `json:"return_type"`
		}
		if err := json.Unmarshal(op, &ro); err != nil {
			return nil, err
		}

		sig := &OperationSig{Span: ro.Span.span(), Name: ro.Name}

		var err error
		if sig.Params, err = decodeParams(ro.Params); err != nil {
			return nil, err
		}

		if sig.ReturnType, err = decodeOptionalType(ro.ReturnType); err != nil {
			return nil, err
		}

		e.Operations = append(e.Operations, sig)
	}

	return e, nil
}

func decodeHandler(msg json.RawMessage) (*HandlerDecl, error) {
	var raw struct {
		Span       jsonSpan          `json:"span"`
		Name       string            `json:"name"`
		Effect     string            `json:"effect"`
		StateType  json.RawMessage   `json:"state_type"`
		Operations []json.RawMessage `json:"operations"`
	}

	if err := json.Unmarshal(msg, &raw); err != nil {
		return nil, err
	}

	h := &HandlerDecl{Span: raw.Span.span(), Name: raw.Name, EffectName: raw.Effect}

	var err error
	if h.StateType, err = decodeOptionalType(raw.StateType); err != nil {
		return nil, err
	}

	for _, op := range raw.Operations {
		var ro struct {
			Span   jsonSpan          `json:"span"`
			Name   string            `json:"name"`
			Params []json.RawMessage `json:"params"`
			Body   json.RawMessage   `json:"body"`
		}
		if err := json.Unmarshal(op, &ro); err != nil {
			return nil, err
		}

		hop := &HandlerOp{Span: ro.Span.span(), Name: ro.Name}
		if hop.Params, err = decodeParams(ro.Params); err != nil {
			return nil, err
		}

		if hop.Body, err = decodeBlock(ro.Body); err != nil {
			return nil, err
		}

		h.Operations = append(h.Operations, hop)
	}

	return h, nil
}

func decodeLinear(msg json.RawMessage) (*LinearDecl, error) {
	var raw struct {
		Span       jsonSpan        `json:"span"`
		Name       string          `json:"name"`
		Inner      json.RawMessage `json:"inner"`
		Operations []struct {
			Span       jsonSpan `json:"span"`
			Name       string   `json:"name"`
			Destructor bool     `json:"destructor"`
		} `json:"operations"`
	}

	if err := json.Unmarshal(msg, &raw); err != nil {
		return nil, err
	}

	inner, err := decodeType(raw.Inner)
	if err != nil {
		return nil, err
	}

	l := &LinearDecl{Span: raw.Span.span(), Name: raw.Name, Inner: inner}
	for _, op := range raw.Operations {
		l.Operations = append(l.Operations, &LinearOp{
			Span:         op.Span.span(),
			Name:         op.Name,
			IsDestructor: op.Destructor,
		})
	}

	return l, nil
}

func decodeVariable(msg json.RawMessage) (*VariableDecl, error) {
	var raw struct {
		Span    jsonSpan        `json:"span"`
		Name    string          `json:"name"`
		Type    json.RawMessage `json:"type"`
		Value   json.RawMessage `json:"value"`
		Mutable bool            `json:"mutable"`
	}

	if err := json.Unmarshal(msg, &raw); err != nil {
		return nil, err
	}

	v := &VariableDecl{Span: raw.Span.span(), Name: raw.Name, Mutable: raw.Mutable}

	var err error
	if v.Type, err = decodeOptionalType(raw.Type); err != nil {
		return nil, err
	}

	if len(raw.Value) > 0 && string(raw.Value) != "null" {
		if v.Value, err = decodeExpr(raw.Value); err != nil {
			return nil, err
		}
	}

	return v, nil
}

func decodeAlias(msg json.RawMessage) (*TypeAliasDecl, error) {
	var raw struct {
		Span       jsonSpan          `json:"span"`
		Name       string            `json:"name"`
		TypeParams []json.RawMessage `json:"type_params"`
		Aliased    json.RawMessage   `json:"aliased"`
	}

	if err := json.Unmarshal(msg, &raw); err != nil {
		return nil, err
	}

	a := &TypeAliasDecl{Span: raw.Span.span(), Name: raw.Name}

	var err error
	if a.TypeParams, err = decodeTypeParams(raw.TypeParams); err != nil {
		return nil, err
	}

	if a.Aliased, err = decodeType(raw.Aliased); err != nil {
		return nil, err
	}

	return a, nil
}

func decodeUse(msg json.RawMessage) (*UseDecl, error) {
	var raw struct {
		Span        jsonSpan `json:"span"`
		Unit        string   `json:"unit"`
		Requirement string   `json:"requirement"`
	}

	if err := json.Unmarshal(msg, &raw); err != nil {
		return nil, err
	}

	return &UseDecl{Span: raw.Span.span(), Unit: raw.Unit, Requirement: raw.Requirement}, nil
}

func decodeTypeParams(msgs []json.RawMessage) ([]*TypeParam, error) {
	var out []*TypeParam

	for _, msg := range msgs {
		var raw struct {
			Span  jsonSpan        `json:"span"`
			Name  string          `json:"name"`
			Bound json.RawMessage `json:"bound"`
		}
		if err := json.Unmarshal(msg, &raw); err != nil {
			return nil, err
		}

		tp := &TypeParam{Span: raw.Span.span(), Name: raw.Name}

		bound, err := decodeOptionalType(raw.Bound)
		if err != nil {
			return nil, err
		}

		tp.Bound = bound
		out = append(out, tp)
	}

	return out, nil
}

func decodeParams(msgs []json.RawMessage) ([]*Param, error) {
	var out []*Param

	for _, msg := range msgs {
		var raw struct {
			Span jsonSpan        `json:"span"`
			Name string          `json:"name"`
			Type json.RawMessage `json:"type"`
		}
		if err := json.Unmarshal(msg, &raw); err != nil {
			return nil, err
		}

		t, err := decodeType(raw.Type)
		if err != nil {
			return nil, err
		}

		out = append(out, &Param{Span: raw.Span.span(), Name: raw.Name, Type: t})
	}

	return out, nil
}

// ===== Statements =====

func decodeBlock(msg json.RawMessage) (*Block, error) {
	var raw struct {
		Span  jsonSpan          `json:"span"`
		Stmts []json.RawMessage `json:"stmts"`
	}

	if err := json.Unmarshal(msg, &raw); err != nil {
		return nil, err
	}

	b := &Block{Span: raw.Span.span()}

	for _, s := range raw.Stmts {
		stmt, err := decodeStmt(s)
		if err != nil {
			return nil, err
		}

		b.Statements = append(b.Statements, stmt)
	}

	return b, nil
}

func decodeStmt(msg json.RawMessage) (Statement, error) {
	kind, err := kindOf(msg)
	if err != nil {
		return nil, err
	}

	switch kind {
	case "block":
		return decodeBlock(msg)
	case "let":
		var raw struct {
			Span    jsonSpan        `json:"span"`
			Name    string          `json:"name"`
			Type    json.RawMessage `json:"type"`
			Value   json.RawMessage `json:"value"`
			Mutable bool            `json:"mutable"`
		}
		if err := json.Unmarshal(msg, &raw); err != nil {
			return nil, err
		}

		stmt := &LetStmt{Span: raw.Span.span(), Name: raw.Name, Mutable: raw.Mutable}
		if stmt.Type, err = decodeOptionalType(raw.Type); err != nil {
			return nil, err
		}

		if stmt.Value, err = decodeExpr(raw.Value); err != nil {
			return nil, err
		}

		return stmt, nil
	case "assign":
		var raw struct {
			Span   jsonSpan        `json:"span"`
			Target string          `json:"target"`
			Value  json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(msg, &raw); err != nil {
			return nil, err
		}

		value, err := decodeExpr(raw.Value)
		if err != nil {
			return nil, err
		}

		return &AssignStmt{Span: raw.Span.span(), Target: raw.Target, Value: value}, nil
	case "return":
		var raw struct {
			Span  jsonSpan        `json:"span"`
			Value json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(msg, &raw); err != nil {
			return nil, err
		}

		stmt := &ReturnStmt{Span: raw.Span.span()}
		if len(raw.Value) > 0 && string(raw.Value) != "null" {
			if stmt.Value, err = decodeExpr(raw.Value); err != nil {
				return nil, err
			}
		}

		return stmt, nil
	case "if":
		var raw struct {
			Span jsonSpan        `json:"span"`
			Cond json.RawMessage `json:"cond"`
			Then json.RawMessage `json:"then"`
			Else json.RawMessage `json:"else"`
		}
		if err := json.Unmarshal(msg, &raw); err != nil {
			return nil, err
		}

		stmt := &IfStmt{Span: raw.Span.span()}
		if stmt.Cond, err = decodeExpr(raw.Cond); err != nil {
			return nil, err
		}

		if stmt.Then, err = decodeBlock(raw.Then); err != nil {
			return nil, err
		}

		if len(raw.Else) > 0 && string(raw.Else) != "null" {
			if stmt.Else, err = decodeBlock(raw.Else); err != nil {
				return nil, err
			}
		}

		return stmt, nil
	case "expr":
		var raw struct {
			Span jsonSpan        `json:"span"`
			Expr json.RawMessage `json:"expr"`
		}
		if err := json.Unmarshal(msg, &raw); err != nil {
			return nil, err
		}

		expr, err := decodeExpr(raw.Expr)
		if err != nil {
			return nil, err
		}

		return &ExprStmt{Span: raw.Span.span(), Expr: expr}, nil
	case "region":
		var raw struct {
			Span    jsonSpan        `json:"span"`
			Name    string          `json:"name"`
			Allowed []string        `json:"allowed"`
			Body    json.RawMessage `json:"body"`
		}
		if err := json.Unmarshal(msg, &raw); err != nil {
			return nil, err
		}

		body, err := decodeBlock(raw.Body)
		if err != nil {
			return nil, err
		}

		return &RegionStmt{Span: raw.Span.span(), Name: raw.Name, Allowed: raw.Allowed, Body: body}, nil
	default:
		return nil, fmt.Errorf("unknown statement node: %s", kind)
	}
}

// ===== Expressions =====

func decodeExpr(msg json.RawMessage) (Expression, error) {
	kind, err := kindOf(msg)
	if err != nil {
		return nil, err
	}

	switch kind {
	case "int":
		var raw struct {
			Span  jsonSpan `json:"span"`
			Value int64    `json:"value"`
		}
		if err := json.Unmarshal(msg, &raw); err != nil {
			return nil, err
		}

		return &IntLit{Span: raw.Span.span(), Value: raw.Value}, nil
	case "float":
		var raw struct {
			Span  jsonSpan `json:"span"`
			Value float64  `json:"value"`
		}
		if err := json.Unmarshal(msg, &raw); err != nil {
			return nil, err
		}

		return &FloatLit{Span: raw.Span.span(), Value: raw.Value}, nil
	case "bool":
		var raw struct {
			Span  jsonSpan `json:"span"`
			Value bool     `json:"value"`
		}
		if err := json.Unmarshal(msg, &raw); err != nil {
			return nil, err
		}

		return &BoolLit{Span: raw.Span.span(), Value: raw.Value}, nil
	case "string":
		var raw struct {
			Span  jsonSpan `json:"span"`
			Value string   `json:"value"`
		}
		if err := json.Unmarshal(msg, &raw); err != nil {
			return nil, err
		}

		return &StringLit{Span: raw.Span.span(), Value: raw.Value}, nil
	case "ident":
		var raw struct {
			Span jsonSpan `json:"span"`
			Name string   `json:"name"`
		}
		if err := json.Unmarshal(msg, &raw); err != nil {
			return nil, err
		}

		return &Ident{Span: raw.Span.span(), Name: raw.Name}, nil
	case "binary":
		var raw struct {
			Span  jsonSpan        `json:"span"`
			Op    string          `json:"op"`
			Left  json.RawMessage `json:"left"`
			Right json.RawMessage `json:"right"`
		}
		if err := json.Unmarshal(msg, &raw); err != nil {
			return nil, err
		}

		op, err := parseBinaryOp(raw.Op)
		if err != nil {
			return nil, err
		}

		left, err := decodeExpr(raw.Left)
		if err != nil {
			return nil, err
		}

		right, err := decodeExpr(raw.Right)
		if err != nil {
			return nil, err
		}

		return &Binary{Span: raw.Span.span(), Op: op, Left: left, Right: right}, nil
	case "unary":
		var raw struct {
			Span    jsonSpan        `json:"span"`
			Op      string          `json:"op"`
			Operand json.RawMessage `json:"operand"`
		}
		if err := json.Unmarshal(msg, &raw); err != nil {
			return nil, err
		}

		operand, err := decodeExpr(raw.Operand)
		if err != nil {
			return nil, err
		}

		return &Unary{Span: raw.Span.span(), Op: raw.Op, Operand: operand}, nil
	case "call":
		var raw struct {
			Span   jsonSpan          `json:"span"`
			Callee json.RawMessage   `json:"callee"`
			Args   []json.RawMessage `json:"args"`
		}
		if err := json.Unmarshal(msg, &raw); err != nil {
			return nil, err
		}

		callee, err := decodeExpr(raw.Callee)
		if err != nil {
			return nil, err
		}

		call := &Call{Span: raw.Span.span(), Callee: callee}
		for _, a := range raw.Args {
			arg, err := decodeExpr(a)
			if err != nil {
				return nil, err
			}

			call.Args = append(call.Args, arg)
		}

		return call, nil
	case "effect_call":
		var raw struct {
			Span      jsonSpan          `json:"span"`
			Effect    string            `json:"effect"`
			Operation string            `json:"operation"`
			Args      []json.RawMessage `json:"args"`
		}
		if err := json.Unmarshal(msg, &raw); err != nil {
			return nil, err
		}

		call := &EffectCall{Span: raw.Span.span(), Effect: raw.Effect, Operation: raw.Operation}
		for _, a := range raw.Args {
			arg, err := decodeExpr(a)
			if err != nil {
				return nil, err
			}

			call.Args = append(call.Args, arg)
		}

		return call, nil
	case "cast":
		var raw struct {
			Span   jsonSpan        `json:"span"`
			Value  json.RawMessage `json:"value"`
			Target json.RawMessage `json:"target"`
		}
		if err := json.Unmarshal(msg, &raw); err != nil {
			return nil, err
		}

		value, err := decodeExpr(raw.Value)
		if err != nil {
			return nil, err
		}

		target, err := decodeType(raw.Target)
		if err != nil {
			return nil, err
		}

		return &Cast{Span: raw.Span.span(), Value: value, Target: target}, nil
	default:
		return nil, fmt.Errorf("unknown expression node: %s", kind)
	}
}

func parseBinaryOp(s string) (BinaryOp, error) {
	for op := OpAdd; op <= OpOr; op++ {
		if op.String() == s {
			return op, nil
		}
	}

	return 0, fmt.Errorf("unknown binary operator: %q", s)
}

// ===== Type Expressions =====

func decodeOptionalType(msg json.RawMessage) (TypeExpr, error) {
	if len(msg) == 0 || string(msg) == "null" {
		return nil, nil
	}

	return decodeType(msg)
}

func decodeType(msg json.RawMessage) (TypeExpr, error) {
	kind, err := kindOf(msg)
	if err != nil {
		return nil, err
	}

	switch kind {
	case "named":
		var raw struct {
			Span jsonSpan          `json:"span"`
			Name string            `json:"name"`
			Args []json.RawMessage `json:"args"`
		}
		if err := json.Unmarshal(msg, &raw); err != nil {
			return nil, err
		}

		t := &NamedType{Span: raw.Span.span(), Name: raw.Name}
		for _, a := range raw.Args {
			arg, err := decodeType(a)
			if err != nil {
				return nil, err
			}

			t.Args = append(t.Args, arg)
		}

		return t, nil
	case "function":
		var raw struct {
			Span    jsonSpan          `json:"span"`
			Params  []json.RawMessage `json:"params"`
			Return  json.RawMessage   `json:"return"`
			Effects []string          `json:"effects"`
		}
		if err := json.Unmarshal(msg, &raw); err != nil {
			return nil, err
		}

		t := &FunctionType{Span: raw.Span.span(), Effects: raw.Effects}
		for _, p := range raw.Params {
			param, err := decodeType(p)
			if err != nil {
				return nil, err
			}

			t.Params = append(t.Params, param)
		}

		if t.Return, err = decodeOptionalType(raw.Return); err != nil {
			return nil, err
		}

		return t, nil
	case "refinement":
		var raw struct {
			Span      jsonSpan        `json:"span"`
			Var       string          `json:"var"`
			Base      json.RawMessage `json:"base"`
			Predicate json.RawMessage `json:"predicate"`
		}
		if err := json.Unmarshal(msg, &raw); err != nil {
			return nil, err
		}

		base, err := decodeType(raw.Base)
		if err != nil {
			return nil, err
		}

		pred, err := decodeExpr(raw.Predicate)
		if err != nil {
			return nil, err
		}

		return &RefinementType{Span: raw.Span.span(), Var: raw.Var, Base: base, Predicate: pred}, nil
	case "dependent":
		var raw struct {
			Span   jsonSpan `json:"span"`
			Params []struct {
				Span jsonSpan        `json:"span"`
				Name string          `json:"name"`
				Type json.RawMessage `json:"type"`
			} `json:"params"`
			Predicate json.RawMessage `json:"predicate"`
		}
		if err := json.Unmarshal(msg, &raw); err != nil {
			return nil, err
		}

		t := &DependentType{Span: raw.Span.span()}
		for _, p := range raw.Params {
			pt, err := decodeType(p.Type)
			if err != nil {
				return nil, err
			}

			t.Params = append(t.Params, &DependentParam{Span: p.Span.span(), Name: p.Name, Type: pt})
		}

		pred, err := decodeExpr(raw.Predicate)
		if err != nil {
			return nil, err
		}

		t.Predicate = pred

		return t, nil
	default:
		return nil, fmt.Errorf("unknown type node: %s", kind)
	}
}
