package sandbox

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"

	"github.com/cockroachdb/errors"
)

// ViolationKind classifies a forbidden construct found in submitted source.
type ViolationKind string

const (
	KindDangerousType  ViolationKind = "dangerous_type"
	KindDangerousCall  ViolationKind = "dangerous_call"
	KindDangerousEmbed ViolationKind = "dangerous_embed"
)

// Violation describes one forbidden construct, carrying enough detail to
// report (kind, api_name, source_location) per spec §4.9.
type Violation struct {
	Kind     ViolationKind
	APIName  string
	Location string
}

// CheckResult is the outcome of walking one snippet.
type CheckResult struct {
	Violations []Violation
}

// Valid reports whether the snippet had no violations.
func (r CheckResult) Valid() bool { return len(r.Violations) == 0 }

// Check parses source and, under Restricted, walks it for forbidden
// calls, types, and embeddings; imports alone are never flagged, only
// their usage sites. Disabled and FullAccess skip the
// walk entirely: Disabled refuses execution upstream regardless of content,
// FullAccess imposes no restriction.
//
// A parse failure is returned as an error distinct from Violation, since a
// syntactically invalid snippet is a compile failure for the host to
// report, not a security finding.
func Check(source string, level Level) (CheckResult, error) {
	if level != Restricted {
		return CheckResult{}, nil
	}

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "submitted.go", source, parser.AllErrors)
	if err != nil {
		return CheckResult{}, errors.Wrap(err, "parse submitted code")
	}

	w := &walker{
		fset:    fset,
		aliases: make(map[string]string),
	}
	// An import by itself is never a violation (spec: "using-style namespace
	// imports are never themselves violations — compiles succeed"); record
	// only the alias -> path mapping so resolveSelector can classify usage
	// sites below.
	for _, imp := range file.Imports {
		path := trimQuotes(imp.Path.Value)
		name := importedName(imp)
		w.aliases[name] = path
	}

	ast.Inspect(file, w.visit)

	return CheckResult{Violations: w.violations}, nil
}

type walker struct {
	fset       *token.FileSet
	aliases    map[string]string // local identifier -> import path
	violations []Violation
}

func (w *walker) loc(pos token.Pos) string {
	p := w.fset.Position(pos)
	return fmt.Sprintf("%s:%d:%d", p.Filename, p.Line, p.Column)
}

// resolveSelector turns "pkg.Name" into ("lastImportSegment.Name", true) when
// pkg is a known import alias.
func (w *walker) resolveSelector(sel *ast.SelectorExpr) (key string, ok bool) {
	ident, isIdent := sel.X.(*ast.Ident)
	if !isIdent {
		return "", false
	}
	path, known := w.aliases[ident.Name]
	if !known {
		return "", false
	}
	segment := path
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			segment = path[i+1:]
			break
		}
	}
	return segment + "." + sel.Sel.Name, true
}

func (w *walker) visit(n ast.Node) bool {
	switch node := n.(type) {
	case *ast.CallExpr:
		if sel, isSel := node.Fun.(*ast.SelectorExpr); isSel {
			if key, ok := w.resolveSelector(sel); ok && dangerousCalls[key] {
				w.violations = append(w.violations, Violation{
					Kind:     KindDangerousCall,
					APIName:  key,
					Location: w.loc(node.Pos()),
				})
			}
		}
	case *ast.SelectorExpr:
		if key, ok := w.resolveSelector(node); ok && dangerousTypes[key] {
			w.violations = append(w.violations, Violation{
				Kind:     KindDangerousType,
				APIName:  key,
				Location: w.loc(node.Pos()),
			})
		}
	case *ast.Field:
		// Anonymous (embedded) field whose type is a dangerous selector —
		// the Go analog of inheriting from a forbidden base type.
		if len(node.Names) == 0 {
			if sel, isSel := node.Type.(*ast.SelectorExpr); isSel {
				if key, ok := w.resolveSelector(sel); ok && dangerousTypes[key] {
					w.violations = append(w.violations, Violation{
						Kind:     KindDangerousEmbed,
						APIName:  key,
						Location: w.loc(node.Pos()),
					})
				}
			}
		}
	}
	return true
}

func importedName(imp *ast.ImportSpec) string {
	if imp.Name != nil {
		return imp.Name.Name
	}
	path := trimQuotes(imp.Path.Value)
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}

func trimQuotes(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
