// Package ast defines the language-neutral syntax tree consumed by the
// call-graph extractor.
//
// A Provider lowers a source file into a File: definitions with declaration
// lines and decorators, call expressions with their arguments, assignments,
// imports with aliases, and class declarations with their base types. The
// tree is deliberately small; anything the extractor does not reason about is
// lowered to ExprOther so that calls nested inside it are still visited.
//
// Usage:
//
//	provider := treesitter.New()
//	defer provider.Close()
//
//	file, err := provider.Parse(ctx, "main.py")
//	if err != nil {
//	    return err
//	}
//
//	ast.Inspect(file.Body, func(s *ast.Stmt) bool {
//	    if s.Kind == ast.StmtFunction {
//	        fmt.Printf("%s at line %d\n", s.Function.Name, s.Function.Line)
//	    }
//	    return true
//	})
package ast
