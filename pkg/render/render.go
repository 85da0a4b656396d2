package render

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sync"
	"text/template"
	"text/template/parse"

	"github.com/pkg/errors"
	"github.com/pseudomuto/anchor/pkg/source"
	"github.com/pseudomuto/anchor/pkg/sqlsafe"
)

type (
	// Renderer renders migration scripts to SQL. It composes a
	// source.Source (as the template inclusion loader) with the sqlsafe
	// formatter (as the output formatter): fragments referenced via the
	// include function are satisfied lazily from the source, and every
	// interpolated expression passes through sqlsafe.Format on its way into
	// the output.
	//
	// Example usage:
	//
	//	r := render.New(source.NewLive("db/components"))
	//	err := r.Render(os.Stdout, "migration.sql", values)
	Renderer struct {
		source source.Source
	}

	// render is the per-call state: the variable scope shared by all
	// includes, and the first structural error raised by a template
	// function. text/template wraps function errors in its own exec error,
	// so the original is kept here and preferred when execution fails.
	render struct {
		renderer *Renderer
		values   map[string]any

		mu       sync.Mutex
		firstErr error
	}
)

// New creates a Renderer loading the root script and all fragments from src.
func New(src source.Source) *Renderer {
	return &Renderer{source: src}
}

// Render loads the root script at scriptPath, renders it with the given
// variables (exposed to templates as .vars), and streams the output to w.
// Consumers may pass anything from a bytes.Buffer to a live process pipe.
// The root script is read directly from disk; only fragments referenced via
// include go through the component source, so a pinned render still picks up
// the migration's own entry point script.
//
// It fails with TemplateNotFoundError when the script itself is missing,
// FragmentNotFoundError when an included fragment is missing, and
// RenderError for syntax or evaluation failures. Nothing is retried.
func (r *Renderer) Render(w io.Writer, scriptPath string, values map[string]any) error {
	content, err := os.ReadFile(scriptPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &TemplateNotFoundError{Name: scriptPath}
		}
		return errors.Wrapf(err, "failed to load script %s", scriptPath)
	}

	st := &render{renderer: r, values: values}
	if err := st.exec(w, filepath.Base(scriptPath), content); err != nil {
		if ferr := st.failure(); ferr != nil {
			return ferr
		}
		return &RenderError{Name: scriptPath, Cause: err}
	}

	return nil
}

// exec parses and executes a single script or fragment. The parse tree is
// rewritten before execution so that every output action is piped through
// the sqlfmt function; see wrapOutputs.
func (st *render) exec(w io.Writer, name string, content []byte) error {
	tmpl, err := template.New(name).
		Option("missingkey=zero").
		Funcs(st.funcs()).
		Parse(string(content))
	if err != nil {
		return err
	}

	// Rewrite every associated template, not just the root: {{define}}
	// blocks invoked via {{template}} interpolate values too.
	for _, t := range tmpl.Templates() {
		if t.Tree != nil {
			wrapOutputs(t.Tree.Root)
		}
	}

	return tmpl.Execute(w, map[string]any{"vars": st.values})
}

func (st *render) funcs() template.FuncMap {
	return template.FuncMap{
		"sqlfmt":  st.format,
		"include": st.include,
		"ident":   func(s string) sqlsafe.Identifier { return sqlsafe.Identifier(s) },
		"lit":     func(s string) sqlsafe.Literal { return sqlsafe.Literal(s) },
		"raw":     func(s string) sqlsafe.Raw { return sqlsafe.Raw(s) },
		"safe":    func(s string) sqlsafe.Raw { return sqlsafe.Raw(s) },
	}
}

// format is the automatic output formatter appended to every action pipe.
func (st *render) format(v any) (string, error) {
	formatted, err := sqlsafe.Format(v)
	if err != nil {
		st.record(err)
		return "", err
	}
	return formatted, nil
}

// include loads a fragment from the component source and renders it with the
// same variable scope. The result is returned as a Raw value so the output
// formatter emits it verbatim; it was already formatted on the way through.
func (st *render) include(name string) (sqlsafe.Raw, error) {
	content, ok, err := st.renderer.source.Load(name)
	if err != nil {
		st.record(err)
		return "", err
	}
	if !ok {
		nferr := &FragmentNotFoundError{Name: name}
		st.record(nferr)
		return "", nferr
	}

	var buf bytes.Buffer
	if err := st.exec(&buf, name, content); err != nil {
		return "", err
	}

	return sqlsafe.Raw(buf.String()), nil
}

func (st *render) record(err error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.firstErr == nil {
		st.firstErr = err
	}
}

func (st *render) failure() error {
	st.mu.Lock()
	defer st.mu.Unlock()

	return st.firstErr
}

// wrapOutputs rewrites a parsed template so every output action is piped
// through sqlfmt, e.g. {{ .vars.name }} becomes {{ .vars.name | sqlfmt }}.
// Control pipes (if/range/with conditions) and variable declarations emit
// nothing, so they are left untouched. Rewriting the tree rather than asking
// authors to call the formatter is what makes the escaping automatic: there
// is no way to interpolate a value without going through it.
func wrapOutputs(node parse.Node) {
	switch n := node.(type) {
	case *parse.ListNode:
		if n == nil {
			return
		}
		for _, child := range n.Nodes {
			wrapOutputs(child)
		}
	case *parse.ActionNode:
		if len(n.Pipe.Decl) == 0 {
			appendFormatter(n.Pipe)
		}
	case *parse.IfNode:
		wrapOutputs(n.List)
		wrapOutputs(n.ElseList)
	case *parse.RangeNode:
		wrapOutputs(n.List)
		wrapOutputs(n.ElseList)
	case *parse.WithNode:
		wrapOutputs(n.List)
		wrapOutputs(n.ElseList)
	}
}

func appendFormatter(pipe *parse.PipeNode) {
	pipe.Cmds = append(pipe.Cmds, &parse.CommandNode{
		NodeType: parse.NodeCommand,
		Pos:      pipe.Pos,
		Args:     []parse.Node{parse.NewIdentifier("sqlfmt")},
	})
}
