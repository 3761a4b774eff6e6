// Package iface holds the interface descriptors through which separately
// compiled modules see each other's exports.
package iface

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/funvibe/miniml/internal/typesystem"
)

// Export is one line of a descriptor.
type Export struct {
	Name string
	Type typesystem.Type
}

// Interface is the descriptor of one compiled module.
type Interface struct {
	Module  string
	Exports []Export
}

// Lookup finds an export by name.
func (i *Interface) Lookup(name string) (typesystem.Type, bool) {
	for _, e := range i.Exports {
		if e.Name == name {
			return e.Type, true
		}
	}
	return nil, false
}

func (i *Interface) Add(name string, t typesystem.Type) {
	i.Exports = append(i.Exports, Export{Name: name, Type: t})
}

// Render writes the descriptor text.
func (i *Interface) Render() string {
	var sb strings.Builder
	_ = i.Write(&sb)
	return sb.String()
}

// Write emits a header comment followed by one "name : signature" line per
// export.
func (i *Interface) Write(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "# module %s\n", i.Module); err != nil {
		return err
	}
	for _, e := range i.Exports {
		if _, err := fmt.Fprintf(w, "%s : %s\n", e.Name, typesystem.RenderSignature(e.Type)); err != nil {
			return err
		}
	}
	return nil
}

// ParseError locates a malformed descriptor line.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("interface line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Read parses a descriptor. Blank lines and lines starting with # are
// skipped, except that a "# module NAME" header names the module.
func Read(r io.Reader) (*Interface, error) {
	out := &Interface{}
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		if strings.HasPrefix(text, "#") {
			if name, ok := strings.CutPrefix(text, "# module "); ok && out.Module == "" {
				out.Module = strings.TrimSpace(name)
			}
			continue
		}
		name, sig, ok := strings.Cut(text, " : ")
		if !ok {
			return nil, &ParseError{Line: line, Err: fmt.Errorf("expected \"name : signature\", got %q", text)}
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, &ParseError{Line: line, Err: fmt.Errorf("missing export name")}
		}
		t, err := typesystem.ParseSignature(sig)
		if err != nil {
			return nil, &ParseError{Line: line, Err: err}
		}
		out.Add(name, t)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Parse is Read over a string.
func Parse(text string) (*Interface, error) {
	return Read(strings.NewReader(text))
}
