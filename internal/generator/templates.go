package generator

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"text/template"

	"github.com/kballard/go-shellquote"
)

// ErrTemplate marks template parse and execution failures.
var ErrTemplate = errors.New("template error")

// DefaultTemplate keeps one volume in sync with its host mount under
// supervisor.
const DefaultTemplate = `[program:unison{{.name}}]
command = unison {{quote .shadow}} {{quote .volume}} -numericids {{.unison_defaults}}{{.unison_ignore}}
user = {{.user}}
directory = {{.homedir}}
environment = HOME="{{.homedir}}",UNISON_PORT="{{.port}}"
autostart = true
autorestart = true
stopsignal = TERM
stdout_logfile = /dev/stdout
stdout_logfile_maxbytes = 0
redirect_stderr = true
`

var funcs = template.FuncMap{
	"quote": func(s string) string { return shellquote.Join(s) },
}

// placeholder matches, in order: an escaped "$$", $name, ${name}, and a
// "$" that starts neither.
var placeholder = regexp.MustCompile(`\$(?:(\$)|([_A-Za-z][_A-Za-z0-9]*)|\{([_A-Za-z][_A-Za-z0-9]*)\}|())`)

// Template is a parsed supervisor program template.
type Template struct {
	name string
	text *template.Template // nil for placeholder templates
	raw  string
}

// ParseTemplate parses text, picking the syntax from its content.
func ParseTemplate(name, text string) (*Template, error) {
	if !strings.Contains(text, "{{") {
		return &Template{name: name, raw: text}, nil
	}
	t, err := template.New(name).Funcs(funcs).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplate, err)
	}
	return &Template{name: name, text: t}, nil
}

// Execute renders the template over data.
func (t *Template) Execute(data map[string]any) (string, error) {
	if t.text != nil {
		var buf bytes.Buffer
		if err := t.text.Execute(&buf, data); err != nil {
			return "", fmt.Errorf("%w: %v", ErrTemplate, err)
		}
		return buf.String(), nil
	}
	return t.substitute(data)
}

// substitute expands $name and ${name}. "$$" is a literal dollar sign; any
// other "$" is an error.
func (t *Template) substitute(data map[string]any) (string, error) {
	var b strings.Builder
	last := 0
	for _, m := range placeholder.FindAllStringSubmatchIndex(t.raw, -1) {
		b.WriteString(t.raw[last:m[0]])
		last = m[1]

		var key string
		switch {
		case m[2] >= 0:
			b.WriteByte('$')
			continue
		case m[4] >= 0:
			key = t.raw[m[4]:m[5]]
		case m[6] >= 0:
			key = t.raw[m[6]:m[7]]
		default:
			line, col := position(t.raw, m[0])
			return "", fmt.Errorf("%w: %s: invalid placeholder at line %d, col %d", ErrTemplate, t.name, line, col)
		}

		v, ok := data[key]
		if !ok {
			return "", fmt.Errorf("%w: %s: unknown placeholder %q", ErrTemplate, t.name, key)
		}
		fmt.Fprint(&b, v)
	}
	b.WriteString(t.raw[last:])
	return b.String(), nil
}

// position returns the 1-based line and column of offset in s.
func position(s string, offset int) (line, col int) {
	before := s[:offset]
	line = strings.Count(before, "\n") + 1
	col = offset - strings.LastIndex(before, "\n")
	return line, col
}
