// Package generator renders one supervisor program file per volume.
//
// # Templates
//
// The template is read from the configured template path. Two syntaxes are
// accepted:
//
//   - Go text/template, used whenever the file contains "{{":
//     [program:unison{{.name}}]
//   - $name / ${name} placeholders, as found in older images:
//     [program:unison${name}]
//
// Both see the same keys: volume, shadow, name, user, uid, homedir, ignore,
// unison_ignore, unison_defaults and port. Referencing any other key is an
// error. When no template file exists, DefaultTemplate is used.
//
// # Output
//
// Each volume is written to <supervisor dir>/unison<name>.conf. The file name
// is joined with filepath-securejoin so it never leaves the supervisor
// directory.
//
//	r := generator.NewRenderer(fs, settings)
//	files, err := r.Render(global)
package generator
