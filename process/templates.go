package process

import (
	"bytes"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"text/template"

	sprig "github.com/go-task/slim-sprig/v3"

	"pmix/config"
)

// Values is a struct that holds variables we make available for template expansion
type Values struct {
	Context string
	// Name is source file name without extension
	Name string
	// Ext is source file extension without leading dot
	Ext string
	// Dir is slash separated source directory relative to processed input,
	// empty for top level sources
	Dir        string
	SourceFile string
	// Mixins lists expanded mixins in order of first use
	Mixins []string
}

func buildValues(name config.TemplateFieldName, src string, used []string) Values {
	src = filepath.ToSlash(src)
	base := path.Base(src)
	ext := path.Ext(base)

	dir := path.Dir(src)
	if dir == "." {
		dir = ""
	}
	return Values{
		Context:    string(name),
		Name:       strings.TrimSuffix(base, ext),
		Ext:        strings.TrimPrefix(ext, "."),
		Dir:        dir,
		SourceFile: src,
		Mixins:     used,
	}
}

func expandTemplate(name config.TemplateFieldName, field string, values Values) (string, error) {
	funcMap := sprig.FuncMap()

	tmpl, err := template.New(string(name)).Funcs(funcMap).Parse(field)
	if err != nil {
		return "", fmt.Errorf("unable to parse template field %s: %w", name, err)
	}

	buf := new(bytes.Buffer)
	if err := tmpl.Execute(buf, values); err != nil {
		return "", err
	}
	return buf.String(), nil
}
