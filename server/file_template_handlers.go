package server

import (
	"embed"
	"html/template"
	"io/fs"
	"sync"
)

//go:embed templates/*
var templateFiles embed.FS

var (
	templatesMu sync.Mutex
	templates   = map[string]*template.Template{}
)

func TemplateFilesFS() fs.FS {
	subFS, err := fs.Sub(templateFiles, "templates")
	if err != nil {
		panic("Failed to create templates sub filesystem: " + err.Error())
	}
	return subFS
}

// ParseTemplate parses an embedded page once and reuses it afterwards.
func ParseTemplate(name string) (*template.Template, error) {
	templatesMu.Lock()
	defer templatesMu.Unlock()
	if tmpl, ok := templates[name]; ok {
		return tmpl, nil
	}
	tmpl, err := template.ParseFS(TemplateFilesFS(), name)
	if err != nil {
		return nil, err
	}
	templates[name] = tmpl
	return tmpl, nil
}
