package dashboard

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"greedos/internal/storage"
)

//go:embed templates/*.json.tmpl
var grafanaTemplates embed.FS

// GrafanaParams fills the Grafana dashboard templates.
type GrafanaParams struct {
	// Table is the GreptimeDB table holding mirrored events.
	Table string
}

// RenderGrafana writes Grafana dashboards for the GreptimeDB event table to
// outDir. Datasource UIDs are read from the environment.
func RenderGrafana(outDir string, params GrafanaParams) ([]string, error) {
	if params.Table == "" {
		params.Table = storage.DefaultGreptimeTable
	}
	funcMap := template.FuncMap{
		"env": func(key string) (string, error) {
			v := os.Getenv(key)
			if v == "" {
				return "", fmt.Errorf("environment variable %s not set", key)
			}
			return v, nil
		},
	}

	names, err := grafanaTemplates.ReadDir("templates")
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}
	var written []string
	for _, entry := range names {
		t, err := template.New(entry.Name()).Funcs(funcMap).ParseFS(grafanaTemplates, "templates/"+entry.Name())
		if err != nil {
			return written, err
		}
		outPath := filepath.Join(outDir, strings.TrimSuffix(entry.Name(), ".tmpl"))
		f, err := os.Create(outPath)
		if err != nil {
			return written, err
		}
		if err := t.Execute(f, params); err != nil {
			f.Close()
			return written, err
		}
		if err := f.Close(); err != nil {
			return written, err
		}
		written = append(written, outPath)
	}
	return written, nil
}
