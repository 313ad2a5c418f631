package diag

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
)

// Save persists the snapshot as indented JSON and returns the path.
func (c *Collector) Save(snapshot *Snapshot) (string, error) {
	target := c.layout.DiagnosticsPath()
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode diagnostics: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("create diagnostics dir: %w", err)
	}
	if err := os.WriteFile(target, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("write diagnostics %s: %w", target, err)
	}
	c.logger.Info("diagnostics report saved", "path", target)
	return target, nil
}

// ExportHTML renders the accessible HTML overview, records its location
// on the snapshot, and returns the path.
func (c *Collector) ExportHTML(snapshot *Snapshot) (string, error) {
	target := c.layout.DiagnosticsHTMLPath()

	var buf bytes.Buffer
	if err := htmlReport.Execute(&buf, snapshot); err != nil {
		return "", fmt.Errorf("render diagnostics html: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("create diagnostics dir: %w", err)
	}
	if err := os.WriteFile(target, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write diagnostics html %s: %w", target, err)
	}

	snapshot.HTMLReportPath = target
	c.logger.Info("diagnostics html saved", "path", target)
	return target, nil
}

var htmlReport = template.Must(template.New("diagnostics").Parse(`<!DOCTYPE html>
<html lang="en">
  <head>
    <meta charset="utf-8" />
    <title>System Diagnostics</title>
    <style>
      body { font-family: 'Segoe UI', Arial, sans-serif; background: #0f0f0f; color: #f4f4f4; margin: 2rem; }
      h1, h2 { color: #ffcc33; }
      table { width: 100%; border-collapse: collapse; margin-bottom: 1.5rem; }
      th, td { border: 1px solid #3a3a3a; padding: 0.5rem; text-align: left; }
      th { background: #1d1d1d; }
      tr:nth-child(even) { background: #191919; }
      .ok { color: #6ad870; }
      .warn { color: #ff9966; }
      code { background: #1d1d1d; padding: 0.1rem 0.3rem; border-radius: 3px; }
    </style>
  </head>
  <body>
    <h1>System Diagnostics</h1>
    <p>Generated at <strong>{{.GeneratedAt}}</strong></p>

    <h2>Host</h2>
    <ul>
      <li>Go: <code>{{.Host.GoVersion}}</code></li>
      <li>System: {{.Host.OS}}/{{.Host.Arch}}</li>
      <li>Hostname: {{.Host.Hostname}}</li>
      <li>Workspace: {{.Host.Workspace}}</li>
    </ul>

    <h2>Python</h2>
    <ul>
      <li>Version: <code>{{.Python.Version}}</code></li>
      <li>Interpreter: {{.Python.Executable}}</li>
    </ul>

    <h2>Virtual environment</h2>
    <p>Status: <strong class="{{if .Virtualenv.Present}}ok{{else}}warn{{end}}">{{if .Virtualenv.Present}}present{{else}}missing{{end}}</strong></p>
    <ul>
      <li>Expected path: {{.Virtualenv.Path}}</li>
      <li>Interpreter: {{.Virtualenv.Python}}</li>
    </ul>

    <h2>Paths</h2>
    <table aria-label="Path status">
      <thead><tr><th>Path</th><th>Kind</th><th>Exists</th><th>Writable</th></tr></thead>
      <tbody>
        {{range .Paths}}<tr><td>{{.Path}}</td><td>{{.Kind}}</td><td>{{.Exists}}</td><td>{{.Writable}}</td></tr>
        {{end}}
      </tbody>
    </table>

    <h2>Packages</h2>
    <table aria-label="Package status">
      <thead><tr><th>Package</th><th>Installed version</th><th>Required</th><th>Status</th><th>Note</th></tr></thead>
      <tbody>
        {{range .Packages}}<tr><td>{{.Name}}</td><td>{{.Version}}</td><td>{{.Required}}</td><td>{{.Status}}</td><td>{{.Message}}</td></tr>
        {{end}}
      </tbody>
    </table>

    <h2>Summary</h2>
    <p>Status: <strong class="{{if eq .Summary.Status "ok"}}ok{{else}}warn{{end}}">{{.Summary.Status}}</strong></p>
    <h3>Issues</h3>
    <ul>
      {{range .Summary.Issues}}<li>{{.}}</li>{{else}}<li>No issues</li>{{end}}
    </ul>
    <h3>Recommendations</h3>
    <ul>
      {{range .Summary.Recommendations}}<li>{{.}}</li>{{else}}<li>No recommendations</li>{{end}}
    </ul>
  </body>
</html>
`))
