// Package scaffold implements `scriptedge init` (spec.md §6): it renders
// a starter project from embedded templates and initializes a git
// repository over it with one commit. Nothing in the teacher repo
// scaffolds projects, so the template-rendering shape here is authored
// fresh around text/template and embed, while the git plumbing is
// grounded on github.com/go-git/go-git/v5 — a dependency several other
// repos in the retrieved pack declare for exactly this kind of
// programmatic repository setup (e.g. the manifests under
// other_examples/ list it for project scaffolding and vendoring tools).
package scaffold

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// data is the set of values available to every template.
type data struct {
	ProjectName string
}

// file describes one template to render into the new project, keyed by
// its destination path relative to the project root.
type file struct {
	template string
	dest     string
}

var files = []file{
	{template: "templates/config.yml.tmpl", dest: "config.yml"},
	{template: "templates/main.ts.tmpl", dest: "main.ts"},
	{template: "templates/gitignore.tmpl", dest: ".gitignore"},
}

// Init renders the starter project into dir (created if absent) and
// commits it as the first commit of a new git repository, named after
// projectName.
func Init(dir, projectName string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("scaffold: creating project directory: %w", err)
	}

	d := data{ProjectName: projectName}
	for _, f := range files {
		if err := renderFile(dir, f, d); err != nil {
			return err
		}
	}

	return initRepo(dir)
}

func renderFile(dir string, f file, d data) error {
	tmplData, err := templatesFS.ReadFile(f.template)
	if err != nil {
		return fmt.Errorf("scaffold: reading template %s: %w", f.template, err)
	}

	tmpl, err := template.New(filepath.Base(f.template)).Parse(string(tmplData))
	if err != nil {
		return fmt.Errorf("scaffold: parsing template %s: %w", f.template, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, d); err != nil {
		return fmt.Errorf("scaffold: rendering template %s: %w", f.template, err)
	}

	destPath := filepath.Join(dir, f.dest)
	if err := os.WriteFile(destPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("scaffold: writing %s: %w", destPath, err)
	}
	return nil
}

// initRepo creates a git repository at dir and commits the rendered
// project files as the initial commit.
func initRepo(dir string) error {
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		return fmt.Errorf("scaffold: git init: %w", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("scaffold: opening worktree: %w", err)
	}

	if _, err := wt.Add("."); err != nil {
		return fmt.Errorf("scaffold: staging files: %w", err)
	}

	signature := &object.Signature{
		Name:  "scriptedge",
		Email: "scriptedge@localhost",
		When:  time.Now(),
	}
	if _, err := wt.Commit("Initial commit", &git.CommitOptions{Author: signature}); err != nil {
		return fmt.Errorf("scaffold: committing initial project: %w", err)
	}

	return nil
}
