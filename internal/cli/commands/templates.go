package commands

import (
	"bytes"
	"embed"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"text/template"
)

//go:embed all:templates
var templateFS embed.FS

// templateData is available to every project template.
type templateData struct {
	Encoding string
}

// copyTemplate renders an embedded template directory into targetDir and
// returns the files it wrote, relative to targetDir. Existing files are kept
// unless force is set.
func copyTemplate(templateName, targetDir string, data templateData, force bool) ([]string, error) {
	root := path.Join("templates", templateName)
	var written []string

	err := fs.WalkDir(templateFS, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if relPath == "." {
			return nil
		}

		relPath = renameSpecialFiles(relPath)
		targetPath := filepath.Join(targetDir, relPath)

		if d.IsDir() {
			return os.MkdirAll(targetPath, 0750)
		}

		if !force {
			if _, err := os.Stat(targetPath); err == nil {
				return nil
			}
		}

		raw, err := templateFS.ReadFile(p)
		if err != nil {
			return err
		}
		tmpl, err := template.New(relPath).Parse(string(raw))
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return err
		}

		if err := os.MkdirAll(filepath.Dir(targetPath), 0750); err != nil {
			return err
		}
		if err := os.WriteFile(targetPath, buf.Bytes(), 0600); err != nil {
			return err
		}
		written = append(written, relPath)
		return nil
	})

	return written, err
}

// renameSpecialFiles handles files that need renaming (e.g., dotfiles).
func renameSpecialFiles(p string) string {
	base := filepath.Base(p)
	dir := filepath.Dir(p)

	switch base {
	case "gitignore":
		return filepath.Join(dir, ".gitignore")
	default:
		return p
	}
}
