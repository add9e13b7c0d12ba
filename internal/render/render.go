// Package render writes research reports as Markdown documents with YAML
// front matter. Typesetting the Markdown into PDF happens downstream.
package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/raphaelgruber/legalchat/internal/models"
)

// ErrRender marks any failure to produce a document.
var ErrRender = errors.New("render document")

// FrontMatter is the YAML header of a rendered report.
type FrontMatter struct {
	Query       string             `yaml:"query"`
	Name        string             `yaml:"name,omitempty"`
	CaseCount   int                `yaml:"case_count"`
	Language    models.LanguageTag `yaml:"language"`
	Direction   models.Direction   `yaml:"direction"`
	GeneratedAt time.Time          `yaml:"generated_at"`
}

// Renderer writes reports into a directory.
type Renderer struct {
	dir string
	now func() time.Time
}

// New creates a renderer writing into dir. An empty dir uses "reports".
func New(dir string) *Renderer {
	if dir == "" {
		dir = "reports"
	}
	return &Renderer{dir: dir, now: time.Now}
}

// Render writes one report and returns its artifact handle.
func (r *Renderer) Render(ctx context.Context, req models.RenderRequest) (models.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return models.Artifact{}, fmt.Errorf("%w: %w", ErrRender, err)
	}
	if strings.TrimSpace(req.Findings.Findings) == "" {
		return models.Artifact{}, fmt.Errorf("%w: no findings", ErrRender)
	}

	direction := req.Direction
	if direction == "" {
		direction = req.Language.Direction()
	}
	now := r.now().UTC()

	body, err := Document(FrontMatter{
		Query:       req.Query,
		Name:        req.Name,
		CaseCount:   req.Findings.CaseCount,
		Language:    req.Language,
		Direction:   direction,
		GeneratedAt: now,
	}, req.Summary, req.Findings)
	if err != nil {
		return models.Artifact{}, err
	}

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return models.Artifact{}, fmt.Errorf("%w: create dir: %w", ErrRender, err)
	}

	slug := models.Slugify(string(req.Conversation))
	if slug == "" {
		slug = "anonymous"
	}
	path := filepath.Join(r.dir, fmt.Sprintf("report_%s_%s.md", slug, now.Format("20060102_150405")))
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return models.Artifact{}, fmt.Errorf("%w: write file: %w", ErrRender, err)
	}

	return models.Artifact{
		ID:       models.NewID("doc"),
		Kind:     models.ArtifactDocument,
		Path:     path,
		MimeType: "text/markdown",
	}, nil
}

// Document builds the report body: front matter, summary, analysis, references.
func Document(fm FrontMatter, summary string, findings models.Research) ([]byte, error) {
	header, err := yaml.Marshal(fm)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal front matter: %w", ErrRender, err)
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(header)
	b.WriteString("---\n\n")

	t := headingsFor(fm.Language)
	fmt.Fprintf(&b, "# %s\n\n", t.title)
	if fm.Query != "" {
		fmt.Fprintf(&b, "> %s\n\n", fm.Query)
	}
	if s := strings.TrimSpace(summary); s != "" {
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", t.summary, s)
	}
	fmt.Fprintf(&b, "## %s\n\n%s\n", t.analysis, strings.TrimSpace(findings.Findings))

	if len(findings.ReferenceLinks) > 0 {
		fmt.Fprintf(&b, "\n## %s\n\n", t.references)
		for i, ref := range findings.ReferenceLinks {
			label := ref.CaseNo
			if ref.Title != "" {
				label += " " + ref.Title
			}
			fmt.Fprintf(&b, "%d. [%s](%s)\n", i+1, strings.TrimSpace(label), ref.URL)
		}
	}
	return []byte(b.String()), nil
}

type headings struct {
	title, summary, analysis, references string
}

func headingsFor(lang models.LanguageTag) headings {
	if lang == models.LanguageSecondary {
		return headings{
			title:      "قانونی تحقیقی رپورٹ",
			summary:    "خلاصہ",
			analysis:   "تفصیلی تجزیہ",
			references: "حوالہ جات",
		}
	}
	return headings{
		title:      "Legal Research Report",
		summary:    "Summary",
		analysis:   "Detailed Analysis",
		references: "References",
	}
}
