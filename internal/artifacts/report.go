package artifacts

import (
	"context"
	"encoding/base64"
	"encoding/csv"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/ard14n/AJETE/api/schemas"
)

// PDFRenderer turns HTML into PDF bytes. The browser session satisfies this
// through its print pipeline.
type PDFRenderer interface {
	PrintToPDF(ctx context.Context, html string) ([]byte, error)
}

// ReportDocument is the persisted report/report.json.
type ReportDocument struct {
	RunID       string                 `json:"runId"`
	CreatedAt   time.Time              `json:"createdAt"`
	StartURL    string                 `json:"startUrl"`
	FinalURL    string                 `json:"finalUrl"`
	Objective   string                 `json:"objective,omitempty"`
	Persona     string                 `json:"persona"`
	ModelName   string                 `json:"modelName,omitempty"`
	StepCount   int                    `json:"stepCount"`
	ErrorCount  int                    `json:"errorCount"`
	Steps       []schemas.StepRecord   `json:"steps"`
	Errors      []schemas.ErrorRecord  `json:"errors,omitempty"`
	Screenshots int                    `json:"screenshotCount"`
	Thoughts    []schemas.ThoughtRecord `json:"thoughts,omitempty"`
}

// WriteThoughts persists thoughts/thoughts.json and the plain-text twin.
// Returns the json path.
func (r *Recorder) WriteThoughts() (string, error) {
	thoughts, _, _, _, _ := r.Snapshot()

	dir := filepath.Join(r.dir, "thoughts")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("artifacts: failed to create thoughts directory: %w", err)
	}

	data, err := jsonAPI.MarshalIndent(thoughts, "", "  ")
	if err != nil {
		return "", fmt.Errorf("artifacts: failed to marshal thoughts: %w", err)
	}
	jsonPath := filepath.Join(dir, "thoughts.json")
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return "", fmt.Errorf("artifacts: failed to write thoughts: %w", err)
	}

	var b strings.Builder
	for _, t := range thoughts {
		fmt.Fprintf(&b, "[%s] %s\n", t.Timestamp.Format(time.RFC3339), t.Message)
	}
	txtPath := filepath.Join(dir, "thoughts.txt")
	if err := os.WriteFile(txtPath, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("artifacts: failed to write thoughts text: %w", err)
	}
	return jsonPath, nil
}

// BuildReport assembles the report document from the ledger.
func (r *Recorder) BuildReport(meta RunMeta) ReportDocument {
	thoughts, steps, errs, screenshots, _ := r.Snapshot()
	return ReportDocument{
		RunID:       r.runID,
		CreatedAt:   time.Now().UTC(),
		StartURL:    meta.StartURL,
		FinalURL:    meta.FinalURL,
		Objective:   meta.Objective,
		Persona:     meta.Persona,
		ModelName:   meta.ModelName,
		StepCount:   len(steps),
		ErrorCount:  len(errs),
		Steps:       steps,
		Errors:      errs,
		Screenshots: len(screenshots),
		Thoughts:    thoughts,
	}
}

// WriteReport persists report/report.json, report/steps.csv, and when a
// renderer is available, report/report.pdf. A run with zero steps still gets
// its report set. Returns the report directory.
func (r *Recorder) WriteReport(ctx context.Context, meta RunMeta, renderer PDFRenderer) (string, error) {
	doc := r.BuildReport(meta)

	dir := filepath.Join(r.dir, "report")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("artifacts: failed to create report directory: %w", err)
	}

	data, err := jsonAPI.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("artifacts: failed to marshal report: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "report.json"), data, 0o644); err != nil {
		return "", fmt.Errorf("artifacts: failed to write report: %w", err)
	}

	if err := writeStepsCSV(filepath.Join(dir, "steps.csv"), doc.Steps); err != nil {
		return "", err
	}

	if renderer != nil {
		pdfPath := filepath.Join(dir, "report.pdf")
		if err := r.writePDF(ctx, pdfPath, doc, renderer); err != nil {
			// The PDF is a convenience; json and csv are the report of record.
			r.logger.Warn("Report PDF skipped: " + err.Error())
		}
	}
	return dir, nil
}

func writeStepsCSV(path string, steps []schemas.StepRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("artifacts: failed to create steps csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"id", "timestamp", "action", "targetId", "value", "thought", "url"}); err != nil {
		return fmt.Errorf("artifacts: failed to write csv header: %w", err)
	}
	for _, s := range steps {
		row := []string{
			fmt.Sprintf("%d", s.ID),
			s.Timestamp.Format(time.RFC3339),
			string(s.Action),
			s.TargetID,
			s.Value,
			s.Thought,
			s.URL,
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("artifacts: failed to write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("artifacts: failed to flush csv: %w", err)
	}
	return nil
}

func (r *Recorder) writePDF(ctx context.Context, path string, doc ReportDocument, renderer PDFRenderer) error {
	_, _, _, shots, _ := r.Snapshot()
	pdf, err := renderer.PrintToPDF(ctx, renderReportHTML(doc, screenshotPreviews(shots, reportPreviewLimit)))
	if err != nil {
		return fmt.Errorf("rendering failed: %w", err)
	}
	if err := os.WriteFile(path, pdf, 0o644); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	if err := api.ValidateFile(path, nil); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

const (
	// reportThoughtLimit caps the think-aloud excerpt in the PDF.
	reportThoughtLimit = 20
	// reportPreviewLimit caps the embedded screenshot previews.
	reportPreviewLimit = 12
)

// screenshotPreviews loads up to limit captures as data URLs. Unreadable
// files are skipped; the report renders without them.
func screenshotPreviews(shots []schemas.ScreenshotRecord, limit int) []string {
	previews := make([]string, 0, limit)
	for _, shot := range shots {
		if len(previews) == limit {
			break
		}
		data, err := os.ReadFile(shot.Path)
		if err != nil {
			continue
		}
		previews = append(previews, "data:image/png;base64,"+base64.StdEncoding.EncodeToString(data))
	}
	return previews
}

// actionBreakdown counts executed steps per action kind, in a fixed order.
func actionBreakdown(steps []schemas.StepRecord) []struct {
	Action schemas.ActionKind
	Count  int
} {
	counts := make(map[schemas.ActionKind]int)
	for _, s := range steps {
		counts[s.Action]++
	}
	order := []schemas.ActionKind{
		schemas.ActionClick, schemas.ActionType, schemas.ActionScroll,
		schemas.ActionWait, schemas.ActionDone,
	}
	out := make([]struct {
		Action schemas.ActionKind
		Count  int
	}, 0, len(order))
	for _, a := range order {
		if counts[a] > 0 {
			out = append(out, struct {
				Action schemas.ActionKind
				Count  int
			}{a, counts[a]})
		}
	}
	return out
}

// renderReportHTML builds the printable journey summary: metadata, metrics,
// the step table, recent thoughts, screenshot previews, and errors.
func renderReportHTML(doc ReportDocument, previews []string) string {
	esc := html.EscapeString

	var b strings.Builder
	b.WriteString(`<!DOCTYPE html><html><head><meta charset="utf-8"><style>
body { font-family: Helvetica, Arial, sans-serif; margin: 36px; color: #1a1a1a; }
h1 { font-size: 22px; margin-bottom: 2px; }
h2 { font-size: 16px; margin-top: 22px; }
.meta { color: #555; font-size: 12px; margin-bottom: 18px; }
table { border-collapse: collapse; width: 100%; font-size: 12px; }
th, td { border: 1px solid #ccc; padding: 5px 8px; text-align: left; vertical-align: top; }
th { background: #f0f0f0; }
.err { color: #a40000; }
.shots img { width: 220px; margin: 4px; border: 1px solid #ccc; }
</style></head><body>`)

	fmt.Fprintf(&b, "<h1>Journey report: %s</h1>", esc(doc.RunID))
	fmt.Fprintf(&b, `<p class="meta">persona %s &middot; %s &rarr; %s</p>`,
		esc(doc.Persona), esc(doc.StartURL), esc(doc.FinalURL))
	if doc.Objective != "" {
		fmt.Fprintf(&b, "<p><strong>Objective:</strong> %s</p>", esc(doc.Objective))
	}

	b.WriteString("<h2>Metrics</h2><table><tr><th>Steps</th><th>Errors</th><th>Screenshots</th><th>Thoughts</th></tr>")
	fmt.Fprintf(&b, "<tr><td>%d</td><td>%d</td><td>%d</td><td>%d</td></tr></table>",
		doc.StepCount, doc.ErrorCount, doc.Screenshots, len(doc.Thoughts))

	if breakdown := actionBreakdown(doc.Steps); len(breakdown) > 0 {
		b.WriteString("<h2>Actions</h2><table><tr><th>Action</th><th>Count</th></tr>")
		for _, row := range breakdown {
			fmt.Fprintf(&b, "<tr><td>%s</td><td>%d</td></tr>", esc(string(row.Action)), row.Count)
		}
		b.WriteString("</table>")
	}

	b.WriteString("<h2>Steps</h2><table><tr><th>#</th><th>Time</th><th>Action</th><th>Target</th><th>Thought</th></tr>")
	for _, s := range doc.Steps {
		target := s.TargetID
		if s.Value != "" {
			target += " = " + s.Value
		}
		fmt.Fprintf(&b, "<tr><td>%d</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>",
			s.ID, s.Timestamp.Format("15:04:05"), esc(string(s.Action)), esc(target), esc(s.Thought))
	}
	b.WriteString("</table>")

	thoughts := doc.Thoughts
	if len(thoughts) > reportThoughtLimit {
		thoughts = thoughts[len(thoughts)-reportThoughtLimit:]
	}
	if len(thoughts) > 0 {
		b.WriteString("<h2>Thinking aloud</h2><table><tr><th>Time</th><th>Thought</th></tr>")
		for _, th := range thoughts {
			fmt.Fprintf(&b, "<tr><td>%s</td><td>%s</td></tr>",
				th.Timestamp.Format("15:04:05"), esc(th.Message))
		}
		b.WriteString("</table>")
	}

	if len(previews) > 0 {
		b.WriteString(`<h2>Screenshots</h2><div class="shots">`)
		for _, src := range previews {
			fmt.Fprintf(&b, `<img src="%s">`, src)
		}
		b.WriteString("</div>")
	}

	if len(doc.Errors) > 0 {
		b.WriteString("<h2>Errors</h2><table><tr><th>Time</th><th>Message</th></tr>")
		for _, e := range doc.Errors {
			fmt.Fprintf(&b, `<tr><td>%s</td><td class="err">%s</td></tr>`,
				e.Timestamp.Format("15:04:05"), esc(e.Message))
		}
		b.WriteString("</table>")
	}

	b.WriteString("</body></html>")
	return b.String()
}
