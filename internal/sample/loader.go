package sample

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/joseph-ayodele/statement-agent/internal/common"
	"github.com/joseph-ayodele/statement-agent/internal/sandbox"
	"github.com/joseph-ayodele/statement-agent/internal/table"
)

// Text sources reported in PDFInfo.Source.
const (
	SourceGoReader  = "ledongthuc/pdf"
	SourcePdftotext = "pdftotext"
	SourceNone      = "none"
)

// Config controls sample loading.
type Config struct {
	Pdftotext      string // path to pdftotext; empty disables the fallback
	MaxPages       int    // pages to extract text from; 0 means all
	SampleChars    int    // first-page sample length used in summaries
	CommandTimeout time.Duration
}

// PDFInfo is what the agent knows about a sample statement before any parser exists.
type PDFInfo struct {
	Path     string
	Pages    int
	PageText []string // normalized, one entry per extracted page
	Source   string
	Warnings []string
}

// Sample is a bank's reference pair.
type Sample struct {
	PDF      *PDFInfo
	Expected *table.Table
}

// Loader reads sample PDFs and reference CSVs.
type Loader struct {
	cfg    Config
	runner sandbox.Runner
	logger *slog.Logger
}

func NewLoader(cfg Config, runner sandbox.Runner, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SampleChars <= 0 {
		cfg.SampleChars = 500
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = 30 * time.Second
	}
	if runner == nil {
		runner = sandbox.NewExecRunner(logger)
	}
	return &Loader{cfg: cfg, runner: runner, logger: logger}
}

// Load reads both halves of a sample. Missing files are ErrNotFound.
func (l *Loader) Load(ctx context.Context, pdfPath, csvPath string) (*Sample, error) {
	info, err := l.LoadPDF(ctx, pdfPath)
	if err != nil {
		return nil, err
	}
	expected, err := table.LoadFile(csvPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, common.NewAppError("SAMPLE_NOT_FOUND", "expected csv not found: "+csvPath, common.ErrNotFound)
		}
		return nil, common.NewAppError("SAMPLE_INVALID", "read expected csv "+csvPath, errors.Join(common.ErrInvalidInput, err))
	}
	l.logger.Info("sample.loaded",
		"pdf", pdfPath,
		"csv", csvPath,
		"pages", info.Pages,
		"text_source", info.Source,
		"columns", len(expected.Columns),
		"rows", expected.NumRows(),
	)
	return &Sample{PDF: info, Expected: expected}, nil
}

// LoadPDF inspects a PDF: structural validation and page count via pdfcpu, text via
// ledongthuc/pdf, with pdftotext as a fallback. Only a missing file is fatal.
func (l *Loader) LoadPDF(ctx context.Context, path string) (*PDFInfo, error) {
	st, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, common.NewAppError("SAMPLE_NOT_FOUND", "sample pdf not found: "+path, common.ErrNotFound)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if st.IsDir() {
		return nil, common.NewAppError("SAMPLE_INVALID", "sample pdf is a directory: "+path, common.ErrInvalidInput)
	}

	info := &PDFInfo{Path: path, Source: SourceNone}

	info.Pages, info.Warnings = inspectStructure(path)

	pages, n, err := l.readWithGoReader(path)
	if err == nil && hasText(pages) {
		info.PageText, info.Source = pages, SourceGoReader
		if info.Pages == 0 {
			info.Pages = n
		}
	} else {
		if err != nil {
			info.Warnings = append(info.Warnings, "go pdf reader: "+err.Error())
		}
		if l.cfg.Pdftotext != "" {
			if pages, err := l.readWithPdftotext(ctx, path); err == nil {
				info.PageText, info.Source = pages, SourcePdftotext
				if info.Pages == 0 {
					info.Pages = len(pages)
				}
			} else {
				info.Warnings = append(info.Warnings, "pdftotext: "+err.Error())
			}
		}
	}

	if len(info.Warnings) > 0 {
		l.logger.Warn("sample.pdf.warnings", "path", path, "warnings", info.Warnings)
	}
	return info, nil
}

// inspectStructure validates the file with pdfcpu and reads its page count.
func inspectStructure(path string) (pages int, warnings []string) {
	defer func() {
		if r := recover(); r != nil {
			warnings = append(warnings, fmt.Sprintf("pdfcpu panic: %v", r))
		}
	}()

	if err := api.ValidateFile(path, model.NewDefaultConfiguration()); err != nil {
		warnings = append(warnings, "pdfcpu validation: "+err.Error())
	}
	pdfCtx, err := api.ReadContextFile(path)
	if err != nil {
		warnings = append(warnings, "pdfcpu read: "+err.Error())
		return 0, warnings
	}
	return pdfCtx.PageCount, warnings
}

func (l *Loader) readWithGoReader(path string) (pages []string, total int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic reading pdf: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	total = r.NumPage()
	limit := total
	if l.cfg.MaxPages > 0 && limit > l.cfg.MaxPages {
		limit = l.cfg.MaxPages
	}
	for i := 1; i <= limit; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, Normalize(pageRowsText(p)))
	}
	return pages, total, nil
}

// pageRowsText joins each visual row's text runs left to right, rows top to bottom.
func pageRowsText(p pdf.Page) string {
	rows, err := p.GetTextByRow()
	if err != nil {
		s, _ := p.GetPlainText(nil)
		return s
	}
	var b strings.Builder
	for _, row := range rows {
		if row == nil || len(row.Content) == 0 {
			continue
		}
		for i, t := range row.Content {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(t.S)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func (l *Loader) readWithPdftotext(ctx context.Context, path string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.CommandTimeout)
	defer cancel()

	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := l.runner.Run(ctx, sandbox.Command{
		Name: l.cfg.Pdftotext,
		Args: []string{"-layout", "-enc", "UTF-8", "-eol", "unix", path, "-"},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, sandbox.Truncate(strings.TrimSpace(string(errb)), 512))
	}
	// form feed separates pages; a trailing one closes the last page
	raw := strings.TrimSuffix(string(out), "\f")
	parts := strings.Split(raw, "\f")
	if l.cfg.MaxPages > 0 && len(parts) > l.cfg.MaxPages {
		parts = parts[:l.cfg.MaxPages]
	}
	pages := make([]string, len(parts))
	for i, p := range parts {
		pages[i] = Normalize(p)
	}
	return pages, nil
}

func hasText(pages []string) bool {
	for _, p := range pages {
		if strings.TrimSpace(p) != "" {
			return true
		}
	}
	return false
}

// FirstPageSample returns up to n characters of the first page's text.
func (p *PDFInfo) FirstPageSample(n int) string {
	if p == nil || len(p.PageText) == 0 {
		return ""
	}
	s := p.PageText[0]
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}

var reRowLine = regexp.MustCompile(`^\s*(\d{1,2}[-/.]\d{1,2}[-/.]\d{2,4}|\d{4}-\d{2}-\d{2}|\d{1,2}[ -][A-Za-z]{3}[ -]\d{2,4})\b`)

// RowLines counts lines that begin with a date, a rough count of transaction rows.
func (p *PDFInfo) RowLines() int {
	if p == nil {
		return 0
	}
	n := 0
	for _, page := range p.PageText {
		for _, line := range strings.Split(page, "\n") {
			if reRowLine.MatchString(line) {
				n++
			}
		}
	}
	return n
}

// Summary renders the PDF facts shown to the model.
func (p *PDFInfo) Summary(sampleChars int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "- Pages: %d\n", p.Pages)
	fmt.Fprintf(&b, "- Lines starting with a date: %d\n", p.RowLines())
	sample := p.FirstPageSample(sampleChars)
	if sample == "" {
		b.WriteString("- First page text sample: (no extractable text)\n")
		return b.String()
	}
	fmt.Fprintf(&b, "- First page text sample:\n%s\n", sample)
	return b.String()
}
