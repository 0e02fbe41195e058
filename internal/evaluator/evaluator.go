package evaluator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/statement-agent/constants"
	"github.com/joseph-ayodele/statement-agent/internal/sandbox"
	"github.com/joseph-ayodele/statement-agent/internal/table"
)

// maxOutput bounds compiler and stderr text carried in errors.
const maxOutput = 6 << 10

// Config controls isolated builds and runs.
type Config struct {
	GoBinary     string
	WorkDir      string // parent of per-evaluation temp dirs; empty means os.TempDir()
	BuildTimeout time.Duration
	RunTimeout   time.Duration
	Tolerance    decimal.Decimal
}

// Evaluator checks a generated parser against an expected table.
type Evaluator struct {
	cfg    Config
	runner sandbox.Runner
	logger *slog.Logger
}

func New(cfg Config, runner sandbox.Runner, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.GoBinary == "" {
		cfg.GoBinary = "go"
	}
	if cfg.BuildTimeout <= 0 {
		cfg.BuildTimeout = 3 * time.Minute
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 30 * time.Second
	}
	if runner == nil {
		runner = sandbox.NewExecRunner(logger)
	}
	return &Evaluator{cfg: cfg, runner: runner, logger: logger}
}

// Evaluate statically checks, builds and runs the parser at parserPath on pdfPath, then
// compares its CSV output with expected. It returns nil on a match, otherwise a
// *LoadError, *RuntimeError or *MismatchError; any other error is infrastructure failure.
func (e *Evaluator) Evaluate(ctx context.Context, parserPath, pdfPath string, expected *table.Table) error {
	start := time.Now()
	log := e.logger.With("parser", parserPath)

	src, err := os.ReadFile(parserPath)
	if err != nil {
		return &LoadError{Stage: StageRead, Detail: err.Error()}
	}
	imports, err := CheckSource(src)
	if err != nil {
		log.Info("evaluator.static.failed", "error", err)
		return err
	}

	absPDF, err := filepath.Abs(pdfPath)
	if err != nil {
		return fmt.Errorf("resolve pdf path: %w", err)
	}

	workDir, err := os.MkdirTemp(e.cfg.WorkDir, "parser-eval-*")
	if err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			log.Warn("evaluator.cleanup_error", "dir", workDir, "error", err)
		}
	}()

	bin, err := e.build(ctx, workDir, src, imports)
	if err != nil {
		log.Info("evaluator.build.failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return err
	}

	actual, err := e.run(ctx, workDir, bin, absPDF)
	if err != nil {
		log.Info("evaluator.run.failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return err
	}

	if diff := table.Compare(expected, actual, table.CompareOptions{Tolerance: e.cfg.Tolerance}); diff != nil {
		log.Info("evaluator.compare.mismatch", "kind", diff.Kind, "summary", diff.Summary,
			"elapsed_ms", time.Since(start).Milliseconds())
		return &MismatchError{Diff: diff}
	}

	log.Info("evaluator.compare.match", "rows", actual.NumRows(), "elapsed_ms", time.Since(start).Milliseconds())
	return nil
}

// CheckSource parses src as a single Go file and requires package main, a func main and
// imports limited to the standard library plus the allowed PDF module. It returns the
// import paths.
func CheckSource(src []byte) ([]string, error) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "main.go", src, parser.AllErrors|parser.SkipObjectResolution)
	if err != nil {
		return nil, &LoadError{Stage: StageSyntax, Detail: err.Error()}
	}
	if f.Name.Name != "main" {
		return nil, &LoadError{Stage: StagePackage, Detail: fmt.Sprintf("package %s, expected package main", f.Name.Name)}
	}
	if !hasMainFunc(f) {
		return nil, &LoadError{Stage: StagePackage, Detail: "no func main() declared"}
	}

	var imports, bad []string
	for _, spec := range f.Imports {
		path, err := strconv.Unquote(spec.Path.Value)
		if err != nil {
			continue
		}
		imports = append(imports, path)
		if !allowedImport(path) {
			bad = append(bad, strconv.Quote(path))
		}
	}
	if len(bad) > 0 {
		return nil, &LoadError{
			Stage: StageImports,
			Detail: fmt.Sprintf("import %s not available; only the standard library and %s may be used",
				strings.Join(bad, ", "), constants.ParserPDFModule),
		}
	}
	return imports, nil
}

func hasMainFunc(f *ast.File) bool {
	for _, d := range f.Decls {
		if fn, ok := d.(*ast.FuncDecl); ok && fn.Recv == nil && fn.Name.Name == "main" {
			return true
		}
	}
	return false
}

func allowedImport(path string) bool {
	if path == constants.ParserPDFModule || strings.HasPrefix(path, constants.ParserPDFModule+"/") {
		return true
	}
	// standard library paths have no dot in their first element
	first, _, _ := strings.Cut(path, "/")
	return !strings.Contains(first, ".") && path != "C"
}

func goMod(imports []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "module generatedparser\n\ngo %s\n", constants.ParserGoVersion)
	for _, imp := range imports {
		if imp == constants.ParserPDFModule || strings.HasPrefix(imp, constants.ParserPDFModule+"/") {
			fmt.Fprintf(&b, "\nrequire %s %s\n", constants.ParserPDFModule, constants.ParserPDFVersion)
			break
		}
	}
	return b.String()
}

func (e *Evaluator) build(ctx context.Context, dir string, src []byte, imports []string) (string, error) {
	if err := os.WriteFile(filepath.Join(dir, "main.go"), src, 0o644); err != nil {
		return "", fmt.Errorf("write main.go: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "go.mod"), []byte(goMod(imports)), 0o644); err != nil {
		return "", fmt.Errorf("write go.mod: %w", err)
	}

	bin := filepath.Join(dir, "parser")
	if runtime.GOOS == "windows" {
		bin += ".exe"
	}

	bctx, cancel := context.WithTimeout(ctx, e.cfg.BuildTimeout)
	defer cancel()

	out, errb, err := e.runner.Run(bctx, sandbox.Command{
		Name: e.cfg.GoBinary,
		Args: []string{"build", "-mod=mod", "-o", bin, "."},
		Dir:  dir,
		Env:  sandbox.ReducedEnv("GOWORK=off", "GOFLAGS=-mod=mod", "CGO_ENABLED=0"),
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if errors.Is(bctx.Err(), context.DeadlineExceeded) {
			return "", &LoadError{Stage: StageBuild, Detail: fmt.Sprintf("build timed out after %s", e.cfg.BuildTimeout)}
		}
		output := strings.TrimSpace(string(errb) + "\n" + string(out))
		if output == "" {
			output = err.Error()
		}
		return "", &LoadError{Stage: StageBuild, Detail: scrub(output, dir)}
	}
	return bin, nil
}

func (e *Evaluator) run(ctx context.Context, dir, bin, pdfPath string) (*table.Table, error) {
	rctx, cancel := context.WithTimeout(ctx, e.cfg.RunTimeout)
	defer cancel()

	out, errb, err := e.runner.Run(rctx, sandbox.Command{
		Name: bin,
		Args: []string{pdfPath},
		Dir:  dir,
		Env:  sandbox.ReducedEnv(),
	})
	stderr := scrub(string(errb), dir)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(rctx.Err(), context.DeadlineExceeded) {
			return nil, &RuntimeError{
				Detail:   fmt.Sprintf("parser did not finish within %s", e.cfg.RunTimeout),
				Stderr:   stderr,
				TimedOut: true,
			}
		}
		return nil, &RuntimeError{Detail: err.Error(), Stderr: stderr}
	}

	if len(bytes.TrimSpace(out)) == 0 {
		return nil, &RuntimeError{Detail: "parser wrote nothing to stdout", Stderr: stderr}
	}
	t, err := table.Parse(bytes.NewReader(out))
	if err != nil {
		return nil, &RuntimeError{Detail: "output is not valid CSV: " + err.Error(), Stderr: stderr}
	}
	return t, nil
}

// scrub hides the per-run temp dir so identical failures produce identical text.
func scrub(s, dir string) string {
	s = strings.ReplaceAll(s, dir+string(filepath.Separator), "./")
	s = strings.ReplaceAll(s, dir, ".")
	return sandbox.Truncate(s, maxOutput)
}
