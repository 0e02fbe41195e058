package evaluator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/statement-agent/internal/sandbox"
	"github.com/joseph-ayodele/statement-agent/internal/table"
)

const validSource = `package main

import (
	"encoding/csv"
	"os"

	"github.com/ledongthuc/pdf"
)

var _ = pdf.Open

func main() {
	w := csv.NewWriter(os.Stdout)
	_ = w.Write([]string{"Date", "Amount"})
	w.Flush()
}
`

type result struct {
	stdout, stderr string
	err            error
}

// fakeRunner answers go build and parser runs separately and records what it saw.
type fakeRunner struct {
	build result
	run   result

	calls   []sandbox.Command
	goMod   string
	mainGo  string
	workDir string
}

func (f *fakeRunner) Run(ctx context.Context, c sandbox.Command) ([]byte, []byte, error) {
	f.calls = append(f.calls, c)
	f.workDir = c.Dir
	if c.Name == "go" {
		b, _ := os.ReadFile(filepath.Join(c.Dir, "go.mod"))
		f.goMod = string(b)
		m, _ := os.ReadFile(filepath.Join(c.Dir, "main.go"))
		f.mainGo = string(m)
		return []byte(f.build.stdout), []byte(f.build.stderr), f.build.err
	}
	if f.run.err == context.DeadlineExceeded {
		<-ctx.Done()
		return nil, []byte(f.run.stderr), ctx.Err()
	}
	return []byte(f.run.stdout), []byte(f.run.stderr), f.run.err
}

func expectedTable(n int) *table.Table {
	t := &table.Table{Columns: []string{"Date", "Amount"}}
	for i := 0; i < n; i++ {
		t.Rows = append(t.Rows, []string{"01-08-2024", "10.00"})
	}
	return t
}

func csvOutput(n int) string {
	var b strings.Builder
	b.WriteString("Date,Amount\n")
	for i := 0; i < n; i++ {
		b.WriteString("01-08-2024,10.0\n")
	}
	return b.String()
}

type fixture struct {
	parser string
	pdf    string
	runner *fakeRunner
	eval   *Evaluator
}

func setup(t *testing.T, src string, runner *fakeRunner) fixture {
	t.Helper()
	dir := t.TempDir()
	parser := filepath.Join(dir, "bank_parser.go")
	require.NoError(t, os.WriteFile(parser, []byte(src), 0o644))
	pdf := filepath.Join(dir, "bank_sample.pdf")
	require.NoError(t, os.WriteFile(pdf, []byte("%PDF-1.4"), 0o644))

	work := filepath.Join(dir, "work")
	require.NoError(t, os.Mkdir(work, 0o755))
	ev := New(Config{GoBinary: "go", WorkDir: work, RunTimeout: 200 * time.Millisecond}, runner, nil)
	return fixture{parser: parser, pdf: pdf, runner: runner, eval: ev}
}

func TestEvaluate_Match(t *testing.T) {
	f := setup(t, validSource, &fakeRunner{run: result{stdout: csvOutput(3)}})

	err := f.eval.Evaluate(context.Background(), f.parser, f.pdf, expectedTable(3))
	require.NoError(t, err)

	require.Len(t, f.runner.calls, 2)
	build, run := f.runner.calls[0], f.runner.calls[1]
	assert.Equal(t, []string{"build", "-mod=mod", "-o", filepath.Join(f.runner.workDir, "parser"), "."}, build.Args)
	assert.Contains(t, f.runner.goMod, "module generatedparser")
	assert.Contains(t, f.runner.goMod, "\ngo 1.24.1\n")
	assert.Contains(t, f.runner.goMod, "require github.com/ledongthuc/pdf v0.0.0-20250511090121-5959a4027728")
	assert.Equal(t, validSource, f.runner.mainGo)

	assert.True(t, filepath.IsAbs(run.Args[0]))
	assert.Equal(t, []string{f.pdf}, run.Args)
	assert.Equal(t, f.runner.workDir, run.Dir)

	assert.NoDirExists(t, f.runner.workDir)
}

func TestEvaluate_StaticFailures(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		stage string
		msg   string
	}{
		{"syntax", "package main\nfunc main() {", StageSyntax, "expected '}'"},
		{"wrong package", "package parser\nfunc main() {}\n", StagePackage, "package parser, expected package main"},
		{"no main", "package main\nfunc parse() {}\n", StagePackage, "no func main()"},
		{"method main", "package main\ntype T struct{}\nfunc (T) main() {}\n", StagePackage, "no func main()"},
		{"third-party import", "package main\nimport \"github.com/xuri/excelize/v2\"\nfunc main() {}\n", StageImports, `"github.com/xuri/excelize/v2"`},
		{"cgo", "package main\nimport \"C\"\nfunc main() {}\n", StageImports, `"C"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t, tt.src, &fakeRunner{})
			err := f.eval.Evaluate(context.Background(), f.parser, f.pdf, expectedTable(1))

			var le *LoadError
			require.True(t, errors.As(err, &le), "got %v", err)
			assert.Equal(t, tt.stage, le.Stage)
			assert.Contains(t, le.Error(), tt.msg)
			assert.Empty(t, f.runner.calls)
		})
	}
}

func TestEvaluate_MissingParser(t *testing.T) {
	f := setup(t, validSource, &fakeRunner{})
	err := f.eval.Evaluate(context.Background(), filepath.Join(t.TempDir(), "nope.go"), f.pdf, expectedTable(1))

	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, StageRead, le.Stage)
}

func TestEvaluate_StdlibOnlyHasNoRequire(t *testing.T) {
	src := "package main\nimport \"fmt\"\nfunc main() { fmt.Println(\"Date,Amount\") }\n"
	f := setup(t, src, &fakeRunner{run: result{stdout: csvOutput(0)}})

	require.NoError(t, f.eval.Evaluate(context.Background(), f.parser, f.pdf, expectedTable(0)))
	assert.NotContains(t, f.runner.goMod, "require")
}

func TestEvaluate_BuildFailure(t *testing.T) {
	runner := &fakeRunner{build: result{err: errors.New("exit status 1")}}
	f := setup(t, validSource, runner)
	// compiler output mentions the temp dir; it must not leak into the error
	runner.build.stderr = "# generatedparser\n" + "WORKDIR/main.go:9:2: undefined: foo\n"

	wrapped := &dirEchoRunner{fakeRunner: runner}
	f.eval.runner = wrapped

	err := f.eval.Evaluate(context.Background(), f.parser, f.pdf, expectedTable(1))
	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, StageBuild, le.Stage)
	assert.Contains(t, le.Detail, "./main.go:9:2: undefined: foo")
	assert.NotContains(t, le.Detail, runner.workDir)
	assert.Len(t, runner.calls, 1)
	assert.NoDirExists(t, runner.workDir)
}

// dirEchoRunner substitutes the real work dir for WORKDIR in build output.
type dirEchoRunner struct{ *fakeRunner }

func (d *dirEchoRunner) Run(ctx context.Context, c sandbox.Command) ([]byte, []byte, error) {
	out, errb, err := d.fakeRunner.Run(ctx, c)
	return out, []byte(strings.ReplaceAll(string(errb), "WORKDIR", c.Dir)), err
}

func TestEvaluate_RuntimeFailure(t *testing.T) {
	f := setup(t, validSource, &fakeRunner{run: result{
		stderr: "panic: runtime error: index out of range [3] with length 3",
		err:    errors.New("exit status 2"),
	}})

	err := f.eval.Evaluate(context.Background(), f.parser, f.pdf, expectedTable(1))
	var re *RuntimeError
	require.True(t, errors.As(err, &re))
	assert.False(t, re.TimedOut)
	assert.Contains(t, err.Error(), "exit status 2")
	assert.Contains(t, err.Error(), "index out of range [3] with length 3")
	assert.NoDirExists(t, f.runner.workDir)
}

func TestEvaluate_RuntimeTimeout(t *testing.T) {
	f := setup(t, validSource, &fakeRunner{run: result{err: context.DeadlineExceeded}})

	err := f.eval.Evaluate(context.Background(), f.parser, f.pdf, expectedTable(1))
	var re *RuntimeError
	require.True(t, errors.As(err, &re))
	assert.True(t, re.TimedOut)
	assert.Contains(t, err.Error(), "did not finish within")
}

func TestEvaluate_BadOutput(t *testing.T) {
	tests := []struct {
		name   string
		stdout string
		msg    string
	}{
		{"empty", "  \n", "wrote nothing"},
		{"ragged", "a,b\n1,2,3\n", "not valid CSV"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t, validSource, &fakeRunner{run: result{stdout: tt.stdout}})
			err := f.eval.Evaluate(context.Background(), f.parser, f.pdf, expectedTable(1))
			var re *RuntimeError
			require.True(t, errors.As(err, &re))
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestEvaluate_RowCountMismatch(t *testing.T) {
	f := setup(t, validSource, &fakeRunner{run: result{stdout: csvOutput(9)}})

	err := f.eval.Evaluate(context.Background(), f.parser, f.pdf, expectedTable(10))
	var me *MismatchError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, table.DiffRowCount, me.Diff.Kind)
	assert.Contains(t, err.Error(), "expected 10, got 9")
}

func TestEvaluate_Idempotent(t *testing.T) {
	f := setup(t, validSource, &fakeRunner{run: result{stdout: csvOutput(9)}})

	first := f.eval.Evaluate(context.Background(), f.parser, f.pdf, expectedTable(10))
	second := f.eval.Evaluate(context.Background(), f.parser, f.pdf, expectedTable(10))
	require.Error(t, first)
	assert.Equal(t, first.Error(), second.Error())
}

func TestEvaluate_CancelledContextIsNotAnAttemptFailure(t *testing.T) {
	f := setup(t, validSource, &fakeRunner{build: result{err: context.Canceled}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.eval.Evaluate(ctx, f.parser, f.pdf, expectedTable(1))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunEnvHasNoSecrets(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "secret")
	f := setup(t, validSource, &fakeRunner{run: result{stdout: csvOutput(1)}})
	require.NoError(t, f.eval.Evaluate(context.Background(), f.parser, f.pdf, expectedTable(1)))

	for _, c := range f.runner.calls {
		for _, kv := range c.Env {
			assert.False(t, strings.HasPrefix(kv, "GEMINI_API_KEY="))
		}
	}
}
