package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/scott-cotton/cli"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/whatamithinking/jsonproto"
)

type ValidateConfig struct {
	*MainConfig
	Schema   string `cli:"name=schema desc='YAML shape file declaring the models'"`
	Type     string `cli:"name=type desc='name of the model to use'"`
	From     string `cli:"name=from desc='input format: jsonbytes or jsonstr'"`
	Jobs     int    `cli:"name=j desc='files validated in parallel (default GOMAXPROCS)'"`
	FailFast bool   `cli:"name=fail-fast desc='report only the first issue per file'"`
	Color    bool   `cli:"name=color desc='force colored output'"`

	Validate *cli.Command
}

type fileResult struct {
	path string
	err  error
}

func validate(cfg *ValidateConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Validate.Parse(cc, args)
	if err != nil {
		cfg.Validate.Usage(cc, err)
		return cli.ExitCodeErr(1)
	}
	if len(args) == 0 {
		return fmt.Errorf("%w: validate needs at least one file", cli.ErrUsage)
	}
	sh, err := loadShape(cfg.Schema, cfg.Type)
	if err != nil {
		return err
	}
	from, err := jsonproto.ParseFormat(cfg.From)
	if err != nil || (from != jsonproto.FormatJSONBytes && from != jsonproto.FormatJSONStr) {
		return fmt.Errorf("%w: -from must be jsonbytes or jsonstr", cli.ErrUsage)
	}
	opt := jsonproto.Options{
		Type:       jsonproto.ModelOf(sh),
		Source:     from,
		Target:     jsonproto.FormatStruct,
		FailFast:   cfg.FailFast,
		Strictness: jsonproto.Strictness{OnDuplicateKey: jsonproto.Error},
	}

	results := make([]fileResult, len(args))
	g, ctx := errgroup.WithContext(cfg.ctx)
	jobs := cfg.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	g.SetLimit(jobs)
	for i, path := range args {
		g.Go(func() error {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			var src any = data
			if from == jsonproto.FormatJSONStr {
				src = string(data)
			}
			_, err = cfg.codec.Execute(ctx, src, opt)
			if _, isIssues := jsonproto.AsIssues(err); err != nil && !isIssues {
				return fmt.Errorf("%s: %w", path, err)
			}
			results[i] = fileResult{path: path, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	useColor(cfg, cc.Out)
	ok, bad := color.New(color.FgGreen), color.New(color.FgRed, color.Bold)
	failed := 0
	for _, r := range results {
		if r.err == nil {
			ok.Fprintf(cc.Out, "ok   ")
			fmt.Fprintln(cc.Out, r.path)
			continue
		}
		failed++
		bad.Fprintf(cc.Out, "FAIL ")
		fmt.Fprintln(cc.Out, r.path)
		_ = reportIssues(cc.Out, r.err)
	}
	cfg.log.Debug("validated", zap.Int("files", len(results)), zap.Int("failed", failed))
	if failed > 0 {
		return cli.ExitCodeErr(1)
	}
	return nil
}

func useColor(cfg *ValidateConfig, w io.Writer) {
	if cfg.Color {
		color.NoColor = false
		return
	}
	f, isFile := w.(*os.File)
	color.NoColor = !isFile || !isatty.IsTerminal(f.Fd())
}

// reportIssues prints one line per issue and returns err unchanged unless it
// is Issues, in which case it returns an exit-code error.
func reportIssues(w io.Writer, err error) error {
	iss, ok := jsonproto.AsIssues(err)
	if !ok {
		return err
	}
	for _, it := range iss {
		path := it.Path
		if path == "" {
			path = "<root>"
		}
		fmt.Fprintf(w, "  %s: %s\n", path, it.Message)
	}
	if errors.Is(err, jsonproto.ErrParse) {
		return cli.ExitCodeErr(2)
	}
	return cli.ExitCodeErr(1)
}
