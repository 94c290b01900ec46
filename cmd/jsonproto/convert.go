package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/scott-cotton/cli"
	diffpatch "github.com/sergi/go-diff/diffmatchpatch"

	"github.com/whatamithinking/jsonproto"
	"github.com/whatamithinking/jsonproto/internal/jsontext"
)

type ConvertConfig struct {
	*MainConfig
	Schema      string `cli:"name=schema desc='YAML shape file declaring the models'"`
	Type        string `cli:"name=type desc='name of the model to use'"`
	From        string `cli:"name=from desc='input format: jsonbytes, jsonstr or json'"`
	To          string `cli:"name=to desc='output format: struct, unstruct, json, jsonstr or jsonbytes'"`
	Patch       string `cli:"name=patch desc='RFC 6902 JSON patch file applied to the input first'"`
	DropExtras  bool   `cli:"name=drop-extras desc='drop unknown keys instead of reporting them'"`
	ExcludeNone bool   `cli:"name=exclude-none desc='omit null fields in the output'"`
	FailFast    bool   `cli:"name=fail-fast desc='stop at the first issue'"`
	Diff        bool   `cli:"name=diff desc='show how the output text differs from the input'"`

	Convert *cli.Command
}

func (cfg *ConvertConfig) options(sh *jsonproto.Shape) (jsonproto.Options, error) {
	from, err := jsonproto.ParseFormat(cfg.From)
	if err != nil {
		return jsonproto.Options{}, fmt.Errorf("%w: -from: %w", cli.ErrUsage, err)
	}
	to, err := jsonproto.ParseFormat(cfg.To)
	if err != nil {
		return jsonproto.Options{}, fmt.Errorf("%w: -to: %w", cli.ErrUsage, err)
	}
	if from == jsonproto.FormatStruct || from == jsonproto.FormatUnstruct {
		return jsonproto.Options{}, fmt.Errorf("%w: -from must be a json format", cli.ErrUsage)
	}
	opt := jsonproto.Options{
		Type:        jsonproto.ModelOf(sh),
		Source:      from,
		Target:      to,
		ExcludeNone: cfg.ExcludeNone,
		FailFast:    cfg.FailFast,
		Strictness:  jsonproto.Strictness{OnDuplicateKey: jsonproto.Warn},
	}
	if cfg.DropExtras {
		opt.Extras = jsonproto.ExtrasDrop
	}
	if cfg.Patch != "" {
		if opt.Patch, err = os.ReadFile(cfg.Patch); err != nil {
			return jsonproto.Options{}, err
		}
	}
	return opt, nil
}

func convert(cfg *ConvertConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Convert.Parse(cc, args)
	if err != nil {
		cfg.Convert.Usage(cc, err)
		return cli.ExitCodeErr(1)
	}
	if len(args) > 1 {
		return fmt.Errorf("%w: convert takes at most one file, got %v", cli.ErrUsage, args)
	}
	sh, err := loadShape(cfg.Schema, cfg.Type)
	if err != nil {
		return err
	}
	opt, err := cfg.options(sh)
	if err != nil {
		return err
	}
	in, err := readInput(cc, args)
	if err != nil {
		return err
	}
	src, err := sourceValue(in, opt.Source, cfg.MainConfig)
	if err != nil {
		return err
	}
	out, err := cfg.codec.Execute(cfg.ctx, src, opt)
	if err != nil {
		return reportIssues(cc.Out, err)
	}
	text, err := render(out)
	if err != nil {
		return err
	}
	if cfg.Diff {
		return writeDiff(cc.Out, string(in), string(text))
	}
	_, err = cc.Out.Write(append(text, '\n'))
	return err
}

func readInput(cc *cli.Context, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cc.In)
	}
	return os.ReadFile(args[0])
}

// sourceValue shapes raw input text as the requested source format.
func sourceValue(in []byte, f jsonproto.Format, cfg *MainConfig) (any, error) {
	switch f {
	case jsonproto.FormatJSONStr:
		return string(in), nil
	case jsonproto.FormatJSON:
		v, _, err := cfg.codec.Driver().Unmarshal(in, jsonproto.DecodeOpt{})
		return v, err
	}
	return in, nil
}

// render turns a conversion result into printable text.
func render(out any) ([]byte, error) {
	switch x := out.(type) {
	case string:
		return indent([]byte(x)), nil
	case []byte:
		return indent(x), nil
	case *jsonproto.Record:
		return []byte(x.String()), nil
	}
	return jsontext.MarshalIndent(out)
}

func indent(b []byte) []byte {
	v, _, err := jsontext.Decode(b, jsontext.Options{})
	if err != nil {
		return b
	}
	out, err := jsontext.MarshalIndent(v)
	if err != nil {
		return b
	}
	return out
}

func writeDiff(w io.Writer, from, to string) error {
	dmp := diffpatch.New()
	a, b, lines := dmp.DiffLinesToChars(strings.TrimSpace(from)+"\n", strings.TrimSpace(to)+"\n")
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		_, err := io.WriteString(w, dmp.DiffPrettyText(diffs))
		return err
	}
	buf := &bytes.Buffer{}
	for _, d := range diffs {
		prefix := "  "
		switch d.Type {
		case diffpatch.DiffInsert:
			prefix = "+ "
		case diffpatch.DiffDelete:
			prefix = "- "
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			buf.WriteString(prefix)
			buf.WriteString(line)
		}
	}
	_, err := w.Write(buf.Bytes())
	return err
}
