package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/scott-cotton/cli"
	"go.uber.org/zap"

	"github.com/whatamithinking/jsonproto"
	"github.com/whatamithinking/jsonproto/i18n"
	"github.com/whatamithinking/jsonproto/yamlschema"
)

type MainConfig struct {
	Verbose bool   `cli:"name=v desc='development logging at debug level'"`
	Lang    string `cli:"name=lang desc='issue message language: en or ja'"`

	Main *cli.Command

	ctx   context.Context
	log   *zap.Logger
	codec *jsonproto.Codec
}

// loadShape reads the YAML shape file and looks up the named model.
func loadShape(file, name string) (*jsonproto.Shape, error) {
	if file == "" || name == "" {
		return nil, fmt.Errorf("%w: -schema and -type are required", cli.ErrUsage)
	}
	reg, err := yamlschema.LoadFile(file)
	if err != nil {
		return nil, err
	}
	sh, ok := reg.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: model %q not declared in %s (have %v)", cli.ErrUsage, name, file, reg.Names())
	}
	return sh, nil
}

func MainCommand(ctx context.Context) *cli.Command {
	cfg := &MainConfig{ctx: ctx}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	return cli.NewCommandAt(&cfg.Main, "jsonproto").
		WithSynopsis("jsonproto [opts] command [opts]").
		WithDescription("jsonproto converts and validates JSON documents against declared models.").
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return jsonprotoMain(cfg, cc, args)
		}).
		WithSubs(
			ConvertCommand(cfg),
			ValidateCommand(cfg),
			SchemaCommand(cfg))
}

func jsonprotoMain(cfg *MainConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Main.Parse(cc, args)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return cli.ErrNoCommandProvided
	}
	if cfg.Lang != "" {
		i18n.SetLanguage(cfg.Lang)
	}
	if cfg.Verbose {
		cfg.log, err = zap.NewDevelopment()
	} else {
		cfg.log, err = zap.NewProduction()
	}
	if err != nil {
		return fmt.Errorf("unable to build logger: %w", err)
	}
	defer func() { _ = cfg.log.Sync() }()
	cfg.codec = jsonproto.New(jsonproto.Config{Logger: cfg.log})

	sub := cfg.Main.FindSub(cc, args[0])
	if sub == nil {
		return fmt.Errorf("%w: %q not found", cli.ErrNoSuchCommand, args[0])
	}
	err = sub.Run(cc, args[1:])
	if errors.Is(err, cli.ErrUsage) {
		sub.Usage(cc, err)
		os.Exit(sub.Exit(cc, err))
	}
	return err
}

func ConvertCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &ConvertConfig{MainConfig: mainCfg, From: "jsonbytes", To: "jsonstr"}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	cmd := cli.NewCommand("convert").
		WithAliases("c", "conv").
		WithOpts(opts...).
		WithSynopsis("convert -schema shapes.yaml -type Name [-from fmt] [-to fmt] [file]").
		WithDescription("convert a document to another format, validating it on the way").
		WithRun(func(cc *cli.Context, args []string) error {
			return convert(cfg, cc, args)
		})
	cfg.Convert = cmd
	return cmd
}

func ValidateCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &ValidateConfig{MainConfig: mainCfg, From: "jsonbytes"}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	cmd := cli.NewCommand("validate").
		WithAliases("v", "val").
		WithOpts(opts...).
		WithSynopsis("validate -schema shapes.yaml -type Name files...").
		WithDescription("validate documents concurrently; exits 1 when any is invalid").
		WithRun(func(cc *cli.Context, args []string) error {
			return validate(cfg, cc, args)
		})
	cfg.Validate = cmd
	return cmd
}

func SchemaCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &SchemaConfig{MainConfig: mainCfg}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	cmd := cli.NewCommand("schema").
		WithAliases("s").
		WithOpts(opts...).
		WithSynopsis("schema -schema shapes.yaml -type Name").
		WithDescription("print the JSON Schema of a model").
		WithRun(func(cc *cli.Context, args []string) error {
			return schema(cfg, cc, args)
		})
	cfg.SchemaCmd = cmd
	return cmd
}
