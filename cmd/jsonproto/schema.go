package main

import (
	"fmt"

	"github.com/scott-cotton/cli"
)

type SchemaConfig struct {
	*MainConfig
	Schema string `cli:"name=schema desc='YAML shape file declaring the models'"`
	Type   string `cli:"name=type desc='name of the model to export'"`

	SchemaCmd *cli.Command
}

func schema(cfg *SchemaConfig, cc *cli.Context, args []string) error {
	args, err := cfg.SchemaCmd.Parse(cc, args)
	if err != nil {
		cfg.SchemaCmd.Usage(cc, err)
		return cli.ExitCodeErr(1)
	}
	if len(args) != 0 {
		return fmt.Errorf("%w: schema takes no arguments, got %v", cli.ErrUsage, args)
	}
	sh, err := loadShape(cfg.Schema, cfg.Type)
	if err != nil {
		return err
	}
	m, err := sh.Model()
	if err != nil {
		return err
	}
	s, err := m.JSONSchema()
	if err != nil {
		return err
	}
	out, err := s.MarshalIndent()
	if err != nil {
		return fmt.Errorf("unable to encode schema: %w", err)
	}
	_, err = cc.Out.Write(append(out, '\n'))
	return err
}
