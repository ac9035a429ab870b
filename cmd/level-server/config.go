package main

import (
	"context"
	"flag"

	"github.com/diwise/service-chassis/pkg/infrastructure/env"
)

type FlagType int
type FlagMap map[FlagType]string

const (
	listenAddress FlagType = iota
	servicePort

	configPath
	opaPath

	logFormat
)

// parseFlags reads the settings from the environment and lets command line flags override them
func parseFlags(ctx context.Context, args []string) (FlagMap, error) {
	flags := FlagMap{
		listenAddress: env.GetVariableOrDefault(ctx, "LISTEN_ADDRESS", ""),
		servicePort:   env.GetVariableOrDefault(ctx, "SERVICE_PORT", "8080"),
		configPath:    env.GetVariableOrDefault(ctx, "LEVELS_CONFIG_PATH", "/opt/diwise/config/levels.yaml"),
		opaPath:       env.GetVariableOrDefault(ctx, "POLICY_PATH", "/opt/diwise/config/authz.rego"),
		logFormat:     env.GetVariableOrDefault(ctx, "LOG_FORMAT", "json"),
	}

	fs := flag.NewFlagSet(serviceName, flag.ContinueOnError)

	apply := func(ft FlagType) func(string) error {
		return func(value string) error {
			flags[ft] = value
			return nil
		}
	}

	fs.Func("port", "port to listen for connections on", apply(servicePort))
	fs.Func("levels", "path to the levels configuration file", apply(configPath))
	fs.Func("policies", "path to the authorization policies", apply(opaPath))
	fs.Func("logformat", "log format, json or text", apply(logFormat))

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	return flags, nil
}
