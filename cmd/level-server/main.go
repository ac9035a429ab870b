package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/diwise/levelstore/internal/pkg/application/editor"
	"github.com/diwise/levelstore/internal/pkg/infrastructure/router"
	"github.com/diwise/levelstore/internal/pkg/presentation/api/levels"
	"github.com/diwise/service-chassis/pkg/infrastructure/buildinfo"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
)

const serviceName string = "level-server"

func main() {
	serviceVersion := buildinfo.SourceVersion()

	flags, err := parseFlags(context.Background(), os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	ctx, logger, cleanup := o11y.Init(context.Background(), serviceName, serviceVersion, flags[logFormat])
	defer cleanup()

	handler, app, err := initialize(ctx, flags)
	if err != nil {
		logger.Error("failed to initialize service", "err", err.Error())
		os.Exit(1)
	}

	if err = app.Start(); err != nil {
		logger.Error("failed to start level editor", "err", err.Error())
		os.Exit(1)
	}
	defer app.Stop()

	addr := net.JoinHostPort(flags[listenAddress], flags[servicePort])
	logger.Info("starting to listen for connections", "addr", addr)

	err = http.ListenAndServe(addr, handler)
	if err != nil {
		logger.Error("failed to listen for connections", "err", err.Error())
		os.Exit(1)
	}
}

// initialize loads the configured levels and wires them to the http api
func initialize(ctx context.Context, flags FlagMap) (http.Handler, editor.LevelEditor, error) {
	cfgFile, err := os.Open(flags[configPath])
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open levels configuration: %w", err)
	}
	defer cfgFile.Close()

	cfg, err := editor.LoadConfiguration(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load levels configuration: %w", err)
	}

	logging.GetFromContext(ctx).Info("levels configured", "count", len(cfg.Levels))

	app, err := editor.New(ctx, *cfg)
	if err != nil {
		return nil, nil, err
	}

	policies, err := os.Open(flags[opaPath])
	if err != nil {
		return nil, nil, fmt.Errorf("unable to open opa policy file: %w", err)
	}
	defer policies.Close()

	r := router.New(serviceName)

	if err = levels.RegisterHandlers(ctx, r, policies, app); err != nil {
		return nil, nil, err
	}

	return r, app, nil
}
