package commands

import (
	"fmt"

	"go.uber.org/zap"

	"evalgo.org/playground/internal/connector"
	"evalgo.org/playground/internal/playground"
	"evalgo.org/playground/internal/publish"
)

// app holds the components every command that touches Docker needs.
type app struct {
	logger     *zap.Logger
	connector  *connector.Docker
	publisher  *publish.Publisher
	mirror     *publish.NATSMirror
	playground *playground.API
}

// newApp wires the connector, publisher and playground API from cfg.
// The NATS mirror is only connected when withMirror is set and a URL is
// configured.
func newApp(logger *zap.Logger, withMirror bool) (*app, error) {
	types, err := playground.LoadServiceTypes(cfg.Playground.ServiceTypesFile)
	if err != nil {
		return nil, err
	}

	conn, err := connector.NewDocker(cfg.Docker.Host, logger.Named("docker"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to docker: %w", err)
	}

	pub := publish.New(publish.Options{
		QueueSize:   cfg.Publisher.QueueSize,
		SendTimeout: cfg.Publisher.SendTimeout,
	}, logger.Named("publisher"))

	a := &app{
		logger:    logger,
		connector: conn,
		publisher: pub,
	}

	if withMirror && cfg.NATS.URL != "" {
		mirror, err := publish.ConnectNATS(cfg.NATS.URL, cfg.NATS.Subject, logger.Named("nats"))
		if err != nil {
			_ = conn.Close()
			return nil, err
		}
		pub.SetMirror(mirror)
		a.mirror = mirror
	}

	a.playground = playground.New(playground.Options{
		EnvoyImage:   cfg.Playground.EnvoyImage,
		Bounds:       cfg.Playground.Bounds(),
		ServiceTypes: types,
	}, conn, pub, logger)

	return a, nil
}

func (a *app) Close() {
	if a.mirror != nil {
		if err := a.mirror.Close(); err != nil {
			a.logger.Warn("failed to close nats mirror", zap.Error(err))
		}
	}
	if err := a.connector.Close(); err != nil {
		a.logger.Warn("failed to close docker client", zap.Error(err))
	}
}
