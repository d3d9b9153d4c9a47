package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/msgsight/cfgd/pkg/admin"
	"github.com/msgsight/cfgd/pkg/config"
	"github.com/msgsight/cfgd/pkg/lifecycle"
	"github.com/msgsight/cfgd/pkg/logging"
	"github.com/msgsight/cfgd/pkg/manager"
	"github.com/msgsight/cfgd/pkg/metrics"
	"github.com/msgsight/cfgd/pkg/notify"
	"github.com/msgsight/cfgd/pkg/portability"
	"github.com/msgsight/cfgd/pkg/schema"
	"github.com/msgsight/cfgd/pkg/store"
	"github.com/msgsight/cfgd/pkg/store/etcd"
	"github.com/msgsight/cfgd/pkg/store/file"
	"github.com/msgsight/cfgd/pkg/store/sqlite"
)

// server holds every component started by the serve command.
type server struct {
	cfg     *config.ServerConfig
	log     *slog.Logger
	backend store.Backend
	manager *manager.Manager
	hub     *notify.Hub
	metrics *metrics.Metrics
	service *lifecycle.Service
	api     *admin.API
	mqtt    *notify.MQTTPublisher

	// cancel stops background forwarders.
	cancel context.CancelFunc
}

// openBackend opens the durable backend selected by the storage config.
func openBackend(ctx context.Context, cfg config.StorageConfig, log *slog.Logger) (store.Backend, error) {
	switch store.BackendKind(cfg.Backend) {
	case store.BackendFile:
		fs := file.New(file.Config{DataDir: cfg.DataDir, ReadOnly: cfg.ReadOnly})
		fs.SetLogger(logging.Component(log, "store"))
		return fs, nil
	case store.BackendSQLite:
		return sqlite.Open(ctx, cfg.SQLiteFile())
	case store.BackendEtcd:
		return etcd.New(etcd.Config{
			Endpoints:   cfg.Etcd.Endpoints,
			Prefix:      cfg.Etcd.Prefix,
			DialTimeout: cfg.Etcd.DialTimeout,
		})
	case store.BackendMemory:
		return store.NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// newServer wires the components without starting anything.
func newServer(ctx context.Context, cfg *config.ServerConfig, log *slog.Logger) (*server, error) {
	reg, err := schema.New()
	if err != nil {
		return nil, err
	}
	backend, err := openBackend(ctx, cfg.Storage, log)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", cfg.Storage.Backend, err)
	}

	s := &server{
		cfg:     cfg,
		log:     log,
		backend: backend,
		hub:     notify.NewHub(notify.WithBuffer(cfg.Notify.Buffer), notify.WithLogger(logging.Component(log, "notify"))),
		metrics: metrics.New(),
	}
	s.metrics.TrackSubscribers(s.hub.Subscribers)

	s.manager = manager.New(reg, backend,
		manager.WithLogger(logging.Component(log, "manager")),
		manager.WithPublisher(s.hub),
		manager.WithMetrics(s.metrics),
		manager.WithVersion(cfg.Version),
	)
	s.service = lifecycle.New(&importingReloader{manager: s.manager, paths: cfg.Import.Paths, log: log},
		lifecycle.WithLogger(logging.Component(log, "lifecycle")),
		lifecycle.WithMetrics(s.metrics),
		lifecycle.OnStop(s.stopAPI),
	)

	s.api, err = admin.NewAPI(s.manager,
		admin.WithLogger(logging.Component(log, "admin")),
		admin.WithService(s.service),
		admin.WithHub(s.hub),
		admin.WithMetrics(s.metrics),
		admin.WithTimeouts(cfg.Admin.ReadTimeout, cfg.Admin.WriteTimeout),
	)
	if err != nil {
		_ = s.manager.Close()
		return nil, err
	}
	return s, nil
}

// start loads the configuration, connects the MQTT publisher and opens the
// admin listener.
func (s *server) start(ctx context.Context) error {
	if err := s.service.Start(ctx); err != nil {
		return err
	}

	bg, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	if s.cfg.Notify.MQTT.Broker != "" {
		mc := s.cfg.Notify.MQTT
		pub, err := notify.NewMQTTPublisher(notify.MQTTConfig{
			Broker:      mc.Broker,
			ClientID:    mc.ClientID,
			TopicPrefix: mc.TopicPrefix,
			QoS:         byte(mc.QoS),
			Username:    mc.Username,
			Password:    mc.Password,
		}, logging.Component(s.log, "mqtt"))
		if err != nil {
			return err
		}
		s.mqtt = pub
		go pub.Run(bg, s.hub)
	}

	addr := net.JoinHostPort(s.cfg.Admin.Host, strconv.Itoa(s.cfg.Admin.Port))
	return s.api.Start(addr)
}

// shutdown stops the service, which closes the admin listener, then
// releases the publisher and the backend.
func (s *server) shutdown(ctx context.Context) error {
	var errs []error
	if s.service.State() == lifecycle.StateRunning || s.service.State() == lifecycle.StateFailed {
		errs = append(errs, s.service.Stop(ctx))
	} else {
		errs = append(errs, s.stopAPI(ctx))
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.mqtt != nil {
		s.mqtt.Close()
	}
	errs = append(errs, s.manager.Close())
	return errors.Join(errs...)
}

func (s *server) stopAPI(ctx context.Context) error {
	return s.api.Stop(ctx)
}

// importingReloader imports the configured files whenever a reload finds
// the backend empty, so a fresh server starts from its import set.
type importingReloader struct {
	manager *manager.Manager
	paths   []string
	log     *slog.Logger
}

func (r *importingReloader) Reload(ctx context.Context) (bool, error) {
	empty, err := r.manager.Reload(ctx)
	if err != nil || !empty || len(r.paths) == 0 {
		return empty, err
	}

	bundle, err := portability.Load(r.paths, portability.LoadOptions{Registry: r.manager.Registry()})
	if err != nil {
		return empty, fmt.Errorf("initial import: %w", err)
	}
	res, err := portability.Apply(ctx, r.manager, bundle)
	if err != nil {
		return empty, fmt.Errorf("initial import: %w", err)
	}
	r.log.Info("initial configuration imported", "files", len(bundle.Files), "objects", len(res.Objects))
	return empty, nil
}
