// Package app assembles the dispatch service from its configuration:
// replay engine, strategy stack, metrics sinks and the optional MQTT
// plan publisher.
package app

import (
	"context"
	"fmt"

	"github.com/transitops/darp/config"
	"github.com/transitops/darp/core/dispatch"
	coremetrics "github.com/transitops/darp/core/metrics"
	"github.com/transitops/darp/core/model"
	"github.com/transitops/darp/core/scenario"
	"github.com/transitops/darp/infra/logger"
	"github.com/transitops/darp/infra/metrics"
	"github.com/transitops/darp/infra/mqtt"
	"github.com/transitops/darp/infra/sim"
	"github.com/transitops/darp/internal/eventbus"
)

// Service orchestrates one dispatch run over a benchmark instance.
type Service struct {
	Manager   *dispatch.Manager
	Sim       *sim.Simulator
	Bus       *eventbus.Bus[dispatch.PlanEvent]
	publisher *mqtt.PlanPublisher
	promPort  int
	log       logger.Logger
}

// multiCommitter forwards a committed plan to every target; the replay
// engine always comes first so vehicles advance even when publishing
// fails.
type multiCommitter []dispatch.Committer

func (m multiCommitter) Commit(plan *model.RoutePlan) error {
	for _, c := range m {
		if err := c.Commit(plan); err != nil {
			return err
		}
	}
	return nil
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logger.SetLevel(cfg.Logging.Level)
	logg := logger.New("service")

	inst, err := sim.LoadInstance(cfg.Sim.Instance)
	if err != nil {
		return nil, err
	}
	replay, err := sim.NewSimulator(cfg.Dispatch, inst, logger.New("sim"))
	if err != nil {
		return nil, err
	}

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	sampler := scenario.NewGenerator(cfg.Dispatch, cfg.Sim.HorizonSeconds, logger.New("scenario"))
	strategy, err := dispatch.NewStrategy(cfg.Dispatch, sampler, logger.New("strategy"))
	if err != nil {
		return nil, err
	}
	fallback := dispatch.NewGreedyStrategy(cfg.Dispatch, logger.New("fallback"))

	committer := multiCommitter{replay}
	var publisher *mqtt.PlanPublisher
	if cfg.MQTT.Broker != "" {
		publisher, err = mqtt.NewPlanPublisher(cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("mqtt publisher: %w", err)
		}
		committer = append(committer, publisher)
	}

	bus := eventbus.New[dispatch.PlanEvent]()
	manager := dispatch.NewManager(cfg.Dispatch, strategy, fallback, replay, committer, sink, bus, logg)
	return &Service{
		Manager:   manager,
		Sim:       replay,
		Bus:       bus,
		publisher: publisher,
		promPort:  cfg.Metrics.PrometheusPort,
		log:       logg,
	}, nil
}

// Run replays every decision epoch of the instance and returns when the
// horizon is exhausted or the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	metrics.StartPromServer(ctx, s.promPort, s.log)

	epochs := s.Sim.Epochs()
	s.log.Infof("replaying %d decision epochs", len(epochs))
	results, err := s.Manager.Run(ctx, epochs)
	if err != nil {
		return err
	}
	rejected := 0
	for _, r := range results {
		rejected += len(r.Rejected)
	}
	s.log.Infof("run finished: %d epochs, %d trips served, %d rejections", len(results), s.Sim.Served(), rejected)
	return nil
}

// Close releases resources held by the service.
func (s *Service) Close() {
	if s.publisher != nil {
		s.publisher.Close()
	}
	s.Bus.Close()
}
