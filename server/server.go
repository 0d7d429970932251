package server

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/sprouterdb/sprouter/conf"
	"github.com/sprouterdb/sprouter/engine"
	"github.com/sprouterdb/sprouter/metrics"
	"github.com/sprouterdb/sprouter/metrics/prometheus"
)

// Server wires the configured services together and manages their lifecycle.
// Services are started in registration order and stopped in reverse.
func NewServer(config conf.Config) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	var metricsFactory metrics.Factory
	if config.EnableMetrics {
		metricsFactory = prometheus.NewFactory(config)
	}
	eng, err := engine.NewEngine(config, metricsFactory)
	if err != nil {
		return nil, err
	}
	server := Server{
		conf:           config,
		metricsFactory: metricsFactory,
		engine:         eng,
	}
	if metricsFactory != nil {
		server.services = append(server.services, metricsFactory)
	}
	server.services = append(server.services, eng)
	return &server, nil
}

type Server struct {
	lock           sync.Mutex
	conf           conf.Config
	metricsFactory metrics.Factory
	engine         *engine.Engine
	services       []service
	started        bool
}

type service interface {
	Start() error
	Stop() error
}

func (s *Server) Start() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.started {
		return nil
	}
	for _, svc := range s.services {
		if err := svc.Start(); err != nil {
			return err
		}
	}
	s.started = true
	log.Info("Sprouter server started")
	return nil
}

func (s *Server) Stop() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if !s.started {
		return nil
	}
	for i := len(s.services) - 1; i >= 0; i-- {
		if err := s.services[i].Stop(); err != nil {
			return err
		}
	}
	s.started = false
	return nil
}

func (s *Server) GetEngine() *engine.Engine {
	return s.engine
}
