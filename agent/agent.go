package agent

import (
	"sync"

	"github.com/mohitkumar/agentflow/analytics"
	"github.com/mohitkumar/agentflow/config"
	"github.com/mohitkumar/agentflow/container"
	"github.com/mohitkumar/agentflow/logger"
	"github.com/mohitkumar/agentflow/rest"
	"github.com/mohitkumar/agentflow/service"
	"github.com/mohitkumar/agentflow/stream"
)

type Agent struct {
	Config              config.Config
	container           *container.DIContiner
	hub                 *stream.Hub
	conversationService *service.ConversationService
	httpServer          *rest.Server
	shutdown            bool
	shutdowns           chan struct{}
	shutdownLock        sync.Mutex
	wg                  sync.WaitGroup
}

func New(config config.Config) (*Agent, error) {
	a := &Agent{
		Config:    config,
		shutdowns: make(chan struct{}),
	}
	setup := []func() error{
		a.setupAnalytics,
		a.setupContainer,
		a.setupStream,
		a.setupConversationService,
		a.setupHttpServer,
	}
	for _, fn := range setup {
		if err := fn(); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *Agent) setupAnalytics() error {
	return analytics.InitDataCollector(a.Config.AnalyticsConfig)
}

func (a *Agent) setupContainer() error {
	a.container = container.NewDiContainer()
	return a.container.Init(a.Config)
}

func (a *Agent) setupStream() error {
	a.hub = stream.NewHub(a.Config.StreamConfig, &a.wg)
	a.hub.Start()
	return nil
}

func (a *Agent) setupConversationService() error {
	a.conversationService = service.NewConversationService(
		a.container.GetStorage(),
		a.container.GetMetadataService(),
		a.hub,
		a.container.GetToolRegistry(),
		a.Config.ExecutorConfig,
	)
	return nil
}

func (a *Agent) setupHttpServer() error {
	var err error
	a.httpServer, err = rest.NewServer(a.Config.HttpPort, a.container.GetMetadataService(), a.conversationService, a.hub)
	if err != nil {
		return err
	}
	return nil
}

func (a *Agent) Start() error {
	go func() {
		if err := a.httpServer.Start(); err != nil {
			_ = a.Shutdown()
			panic(err)
		}
	}()
	return nil
}

func (a *Agent) Shutdown() error {
	logger.Info("shutting down server")
	a.shutdownLock.Lock()
	defer a.shutdownLock.Unlock()
	if a.shutdown {
		return nil
	}
	a.shutdown = true
	close(a.shutdowns)

	shutdown := []func() error{
		a.httpServer.Stop,
		func() error {
			a.hub.Stop()
			return nil
		},
		a.container.Close,
	}
	for _, fn := range shutdown {
		if err := fn(); err != nil {
			return err
		}
	}
	logger.Info("waiting for all services to shutdown...")
	a.wg.Wait()
	_ = logger.Sync()
	return nil
}
