package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/incognitochain/etn-bridge/api"
	"github.com/incognitochain/etn-bridge/database"
	"github.com/incognitochain/etn-bridge/ledger"
	"github.com/incognitochain/etn-bridge/notifier"
	"github.com/incognitochain/etn-bridge/workers"
	"github.com/sirupsen/logrus"
)

type Server struct {
	quit     chan os.Signal
	stopped  chan struct{}
	finish   chan bool
	workers  []workers.Worker
	db       *database.DB
	notifier *notifier.Notifier
	api      *api.Server
	logger   *logrus.Entry
}

func NewServer(cfg *Config) (*Server, error) {
	logger := logrus.WithField("component", "server")

	db, err := database.Open(cfg.DBDir)
	if err != nil {
		return nil, fmt.Errorf("Could not open leveldb storage %v - with err: %v", cfg.DBDir, err)
	}
	n := notifier.New(notifier.DefaultBufferSize, nil, nil)
	l, err := ledger.Open(db, n, nil)
	if err != nil {
		db.Close()
		return nil, err
	}

	listWorkers := []workers.Worker{}
	if contain(cfg.Workers, workers.ReportRelayerID) {
		reportRelayer := &workers.ReportRelayer{}
		err = reportRelayer.Init(workers.ReportRelayerID, "Report Relayer", cfg.RelayerFrequency, l, cfg.ReportInboxDir)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("Can't init Report Relayer - with err: %v", err)
		}
		listWorkers = append(listWorkers, reportRelayer)
	}
	if contain(cfg.Workers, workers.VaultMonitorID) {
		vaultMonitor := &workers.VaultMonitor{}
		err = vaultMonitor.Init(workers.VaultMonitorID, "Vault Monitor", cfg.MonitorFrequency, l, db)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("Can't init Vault Monitor - with err: %v", err)
		}
		listWorkers = append(listWorkers, vaultMonitor)
	}

	return &Server{
		quit:     make(chan os.Signal, 1),
		stopped:  make(chan struct{}),
		finish:   make(chan bool, len(listWorkers)),
		workers:  listWorkers,
		db:       db,
		notifier: n,
		api:      api.NewServer(l, cfg.HTTPPort, nil),
		logger:   logger,
	}, nil
}

func (s *Server) NotifyQuitSignal(workers []workers.Worker) {
	sig := <-s.quit
	s.logger.Infof("Caught sig: %+v", sig)
	// notify all workers about quit signal
	for _, a := range workers {
		a.GetQuitChan() <- true
	}
	close(s.stopped)
}

func (s *Server) Run() {
	signal.Notify(s.quit, syscall.SIGINT, syscall.SIGTERM)
	s.notifier.Start()
	go func() {
		if err := s.api.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Errorf("Query API stopped - with err: %v", err)
		}
	}()

	workers := s.workers
	go s.NotifyQuitSignal(workers)
	for _, a := range workers {
		go executeWorker(s.finish, a, s.logger)
	}
}

// Wait blocks until every worker finished, then releases the API, the
// notifier and the database in that order.
func (s *Server) Wait() {
	<-s.stopped
	for range s.workers {
		<-s.finish
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.api.Stop(ctx); err != nil {
		s.logger.Warnf("Could not stop query API - with err: %v", err)
	}
	s.notifier.Stop()
	if err := s.db.Close(); err != nil {
		s.logger.Warnf("Could not close leveldb storage - with err: %v", err)
	}
}

func executeWorker(finish chan bool, worker workers.Worker, logger *logrus.Entry) {
	worker.Execute() // execute as soon as starting up
	for {
		select {
		case <-worker.GetQuitChan():
			logger.Infof("Finishing task for %s ...", worker.GetName())
			finish <- true
			return
		case <-time.After(time.Duration(worker.GetFrequency()) * time.Second):
			worker.Execute()
		}
	}
}
