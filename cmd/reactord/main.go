// Command reactord launches a TcpServer configured from a YAML file,
// logging via logiface/stumpy and draining decoded frames through a
// bounded worker pool.
//
// Run with: go run ./cmd/reactord -config config.yaml
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/netreactor/netreactor"
	"github.com/netreactor/netreactor/rconf"
	"github.com/netreactor/netreactor/rlog"
	"github.com/netreactor/netreactor/rwork"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	workers := flag.Int("workers", 8, "number of worker-pool goroutines draining decoded frames")
	flag.Parse()

	cfg, err := rconf.Load(*configPath)
	if err != nil {
		log.Fatalf("reactord: loading config: %v", err)
	}

	logger := rlog.New(os.Stderr)

	acceptLoop, err := netreactor.NewEventLoop()
	if err != nil {
		logger.Fatal("creating event loop", "err", err)
		os.Exit(1)
	}

	// One I/O loop per remaining processor; accepted connections are
	// handed off round-robin while the accept loop keeps draining the
	// listen queue.
	var ioLoops []*netreactor.EventLoop
	for i := 1; i < runtime.GOMAXPROCS(0); i++ {
		loop, err := netreactor.NewEventLoop()
		if err != nil {
			logger.Fatal("creating event loop", "err", err)
			os.Exit(1)
		}
		ioLoops = append(ioLoops, loop)
	}

	bufferPool := netreactor.NewBufferPool(64, netreactor.MaxPktLen)

	connCallback := func(conn *netreactor.Connection, connected bool) {
		if connected {
			logger.Info("connection established", "peer", conn.Peer().Address)
		} else {
			logger.Notice("connection closed", "peer", conn.Peer().Address)
		}
	}

	server := netreactor.NewTcpServer(
		acceptLoop,
		cfg.Ports,
		cfg.WorkerConnections,
		connCallback,
		nil,
		netreactor.WithLogger(logger),
		netreactor.WithBufferPool(bufferPool),
		netreactor.WithWorkerQueueCapacity(cfg.WorkerConnections),
		netreactor.WithIOLoops(ioLoops...),
	)

	workerPool := rwork.New(server.WorkQueue(), func(env *netreactor.Envelope) {
		logger.Debug("frame received", "peer", env.Conn.Peer().Address, "bytes", len(env.Body))
	}, bufferPool)
	workerPool.Start(*workers)

	go func() {
		if err := acceptLoop.Loop(); err != nil {
			logger.Err("event loop exited", "err", err)
		}
	}()
	for _, loop := range ioLoops {
		loop := loop
		go func() {
			if err := loop.Loop(); err != nil {
				logger.Err("event loop exited", "err", err)
			}
		}()
	}

	if err := server.Start(); err != nil {
		logger.Fatal("starting server", "err", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "reactord: listening on %d port(s)\n", len(cfg.Ports))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Notice("shutting down")
	server.Stop()
	acceptLoop.Quit()
	<-acceptLoop.Done()
	for _, loop := range ioLoops {
		loop.Quit()
		<-loop.Done()
	}
}
