// Command grapeworker is the dispatcher process entrypoint: it loads
// configuration, wires a W-worker communicator/store/engine cluster,
// and serves a gRPC health check so an orchestrator can tell when the
// cluster is ready. The command dispatch surface itself is a Go
// interface (engine.Instance.OnReceive), not a network RPC, per this
// repository's scope; a real deployment embeds this cluster behind
// whatever transport the coordinator speaks.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"trpc.group/trpc-go/grape-engine/comm"
	"trpc.group/trpc-go/grape-engine/config"
	"trpc.group/trpc-go/grape-engine/engine"
	"trpc.group/trpc-go/grape-engine/log"
	"trpc.group/trpc-go/grape-engine/store"
	"trpc.group/trpc-go/grape-engine/telemetry"
)

var (
	configPath = flag.String("config", "", "path to the engine config file (optional; defaults applied when empty)")
	workers    = flag.Int("workers", 1, "number of workers to run in this process's local cluster")
	logLevel   = flag.String("log-level", log.LevelInfo, "debug, info, warn, error, or fatal")
)

func main() {
	flag.Parse()
	log.SetLevel(*logLevel)

	instanceID := uuid.NewString()
	log.SetInstanceID(instanceID)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Default.Fatalf("load config: %v", err)
	}

	instances := buildCluster(cfg, *workers, instanceID)
	log.Default.Infof("started %d-worker local cluster, instance_id=%s", len(instances), instanceID)

	srv, lis, err := startHealthServer(cfg.RPCEndpoint)
	if err != nil {
		log.Default.Fatalf("start health server: %v", err)
	}
	defer lis.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Default.Info("shutting down")
	srv.GracefulStop()
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// buildCluster constructs one engine.Instance per rank of an
// in-process W-worker communicator, the single-host deployment shape
// comm's own documentation describes. Each instance gets its own
// logger derived from the process-wide default rather than mutating
// the shared log.Default/ContextDefault globals per rank, since
// multiple ranks coexist in this one process.
func buildCluster(cfg config.Config, size int, instanceID string) []*engine.Instance {
	comms := comm.NewLocalCluster(size)
	sc := store.NewMemClient()

	instances := make([]*engine.Instance, size)
	for _, cm := range comms {
		rankLog := log.Default.With("rank", cm.Rank(), "instance_id", instanceID)
		instances[cm.Rank()] = engine.NewInstance(cm, sc, rankLog, telemetry.NewTracer(), cfg)
	}
	return instances
}

// startHealthServer registers the standard gRPC health service and
// marks it SERVING once the cluster above is constructed: a minimal,
// idiomatic readiness signal for an orchestrator, without taking on a
// full command RPC surface.
func startHealthServer(addr string) (*grpc.Server, net.Listener, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("listen on %q: %w", addr, err)
	}
	srv := grpc.NewServer()
	hs := health.NewServer()
	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	grpc_health_v1.RegisterHealthServer(srv, hs)

	go func() {
		if err := srv.Serve(lis); err != nil {
			log.Default.Warnf("health server stopped: %v", err)
		}
	}()
	return srv, lis, nil
}
