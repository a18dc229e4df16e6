// Package serve implements the "serve" subcommand: it builds a Ring
// from flags/env, wires it to a store.Engine and eviction sink, and
// starts the HTTP API.
package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cmdUtil "github.com/Forensiq/indexedRingBuffer/cmd/util"
	"github.com/Forensiq/indexedRingBuffer/api"
	"github.com/Forensiq/indexedRingBuffer/evict"
	"github.com/Forensiq/indexedRingBuffer/evict/logsink"
	"github.com/Forensiq/indexedRingBuffer/evict/rpc"
	"github.com/Forensiq/indexedRingBuffer/internal/log"
	"github.com/Forensiq/indexedRingBuffer/internal/store"
	"github.com/Forensiq/indexedRingBuffer/internal/store/memengine"
	"github.com/Forensiq/indexedRingBuffer/internal/store/raftengine"
	"github.com/Forensiq/indexedRingBuffer/ring"
)

var ServeCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the indexed ring-buffer cache server",
	Long:    `Start the ring-buffer cache HTTP server. Configuration can be set via command line flags or environment variables. The format of the environment variables is RINGCACHE_<flag> (e.g. RINGCACHE_INITIAL_SIZE=500000)`,
	PreRunE: bindFlags,
	RunE:    run,
}

func init() {
	cobra.OnInitialize(initConfig)

	f := ServeCmd.PersistentFlags()

	f.String("params", "id:lock", cmdUtil.WrapString("Comma-separated schema of record fields. Format: name[:lock|immutable|mutable]. Fields default to mutable when no qualifier is given"))
	f.Int64("initial-size", 1_000_000, cmdUtil.WrapString("Initial ring capacity"))
	f.Bool("auto-resize", false, cmdUtil.WrapString("Enable the Capacity Controller"))
	f.Float64("desired-eject-mins", 15, cmdUtil.WrapString("Target mean residency in minutes, used by the Capacity Controller"))
	f.Int64("auto-min-size", 10_000, cmdUtil.WrapString("Lower bound the Capacity Controller may resize to"))
	f.Int64("auto-max-size", 10_000_000, cmdUtil.WrapString("Upper bound the Capacity Controller may resize to"))
	f.Float64("monitor-period-mins", 10, cmdUtil.WrapString("Length of the Capacity Controller's sampling window"))
	f.Float64("trigger-adjust-percent", 20, cmdUtil.WrapString("Deadband around desired-eject-mins before a resize is triggered"))
	f.Float64("max-adjust-percent-up", 25, cmdUtil.WrapString("Maximum capacity increase per controller decision"))
	f.Float64("max-adjust-percent-down", 10, cmdUtil.WrapString("Maximum capacity decrease per controller decision"))
	f.Int("drain-parallel-items", 100, cmdUtil.WrapString("Batch size used when a parallel eviction transport is configured"))

	f.String("store", "mem", cmdUtil.WrapString("Shared store backend to use (mem, raft)"))
	f.String("replica-id", "", cmdUtil.WrapString("(raft store) Unique numeric identifier for this node, e.g. '1'"))
	f.String("cluster-members", "", cmdUtil.WrapString("(raft store) Comma-separated list of node addresses, format '1=host:port,2=host:port'"))
	f.String("data-dir", "data", cmdUtil.WrapString("(raft store) Directory used for raft snapshots and WAL"))
	f.Uint64("rtt-millisecond", 100, cmdUtil.WrapString("(raft store) Average round-trip time between nodes, in milliseconds"))

	f.String("eject-endpoints", "", cmdUtil.WrapString("Comma-separated list of eviction endpoints. When set, evictions fan out over HTTP instead of being handled inline"))

	f.String("endpoint", "0.0.0.0:8080", cmdUtil.WrapString("Address the HTTP API listens on"))
	f.String("log-level", "info", cmdUtil.WrapString("Log level (debug, info, warning, error)"))
}

func bindFlags(cmd *cobra.Command, _ []string) error {
	return viper.BindPFlags(cmd.Flags())
}

func initConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("ringcache")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func parseParamList(raw string) ([]ring.ParamSpec, error) {
	var specs []ring.ParamSpec
	for _, field := range strings.Split(raw, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		parts := strings.SplitN(field, ":", 2)
		spec := ring.ParamSpec{Name: strings.TrimSpace(parts[0])}
		if spec.Name == "" {
			return nil, fmt.Errorf("empty field name in params %q", raw)
		}
		if len(parts) == 1 {
			spec.Mutable = true
		} else {
			switch strings.ToLower(strings.TrimSpace(parts[1])) {
			case "lock":
				spec.LockKey = true
			case "immutable":
				spec.Immutable = true
			case "mutable", "":
				spec.Mutable = true
			default:
				return nil, fmt.Errorf("unknown qualifier %q for field %q", parts[1], spec.Name)
			}
		}
		specs = append(specs, spec)
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("params must name at least one field")
	}
	return specs, nil
}

func buildConfig() (ring.Config, error) {
	params, err := parseParamList(viper.GetString("params"))
	if err != nil {
		return ring.Config{}, err
	}
	cfg := ring.DefaultConfig()
	cfg.ParamList = params
	cfg.InitialSize = viper.GetInt64("initial-size")
	cfg.AutoResize = viper.GetBool("auto-resize")
	cfg.DesiredEjectMins = viper.GetFloat64("desired-eject-mins")
	cfg.AutoMinSize = viper.GetInt64("auto-min-size")
	cfg.AutoMaxSize = viper.GetInt64("auto-max-size")
	cfg.MonitorPeriodMins = viper.GetFloat64("monitor-period-mins")
	cfg.TriggerAdjustPercent = viper.GetFloat64("trigger-adjust-percent")
	cfg.MaxAdjustPercentUp = viper.GetFloat64("max-adjust-percent-up")
	cfg.MaxAdjustPercentDown = viper.GetFloat64("max-adjust-percent-down")
	cfg.DrainParallelItems = viper.GetInt("drain-parallel-items")
	return cfg, nil
}

func buildStore() (store.Engine, error) {
	switch viper.GetString("store") {
	case "mem":
		return memengine.New(), nil
	case "raft":
		members, err := parseClusterMembers(viper.GetString("cluster-members"))
		if err != nil {
			return nil, err
		}
		replicaID, err := parseReplicaID(viper.GetString("replica-id"), members)
		if err != nil {
			return nil, err
		}
		return raftengine.New(raftengine.Config{
			ReplicaID:      replicaID,
			ClusterMembers: members,
			DataDir:        viper.GetString("data-dir"),
			RTTMillisecond: viper.GetUint64("rtt-millisecond"),
			Namespaces:     []string{"ring", "index", "stats"},
			TimeoutSecond:  10,
		})
	default:
		return nil, fmt.Errorf("invalid store %q (expected mem or raft)", viper.GetString("store"))
	}
}

func parseClusterMembers(raw string) (map[uint64]string, error) {
	members := make(map[uint64]string)
	if raw == "" {
		return members, nil
	}
	for _, entry := range strings.Split(raw, ",") {
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid cluster member %q (expected id=address)", entry)
		}
		id, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid cluster member id %q: %w", parts[0], err)
		}
		members[id] = strings.TrimSpace(parts[1])
	}
	return members, nil
}

func parseReplicaID(raw string, members map[uint64]string) (uint64, error) {
	if raw == "" {
		return 0, fmt.Errorf("replica-id is required for the raft store")
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid replica-id %q: %w", raw, err)
	}
	if _, ok := members[id]; !ok {
		return 0, fmt.Errorf("replica-id %d has no matching cluster-members entry", id)
	}
	return id, nil
}

func buildSink() evict.Sink {
	return logsink.New()
}

func buildTransport() (evict.ParallelTransport, error) {
	raw := viper.GetString("eject-endpoints")
	if raw == "" {
		return nil, nil
	}
	endpoints := strings.Split(raw, ",")
	return rpc.NewHTTPParallelTransport(rpc.ClientConfig{
		Endpoints:     endpoints,
		RetryCount:    3,
		TimeoutSecond: 5,
	})
}

func run(cmd *cobra.Command, _ []string) error {
	log.SetDefaultLevel(log.ParseLevel(viper.GetString("log-level")))
	logger := log.Get("cmd/serve")

	cfg, err := buildConfig()
	if err != nil {
		return err
	}
	engine, err := buildStore()
	if err != nil {
		return err
	}
	sink := buildSink()
	transport, err := buildTransport()
	if err != nil {
		return err
	}

	r, err := ring.New(cfg, engine, sink, transport)
	if err != nil {
		return err
	}

	srv := api.NewServer(r)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Infof("starting on %s (store=%s, autoResize=%v)", viper.GetString("endpoint"), viper.GetString("store"), cfg.AutoResize)
	return srv.ListenAndServe(ctx, viper.GetString("endpoint"))
}
