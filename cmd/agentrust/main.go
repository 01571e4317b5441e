package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mindburn-labs/agentrust/core/pkg/config"
	"github.com/mindburn-labs/agentrust/core/pkg/crypto"
	"github.com/mindburn-labs/agentrust/core/pkg/governance"
	"github.com/mindburn-labs/agentrust/core/pkg/ledger"
	"github.com/mindburn-labs/agentrust/core/pkg/observability"
	"github.com/mindburn-labs/agentrust/core/pkg/registry"
	"github.com/mindburn-labs/agentrust/core/pkg/service"

	_ "github.com/lib/pq" // Postgres driver
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the CLI entrypoint, kept as a function of its own for testability.
func Run(args []string, stdout, stderr io.Writer) int {
	cfg := config.Load()

	if cfg.GovernanceProfilePath != "" {
		profile, err := config.LoadGovernanceProfile(cfg.GovernanceProfilePath)
		if err != nil {
			fmt.Fprintf(stderr, "loading governance profile: %v\n", err)
			return 1
		}
		if err := profile.ApplyTo(); err != nil {
			fmt.Fprintf(stderr, "applying governance profile %q: %v\n", profile.Name, err)
			return 1
		}
		log.Printf("[agentrust] governance profile %q applied", profile.Name)
	}

	ctx := context.Background()
	provider, err := observability.New(ctx, observability.DefaultConfig())
	if err != nil {
		fmt.Fprintf(stderr, "initializing observability provider: %v\n", err)
		return 1
	}
	defer func() { _ = provider.Shutdown(ctx) }()

	substrate, cleanup, err := buildSubstrate(ctx, cfg, provider)
	defer cleanup()
	if err != nil {
		fmt.Fprintf(stderr, "wiring substrate: %v\n", err)
		return 1
	}

	if len(args) < 2 {
		printUsage(stdout)
		return 0
	}

	requestID := uuid.NewString()
	ctx, finish := provider.TrackOperation(ctx, "cli."+args[1], attribute.String("agentrust.request.id", requestID))
	defer func() { finish(nil) }()

	switch args[1] {
	case "register":
		return runRegisterCmd(substrate, args[2:], stdout, stderr)
	case "status":
		return runStatusCmd(substrate, args[2:], stdout, stderr)
	case "verify":
		return runVerifyCmd(substrate, stdout, stderr)
	case "graph":
		return runGraphCmd(substrate, stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, "Usage: agentrust <register|status|verify|graph> [args]")
}

// buildSubstrate wires the registry, ledger, and validator backends named
// by cfg. The returned cleanup func closes any database connections it
// opened and must always be called.
func buildSubstrate(ctx context.Context, cfg *config.Config, provider *observability.Provider) (*service.Substrate, func(), error) {
	cleanup := func() {}

	store, dbCleanup, err := buildRegistryStore(cfg)
	if err != nil {
		return nil, cleanup, err
	}
	cleanup = dbCleanup

	var opts []registry.Option
	if cfg.ReplayStore == config.ReplayStoreRedis {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
		opts = append(opts, registry.WithReplayStore(registry.NewRedisReplayStore(client, "agentrust:replay:")))
	}

	reg, err := registry.New(store, opts...)
	if err != nil {
		return nil, cleanup, fmt.Errorf("building registry: %w", err)
	}

	l, err := buildLedger(ctx, cfg)
	if err != nil {
		return nil, cleanup, err
	}

	v, err := governance.NewValidator()
	if err != nil {
		return nil, cleanup, fmt.Errorf("building governance validator: %w", err)
	}

	return service.New(reg, l, v, provider), cleanup, nil
}

func buildRegistryStore(cfg *config.Config) (registry.Store, func(), error) {
	if cfg.RegistryBackend == config.RegistryBackendPostgres {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, func() {}, fmt.Errorf("opening postgres connection: %w", err)
		}
		store := registry.NewPostgresStore(db, "default")
		if err := store.Init(); err != nil {
			_ = db.Close()
			return nil, func() {}, fmt.Errorf("initializing postgres identity store: %w", err)
		}
		return store, func() { _ = db.Close() }, nil
	}
	return registry.NewFileStore(cfg.IdentityFile), func() {}, nil
}

func buildLedger(ctx context.Context, cfg *config.Config) (*ledger.Ledger, error) {
	if cfg.LedgerBackend == config.LedgerBackendS3 {
		store, err := ledger.NewS3LedgerStore(ctx, ledger.S3LedgerStoreConfig{
			Bucket: cfg.S3Bucket,
			Region: cfg.S3Region,
		})
		if err != nil {
			return nil, fmt.Errorf("building S3 ledger store: %w", err)
		}
		return store.Load(ctx, time.Now)
	}

	l, err := ledger.LoadFromFile(cfg.LedgerFile)
	if err != nil {
		return ledger.New(time.Now()), nil
	}
	return l, nil
}

func runRegisterCmd(s *service.Substrate, args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		fmt.Fprintln(stderr, "Usage: agentrust register <origin-system>")
		return 2
	}

	signer, err := crypto.NewRSASigner(uuid.NewString())
	if err != nil {
		fmt.Fprintf(stderr, "generating signing key: %v\n", err)
		return 1
	}

	ident, err := s.RegisterAgent(service.RegisterAgentParams{
		PublicKey:    signer.PublicKey(),
		OriginSystem: args[0],
	})
	if err != nil {
		fmt.Fprintf(stderr, "registering agent: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "registered agent %s (origin=%s, tier trust=%.4f)\n", ident.ID, ident.OriginSystem, ident.TrustScore)
	return 0
}

func runStatusCmd(s *service.Substrate, args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		fmt.Fprintln(stderr, "Usage: agentrust status <agent-id>")
		return 2
	}

	profile, err := s.GetTrustScore(args[0])
	if err != nil {
		fmt.Fprintf(stderr, "getting trust score: %v\n", err)
		return 1
	}
	gp, err := s.GetGovernanceProfile(args[0], "")
	if err != nil {
		fmt.Fprintf(stderr, "getting governance profile: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "agent %s: composite=%.4f tier=%s strictness=%s\n", args[0], profile.Composite, gp.Tier, gp.Strictness)
	return 0
}

func runVerifyCmd(s *service.Substrate, stdout, stderr io.Writer) int {
	result := s.VerifyLedger()
	if !result.Valid {
		fmt.Fprintf(stderr, "chain invalid at index %d: %s\n", result.Index, result.Reason)
		return 1
	}
	fmt.Fprintln(stdout, "chain verified")
	return 0
}

func runGraphCmd(s *service.Substrate, stdout, stderr io.Writer) int {
	g := s.GetTrustGraph()
	report := g.ForecastSystemicRisk()
	fmt.Fprintf(stdout, "nodes=%d edges=%d globalRiskIndex=%.4f riskClusters=%d\n",
		len(g.Nodes()), len(g.Edges()), report.GlobalRiskIndex, report.RiskClusterCount)
	return 0
}
