// Command server wires the voting backend: stores (Postgres or in-memory),
// services, the audit pipeline, and the HTTP router.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	adminhandler "ballotbox/internal/admin/handler"
	adminservice "ballotbox/internal/admin/service"
	"ballotbox/internal/audit"
	auditstore "ballotbox/internal/audit/store"
	ballotstore "ballotbox/internal/ballot/store"
	"ballotbox/internal/captcha"
	electionhandler "ballotbox/internal/election/handler"
	electionservice "ballotbox/internal/election/service"
	electionstore "ballotbox/internal/election/store"
	httprouter "ballotbox/internal/http"
	identityhandler "ballotbox/internal/identity/handler"
	identityservice "ballotbox/internal/identity/service"
	identitystore "ballotbox/internal/identity/store"
	"ballotbox/internal/mailer"
	"ballotbox/internal/platform/config"
	"ballotbox/internal/platform/httpserver"
	"ballotbox/internal/platform/logger"
	"ballotbox/internal/platform/metrics"
	"ballotbox/internal/platform/postgres"
	platformredis "ballotbox/internal/platform/redis"
	"ballotbox/internal/ratelimit"
	"ballotbox/internal/token"
	votinghandler "ballotbox/internal/voting/handler"
	votingservice "ballotbox/internal/voting/service"
)

func main() {
	_ = godotenv.Load()

	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// Stores: Postgres when configured, in-memory otherwise.
	var (
		voters   identitystore.VoterStore
		catalog  electionstore.ElectionStore
		ballots  ballotstore.BallotStore
		auditLog audit.Store

		votingTx votingservice.StoreTx
		adminTx  adminservice.StoreTx
	)
	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("failed to open postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			log.Error("failed to ensure schema", "error", err)
			os.Exit(1)
		}

		voters = identitystore.NewPostgres(db)
		catalog = electionstore.NewPostgres(db)
		ballots = ballotstore.NewPostgres(db)
		auditLog = auditstore.NewPostgres(db)
		runner := newPostgresTx(db)
		votingTx, adminTx = runner, runner

		log.Info("using postgres storage")
	} else {
		voters = identitystore.NewMemory()
		catalog = electionstore.NewMemory()
		ballots = ballotstore.NewMemory()
		auditLog = auditstore.NewMemory()
		// One lock for both runners: without rollback, cast votes and admin
		// cascades must not interleave.
		memTx := votingservice.NewMemoryTx()
		votingTx, adminTx = memTx, memTx

		log.Warn("DATABASE_URL not set, using in-memory storage")
	}

	// Rate limit buckets: Redis when configured, per-process otherwise.
	var buckets ratelimit.BucketStore = ratelimit.NewMemoryBucketStore()
	redisClient, err := platformredis.New(ctx, cfg.RedisURL)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		buckets = ratelimit.NewRedisBucketStore(redisClient.Client)
		log.Info("using redis rate limit store")
	}

	// Audit pipeline: publisher -> worker -> store (+ optional Kafka).
	publisher := audit.NewPublisher(log, m)
	var sinks []audit.Sink
	if len(cfg.AuditKafkaBrokers) > 0 {
		kafkaSink, err := audit.NewKafkaSink(cfg.AuditKafkaBrokers, cfg.AuditKafkaTopic)
		if err != nil {
			log.Error("failed to connect audit kafka sink", "error", err)
			os.Exit(1)
		}
		defer kafkaSink.Close()
		sinks = append(sinks, kafkaSink)
		log.Info("audit events fan out to kafka", "topic", cfg.AuditKafkaTopic)
	}
	worker := audit.NewWorker(auditLog, publisher.Inbox(), log, sinks...)

	// Collaborators.
	var mail mailer.Sender = mailer.Noop{}
	if cfg.SMTP.Host != "" {
		mail = mailer.NewSMTP(cfg.SMTP)
	}
	var verifier captcha.Verifier = captcha.Always{}
	if cfg.Captcha.SecretKey != "" {
		verifier = captcha.NewRecaptcha(cfg.Captcha)
	}

	tokens := token.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.TokenTTL)

	// Services.
	identity := identityservice.New(voters, mail, tokens, publisher, log,
		identityservice.WithAllowedEmailDomain(cfg.AllowedEmailDomain),
		identityservice.WithBiometricThreshold(cfg.BiometricThreshold),
		identityservice.WithFrontendURL(cfg.FrontendURL),
		identityservice.WithMetrics(m),
	)
	elections := electionservice.New(catalog, publisher, log).WithMetrics(m)
	voting := votingservice.New(voters, catalog, ballots, votingTx, publisher, log).WithMetrics(m)
	admin := adminservice.New(voters, catalog, ballots, auditLog, adminTx, publisher, log).WithMetrics(m)

	router := httprouter.NewRouter(httprouter.Deps{
		Logger:    log,
		Metrics:   m,
		Validator: tokens,
		Buckets:   buckets,
		Limits:    httprouter.DefaultLimits(),
		Identity:  identityhandler.New(identity, log),
		Election:  electionhandler.New(elections, admin, log),
		Voting:    votinghandler.New(voting, elections, verifier, log),
		Admin:     adminhandler.New(identity, admin, log),
		Healthz: func(w http.ResponseWriter, r *http.Request) {
			if redisClient != nil {
				if err := redisClient.Health(r.Context()); err != nil {
					w.WriteHeader(http.StatusServiceUnavailable)
					return
				}
			}
			w.WriteHeader(http.StatusOK)
		},
	})

	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return worker.Run(gctx)
	})

	g.Go(func() error {
		log.Info("starting ballotbox", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}

		// Give queued audit events a chance to land before the worker stops.
		publisher.Drain(5 * time.Second)
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
