package main

import (
	"context"
	"fmt"
	syslog "log"
	"net/http"
	"os"
	"time"

	"github.com/filecoin-project/go-jsonrpc"
	"github.com/go-redis/redis/v8"
	logging "github.com/ipfs/go-log/v2"
	"github.com/urfave/cli/v2"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/seyuan/msig_coordinator/chain"
	"github.com/seyuan/msig_coordinator/dao"
	"github.com/seyuan/msig_coordinator/engine"
	"github.com/seyuan/msig_coordinator/model"
	"github.com/seyuan/msig_coordinator/server"
	"github.com/seyuan/msig_coordinator/util"

	_ "net/http/pprof"
)

var cmdServer = &cli.Command{
	Name:  "server",
	Usage: "Start the coordination service",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "listen",
			Value: ":8080",
			Usage: "HTTP listen address",
		},
		&cli.StringFlag{
			Name:  "db",
			Usage: "root:123456@tcp(127.0.0.1:3306)/msig_coordinator",
		},
		&cli.StringFlag{
			Name:  "redis",
			Usage: "127.0.0.1:6379",
		},
		&cli.StringFlag{
			Name:  "node-token",
			Usage: "bearer token for chain node rpc",
		},
		&cli.StringFlag{
			Name:        "log-level",
			DefaultText: "info",
		},
	},
	Action: func(cctx *cli.Context) error {
		go func() {
			http.ListenAndServe(":6060", nil) //nolint:errcheck
		}()

		ctx := util.ReqContext(cctx)

		if ll := cctx.String("log-level"); ll != "" {
			if err := logging.SetLogLevel("*", ll); err != nil {
				return err
			}
		}
		if err := logging.SetLogLevel("rpc", "error"); err != nil {
			return err
		}

		newLogger := logger.New(
			syslog.New(os.Stdout, "\r\n", syslog.LstdFlags),
			logger.Config{
				SlowThreshold:             time.Second,
				LogLevel:                  logger.Warn,
				IgnoreRecordNotFoundError: true,
				Colorful:                  true,
			},
		)

		db, err := gorm.Open(mysql.Open(cctx.String("db")), &gorm.Config{
			Logger: newLogger,
		})
		if err != nil {
			return fmt.Errorf("failed to connect database: %w", err)
		}

		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		if err := sqlDB.Ping(); err != nil {
			return err
		}
		log.Info("sql ping success")

		rds := redis.NewClient(&redis.Options{
			Addr:     cctx.String("redis"),
			Password: "",
			DB:       0,
		})
		defer rds.Close()
		pong, err := rds.Ping(ctx).Result()
		if err != nil {
			return err
		}
		log.Info("redis response ", pong)

		store := dao.NewDao(db, rds)

		networks, err := store.ListEnabledNetworks(ctx)
		if err != nil {
			return err
		}
		if len(networks) == 0 {
			return fmt.Errorf("no enabled networks, run initdb first")
		}

		oracles := make(map[model.Network]*chain.Oracle, len(networks))
		closers := make([]jsonrpc.ClientCloser, 0, len(networks))
		defer func() {
			for _, closer := range closers {
				closer()
			}
		}()
		for _, cfg := range networks {
			node, closer, err := chain.NewNodeRPC(ctx, cfg.RPCAddr, cctx.String("node-token"))
			if err != nil {
				return fmt.Errorf("dial %s node: %w", cfg.Name, err)
			}
			closers = append(closers, closer)
			oracles[model.Network(cfg.Name)] = chain.NewOracle(node)
			log.Infow("node connected", "network", cfg.Name, "rpc", cfg.RPCAddr)
		}
		router := chain.NewRouter(oracles)

		verifier := chain.NewVerifier()
		stats := engine.NewStats()
		registry := engine.NewRegistry(store, verifier, stats)
		conflicts := engine.NewConflictDetector(store, router)
		coordinator := engine.NewCoordinator(store, registry, conflicts, verifier, router, stats)
		identities := engine.NewIdentityStore(store)

		checkers := map[string]server.HealthChecker{
			"mysql": func(ctx context.Context) error { return sqlDB.PingContext(ctx) },
			"redis": func(ctx context.Context) error { return rds.Ping(ctx).Err() },
		}

		srv := server.NewServer(registry, coordinator, identities, verifier, stats, checkers)
		httpServer := srv.NewHTTPServer(cctx.String("listen"))

		errCh := make(chan error, 1)
		go func() {
			log.Infow("http server listening", "addr", cctx.String("listen"))
			errCh <- httpServer.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Errorw("http shutdown", "err", err)
		}

		return nil
	},
}
