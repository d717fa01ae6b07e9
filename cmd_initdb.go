package main

import (
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"
	logging "github.com/ipfs/go-log/v2"
	"github.com/urfave/cli/v2"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/seyuan/msig_coordinator/initdb"
	"github.com/seyuan/msig_coordinator/model"
	"github.com/seyuan/msig_coordinator/util"
)

var cmdInitDb = &cli.Command{
	Name:  "initdb",
	Usage: "Create the schema and seed network configuration",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "db",
			Usage: "root:123456@tcp(127.0.0.1:3306)/msig_coordinator",
		},
		&cli.StringFlag{
			Name:  "redis",
			Usage: "127.0.0.1:6379",
		},
		&cli.StringSliceFlag{
			Name:  "network",
			Usage: "<name>=<node multiaddr>, repeatable, e.g. mainnet=/dns4/node/tcp/9000",
		},
		&cli.StringFlag{
			Name:        "log-level",
			DefaultText: "info",
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx := util.ReqContext(cctx)

		if ll := cctx.String("log-level"); ll != "" {
			if err := logging.SetLogLevel("*", ll); err != nil {
				return err
			}
		}

		endpoints, err := parseNetworkEndpoints(cctx.StringSlice("network"))
		if err != nil {
			return err
		}

		db, err := gorm.Open(mysql.Open(cctx.String("db")), &gorm.Config{})
		if err != nil {
			return fmt.Errorf("failed to connect database: %w", err)
		}

		var rds *redis.Client
		if addr := cctx.String("redis"); addr != "" {
			rds = redis.NewClient(&redis.Options{
				Addr:     addr,
				Password: "",
				DB:       0,
			})
			defer rds.Close()
			if err := rds.Ping(ctx).Err(); err != nil {
				return err
			}
		}

		if err := initdb.InitDatabase(ctx, db, rds, endpoints); err != nil {
			return err
		}

		log.Info("database initialized")
		return nil
	},
}

func parseNetworkEndpoints(raw []string) ([]initdb.NetworkEndpoint, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("at least one --network <name>=<multiaddr> is required")
	}

	endpoints := make([]initdb.NetworkEndpoint, 0, len(raw))
	for _, entry := range raw {
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid --network entry %q, expected <name>=<multiaddr>", entry)
		}
		endpoints = append(endpoints, initdb.NetworkEndpoint{
			Network: model.Network(parts[0]),
			RPCAddr: parts[1],
		})
	}
	return endpoints, nil
}
