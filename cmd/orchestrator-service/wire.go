package main

import (
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"phincommerce/internal/pkg/bootstrap"
	"phincommerce/internal/pkg/discovery"
	"phincommerce/internal/pkg/nacos"
	"phincommerce/internal/service/orchestrator/domain"
	"phincommerce/internal/service/orchestrator/infrastructure"
	"phincommerce/internal/zookeeper"
)

const (
	topicBootstrapTimeout = 15 * time.Second
	memoryJournalPerOrder = 256
)

// buildDiscovery 返回下游服务解析器，以及需要时的自注册器。
// 注册中心查不到时退回到配置中的静态地址。
func buildDiscovery(cfg *bootstrap.Config) (discovery.Resolver, discovery.Registrar, func(), error) {
	static := discovery.StaticResolver{
		cfg.Services.Inventory.Name: cfg.Services.Inventory.BaseURL,
		cfg.Services.Payment.Name:   cfg.Services.Payment.BaseURL,
	}

	switch cfg.Discovery.Driver {
	case "nacos":
		client, err := nacos.NewNacosClient(cfg.Discovery.Nacos.Addrs, cfg.Discovery.Nacos.Namespace, cfg.Discovery.Nacos.Group)
		if err != nil {
			return nil, nil, nil, err
		}
		var registrar discovery.Registrar
		if cfg.Discovery.Register {
			registrar = client
		}
		return discovery.WithFallback(client, static), registrar, client.Close, nil
	case "zookeeper":
		registry, err := zookeeper.Connect(cfg.Discovery.Zookeeper.Servers, cfg.Discovery.Zookeeper.SessionTimeout, cfg.Discovery.Zookeeper.Root)
		if err != nil {
			return nil, nil, nil, err
		}
		var registrar discovery.Registrar
		if cfg.Discovery.Register {
			registrar = registry
		}
		return discovery.WithFallback(registry, static), registrar, registry.Close, nil
	default:
		return static, nil, func() {}, nil
	}
}

// buildJournal 根据配置选择 Saga 日志的存储
func buildJournal(cfg *bootstrap.Config) (domain.SagaJournal, func(), error) {
	switch cfg.Journal.Driver {
	case "redis":
		rdb := infrastructure.NewRedisClient(cfg.Journal.Redis.Addrs, cfg.Journal.Redis.Password, cfg.Journal.Redis.DB)
		closeFn := func() {
			if err := rdb.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close redis client")
			}
		}
		return infrastructure.NewRedisJournal(rdb, cfg.Journal.TTL), closeFn, nil
	case "mysql":
		my := cfg.Journal.MySQL
		db, err := infrastructure.NewMySQLDB(infrastructure.MySQLOptions{
			Host: my.Host, Port: my.Port, User: my.User, Password: my.Password, Database: my.Database,
			MaxOpenConns: my.MaxOpenConns, MaxIdleConns: my.MaxIdleConns, ConnMaxLife: my.ConnMaxLife,
		})
		if err != nil {
			return nil, nil, err
		}
		journal, err := infrastructure.NewGormJournal(db)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
		return journal, closeFn, nil
	case "memory":
		return infrastructure.NewMemoryJournal(memoryJournalPerOrder), func() {}, nil
	case "none":
		return nil, func() {}, nil
	default:
		return nil, nil, errors.Errorf("unknown journal driver %q", cfg.Journal.Driver)
	}
}
