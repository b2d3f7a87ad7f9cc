package container

import (
	"fmt"

	"github.com/mohitkumar/agentflow/cache"
	"github.com/mohitkumar/agentflow/config"
	"github.com/mohitkumar/agentflow/metadata"
	"github.com/mohitkumar/agentflow/persistence"
	"github.com/mohitkumar/agentflow/persistence/memory"
	rd "github.com/mohitkumar/agentflow/persistence/redis"
	"github.com/mohitkumar/agentflow/persistence/sqlite"
	"github.com/mohitkumar/agentflow/tool"
)

type DIContiner struct {
	initialized     bool
	storage         persistence.Storage
	metadataService metadata.MetadataService
	tools           *tool.Registry
}

func (p *DIContiner) setInitialized() {
	p.initialized = true
}

func NewDiContainer() *DIContiner {
	return &DIContiner{
		initialized: false,
	}
}

func (d *DIContiner) Init(conf config.Config) error {
	switch conf.StorageType {
	case config.STORAGE_TYPE_REDIS:
		rdConf := rd.Config{
			Addrs:     conf.RedisConfig.Addrs,
			Namespace: conf.RedisConfig.Namespace,
			Password:  conf.RedisConfig.Password,
		}
		d.storage = rd.NewRedisStorage(rdConf)
	case config.STORAGE_TYPE_SQLITE:
		st, err := sqlite.NewSqliteStorage(conf.SqliteConfig.Path)
		if err != nil {
			return err
		}
		d.storage = st
	case config.STORAGE_TYPE_INMEM:
		d.storage = memory.NewMemoryStorage()
	default:
		return fmt.Errorf("unknown storage type %s", conf.StorageType)
	}
	d.metadataService = metadata.NewMetadataService(d.storage, cache.NewFlowCache(0))
	d.tools = tool.NewDefaultRegistry()
	d.setInitialized()
	return nil
}

func (d *DIContiner) GetStorage() persistence.Storage {
	if !d.initialized {
		panic("persistence not initalized")
	}
	return d.storage
}

func (d *DIContiner) GetMetadataService() metadata.MetadataService {
	if !d.initialized {
		panic("persistence not initalized")
	}
	return d.metadataService
}

func (d *DIContiner) GetToolRegistry() *tool.Registry {
	if !d.initialized {
		panic("persistence not initalized")
	}
	return d.tools
}

func (d *DIContiner) Close() error {
	if !d.initialized {
		return nil
	}
	return d.storage.Close()
}
