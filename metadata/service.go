package metadata

import (
	"context"
	"fmt"

	"github.com/mohitkumar/agentflow/cache"
	"github.com/mohitkumar/agentflow/logger"
	"github.com/mohitkumar/agentflow/model"
	"github.com/mohitkumar/agentflow/node"
	"go.uber.org/zap"
)

type MetadataService interface {
	GetFlow(ctx context.Context, id string) (*node.Flow, error)
	GetFlowDefinition(ctx context.Context, id string) (*model.FlowDefinition, error)
	SaveFlow(ctx context.Context, def model.FlowDefinition) error
	DeleteFlow(ctx context.Context, id string) error
	ValidateFlow(def model.FlowDefinition) error
	IncrementActivationCount(ctx context.Context, id string) error
	SaveAttributeDefinition(ctx context.Context, def model.AttributeDefinition) error
	GetAttributeDefinitions(ctx context.Context, attrType model.AttributeType) ([]model.AttributeDefinition, error)
	GetMetadataStorage() MetadataStorage
}

type MetadataServiceImpl struct {
	storage MetadataStorage
	cache   *cache.FlowCache
}

func NewMetadataService(storage MetadataStorage, flowCache *cache.FlowCache) MetadataService {
	if flowCache == nil {
		flowCache = cache.NewFlowCache(0)
	}
	return &MetadataServiceImpl{
		storage: storage,
		cache:   flowCache,
	}
}

// GetFlow returns the compiled flow, decoding the stored definition on a cache miss.
func (s *MetadataServiceImpl) GetFlow(ctx context.Context, id string) (*node.Flow, error) {
	if flow, ok := s.cache.GetFlow(id); ok {
		return flow, nil
	}
	def, err := s.storage.GetFlow(ctx, id)
	if err != nil {
		return nil, err
	}
	flow, err := node.Compile(*def)
	if err != nil {
		return nil, fmt.Errorf("compile flow %s: %w", id, err)
	}
	s.cache.SaveFlow(flow)
	return flow, nil
}

func (s *MetadataServiceImpl) GetFlowDefinition(ctx context.Context, id string) (*model.FlowDefinition, error) {
	return s.storage.GetFlow(ctx, id)
}

func (s *MetadataServiceImpl) SaveFlow(ctx context.Context, def model.FlowDefinition) error {
	if err := s.ValidateFlow(def); err != nil {
		return err
	}
	if err := s.storage.SaveFlow(ctx, def); err != nil {
		return err
	}
	s.cache.Invalidate(def.Id)
	logger.Info("flow saved", zap.String("flowId", def.Id), zap.Int("nodes", len(def.Nodes)))
	return nil
}

func (s *MetadataServiceImpl) DeleteFlow(ctx context.Context, id string) error {
	if err := s.storage.DeleteFlow(ctx, id); err != nil {
		return err
	}
	s.cache.Invalidate(id)
	return nil
}

func (s *MetadataServiceImpl) ValidateFlow(def model.FlowDefinition) error {
	return node.Validate(def)
}

func (s *MetadataServiceImpl) IncrementActivationCount(ctx context.Context, id string) error {
	count, err := s.storage.IncrementActivationCount(ctx, id)
	if err != nil {
		return err
	}
	logger.Debug("flow activated", zap.String("flowId", id), zap.Int64("count", count))
	return nil
}

func (s *MetadataServiceImpl) SaveAttributeDefinition(ctx context.Context, def model.AttributeDefinition) error {
	if len(def.Name) == 0 {
		return fmt.Errorf("attribute name can not be empty")
	}
	if !def.Type.Valid() {
		return fmt.Errorf("attribute %s has invalid type %s", def.Name, def.Type)
	}
	if def.Permission == "" {
		def.Permission = model.PERMISSION_WRITABLE
	}
	if def.Permission != model.PERMISSION_WRITABLE && def.Permission != model.PERMISSION_READ_ONLY {
		return fmt.Errorf("attribute %s has invalid permission %s", def.Name, def.Permission)
	}
	return s.storage.SaveAttributeDefinition(ctx, def)
}

func (s *MetadataServiceImpl) GetAttributeDefinitions(ctx context.Context, attrType model.AttributeType) ([]model.AttributeDefinition, error) {
	return s.storage.GetAttributeDefinitions(ctx, attrType)
}

func (s *MetadataServiceImpl) GetMetadataStorage() MetadataStorage {
	return s.storage
}
