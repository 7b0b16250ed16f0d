package resource

import (
	"compress-service/pkg/config"
	"compress-service/pkg/kafka"
	"compress-service/pkg/manager"
)

type KafkaResource struct {
	opened bool
}

type KafkaResourcePlugin struct{}

func (p *KafkaResourcePlugin) Name() string { return "kafka" }

func (p *KafkaResourcePlugin) MustCreateResource() manager.Resource { return &KafkaResource{} }

// MustOpen 未启用kafka时跳过
func (r *KafkaResource) MustOpen() {
	cfg := config.GetGlobalConfig()
	if cfg == nil || !cfg.Kafka.Enabled {
		return
	}
	kafka.DefaultClient().MustOpen()
	r.opened = true
}

func (r *KafkaResource) Close() {
	if r.opened {
		kafka.DefaultClient().Close()
	}
}
