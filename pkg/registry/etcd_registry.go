package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"compress-service/pkg/config"
	"compress-service/pkg/logger"
)

// Instance is the value stored under the service key.
type Instance struct {
	ServiceID string    `json:"service_id"`
	HTTPAddr  string    `json:"http_addr"`
	GRPCAddr  string    `json:"grpc_addr,omitempty"`
	Hostname  string    `json:"hostname"`
	StartedAt time.Time `json:"started_at"`
}

// ServiceRegistry registers one service instance into etcd under a lease.
type ServiceRegistry struct {
	client   *clientv3.Client
	key      string
	value    string
	ttl      int64
	leaseID  clientv3.LeaseID
	ctx      context.Context
	cancel   context.CancelFunc
	instance Instance
}

// NewServiceRegistry creates a new ServiceRegistry instance.
func NewServiceRegistry(etcdCfg config.EtcdConfig, svcCfg config.ServiceRegistryConfig, inst Instance) (*ServiceRegistry, error) {
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   etcdCfg.Endpoints,
		DialTimeout: etcdCfg.DialTimeout,
		Username:    etcdCfg.Username,
		Password:    etcdCfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}

	if inst.ServiceID == "" {
		inst.ServiceID = svcCfg.ServiceID
	}
	if inst.Hostname == "" {
		inst.Hostname, _ = os.Hostname()
	}
	if inst.ServiceID == "" {
		inst.ServiceID = inst.Hostname
	}
	if inst.StartedAt.IsZero() {
		inst.StartedAt = time.Now()
	}
	value, err := json.Marshal(inst)
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	ttl := int64(svcCfg.TTL.Seconds())
	if ttl <= 0 {
		ttl = 30
	}
	return &ServiceRegistry{
		client:   client,
		key:      ServiceKey(svcCfg.ServiceName, inst.ServiceID),
		value:    string(value),
		ttl:      ttl,
		ctx:      ctx,
		cancel:   cancel,
		instance: inst,
	}, nil
}

// ServiceKey is the etcd key for one instance.
func ServiceKey(serviceName, serviceID string) string {
	return fmt.Sprintf("/services/%s/%s", serviceName, serviceID)
}

// Register grants a lease, writes the instance and keeps the lease alive.
func (r *ServiceRegistry) Register() error {
	leaseResp, err := r.client.Grant(r.ctx, r.ttl)
	if err != nil {
		return fmt.Errorf("failed to grant lease: %w", err)
	}
	r.leaseID = leaseResp.ID

	if _, err := r.client.Put(r.ctx, r.key, r.value, clientv3.WithLease(r.leaseID)); err != nil {
		return fmt.Errorf("failed to register service: %w", err)
	}

	go r.keepAlive()

	logger.Infof("Service registered key=%s http=%s grpc=%s", r.key, r.instance.HTTPAddr, r.instance.GRPCAddr)
	return nil
}

func (r *ServiceRegistry) keepAlive() {
	ch, err := r.client.KeepAlive(r.ctx, r.leaseID)
	if err != nil {
		logger.Warnf("Failed to keep alive lease key=%s error=%v", r.key, err)
		return
	}
	for {
		select {
		case <-r.ctx.Done():
			return
		case ka := <-ch:
			if ka == nil {
				logger.Warnf("Keep alive channel closed key=%s", r.key)
				return
			}
		}
	}
}

// Deregister revokes the lease and closes the client.
func (r *ServiceRegistry) Deregister() error {
	r.cancel()
	if r.leaseID != 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if _, err := r.client.Revoke(ctx, r.leaseID); err != nil {
			logger.Warnf("Failed to revoke lease key=%s error=%v", r.key, err)
		}
	}
	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close etcd client: %w", err)
	}
	logger.Infof("Service deregistered key=%s", r.key)
	return nil
}
