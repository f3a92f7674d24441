package temporalx

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/yungbote/sectorgoals-backend/internal/pkg/logger"
)

// NewClient dials the calculation cluster within cfg.Dial. It returns
// (nil, nil) when no address is configured.
func NewClient(ctx context.Context, cfg Config, log *logger.Logger) (temporalsdkclient.Client, error) {
	if !cfg.Enabled() {
		if log != nil {
			log.Warn("TEMPORAL_ADDRESS not set; Temporal disabled")
		}
		return nil, nil
	}
	opts, err := cfg.clientOptions(log, true)
	if err != nil {
		return nil, err
	}

	var c temporalsdkclient.Client
	err = cfg.Dial.Do(ctx, log, "temporal dial", func(ctx context.Context) (bool, error) {
		dialed, err := temporalsdkclient.DialContext(ctx, opts)
		if err != nil {
			return true, err
		}
		c = dialed
		return false, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w (address=%s namespace=%s)", err, cfg.Address, cfg.Namespace)
	}
	if cfg.AutoRegisterNamespace {
		if err := EnsureNamespace(ctx, cfg, log); err != nil {
			c.Close()
			return nil, err
		}
	}
	if log != nil {
		log.Info("Connected to Temporal", "address", cfg.Address, "namespace", cfg.Namespace, "task_queue", cfg.TaskQueue)
	}
	return c, nil
}

// clientOptions builds dial options. The namespace client must be built
// without a namespace so it works before the namespace exists.
func (c Config) clientOptions(log *logger.Logger, withNamespace bool) (temporalsdkclient.Options, error) {
	opts := temporalsdkclient.Options{HostPort: c.Address}
	if log != nil {
		opts.Logger = log
	}
	if withNamespace {
		opts.Namespace = c.Namespace
	}
	if c.tlsEnabled() {
		tlsCfg, err := loadTLSConfig(c)
		if err != nil {
			return opts, err
		}
		opts.ConnectionOptions.TLS = tlsCfg
	}
	return opts, nil
}

func loadTLSConfig(cfg Config) (*tls.Config, error) {
	if cfg.ClientCertPath == "" || cfg.ClientKeyPath == "" {
		return nil, fmt.Errorf("temporal tls: TEMPORAL_CLIENT_CERT_PATH and TEMPORAL_CLIENT_KEY_PATH must be set together")
	}
	cert, err := tls.LoadX509KeyPair(cfg.ClientCertPath, cfg.ClientKeyPath)
	if err != nil {
		return nil, fmt.Errorf("temporal tls: load client cert/key: %w", err)
	}
	tlsCfg := &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}
	if cfg.ClientCAPath == "" {
		return tlsCfg, nil
	}
	pem, err := os.ReadFile(cfg.ClientCAPath)
	if err != nil {
		return nil, fmt.Errorf("temporal tls: read CA: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("temporal tls: invalid CA pem")
	}
	tlsCfg.RootCAs = pool
	return tlsCfg, nil
}

// healthChecker is the part of the client the readiness check calls.
type healthChecker interface {
	CheckHealth(ctx context.Context, request *temporalsdkclient.CheckHealthRequest) (*temporalsdkclient.CheckHealthResponse, error)
}

// ClusterCheck reports whether the cluster that executes calculation runs
// answers, in the shape the readiness handler expects.
type ClusterCheck struct {
	Client healthChecker
}

func (p ClusterCheck) TestConnectivity(ctx context.Context) (time.Duration, error) {
	if p.Client == nil {
		return 0, fmt.Errorf("temporal client not configured")
	}
	start := time.Now()
	_, err := p.Client.CheckHealth(ctx, &temporalsdkclient.CheckHealthRequest{})
	return time.Since(start), err
}
