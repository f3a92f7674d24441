package temporalx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/api/workflowservice/v1"
	temporalsdkclient "go.temporal.io/sdk/client"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/yungbote/sectorgoals-backend/internal/pkg/logger"
)

// namespaceAPI is the slice of the namespace client used to provision the
// calculation namespace.
type namespaceAPI interface {
	Describe(ctx context.Context, name string) (*workflowservice.DescribeNamespaceResponse, error)
	Register(ctx context.Context, request *workflowservice.RegisterNamespaceRequest) error
}

// EnsureNamespace registers cfg.Namespace when the cluster does not know it.
// Only meant for self-hosted clusters; managed namespaces are provisioned out
// of band.
func EnsureNamespace(ctx context.Context, cfg Config, log *logger.Logger) error {
	if !cfg.Enabled() || cfg.Namespace == "" {
		return nil
	}
	opts, err := cfg.clientOptions(log, false)
	if err != nil {
		return err
	}
	ns, err := temporalsdkclient.NewNamespaceClient(opts)
	if err != nil {
		return fmt.Errorf("temporal namespace ensure: init namespace client: %w", err)
	}
	defer ns.Close()
	return ensureNamespace(ctx, ns, cfg, log)
}

func ensureNamespace(ctx context.Context, ns namespaceAPI, cfg Config, log *logger.Logger) error {
	registered := false
	err := cfg.Ensure.Do(ctx, log, "temporal namespace ensure", func(ctx context.Context) (bool, error) {
		_, err := ns.Describe(ctx, cfg.Namespace)
		if err == nil {
			return false, nil
		}
		var missing *serviceerror.NamespaceNotFound
		if !errors.As(err, &missing) {
			return isRetryableRPC(err), fmt.Errorf("describe %s: %w", cfg.Namespace, err)
		}
		err = ns.Register(ctx, registerRequest(cfg))
		var exists *serviceerror.NamespaceAlreadyExists
		switch {
		case err == nil:
			registered = true
			return false, nil
		case errors.As(err, &exists):
			return false, nil
		default:
			return isRetryableRPC(err), fmt.Errorf("register %s: %w", cfg.Namespace, err)
		}
	})
	if err == nil && registered && log != nil {
		log.Info("Registered Temporal namespace", "namespace", cfg.Namespace, "retention_days", cfg.RetentionDays)
	}
	return err
}

func registerRequest(cfg Config) *workflowservice.RegisterNamespaceRequest {
	days := cfg.RetentionDays
	if days < 1 {
		days = 30
	}
	return &workflowservice.RegisterNamespaceRequest{
		Namespace:                        cfg.Namespace,
		Description:                      "sector goal calculation runs",
		WorkflowExecutionRetentionPeriod: durationpb.New(time.Duration(days) * 24 * time.Hour),
		Data:                             map[string]string{"task_queue": cfg.TaskQueue},
	}
}
