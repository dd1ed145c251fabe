package resilience

import (
	"context"
	"fmt"

	"voiceai-platform/internal/audit"
	"voiceai-platform/internal/provider"
)

// AuditSink bridges resilience events to the shared audit.Service.
//
// This keeps breaker/fallback internals from depending on persistence. All
// writes are best-effort: append failures are dropped.
type AuditSink struct {
	Audit *audit.Service
}

var _ EventSink = AuditSink{}

func (a AuditSink) ProviderFailure(ctx context.Context, callID string, service provider.ServiceType, id provider.ID, cause error) {
	if a.Audit == nil {
		return
	}
	_ = a.Audit.LogProviderFailure(ctx, callID, string(service), string(id), fmt.Sprintf("%v", cause))
}

func (a AuditSink) FallbackUsed(ctx context.Context, callID string, service provider.ServiceType, primary, used provider.ID, position int) {
	if a.Audit == nil {
		return
	}
	meta := fmt.Sprintf(`{"position":%d}`, position)
	_ = a.Audit.LogFallbackUsed(ctx, callID, string(service), string(primary), string(used), position, meta)
}

func (a AuditSink) ChainExhausted(ctx context.Context, callID string, service provider.ServiceType, last error) {
	if a.Audit == nil {
		return
	}
	_ = a.Audit.LogChainExhausted(ctx, callID, string(service), fmt.Sprintf("last error: %v", last))
}
