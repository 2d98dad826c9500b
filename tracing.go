package notificationhubs

import (
	"context"
	"os"

	"github.com/opentracing/opentracing-go"
	tag "github.com/opentracing/opentracing-go/ext"
)

func (h *Hub) startSpanFromContext(ctx context.Context, operationName string, opts ...opentracing.StartSpanOption) (opentracing.Span, context.Context) {
	span, ctx := opentracing.StartSpanFromContext(ctx, operationName, opts...)
	ApplyComponentInfo(span)
	tag.SpanKindRPCClient.Set(span)
	tag.PeerService.Set(span, "notificationhubs")
	span.SetTag("hub", h.name)
	return span, ctx
}

// ApplyComponentInfo applies notification hubs library and network info to the span
func ApplyComponentInfo(span opentracing.Span) {
	tag.Component.Set(span, "github.com/Azure/azure-notification-hubs-go")
	span.SetTag("version", Version)
	applyNetworkInfo(span)
}

func applyNetworkInfo(span opentracing.Span) {
	hostname, err := os.Hostname()
	if err == nil {
		tag.PeerHostname.Set(span, hostname)
	}
}
