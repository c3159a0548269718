package api

import (
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dunamismax/pixelgate/internal/parser"
)

func (s *Server) withTracing(next http.Handler) http.Handler {
	if s.tracer == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := routeLabel(r.URL.Path)
		ctx, span := s.tracer.Start(r.Context(), r.Method+" "+route, trace.WithSpanKind(trace.SpanKindServer))
		span.SetAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", route),
			attribute.String("http.target", r.URL.Path),
		)
		if route == "/{object}" {
			span.SetAttributes(attribute.String("pixelgate.object", r.URL.Path))
			if instruction := r.URL.Query().Get(parser.InstructionParam); instruction != "" {
				span.SetAttributes(
					attribute.Bool("pixelgate.transform", true),
					attribute.String("pixelgate.instruction", instruction),
				)
			}
		}
		defer span.End()

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
