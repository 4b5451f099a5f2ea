// Package telemetry wires OpenTelemetry tracing and metrics for ticketdup.
//
// Traces and metrics are exported over OTLP (gRPC or HTTP/protobuf) to a
// collector. Telemetry is off by default; when it is off, or an exporter
// cannot be created, every Tracer and Meter is a no-op.
//
// # Usage
//
//	tel, err := telemetry.New(ctx, telemetry.FromSettings(cfg.Telemetry, version), logger)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
// New installs the providers globally, so package-level tracers such as the
// vector store's pick them up.
//
// # Configuration
//
//	telemetry:
//	  enabled: true
//	  endpoint: "localhost:4317"
//	  protocol: "grpc"        # or "http/protobuf"
//	  service_name: "ticketdup"
//	  sample_rate: 1.0
//	  export_interval: "15s"
//
// # Testing
//
//	tt := telemetry.NewTestTelemetry()
//	tt.Install(t)
//	// exercise code
//	tt.AssertSpanExists(t, "chromem.knn")
package telemetry
