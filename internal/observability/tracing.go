// 包 observability：OpenTelemetry 链路追踪初始化
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// TracingConfig 追踪配置
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	// Exporter 为 stdout 或 otlp
	Exporter    string
	Endpoint    string
	SampleRatio float64
}

// TracingConfigFromEnv 读取 TRACING_* 环境变量
func TracingConfigFromEnv() TracingConfig {
	exporter := strings.ToLower(os.Getenv("TRACING_EXPORTER"))
	if exporter == "" {
		exporter = "stdout"
	}
	service := os.Getenv("TRACING_SERVICE_NAME")
	if service == "" {
		service = "travel-geo"
	}
	ratio := 1.0
	if s := os.Getenv("TRACING_SAMPLE_RATIO"); s != "" {
		if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 && f <= 1 {
			ratio = f
		}
	}
	return TracingConfig{
		Enabled:     strings.EqualFold(os.Getenv("TRACING_ENABLED"), "true"),
		ServiceName: service,
		Exporter:    exporter,
		Endpoint:    os.Getenv("TRACING_OTLP_ENDPOINT"),
		SampleRatio: ratio,
	}
}

// 文档注释：初始化全局 TracerProvider
// 背景：检测器、反地理与图片请求各自开启 span；未启用时安装 noop provider，调用方无需判断。
// 返回：用于退出时刷新 span 的 shutdown 函数。
func InitTracing(ctx context.Context, cfg TracingConfig, l *slog.Logger) (func(context.Context) error, error) {
	if l == nil {
		l = slog.Default()
	}
	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		otel.SetTextMapPropagator(propagation.TraceContext{})
		l.Debug("tracing_disabled")
		return func(context.Context) error { return nil }, nil
	}
	exp, err := exporterFromConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", cfg.ServiceName),
	))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	l.Info("tracing_enabled", "exporter", cfg.Exporter, "service", cfg.ServiceName, "ratio", cfg.SampleRatio)
	return tp.Shutdown, nil
}

func exporterFromConfig(ctx context.Context, cfg TracingConfig) (sdktrace.SpanExporter, error) {
	switch strings.ToLower(cfg.Exporter) {
	case "stdout", "":
		return stdouttrace.New(stdouttrace.WithWriter(os.Stdout), stdouttrace.WithoutTimestamps())
	case "otlp", "otlpgrpc":
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = "localhost:4317"
		}
		client := otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
		return otlptrace.New(ctx, client)
	default:
		return nil, fmt.Errorf("unsupported tracing exporter: %s", cfg.Exporter)
	}
}

// ShutdownWithTimeout 在 5 秒内刷新并关闭，错误只记录
func ShutdownWithTimeout(ctx context.Context, shutdown func(context.Context) error, l *slog.Logger) {
	if shutdown == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil && l != nil {
		l.Warn("tracing_shutdown_error", "err", err)
	}
}
