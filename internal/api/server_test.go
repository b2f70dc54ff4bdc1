package api

import (
	"context"
	"io"
	"net"
	"path/filepath"
	"testing"
	"time"

	"learnhub/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func TestGRPCServer_Health(t *testing.T) {
	cfg := &config.APIConfig{
		Enabled: true,
		GRPC:    config.APIGRPCConfig{Enabled: true, Reflection: true},
		Auth: config.APIAuthConfig{
			Enabled: true,
			APIKeys: []config.APIClientKey{{Key: "k", Extra: "e"}},
		},
	}
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	logger := zerolog.New(io.Discard)
	srv, err := newGRPCServer(cfg, lis, &logger)
	require.NoError(t, err)
	assert.Equal(t, lis.Addr().String(), srv.Addr())

	go func() { _ = srv.Serve() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})

	conn, err := grpc.NewClient(srv.Addr(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	client := healthpb.NewHealthClient(conn)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())

	srv.SetServing(false)
	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())

	_, err = client.Check(ctx, &healthpb.HealthCheckRequest{Service: "unknown"})
	assert.Equal(t, codes.NotFound, status.Code(err))

	// Reflection needs credentials.
	stream, err := conn.NewStream(ctx, &grpc.StreamDesc{ServerStreams: true, ClientStreams: true},
		"/grpc.reflection.v1.ServerReflection/ServerReflectionInfo")
	require.NoError(t, err)
	require.NoError(t, stream.CloseSend())
	err = stream.RecvMsg(&healthpb.HealthCheckResponse{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	authed := metadata.AppendToOutgoingContext(ctx, "x-api-key", "k", "x-api-extra", "e")
	_, err = client.Check(authed, &healthpb.HealthCheckRequest{})
	assert.NoError(t, err)
}

func TestNewGRPCServer_TLSMisconfigured(t *testing.T) {
	cfg := &config.APIConfig{GRPC: config.APIGRPCConfig{TLS: config.APITLSConfig{Enabled: true}}}
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	_, err = newGRPCServer(cfg, lis, nil)
	assert.Error(t, err)
}

func TestBuildTLSConfig(t *testing.T) {
	_, err := buildTLSConfig(config.APITLSConfig{Enabled: true})
	assert.Error(t, err, "cert and key are required")

	missing := filepath.Join(t.TempDir(), "missing.pem")
	_, err = buildTLSConfig(config.APITLSConfig{Enabled: true, CertFile: missing, KeyFile: missing})
	assert.Error(t, err)
}
