package reasoning

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
)

type recordingClient struct {
	reply string
	err   error
	got   CompletionRequest
}

func (r *recordingClient) Complete(_ context.Context, req CompletionRequest) (string, error) {
	r.got = req
	return r.reply, r.err
}

func startBufconnServer(t *testing.T, backend Client) *GrpcClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterServer(srv, ClientServer{Client: backend})
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	cfg := DefaultGrpcClientConfig("passthrough:///bufnet")
	cfg.ConnectTimeout = 2 * time.Second
	client, err := NewGrpcClient(cfg, nil, grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	if err != nil {
		t.Fatalf("NewGrpcClient() error = %v", err)
	}
	t.Cleanup(client.Close)
	return client
}

func TestGrpcClientComplete(t *testing.T) {
	backend := &recordingClient{reply: "socratic answer"}
	client := startBufconnServer(t, backend)

	out, err := client.Complete(context.Background(), CompletionRequest{
		Model:    "tutor-small",
		JSON:     true,
		Messages: []Message{{Role: RoleSystem, Content: "sys"}, {Role: RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if out != "socratic answer" {
		t.Errorf("Complete() = %q", out)
	}
	if backend.got.Model != "tutor-small" || !backend.got.JSON || len(backend.got.Messages) != 2 || backend.got.Messages[1].Content != "hi" {
		t.Errorf("server saw %+v", backend.got)
	}
}

func TestGrpcClientPropagatesErrors(t *testing.T) {
	client := startBufconnServer(t, &recordingClient{err: errors.New("model overloaded")})
	if _, err := client.Complete(context.Background(), CompletionRequest{}); err == nil {
		t.Fatal("expected error from sidecar")
	}

	empty := startBufconnServer(t, &recordingClient{})
	if _, err := empty.Complete(context.Background(), CompletionRequest{}); !errors.Is(err, ErrEmptyCompletion) {
		t.Fatalf("error = %v, want ErrEmptyCompletion", err)
	}
}
