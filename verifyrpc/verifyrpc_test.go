package verifyrpc

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"sigillo.dev/sigillo/docstore"
	"sigillo.dev/sigillo/hashutil"
	"sigillo.dev/sigillo/model"
)

func newBufClient(t *testing.T, store *docstore.Store) *Client {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer()
	RegisterVerifyServer(srv, &Server{Store: store})

	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)

	dialer := func(ctx context.Context, s string) (net.Conn, error) { return lis.Dial() }
	cc, err := grpc.DialContext(
		context.Background(),
		"bufnet",
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("DialContext: %v", err)
	}
	t.Cleanup(func() { cc.Close() })

	return &Client{cc: cc, client: NewVerifyClient(cc), Timeout: 2 * time.Second}
}

func TestVerifyRoundTrip(t *testing.T) {
	store, err := docstore.New(t.TempDir())
	if err != nil {
		t.Fatalf("docstore.New: %v", err)
	}
	if _, err := store.Put("ns1", "d", "a.txt", []byte("content"), nil); err != nil {
		t.Fatalf("Put: %v", err)
	}
	artifact := []byte(`{"fingerprint":"ab","namespace":"ns1","relative_path":"d/a.txt","file_name":"a.txt"}`)
	if err := store.SetCommitment("ns1", "d/a.txt", artifact); err != nil {
		t.Fatalf("SetCommitment: %v", err)
	}
	if err := store.AppendValidation("ns1", "d/a.txt", model.ValidationEntry{
		Network:           "algo",
		Type:              model.ValidationAssetIssue,
		AssetID:           7,
		CommitmentHashHex: hashutil.Fingerprint(artifact),
	}); err != nil {
		t.Fatalf("AppendValidation: %v", err)
	}

	client := newBufClient(t, store)

	got, err := client.GetCommitment("ns1/d/a.txt")
	if err != nil {
		t.Fatalf("GetCommitment: %v", err)
	}
	if string(got) != string(artifact) {
		t.Fatalf("artifact mismatch: %s", got)
	}

	rec, err := client.GetRecord("ns1/d/a.txt")
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if rec.FileName != "a.txt" || len(rec.Validations) != 1 {
		t.Fatalf("record = %+v", rec)
	}

	if !client.HasDocument("ns1/d/a.txt") {
		t.Fatalf("HasDocument: expected true")
	}
	if client.HasDocument("ns1/d/missing.txt") {
		t.Fatalf("HasDocument: expected false for missing document")
	}

	ok, hash, err := client.Verify("ns1/d/a.txt")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatalf("Verify: hash mismatch, got %s", hash)
	}
}

func TestVerifyDetectsTamper(t *testing.T) {
	store, err := docstore.New(t.TempDir())
	if err != nil {
		t.Fatalf("docstore.New: %v", err)
	}
	store.Put("ns1", "", "a.txt", []byte("content"), nil)
	store.SetCommitment("ns1", "a.txt", []byte(`{"v":1}`))
	store.AppendValidation("ns1", "a.txt", model.ValidationEntry{
		Type:              model.ValidationAssetIssue,
		CommitmentHashHex: "0000000000000000000000000000000000000000000000000000000000000000",
	})

	client := newBufClient(t, store)
	ok, _, err := client.Verify("ns1/a.txt")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Fatalf("Verify accepted a tampered commitment")
	}
}

func TestMissingCommitmentIsNotFound(t *testing.T) {
	store, err := docstore.New(t.TempDir())
	if err != nil {
		t.Fatalf("docstore.New: %v", err)
	}
	store.Put("ns1", "", "a.txt", []byte("content"), nil)

	client := newBufClient(t, store)
	if _, err := client.GetCommitment("ns1/a.txt"); !model.IsNotFound(err) {
		t.Fatalf("error = %v, want NOT_FOUND", err)
	}
}

func TestBadKeyIsInvalidArgument(t *testing.T) {
	store, err := docstore.New(t.TempDir())
	if err != nil {
		t.Fatalf("docstore.New: %v", err)
	}
	client := newBufClient(t, store)
	if _, err := client.GetRecord("nokeyseparator"); !model.IsCode(err, model.ErrInvalidInput) {
		t.Fatalf("error = %v, want INVALID_INPUT", err)
	}
}
