package verifyrpc

import (
	"context"
	"encoding/json"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"sigillo.dev/sigillo/hashutil"
	"sigillo.dev/sigillo/model"
)

// Client is the verifier-side API over the Verify gRPC service.
type Client struct {
	cc     *grpc.ClientConn
	client VerifyClient

	// Timeout applies per RPC when non-zero.
	Timeout time.Duration
}

type DialOptions struct {
	// Timeout applies to the initial dial when non-zero.
	Timeout time.Duration

	// MaxMsgBytes sets both send/recv max sizes when non-zero.
	MaxMsgBytes int
}

func Dial(target string, opts DialOptions) (*Client, error) {
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
	if opts.MaxMsgBytes > 0 {
		dialOpts = append(dialOpts,
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(opts.MaxMsgBytes),
				grpc.MaxCallSendMsgSize(opts.MaxMsgBytes),
			),
		)
	}

	ctx := context.Background()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cc, err := grpc.DialContext(ctx, target, dialOpts...)
	if err != nil {
		return nil, err
	}
	return &Client{cc: cc, client: NewVerifyClient(cc), Timeout: 0}, nil
}

func (c *Client) Close() error {
	if c == nil || c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

// GetCommitment fetches the raw commitment artifact bytes for key
// ("namespace/relative-path").
func (c *Client) GetCommitment(key string) ([]byte, error) {
	ctx, cancel := c.ctx()
	defer cancel()
	reply, err := c.client.GetCommitment(ctx, wrapperspb.String(key))
	if err != nil {
		return nil, mapRPC(err)
	}
	return reply.GetValue(), nil
}

// GetRecord fetches and decodes the metadata record for key.
func (c *Client) GetRecord(key string) (*model.MetadataRecord, error) {
	ctx, cancel := c.ctx()
	defer cancel()
	reply, err := c.client.GetRecord(ctx, wrapperspb.String(key))
	if err != nil {
		return nil, mapRPC(err)
	}
	var rec model.MetadataRecord
	if err := json.Unmarshal(reply.GetValue(), &rec); err != nil {
		return nil, model.Errorf(model.ErrInternal, "record payload unreadable: %v", err)
	}
	return &rec, nil
}

// HasDocument reports whether the document bytes exist for key.
func (c *Client) HasDocument(key string) bool {
	ctx, cancel := c.ctx()
	defer cancel()
	reply, err := c.client.HasDocument(ctx, wrapperspb.String(key))
	if err != nil {
		return false
	}
	return reply.GetValue()
}

// Verify fetches the commitment artifact and the metadata record, re-hashes
// the artifact, and compares the digest against the hash recorded by the
// last successful issuance. Returns the recomputed hex digest.
func (c *Client) Verify(key string) (bool, string, error) {
	artifact, err := c.GetCommitment(key)
	if err != nil {
		return false, "", err
	}
	rec, err := c.GetRecord(key)
	if err != nil {
		return false, "", err
	}
	got := hashutil.Fingerprint(artifact)
	for i := len(rec.Validations) - 1; i >= 0; i-- {
		v := rec.Validations[i]
		if v.Type != model.ValidationAssetIssue {
			continue
		}
		return v.CommitmentHashHex == got, got, nil
	}
	return false, got, model.Errorf(model.ErrNotFound, "no recorded issuance for %q", key)
}

func (c *Client) ctx() (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), c.Timeout)
}
