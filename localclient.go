package multisigcheck

import (
	"context"

	"github.com/aakselrod/multisigcheck/verifyrpc"
	"github.com/btcsuite/btcd/chaincfg"
	"google.golang.org/grpc"
)

// localClient runs the Verifier service in process. Call options are
// ignored.
type localClient struct {
	srv *rpcServer
}

// A compile time check to ensure that localClient can stand in for a remote
// Verifier client.
var _ verifyrpc.VerifierClient = (*localClient)(nil)

// NewLocalClient returns a Verifier client that doesn't need a daemon. It
// answers with the same results and status errors the daemon would.
func NewLocalClient(net *chaincfg.Params) verifyrpc.VerifierClient {
	return &localClient{
		srv: newRPCServer(newServer(NewChecker(net), nil), nil),
	}
}

func (c *localClient) ExtractEntries(ctx context.Context,
	in *verifyrpc.ExtractEntriesRequest, _ ...grpc.CallOption) (
	*verifyrpc.ExtractEntriesResponse, error) {

	return c.srv.ExtractEntries(ctx, in)
}

func (c *localClient) DeriveAddress(ctx context.Context,
	in *verifyrpc.DeriveAddressRequest, _ ...grpc.CallOption) (
	*verifyrpc.DeriveAddressResponse, error) {

	return c.srv.DeriveAddress(ctx, in)
}

func (c *localClient) VerifySignature(ctx context.Context,
	in *verifyrpc.VerifySignatureRequest, _ ...grpc.CallOption) (
	*verifyrpc.VerifySignatureResponse, error) {

	return c.srv.VerifySignature(ctx, in)
}

func (c *localClient) CheckCompatibility(ctx context.Context,
	in *verifyrpc.CheckCompatibilityRequest, _ ...grpc.CallOption) (
	*verifyrpc.CheckCompatibilityResponse, error) {

	return c.srv.CheckCompatibility(ctx, in)
}

func (c *localClient) Challenge(ctx context.Context,
	in *verifyrpc.ChallengeRequest, _ ...grpc.CallOption) (
	*verifyrpc.ChallengeResponse, error) {

	return c.srv.Challenge(ctx, in)
}
