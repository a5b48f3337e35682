// Package verifyrpc defines the Verifier gRPC service. Messages are plain Go
// structs carried with the JSON codec, so no generated code is involved.
package verifyrpc

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the full name of the Verifier service.
const ServiceName = "verifyrpc.Verifier"

// Full method names, as seen by interceptors.
const (
	ExtractEntriesMethod     = "/" + ServiceName + "/ExtractEntries"
	DeriveAddressMethod      = "/" + ServiceName + "/DeriveAddress"
	VerifySignatureMethod    = "/" + ServiceName + "/VerifySignature"
	CheckCompatibilityMethod = "/" + ServiceName + "/CheckCompatibility"
	ChallengeMethod          = "/" + ServiceName + "/Challenge"
)

// VerifierServer is the server API for the Verifier service.
type VerifierServer interface {
	// ExtractEntries finds all xpubs in a descriptor or config export
	// together with their base paths and fingerprints.
	ExtractEntries(context.Context, *ExtractEntriesRequest) (
		*ExtractEntriesResponse, error)

	// DeriveAddress derives the address of a child key of an xpub.
	DeriveAddress(context.Context, *DeriveAddressRequest) (
		*DeriveAddressResponse, error)

	// VerifySignature checks a signed message against an address.
	VerifySignature(context.Context, *VerifySignatureRequest) (
		*VerifySignatureResponse, error)

	// CheckCompatibility reports whether a signature format can be used
	// with an address type.
	CheckCompatibility(context.Context, *CheckCompatibilityRequest) (
		*CheckCompatibilityResponse, error)

	// Challenge returns the text a collaborator is asked to sign.
	Challenge(context.Context, *ChallengeRequest) (*ChallengeResponse,
		error)
}

// RegisterVerifierServer registers the service implementation with a gRPC
// server.
func RegisterVerifierServer(s grpc.ServiceRegistrar, srv VerifierServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// ServiceDesc is the grpc.ServiceDesc of the Verifier service.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*VerifierServer)(nil),
	Methods: []grpc.MethodDesc{{
		MethodName: "ExtractEntries",
		Handler:    extractEntriesHandler,
	}, {
		MethodName: "DeriveAddress",
		Handler:    deriveAddressHandler,
	}, {
		MethodName: "VerifySignature",
		Handler:    verifySignatureHandler,
	}, {
		MethodName: "CheckCompatibility",
		Handler:    checkCompatibilityHandler,
	}, {
		MethodName: "Challenge",
		Handler:    challengeHandler,
	}},
	Streams:  []grpc.StreamDesc{},
	Metadata: "verifyrpc",
}

// unary runs a decoded request through the interceptor, if any.
func unary(ctx context.Context, srv interface{}, req interface{},
	method string, interceptor grpc.UnaryServerInterceptor,
	call func(context.Context, interface{}) (interface{}, error)) (
	interface{}, error) {

	if interceptor == nil {
		return call(ctx, req)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: method,
	}

	return interceptor(ctx, req, info, call)
}

func extractEntriesHandler(srv interface{}, ctx context.Context,
	dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor) (interface{}, error) {

	in := new(ExtractEntriesRequest)
	if err := dec(in); err != nil {
		return nil, err
	}

	return unary(ctx, srv, in, ExtractEntriesMethod, interceptor,
		func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.(VerifierServer).ExtractEntries(
				ctx, req.(*ExtractEntriesRequest),
			)
		},
	)
}

func deriveAddressHandler(srv interface{}, ctx context.Context,
	dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor) (interface{}, error) {

	in := new(DeriveAddressRequest)
	if err := dec(in); err != nil {
		return nil, err
	}

	return unary(ctx, srv, in, DeriveAddressMethod, interceptor,
		func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.(VerifierServer).DeriveAddress(
				ctx, req.(*DeriveAddressRequest),
			)
		},
	)
}

func verifySignatureHandler(srv interface{}, ctx context.Context,
	dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor) (interface{}, error) {

	in := new(VerifySignatureRequest)
	if err := dec(in); err != nil {
		return nil, err
	}

	return unary(ctx, srv, in, VerifySignatureMethod, interceptor,
		func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.(VerifierServer).VerifySignature(
				ctx, req.(*VerifySignatureRequest),
			)
		},
	)
}

func checkCompatibilityHandler(srv interface{}, ctx context.Context,
	dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor) (interface{}, error) {

	in := new(CheckCompatibilityRequest)
	if err := dec(in); err != nil {
		return nil, err
	}

	return unary(ctx, srv, in, CheckCompatibilityMethod, interceptor,
		func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.(VerifierServer).CheckCompatibility(
				ctx, req.(*CheckCompatibilityRequest),
			)
		},
	)
}

func challengeHandler(srv interface{}, ctx context.Context,
	dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor) (interface{}, error) {

	in := new(ChallengeRequest)
	if err := dec(in); err != nil {
		return nil, err
	}

	return unary(ctx, srv, in, ChallengeMethod, interceptor,
		func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.(VerifierServer).Challenge(
				ctx, req.(*ChallengeRequest),
			)
		},
	)
}

// VerifierClient is the client API for the Verifier service.
type VerifierClient interface {
	ExtractEntries(ctx context.Context, in *ExtractEntriesRequest,
		opts ...grpc.CallOption) (*ExtractEntriesResponse, error)

	DeriveAddress(ctx context.Context, in *DeriveAddressRequest,
		opts ...grpc.CallOption) (*DeriveAddressResponse, error)

	VerifySignature(ctx context.Context, in *VerifySignatureRequest,
		opts ...grpc.CallOption) (*VerifySignatureResponse, error)

	CheckCompatibility(ctx context.Context, in *CheckCompatibilityRequest,
		opts ...grpc.CallOption) (*CheckCompatibilityResponse, error)

	Challenge(ctx context.Context, in *ChallengeRequest,
		opts ...grpc.CallOption) (*ChallengeResponse, error)
}

type verifierClient struct {
	cc grpc.ClientConnInterface
}

// NewVerifierClient returns a client for the Verifier service. All calls use
// the JSON codec.
func NewVerifierClient(cc grpc.ClientConnInterface) VerifierClient {
	return &verifierClient{cc: cc}
}

func (c *verifierClient) invoke(ctx context.Context, method string, in,
	out interface{}, opts []grpc.CallOption) error {

	opts = append(
		[]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...,
	)

	return c.cc.Invoke(ctx, method, in, out, opts...)
}

func (c *verifierClient) ExtractEntries(ctx context.Context,
	in *ExtractEntriesRequest, opts ...grpc.CallOption) (
	*ExtractEntriesResponse, error) {

	out := new(ExtractEntriesResponse)
	err := c.invoke(ctx, ExtractEntriesMethod, in, out, opts)
	if err != nil {
		return nil, err
	}

	return out, nil
}

func (c *verifierClient) DeriveAddress(ctx context.Context,
	in *DeriveAddressRequest, opts ...grpc.CallOption) (
	*DeriveAddressResponse, error) {

	out := new(DeriveAddressResponse)
	err := c.invoke(ctx, DeriveAddressMethod, in, out, opts)
	if err != nil {
		return nil, err
	}

	return out, nil
}

func (c *verifierClient) VerifySignature(ctx context.Context,
	in *VerifySignatureRequest, opts ...grpc.CallOption) (
	*VerifySignatureResponse, error) {

	out := new(VerifySignatureResponse)
	err := c.invoke(ctx, VerifySignatureMethod, in, out, opts)
	if err != nil {
		return nil, err
	}

	return out, nil
}

func (c *verifierClient) CheckCompatibility(ctx context.Context,
	in *CheckCompatibilityRequest, opts ...grpc.CallOption) (
	*CheckCompatibilityResponse, error) {

	out := new(CheckCompatibilityResponse)
	err := c.invoke(ctx, CheckCompatibilityMethod, in, out, opts)
	if err != nil {
		return nil, err
	}

	return out, nil
}

func (c *verifierClient) Challenge(ctx context.Context, in *ChallengeRequest,
	opts ...grpc.CallOption) (*ChallengeResponse, error) {

	out := new(ChallengeResponse)
	err := c.invoke(ctx, ChallengeMethod, in, out, opts)
	if err != nil {
		return nil, err
	}

	return out, nil
}
