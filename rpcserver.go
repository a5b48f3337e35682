package multisigcheck

import (
	"context"
	"encoding/hex"
	"strconv"

	"github.com/aakselrod/multisigcheck/address"
	"github.com/aakselrod/multisigcheck/msgverify"
	"github.com/aakselrod/multisigcheck/verifyrpc"
	"github.com/go-errors/errors"
	middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"gopkg.in/macaroon-bakery.v2/bakery"
	"gopkg.in/macaroon.v2"
)

// errorDomain is the domain of the ErrorInfo details attached to RPC errors.
const errorDomain = "multisigcheck"

// RPCServerPermissions returns a mapping of the RPC calls to the permissions
// they require.
func RPCServerPermissions() map[string][]bakery.Op {
	return map[string][]bakery.Op{
		verifyrpc.ExtractEntriesMethod: {{
			Entity: "descriptor",
			Action: "read",
		}},
		verifyrpc.ChallengeMethod: {{
			Entity: "descriptor",
			Action: "read",
		}},
		verifyrpc.DeriveAddressMethod: {{
			Entity: "address",
			Action: "read",
		}},
		verifyrpc.VerifySignatureMethod: {{
			Entity: "signature",
			Action: "read",
		}},
		verifyrpc.CheckCompatibilityMethod: {{
			Entity: "signature",
			Action: "read",
		}},
	}
}

// GetAllPermissions returns all the permissions required to interact with
// the RPC server, each one once.
func GetAllPermissions() []bakery.Op {
	allPerms := make([]bakery.Op, 0)

	// The map will help keep track of which specific permission pairs have
	// already been added to the slice.
	seen := make(map[bakery.Op]struct{})

	for _, perms := range RPCServerPermissions() {
		for _, perm := range perms {
			if _, ok := seen[perm]; ok {
				continue
			}
			seen[perm] = struct{}{}
			allPerms = append(allPerms, perm)
		}
	}

	return allPerms
}

// rpcServer is the gRPC front end of the daemon.
type rpcServer struct {
	perms map[string][]bakery.Op

	server *server

	// checker is nil if macaroons are disabled.
	checker *bakery.Checker
}

// A compile time check to ensure that rpcServer fully implements the
// VerifierServer gRPC service.
var _ verifyrpc.VerifierServer = (*rpcServer)(nil)

// newRPCServer creates and returns a new instance of the rpcServer. A nil
// macaroon checker disables authentication.
func newRPCServer(s *server, checker *bakery.Checker) *rpcServer {
	return &rpcServer{
		server:  s,
		checker: checker,
		perms:   make(map[string][]bakery.Op),
	}
}

// serverOpts returns the interceptor chain of the RPC server: logging,
// metrics if enabled and macaroon authentication if enabled.
func (r *rpcServer) serverOpts() []grpc.ServerOption {
	interceptors := []grpc.UnaryServerInterceptor{logRequest}
	if r.server.metrics != nil {
		interceptors = append(interceptors, r.server.metrics.intercept)
	}
	if r.checker != nil {
		interceptors = append(interceptors, r.intercept)
	}

	return []grpc.ServerOption{
		grpc.ForceServerCodec(verifyrpc.Codec{}),
		grpc.UnaryInterceptor(middleware.ChainUnaryServer(
			interceptors...,
		)),
	}
}

func logRequest(ctx context.Context, req interface{},
	info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{},
	error) {

	rpcsLog.Debugf("[%v] requested", info.FullMethod)

	return handler(ctx, req)
}

// intercept allows the RPC server to intercept requests to ensure that
// they're authorized by a macaroon signed by the macaroon root key.
func (r *rpcServer) intercept(ctx context.Context, req interface{},
	info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (
	interface{}, error) {

	err := r.checkMac(ctx, info.FullMethod)
	if err != nil {
		return nil, err
	}

	return handler(ctx, req)
}

func (r *rpcServer) checkMac(ctx context.Context, method string) error {
	perms, ok := r.perms[method]
	if !ok {
		rpcsLog.Warnf("request for unknown method %v", method)
		return status.Error(codes.PermissionDenied, "unknown method")
	}

	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		rpcsLog.Warnf("request for %v without metadata", method)
		return status.Error(codes.Unauthenticated, "no metadata")
	}

	macaroonHex, ok := md["macaroon"]
	if !ok {
		rpcsLog.Warnf("request for %v without macaroons", method)
		return status.Error(codes.Unauthenticated, "no macaroons")
	}

	var macSlice macaroon.Slice

	for _, macHex := range macaroonHex {
		macBytes, err := hex.DecodeString(macHex)
		if err != nil {
			rpcsLog.Warnf("failed to decode macaroon hex "+
				"for %v: %v", method, err)
			continue
		}

		mac := &macaroon.Macaroon{}
		err = mac.UnmarshalBinary(macBytes)
		if err != nil {
			rpcsLog.Warnf("failed to unmarshal macaroon bytes "+
				"for %v: %v", method, err)
			continue
		}

		macSlice = append(macSlice, mac)
	}

	if len(macSlice) == 0 {
		rpcsLog.Warnf("macaroon authentication failure for %v",
			method)
		return status.Error(codes.Unauthenticated,
			"macaroon authentication failure")
	}

	// The checker verifies the macaroon signatures against our root key
	// and the operations against the caveats.
	authChecker := r.checker.Auth(macSlice)
	authInfo, err := authChecker.Allow(ctx, perms...)
	if err != nil {
		rpcsLog.Warnf("macaroon authorization failure for %v: %v",
			method, err)
		return status.Error(codes.PermissionDenied,
			"macaroon authorization failure")
	}

	rpcsLog.Debugf("successfully authorized request to %v", method)
	rpcsLog.Tracef("auth info for %v: %+v", method, authInfo)

	return nil
}

// RegisterWithGrpcServer registers the rpcServer with the root gRPC server.
func (r *rpcServer) RegisterWithGrpcServer(grpcServer *grpc.Server) error {
	for k, v := range RPCServerPermissions() {
		r.perms[k] = v
	}
	verifyrpc.RegisterVerifierServer(grpcServer, r)

	return nil
}

// rpcError turns an error into a gRPC status error. The error kind travels
// as the reason of an ErrorInfo detail so clients never have to match error
// strings.
func rpcError(err error) error {
	if errors.Is(err, ErrServerShuttingDown) {
		return status.Error(codes.Unavailable, err.Error())
	}

	kind := ErrorKind(err)

	code := codes.InvalidArgument
	switch kind {
	case KindCompatibility:
		code = codes.FailedPrecondition

	case KindInternal:
		rpcsLog.Errorf("Internal error: %v",
			errors.Wrap(err, 1).ErrorStack())
		code = codes.Internal
	}

	st := status.New(code, err.Error())
	detailed, detailErr := st.WithDetails(&errdetails.ErrorInfo{
		Reason: string(kind),
		Domain: errorDomain,
	})
	if detailErr != nil {
		return st.Err()
	}

	return detailed.Err()
}

// ErrorKindFromStatus returns the error kind carried by a gRPC error
// returned from the Verifier service, or KindInternal if there is none.
func ErrorKindFromStatus(err error) Kind {
	if err == nil {
		return KindNone
	}

	for _, detail := range status.Convert(err).Details() {
		info, ok := detail.(*errdetails.ErrorInfo)
		if ok && info.Domain == errorDomain {
			return Kind(info.Reason)
		}
	}

	return KindInternal
}

func (r *rpcServer) checkRunning() error {
	if r.server.Stopped() {
		return rpcError(ErrServerShuttingDown)
	}

	return nil
}

// ExtractEntries finds all xpubs in a wallet descriptor or config export.
func (r *rpcServer) ExtractEntries(_ context.Context,
	req *verifyrpc.ExtractEntriesRequest) (
	*verifyrpc.ExtractEntriesResponse, error) {

	if err := r.checkRunning(); err != nil {
		return nil, err
	}

	return &verifyrpc.ExtractEntriesResponse{
		Entries: r.server.checker.ExtractEntries(req.Text),
	}, nil
}

// DeriveAddress derives the address of a child key of an xpub.
func (r *rpcServer) DeriveAddress(_ context.Context,
	req *verifyrpc.DeriveAddressRequest) (*verifyrpc.DeriveAddressResponse,
	error) {

	if err := r.checkRunning(); err != nil {
		return nil, err
	}

	addrType, err := address.ParseType(req.AddressType)
	if err != nil {
		return nil, rpcError(err)
	}

	key, err := r.server.checker.DeriveAddress(
		req.XPub, req.RelativePath, addrType,
	)
	if err != nil {
		return nil, rpcError(err)
	}

	return &verifyrpc.DeriveAddressResponse{
		Address:   key.Address,
		PublicKey: key.PublicKey,
		Path:      key.Path,
	}, nil
}

// VerifySignature checks a signed message against an address.
func (r *rpcServer) VerifySignature(_ context.Context,
	req *verifyrpc.VerifySignatureRequest) (
	*verifyrpc.VerifySignatureResponse, error) {

	if err := r.checkRunning(); err != nil {
		return nil, err
	}

	format, err := msgverify.ParseFormat(req.Format)
	if err != nil {
		return nil, rpcError(err)
	}

	valid, err := r.server.checker.VerifySignature(
		req.Message, req.Signature, req.Address, format,
	)
	if err != nil {
		return nil, rpcError(err)
	}

	if r.server.metrics != nil {
		r.server.metrics.Verdicts.WithLabelValues(
			format.String(), strconv.FormatBool(valid),
		).Inc()
	}

	return &verifyrpc.VerifySignatureResponse{
		Valid: valid,
	}, nil
}

// CheckCompatibility reports whether a signature format can be used with an
// address type.
func (r *rpcServer) CheckCompatibility(_ context.Context,
	req *verifyrpc.CheckCompatibilityRequest) (
	*verifyrpc.CheckCompatibilityResponse, error) {

	if err := r.checkRunning(); err != nil {
		return nil, err
	}

	format, err := msgverify.ParseFormat(req.Format)
	if err != nil {
		return nil, rpcError(err)
	}
	addrType, err := address.ParseType(req.AddressType)
	if err != nil {
		return nil, rpcError(err)
	}

	compat := r.server.checker.CheckCompatibility(format, addrType)

	return &verifyrpc.CheckCompatibilityResponse{
		Compatible: compat.Compatible,
		Note:       compat.Note,
	}, nil
}

// Challenge returns the text a collaborator is asked to sign.
func (r *rpcServer) Challenge(_ context.Context,
	req *verifyrpc.ChallengeRequest) (*verifyrpc.ChallengeResponse, error) {

	if err := r.checkRunning(); err != nil {
		return nil, err
	}

	challenge, err := r.server.checker.Challenge(
		req.Entry, req.RelativePath, req.Message,
	)
	if err != nil {
		return nil, rpcError(err)
	}

	return &verifyrpc.ChallengeResponse{
		Challenge: challenge,
	}, nil
}
