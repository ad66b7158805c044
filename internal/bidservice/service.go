package bidservice

import (
	"context"
	"time"

	"github.com/zachw1/AdX-Stencil-2025/internal/metrics"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"k8s.io/klog/v2"
)

// #region service-desc
const ServiceName = "adx.BidShading"

const (
	DailyBidsMethod        = "/" + ServiceName + "/DailyBids"
	UpdateFromRewardMethod = "/" + ServiceName + "/UpdateFromReward"
	NewGameMethod          = "/" + ServiceName + "/NewGame"
	SnapshotMethod         = "/" + ServiceName + "/Snapshot"
)

// BidShadingServer is the server side of adx.BidShading.
type BidShadingServer interface {
	DailyBids(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateFromReward(context.Context, *structpb.Struct) (*structpb.Struct, error)
	NewGame(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Snapshot(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// ServiceDesc describes adx.BidShading for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BidShadingServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "DailyBids", Handler: dailyBidsHandler},
		{MethodName: "UpdateFromReward", Handler: updateFromRewardHandler},
		{MethodName: "NewGame", Handler: newGameHandler},
		{MethodName: "Snapshot", Handler: snapshotHandler},
	},
	Metadata: "adx/bid_shading.proto",
}

// Register adds srv to gs.
func Register(gs *grpc.Server, srv BidShadingServer) {
	gs.RegisterService(&ServiceDesc, srv)
}

// #endregion service-desc

// #region handlers
func dailyBidsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	call := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(BidShadingServer).DailyBids(ctx, req.(*structpb.Struct))
	}
	return intercept(ctx, srv, in, DailyBidsMethod, interceptor, call)
}

func updateFromRewardHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	call := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(BidShadingServer).UpdateFromReward(ctx, req.(*structpb.Struct))
	}
	return intercept(ctx, srv, in, UpdateFromRewardMethod, interceptor, call)
}

func newGameHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	call := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(BidShadingServer).NewGame(ctx, req.(*emptypb.Empty))
	}
	return intercept(ctx, srv, in, NewGameMethod, interceptor, call)
}

func snapshotHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	call := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(BidShadingServer).Snapshot(ctx, req.(*emptypb.Empty))
	}
	return intercept(ctx, srv, in, SnapshotMethod, interceptor, call)
}

func intercept(ctx context.Context, srv, in interface{}, method string, interceptor grpc.UnaryServerInterceptor, call grpc.UnaryHandler) (interface{}, error) {
	if interceptor == nil {
		return call(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
	return interceptor(ctx, in, info, call)
}

// #endregion handlers

// #region interceptor
// UnaryInterceptor logs and counts every call.
func UnaryInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	elapsed := time.Since(start)

	code := status.Code(err)
	metrics.RPCsTotal.WithLabelValues(info.FullMethod, code.String()).Inc()
	metrics.RPCDuration.WithLabelValues(info.FullMethod).Observe(elapsed.Seconds())
	if err != nil {
		klog.ErrorS(err, "RPC failed", "method", info.FullMethod, "code", code, "elapsed", elapsed)
	} else {
		klog.V(2).InfoS("RPC served", "method", info.FullMethod, "elapsed", elapsed)
	}
	return resp, err
}

// #endregion interceptor
