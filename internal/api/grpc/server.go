package grpc

import (
	"context"

	"boxrental-backend/internal/api/grpc/interceptor"
	"boxrental-backend/internal/config"
	"boxrental-backend/internal/security"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// RentalServer is implemented by RentalHandler.
type RentalServer interface {
	ListStatuses(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	CheckAvailability(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Quote(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	TrackRental(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	CreateRental(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetRental(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListRentals(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	AmendRental(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	UpdateStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	OverrideStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	AddNote(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListEvents(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	LookupByMasterCode(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// InventoryServer is implemented by InventoryHandler.
type InventoryServer interface {
	RegisterBox(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	SetBoxMaintenance(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Reconcile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type structHandler[S any] func(srv S, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

func method[S any](prefix, name string, fn structHandler[S]) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, intercept grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if intercept == nil {
				return fn(srv.(S), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: prefix + name}
			return intercept(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return fn(srv.(S), ctx, req.(*structpb.Struct))
			})
		},
	}
}

func rentalMethod(name string, fn structHandler[RentalServer]) grpc.MethodDesc {
	return method(config.RentalServicePrefix, name, fn)
}

func inventoryMethod(name string, fn structHandler[InventoryServer]) grpc.MethodDesc {
	return method(config.InventoryServicePrefix, name, fn)
}

var RentalServiceDesc = grpc.ServiceDesc{
	ServiceName: "boxrental.v1.RentalService",
	HandlerType: (*RentalServer)(nil),
	Methods: []grpc.MethodDesc{
		rentalMethod("ListStatuses", RentalServer.ListStatuses),
		rentalMethod("CheckAvailability", RentalServer.CheckAvailability),
		rentalMethod("Quote", RentalServer.Quote),
		rentalMethod("TrackRental", RentalServer.TrackRental),
		rentalMethod("CreateRental", RentalServer.CreateRental),
		rentalMethod("GetRental", RentalServer.GetRental),
		rentalMethod("ListRentals", RentalServer.ListRentals),
		rentalMethod("AmendRental", RentalServer.AmendRental),
		rentalMethod("UpdateRentalStatus", RentalServer.UpdateStatus),
		rentalMethod("OverrideStatus", RentalServer.OverrideStatus),
		rentalMethod("AddNote", RentalServer.AddNote),
		rentalMethod("ListEvents", RentalServer.ListEvents),
		rentalMethod("LookupByMasterCode", RentalServer.LookupByMasterCode),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "boxrental/v1/rental.proto",
}

var InventoryServiceDesc = grpc.ServiceDesc{
	ServiceName: "boxrental.v1.InventoryService",
	HandlerType: (*InventoryServer)(nil),
	Methods: []grpc.MethodDesc{
		inventoryMethod("RegisterBox", InventoryServer.RegisterBox),
		inventoryMethod("SetBoxMaintenance", InventoryServer.SetBoxMaintenance),
		inventoryMethod("Reconcile", InventoryServer.Reconcile),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "boxrental/v1/rental.proto",
}

// NewServer builds a gRPC server with authentication and error mapping
// installed and both services registered.
func NewServer(rentals RentalServer, inventory InventoryServer, tm security.TokenManager, opts ...grpc.ServerOption) *grpc.Server {
	auth := interceptor.NewAuthInterceptor(tm)
	opts = append(opts, grpc.ChainUnaryInterceptor(interceptor.ErrorUnary(), auth.Unary()))
	s := grpc.NewServer(opts...)
	s.RegisterService(&RentalServiceDesc, rentals)
	s.RegisterService(&InventoryServiceDesc, inventory)
	return s
}
