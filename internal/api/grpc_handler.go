package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"product-catalog-engine/internal/catalog"
	"product-catalog-engine/internal/domain"
	"product-catalog-engine/internal/engine"
)

// CatalogEngineServiceName is the fully qualified gRPC service name.
const CatalogEngineServiceName = "catalog.v1.CatalogEngine"

// CatalogEngineServer is the server API for the CatalogEngine service.
// Requests and responses are JSON-shaped google.protobuf.Struct messages.
type CatalogEngineServer interface {
	GetView(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateCriteria(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ResetCriteria(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetPagination(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AddToCart(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetCart(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StartLoad(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetLoadStates(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func unaryHandler(method string, call func(CatalogEngineServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CatalogEngineServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + CatalogEngineServiceName + "/" + method,
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(CatalogEngineServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// CatalogEngine_ServiceDesc is the grpc.ServiceDesc for the CatalogEngine service.
var CatalogEngine_ServiceDesc = grpc.ServiceDesc{
	ServiceName: CatalogEngineServiceName,
	HandlerType: (*CatalogEngineServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetView", Handler: unaryHandler("GetView", CatalogEngineServer.GetView)},
		{MethodName: "UpdateCriteria", Handler: unaryHandler("UpdateCriteria", CatalogEngineServer.UpdateCriteria)},
		{MethodName: "ResetCriteria", Handler: unaryHandler("ResetCriteria", CatalogEngineServer.ResetCriteria)},
		{MethodName: "SetPagination", Handler: unaryHandler("SetPagination", CatalogEngineServer.SetPagination)},
		{MethodName: "AddToCart", Handler: unaryHandler("AddToCart", CatalogEngineServer.AddToCart)},
		{MethodName: "GetCart", Handler: unaryHandler("GetCart", CatalogEngineServer.GetCart)},
		{MethodName: "StartLoad", Handler: unaryHandler("StartLoad", CatalogEngineServer.StartLoad)},
		{MethodName: "GetLoadStates", Handler: unaryHandler("GetLoadStates", CatalogEngineServer.GetLoadStates)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "catalog/v1/catalog_engine.proto",
}

// RegisterCatalogEngineServer registers srv with s.
func RegisterCatalogEngineServer(s grpc.ServiceRegistrar, srv CatalogEngineServer) {
	s.RegisterService(&CatalogEngine_ServiceDesc, srv)
}

// CatalogEngineClient is a thin client for the CatalogEngine service.
type CatalogEngineClient struct {
	cc grpc.ClientConnInterface
}

// NewCatalogEngineClient wraps a client connection.
func NewCatalogEngineClient(cc grpc.ClientConnInterface) *CatalogEngineClient {
	return &CatalogEngineClient{cc: cc}
}

// Call invokes method with in and returns the response struct.
func (c *CatalogEngineClient) Call(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if in == nil {
		in = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+CatalogEngineServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// GRPCHandler implements CatalogEngineServer on top of the engine.
type GRPCHandler struct {
	engine *engine.Engine
	logger *zap.Logger
}

// NewGRPCHandler creates a new GRPCHandler.
func NewGRPCHandler(e *engine.Engine, logger *zap.Logger) *GRPCHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GRPCHandler{engine: e, logger: logger.Named("grpc")}
}

// --- Helper: Error Mapping ---
func mapEngineErrorToGrpcStatus(err error, op string) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, domain.ErrInvalidCategory),
		errors.Is(err, domain.ErrInvalidSortKey),
		errors.Is(err, domain.ErrInvalidPriceRange),
		errors.Is(err, domain.ErrInvalidPagination),
		errors.Is(err, domain.ErrInvalidQuantity):
		return status.Errorf(codes.InvalidArgument, "%s: %v", op, err)
	case errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrInvalidCollection),
		errors.Is(err, catalog.ErrUnknownPreset):
		return status.Errorf(codes.NotFound, "%s: %v", op, err)
	case errors.Is(err, domain.ErrOutOfStock):
		return status.Errorf(codes.FailedPrecondition, "%s: %v", op, err)
	default:
		zap.L().Error("gRPC operation failed", zap.String("op", op), zap.Error(err))
		return status.Errorf(codes.Internal, "%s failed", op)
	}
}

// toStruct converts a JSON-serializable value into a Struct.
func toStruct(v interface{}) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	return out, nil
}

// fromStruct decodes a Struct into v, rejecting unknown fields.
func fromStruct(in *structpb.Struct, v interface{}) error {
	raw, err := protojson.Marshal(in)
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	return nil
}

type viewRequest struct {
	Width int `json:"width"`
}

func (s *GRPCHandler) page(in *structpb.Struct) (*structpb.Struct, error) {
	var req viewRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, err
	}
	if req.Width < 0 {
		return nil, status.Errorf(codes.InvalidArgument, "width must be non-negative")
	}
	return toStruct(newCatalogResponse(s.engine.Page(req.Width)))
}

func (s *GRPCHandler) GetView(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.page(in)
}

func (s *GRPCHandler) UpdateCriteria(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var patch domain.CriteriaPatch
	if err := fromStruct(in, &patch); err != nil {
		return nil, err
	}
	if _, err := s.engine.Catalog.UpdateCriteria(patch); err != nil {
		return nil, mapEngineErrorToGrpcStatus(err, "UpdateCriteria")
	}
	return s.page(&structpb.Struct{})
}

func (s *GRPCHandler) ResetCriteria(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	s.engine.Catalog.ResetCriteria()
	return s.page(&structpb.Struct{})
}

func (s *GRPCHandler) SetPagination(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var patch domain.PaginationPatch
	if err := fromStruct(in, &patch); err != nil {
		return nil, err
	}
	if _, err := s.engine.Catalog.SetPagination(patch); err != nil {
		return nil, mapEngineErrorToGrpcStatus(err, "SetPagination")
	}
	return s.page(&structpb.Struct{})
}

func (s *GRPCHandler) AddToCart(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req CartItemInput
	if err := fromStruct(in, &req); err != nil {
		return nil, err
	}
	if req.ProductID <= 0 {
		return nil, status.Errorf(codes.InvalidArgument, "Product ID must be a positive integer")
	}
	line, err := s.engine.AddToCart(req.ProductID, req.Quantity)
	if err != nil {
		return nil, mapEngineErrorToGrpcStatus(err, "AddToCart")
	}
	s.logger.Debug("cart updated over gRPC", zap.Int64("product_id", line.ProductID), zap.Int("quantity", line.Quantity))
	return toStruct(line)
}

func (s *GRPCHandler) GetCart(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return toStruct(CartResponse{
		Lines:         s.engine.Cart.Lines(),
		TotalQuantity: s.engine.Cart.TotalQuantity(),
	})
}

type loadRequest struct {
	Collection string `json:"collection"`
}

func (s *GRPCHandler) StartLoad(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req loadRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, err
	}
	coll, err := domain.ParseCollection(req.Collection)
	if err != nil {
		return nil, mapEngineErrorToGrpcStatus(err, "StartLoad")
	}
	task, err := s.engine.Load(context.WithoutCancel(ctx), coll)
	if err != nil {
		return nil, mapEngineErrorToGrpcStatus(err, "StartLoad")
	}
	return toStruct(task.Ticket)
}

func (s *GRPCHandler) GetLoadStates(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return toStruct(s.engine.Loads.States())
}

// WireHealth keeps hs in step with the catalog load: NOT_SERVING until a
// catalog has been delivered, SERVING afterwards. A failed reload keeps
// serving the data already loaded.
func WireHealth(hs *health.Server, e *engine.Engine) {
	set := func(st healthpb.HealthCheckResponse_ServingStatus) {
		hs.SetServingStatus("", st)
		hs.SetServingStatus(CatalogEngineServiceName, st)
	}
	set(healthpb.HealthCheckResponse_NOT_SERVING)
	e.Loads.Subscribe(func(coll domain.Collection, state domain.LoadState) {
		if coll != domain.CollectionCatalog {
			return
		}
		switch {
		case state.Status == domain.LoadFulfilled:
			set(healthpb.HealthCheckResponse_SERVING)
		case state.Status == domain.LoadRejected && e.Catalog.ItemCount() == 0:
			set(healthpb.HealthCheckResponse_NOT_SERVING)
		}
	})
}
