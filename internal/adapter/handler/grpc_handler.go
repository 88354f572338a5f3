package handler

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/rl1809/stock-replenishment/internal/core/domain"
	"github.com/rl1809/stock-replenishment/internal/core/service"
)

const AnalyticsServiceName = "replenish.v1.AnalyticsService"

type ProductKey struct {
	StoreID   string `json:"store_id"`
	ProductID string `json:"product_id"`
}

type TransactionRequest struct {
	StoreID   string `json:"store_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type TransactionResponse struct {
	StoreID       string `json:"store_id"`
	ProductID     string `json:"product_id"`
	Quantity      int    `json:"quantity"`
	NewStockLevel int    `json:"new_stock_level"`
}

type LowStockRequest struct {
	DaysLeft *int   `json:"days_left,omitempty"`
	StoreID  string `json:"store_id,omitempty"`
}

type LowStockResponse struct {
	Alerts []domain.LowStockAlert `json:"alerts"`
}

type OverstockRequest struct {
	ThresholdMultiplier *float64 `json:"threshold_multiplier,omitempty"`
	DaysForDemand       *int     `json:"days_for_demand,omitempty"`
	StoreID             string   `json:"store_id,omitempty"`
}

type OverstockResponse struct {
	Alerts []domain.OverstockAlert `json:"alerts"`
}

type ForecastRequest struct {
	StoreID                 string   `json:"store_id"`
	ProductID               string   `json:"product_id"`
	NumDays                 *int     `json:"num_days,omitempty"`
	FutureDiscount          *float64 `json:"future_discount,omitempty"`
	FutureHoliday           *string  `json:"future_holiday,omitempty"`
	FutureWeather           *string  `json:"future_weather,omitempty"`
	FuturePrice             *float64 `json:"future_price,omitempty"`
	FutureCompetitorPricing *float64 `json:"future_competitor_pricing,omitempty"`
}

type ForecastResponse struct {
	Points []domain.ForecastPoint `json:"points"`
}

// AnalyticsServer is the gRPC surface of the replenishment engines.
type AnalyticsServer interface {
	GetInventory(ctx context.Context, req *ProductKey) (*domain.InventoryRecord, error)
	RecordSale(ctx context.Context, req *TransactionRequest) (*TransactionResponse, error)
	RecordReceipt(ctx context.Context, req *TransactionRequest) (*TransactionResponse, error)
	LowStockAlerts(ctx context.Context, req *LowStockRequest) (*LowStockResponse, error)
	OverstockAlerts(ctx context.Context, req *OverstockRequest) (*OverstockResponse, error)
	Forecast(ctx context.Context, req *ForecastRequest) (*ForecastResponse, error)
	ReorderRecommendation(ctx context.Context, req *ProductKey) (*domain.ReorderRecommendation, error)
}

var analyticsServiceDesc = grpc.ServiceDesc{
	ServiceName: AnalyticsServiceName,
	HandlerType: (*AnalyticsServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("GetInventory", AnalyticsServer.GetInventory),
		unary("RecordSale", AnalyticsServer.RecordSale),
		unary("RecordReceipt", AnalyticsServer.RecordReceipt),
		unary("LowStockAlerts", AnalyticsServer.LowStockAlerts),
		unary("OverstockAlerts", AnalyticsServer.OverstockAlerts),
		unary("Forecast", AnalyticsServer.Forecast),
		unary("ReorderRecommendation", AnalyticsServer.ReorderRecommendation),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "replenish/v1/analytics",
}

func unary[Req, Resp any](name string, call func(AnalyticsServer, context.Context, *Req) (Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(AnalyticsServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + AnalyticsServiceName + "/" + name,
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(AnalyticsServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func RegisterAnalyticsService(s grpc.ServiceRegistrar, srv AnalyticsServer) {
	s.RegisterService(&analyticsServiceDesc, srv)
}

type GRPCHandler struct {
	svc    Services
	logger *zap.Logger
}

func NewGRPCHandler(svc Services, logger *zap.Logger) *GRPCHandler {
	return &GRPCHandler{svc: svc, logger: logger.Named("grpc")}
}

func (h *GRPCHandler) GetInventory(ctx context.Context, req *ProductKey) (*domain.InventoryRecord, error) {
	rec, err := h.svc.Inventory.GetInventory(ctx, req.StoreID, req.ProductID)
	if err != nil {
		return nil, h.rpcError(err)
	}
	return rec, nil
}

func (h *GRPCHandler) RecordSale(ctx context.Context, req *TransactionRequest) (*TransactionResponse, error) {
	rec, err := h.svc.Inventory.RecordSale(ctx, req.StoreID, req.ProductID, req.Quantity)
	if err != nil {
		return nil, h.rpcError(err)
	}
	return &TransactionResponse{StoreID: rec.StoreID, ProductID: rec.ProductID, Quantity: req.Quantity, NewStockLevel: rec.CurrentStock}, nil
}

func (h *GRPCHandler) RecordReceipt(ctx context.Context, req *TransactionRequest) (*TransactionResponse, error) {
	rec, err := h.svc.Inventory.RecordReceipt(ctx, req.StoreID, req.ProductID, req.Quantity)
	if err != nil {
		return nil, h.rpcError(err)
	}
	return &TransactionResponse{StoreID: rec.StoreID, ProductID: rec.ProductID, Quantity: req.Quantity, NewStockLevel: rec.CurrentStock}, nil
}

func (h *GRPCHandler) LowStockAlerts(ctx context.Context, req *LowStockRequest) (*LowStockResponse, error) {
	alerts, err := h.svc.Alerts.LowStock(ctx, valueOr(req.DaysLeft, service.DefaultDaysLeftThreshold), req.StoreID)
	if err != nil {
		return nil, h.rpcError(err)
	}
	return &LowStockResponse{Alerts: nonNil(alerts)}, nil
}

func (h *GRPCHandler) OverstockAlerts(ctx context.Context, req *OverstockRequest) (*OverstockResponse, error) {
	alerts, err := h.svc.Alerts.Overstock(ctx,
		valueOr(req.ThresholdMultiplier, service.DefaultThresholdMultiplier),
		valueOr(req.DaysForDemand, service.DefaultDaysForDemand),
		req.StoreID)
	if err != nil {
		return nil, h.rpcError(err)
	}
	return &OverstockResponse{Alerts: nonNil(alerts)}, nil
}

func (h *GRPCHandler) Forecast(ctx context.Context, req *ForecastRequest) (*ForecastResponse, error) {
	whatIf := domain.WhatIf{
		Discount:        req.FutureDiscount,
		Holiday:         req.FutureHoliday,
		Weather:         req.FutureWeather,
		Price:           req.FuturePrice,
		CompetitorPrice: req.FutureCompetitorPricing,
	}
	points, err := h.svc.Forecast.Forecast(ctx, req.StoreID, req.ProductID, valueOr(req.NumDays, service.DefaultForecastDays), whatIf)
	if err != nil {
		return nil, h.rpcError(err)
	}
	return &ForecastResponse{Points: points}, nil
}

func (h *GRPCHandler) ReorderRecommendation(ctx context.Context, req *ProductKey) (*domain.ReorderRecommendation, error) {
	rec, err := h.svc.Reorder.Recommend(ctx, req.StoreID, req.ProductID)
	if err != nil {
		return nil, h.rpcError(err)
	}
	return rec, nil
}

func (h *GRPCHandler) rpcError(err error) error {
	kind, m := classify(err)
	if m.status >= 500 {
		h.logger.Error("rpc failed", zap.String("error_code", kind), zap.Error(err))
	}
	return status.Error(m.code, publicMessage(kind, err))
}

// UnaryLogger logs every unary call with its method, status code and duration.
func UnaryLogger(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := next(ctx, req)
		logger.Info("rpc completed",
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Duration("duration", time.Since(start)))
		return resp, err
	}
}

func valueOr[T any](v *T, fallback T) T {
	if v == nil {
		return fallback
	}
	return *v
}
