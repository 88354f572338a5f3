package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/rl1809/stock-replenishment/internal/core/domain"
	"github.com/rl1809/stock-replenishment/internal/core/service"
)

const (
	msgMissingFields     = "Missing 'store_id', 'product_id', or 'quantity' in request body."
	msgInvalidQuantity   = "Quantity must be a positive integer."
	msgNoFilePart        = "No file part in the request"
	msgNoSelectedFile    = "No selected file"
	msgInvalidFileFormat = "Invalid file format. Please upload a CSV file."

	// IdempotencyHeader carries an optional client request id for batch uploads.
	IdempotencyHeader = "X-Request-ID"
)

// Services bundles the engines the transports expose.
type Services struct {
	Inventory *service.InventoryService
	Alerts    *service.AlertService
	Forecast  *service.ForecastService
	Reorder   *service.ReorderService
	Batch     *service.BatchService
}

type HTTPHandler struct {
	svc       Services
	validate  *validator.Validate
	maxUpload int64
	logger    *zap.Logger
}

type TransactionHTTPRequest struct {
	StoreID   string `json:"store_id" validate:"required"`
	ProductID string `json:"product_id" validate:"required"`
	Quantity  *int   `json:"quantity" validate:"required,gt=0"`
}

type SaleHTTPResponse struct {
	Message       string `json:"message"`
	ProductID     string `json:"product_id"`
	StoreID       string `json:"store_id"`
	QuantitySold  int    `json:"quantity_sold"`
	NewStockLevel int    `json:"new_stock_level"`
}

type ReceiptHTTPResponse struct {
	Message          string `json:"message"`
	ProductID        string `json:"product_id"`
	StoreID          string `json:"store_id"`
	QuantityReceived int    `json:"quantity_received"`
	NewStockLevel    int    `json:"new_stock_level"`
}

type BatchHTTPResponse struct {
	Message string              `json:"message"`
	Results []domain.RowOutcome `json:"results"`
}

type HealthHTTPResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

func NewHTTPHandler(svc Services, maxUpload int64, logger *zap.Logger) *HTTPHandler {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &HTTPHandler{
		svc:       svc,
		validate:  v,
		maxUpload: maxUpload,
		logger:    logger.Named("http"),
	}
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, HealthHTTPResponse{Status: "ok", ModelLoaded: h.svc.Forecast.ModelLoaded()})
}

func (h *HTTPHandler) GetInventory(w http.ResponseWriter, r *http.Request) {
	storeID, productID := chi.URLParam(r, "store_id"), chi.URLParam(r, "product_id")

	rec, err := h.svc.Inventory.GetInventory(r.Context(), storeID, productID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.respondError(w, r, http.StatusNotFound, domain.KindNotFound,
				fmt.Sprintf("Inventory not found for Product ID: %s at Store ID: %s", productID, storeID))
			return
		}
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, rec)
}

func (h *HTTPHandler) RecordSale(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeTransaction(w, r)
	if !ok {
		return
	}

	rec, err := h.svc.Inventory.RecordSale(r.Context(), req.StoreID, req.ProductID, *req.Quantity)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, SaleHTTPResponse{
		Message:       "Sale recorded successfully",
		ProductID:     rec.ProductID,
		StoreID:       rec.StoreID,
		QuantitySold:  *req.Quantity,
		NewStockLevel: rec.CurrentStock,
	})
}

func (h *HTTPHandler) RecordReceipt(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeTransaction(w, r)
	if !ok {
		return
	}

	rec, err := h.svc.Inventory.RecordReceipt(r.Context(), req.StoreID, req.ProductID, *req.Quantity)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, ReceiptHTTPResponse{
		Message:          "Receipt recorded successfully",
		ProductID:        rec.ProductID,
		StoreID:          rec.StoreID,
		QuantityReceived: *req.Quantity,
		NewStockLevel:    rec.CurrentStock,
	})
}

func (h *HTTPHandler) decodeTransaction(w http.ResponseWriter, r *http.Request) (*TransactionHTTPRequest, bool) {
	var req TransactionHTTPRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field == "quantity" {
			h.badRequest(w, r, msgInvalidQuantity)
			return nil, false
		}
		h.badRequest(w, r, "invalid request body")
		return nil, false
	}

	if err := h.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				if fe.Tag() == "required" {
					h.badRequest(w, r, msgMissingFields)
					return nil, false
				}
			}
		}
		h.badRequest(w, r, msgInvalidQuantity)
		return nil, false
	}
	return &req, true
}

func (h *HTTPHandler) SaleBatch(w http.ResponseWriter, r *http.Request) {
	h.batch(w, r, h.svc.Batch.ProcessSales, "Batch sale processing complete")
}

func (h *HTTPHandler) ReceiptBatch(w http.ResponseWriter, r *http.Request) {
	h.batch(w, r, h.svc.Batch.ProcessReceipts, "Batch receipt processing complete")
}

type batchFunc func(ctx context.Context, requestID string, rows []domain.BatchRow) ([]domain.RowOutcome, error)

func (h *HTTPHandler) batch(w http.ResponseWriter, r *http.Request, process batchFunc, done string) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			h.respondError(w, r, http.StatusRequestEntityTooLarge, domain.KindInvalidInput,
				fmt.Sprintf("upload exceeds %d bytes", h.maxUpload))
		case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
			h.badRequest(w, r, msgNoFilePart)
		default:
			h.badRequest(w, r, err.Error())
		}
		return
	}
	defer file.Close()

	if header.Filename == "" {
		h.badRequest(w, r, msgNoSelectedFile)
		return
	}
	if !strings.HasSuffix(strings.ToLower(header.Filename), ".csv") {
		h.badRequest(w, r, msgInvalidFileFormat)
		return
	}

	rows, err := ParseBatchCSV(file)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	results, err := process(r.Context(), r.Header.Get(IdempotencyHeader), rows)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, BatchHTTPResponse{Message: done, Results: results})
}

func (h *HTTPHandler) LowStockAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	daysLeft := service.DefaultDaysLeftThreshold
	if raw := q.Get("days_left"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			h.badRequest(w, r, "Invalid 'days_left' value. Must be an integer.")
			return
		}
		if v < 0 {
			h.badRequest(w, r, "days_left must be a non-negative integer.")
			return
		}
		daysLeft = v
	}

	alerts, err := h.svc.Alerts.LowStock(r.Context(), daysLeft, q.Get("store_id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, nonNil(alerts))
}

func (h *HTTPHandler) OverstockAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	multiplier := service.DefaultThresholdMultiplier
	if raw := q.Get("threshold_multiplier"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			h.badRequest(w, r, "Invalid 'threshold_multiplier' value. Must be a number.")
			return
		}
		multiplier = v
	}
	days := service.DefaultDaysForDemand
	if raw := q.Get("days_for_demand"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			h.badRequest(w, r, "Invalid 'days_for_demand' value. Must be an integer.")
			return
		}
		days = v
	}

	alerts, err := h.svc.Alerts.Overstock(r.Context(), multiplier, days, q.Get("store_id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, nonNil(alerts))
}

func (h *HTTPHandler) Forecast(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	numDays := service.DefaultForecastDays
	if raw := q.Get("num_days"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			h.badRequest(w, r, "Invalid 'num_days' value. Must be an integer.")
			return
		}
		numDays = v
	}

	whatIf, err := parseWhatIf(q.Get)
	if err != nil {
		h.badRequest(w, r, err.Error())
		return
	}

	points, err := h.svc.Forecast.Forecast(r.Context(), q.Get("store_id"), q.Get("product_id"), numDays, whatIf)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, points)
}

func (h *HTTPHandler) ReorderRecommendation(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rec, err := h.svc.Reorder.Recommend(r.Context(), q.Get("store_id"), q.Get("product_id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, rec)
}

// parseWhatIf reads the optional future_* scenario parameters.
func parseWhatIf(get func(string) string) (domain.WhatIf, error) {
	var w domain.WhatIf
	floats := []struct {
		name string
		dst  **float64
	}{
		{"future_discount", &w.Discount},
		{"future_price", &w.Price},
		{"future_competitor_pricing", &w.CompetitorPrice},
	}
	for _, f := range floats {
		raw := get(f.name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return w, fmt.Errorf("Invalid '%s' value. Must be a number.", f.name)
		}
		*f.dst = &v
	}
	if v := get("future_holiday"); v != "" {
		w.Holiday = &v
	}
	if v := get("future_weather"); v != "" {
		w.Weather = &v
	}
	return w, nil
}

// nonNil keeps empty result sets rendering as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
