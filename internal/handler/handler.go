// Package handler содержит HTTP-обработчики API сервиса импортадора.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/importadora-system/internal/middleware"
	"github.com/mmeshcher/importadora-system/internal/model"
	"github.com/mmeshcher/importadora-system/internal/repository"
	"github.com/mmeshcher/importadora-system/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, login, password, email string) (int64, error)
	AuthenticateUser(ctx context.Context, login, password string) (int64, error)
	GetProfile(ctx context.Context, userID int64) (*model.User, error)
	UpdateProfile(ctx context.Context, userID int64, email, phone, address string) error

	ListProducts(ctx context.Context, onlyAvailable bool) ([]model.Product, error)
	GetProduct(ctx context.Context, id int64) (*model.Product, error)
	ProductRetailPrice(ctx context.Context, id int64) (float64, error)
	CreateProduct(ctx context.Context, adminID int64, p model.Product) (int64, error)
	UpdateProduct(ctx context.Context, adminID int64, p model.Product) error

	CreateOrder(ctx context.Context, userID int64) (*model.Order, error)
	ListOrders(ctx context.Context, userID int64) ([]model.Order, error)
	GetOrder(ctx context.Context, userID, orderID int64) (*model.Order, []model.LineItem, error)
	AddLineItem(ctx context.Context, userID, orderID, productID int64, quantity int) (*model.Order, error)
	UpdateLineItem(ctx context.Context, userID, orderID, itemID int64, quantity int) (*model.Order, error)
	DeleteLineItem(ctx context.Context, userID, orderID, itemID int64) (*model.Order, error)
	UpdateOrderStatus(ctx context.Context, adminID, orderID int64, status model.OrderStatus) error
	AttachPaymentProof(ctx context.Context, userID, orderID int64, url string) error

	ListNotifications(ctx context.Context, userID int64) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, notificationID int64) error
	NotifyUser(ctx context.Context, adminID, userID int64, typ model.NotificationType, content string) (int64, error)

	GetSettings(ctx context.Context, adminID int64) (model.Settings, error)
	UpdateSettings(ctx context.Context, adminID int64, settings model.Settings) error
	RefreshCustomsRate(ctx context.Context) (float64, error)
}

// Handler реализует HTTP-обработчики API сервиса импортадора.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

// writeError переводит доменные ошибки в HTTP-статусы.
func (h *Handler) writeError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, service.ErrPermissionDenied), errors.Is(err, service.ErrNotOrderOwner):
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
	case errors.Is(err, repository.ErrOrderNotFound),
		errors.Is(err, repository.ErrProductNotFound),
		errors.Is(err, repository.ErrLineItemNotFound),
		errors.Is(err, repository.ErrNotificationNotFound),
		errors.Is(err, repository.ErrUserNotFound):
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	case errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrInvalidNotificationType),
		errors.Is(err, service.ErrProductPriceMissing):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, service.ErrRateUnavailable):
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
	default:
		h.logger.Error(op, zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func urlParamInt64(r *http.Request, name string) (int64, bool) {
	v, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

type credentialsRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
}

// Register обрабатывает регистрацию нового пользователя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID, err := h.service.RegisterUser(r.Context(), req.Login, req.Password, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
			return
		}
		h.logger.Error("register user error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, userID)
	w.WriteHeader(http.StatusOK)
}

// Login выполняет аутентификацию пользователя и установку cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID, err := h.service.AuthenticateUser(r.Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) || errors.Is(err, service.ErrInvalidCredentials) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		h.logger.Error("login user error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, userID)
	w.WriteHeader(http.StatusOK)
}

type profileResponse struct {
	Login   string `json:"login"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	IsAdmin bool   `json:"is_admin"`
}

// GetProfile возвращает профиль текущего пользователя.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	u, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		h.writeError(w, err, "get profile error")
		return
	}

	writeJSON(w, profileResponse{
		Login:   u.Login,
		Email:   u.Email,
		Phone:   u.Phone,
		Address: u.Address,
		IsAdmin: u.IsAdmin,
	})
}

type profileUpdateRequest struct {
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// UpdateProfile обновляет контактные данные текущего пользователя.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req profileUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.UpdateProfile(r.Context(), userID, req.Email, req.Phone, req.Address); err != nil {
		h.writeError(w, err, "update profile error")
		return
	}

	w.WriteHeader(http.StatusOK)
}

type productRequest struct {
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Brand         string   `json:"brand"`
	PriceUSD      float64  `json:"price_usd"`
	WeightKG      float64  `json:"weight_kg"`
	Available     bool     `json:"available"`
	ImageURL      string   `json:"image_url"`
	FixedPriceCLP *float64 `json:"fixed_price_clp,omitempty"`
}

type productResponse struct {
	ID            int64    `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Brand         string   `json:"brand"`
	PriceUSD      float64  `json:"price_usd"`
	WeightKG      float64  `json:"weight_kg"`
	Available     bool     `json:"available"`
	ImageURL      string   `json:"image_url"`
	FixedPriceCLP *float64 `json:"fixed_price_clp,omitempty"`
}

func toProductResponse(p model.Product) productResponse {
	return productResponse{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		Brand:         p.Brand,
		PriceUSD:      p.PriceUSD,
		WeightKG:      p.WeightKG,
		Available:     p.Available,
		ImageURL:      p.ImageURL,
		FixedPriceCLP: p.FixedPriceCLP,
	}
}

// ListProducts возвращает каталог. Без параметра all=true скрытые
// товары не показываются.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	onlyAvailable := r.URL.Query().Get("all") != "true"

	products, err := h.service.ListProducts(r.Context(), onlyAvailable)
	if err != nil {
		h.writeError(w, err, "list products error")
		return
	}

	resp := make([]productResponse, 0, len(products))
	for _, p := range products {
		resp = append(resp, toProductResponse(p))
	}
	writeJSON(w, resp)
}

// GetProduct возвращает один товар каталога.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamInt64(r, "productID")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	p, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		h.writeError(w, err, "get product error")
		return
	}

	writeJSON(w, toProductResponse(*p))
}

type priceResponse struct {
	ProductID int64   `json:"product_id"`
	PriceCLP  float64 `json:"price_clp"`
}

// GetProductPrice возвращает розничную цену товара в CLP по текущему курсу.
func (h *Handler) GetProductPrice(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamInt64(r, "productID")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	price, err := h.service.ProductRetailPrice(r.Context(), id)
	if err != nil {
		h.writeError(w, err, "product price error")
		return
	}

	writeJSON(w, priceResponse{ProductID: id, PriceCLP: price})
}

// CreateProduct создаёт товар каталога (администратор).
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	id, err := h.service.CreateProduct(r.Context(), userID, model.Product{
		Name:          req.Name,
		Description:   req.Description,
		Brand:         req.Brand,
		PriceUSD:      req.PriceUSD,
		WeightKG:      req.WeightKG,
		Available:     req.Available,
		ImageURL:      req.ImageURL,
		FixedPriceCLP: req.FixedPriceCLP,
	})
	if err != nil {
		h.writeError(w, err, "create product error")
		return
	}

	w.WriteHeader(http.StatusCreated)
	writeJSON(w, map[string]int64{"id": id})
}

// UpdateProduct обновляет товар каталога (администратор).
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	id, ok := urlParamInt64(r, "productID")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	err := h.service.UpdateProduct(r.Context(), userID, model.Product{
		ID:            id,
		Name:          req.Name,
		Description:   req.Description,
		Brand:         req.Brand,
		PriceUSD:      req.PriceUSD,
		WeightKG:      req.WeightKG,
		Available:     req.Available,
		ImageURL:      req.ImageURL,
		FixedPriceCLP: req.FixedPriceCLP,
	})
	if err != nil {
		h.writeError(w, err, "update product error")
		return
	}

	w.WriteHeader(http.StatusOK)
}

type lineItemResponse struct {
	ID          int64   `json:"id"`
	ProductID   int64   `json:"product_id"`
	Quantity    int     `json:"quantity"`
	SubtotalUSD float64 `json:"subtotal_usd"`
	SubtotalCLP float64 `json:"subtotal_clp"`
	WeightKG    float64 `json:"weight_kg"`
}

type orderResponse struct {
	ID              int64              `json:"id"`
	Status          string             `json:"status"`
	TotalUSD        float64            `json:"total_usd"`
	TotalCLP        float64            `json:"total_clp"`
	WeightKG        float64            `json:"weight_kg"`
	ExchangeRate    float64            `json:"exchange_rate"`
	PaymentProofURL string             `json:"payment_proof_url,omitempty"`
	FinalTotalCLP   float64            `json:"final_total_clp"`
	CreatedAt       string             `json:"created_at"`
	Items           []lineItemResponse `json:"items,omitempty"`
}

func toOrderResponse(o model.Order, items []model.LineItem) orderResponse {
	resp := orderResponse{
		ID:              o.ID,
		Status:          string(o.Status),
		TotalUSD:        o.TotalUSD,
		TotalCLP:        o.TotalCLP,
		WeightKG:        o.WeightKG,
		ExchangeRate:    o.ExchangeRate,
		PaymentProofURL: o.PaymentProofURL,
		FinalTotalCLP:   o.FinalTotalCLP,
		CreatedAt:       o.CreatedAt.Format(time.RFC3339),
	}
	for _, it := range items {
		resp.Items = append(resp.Items, lineItemResponse{
			ID:          it.ID,
			ProductID:   it.ProductID,
			Quantity:    it.Quantity,
			SubtotalUSD: it.SubtotalUSD,
			SubtotalCLP: it.SubtotalCLP,
			WeightKG:    it.WeightKG,
		})
	}
	return resp
}

// CreateOrder создаёт пустой заказ текущего пользователя.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	order, err := h.service.CreateOrder(r.Context(), userID)
	if err != nil {
		h.writeError(w, err, "create order error")
		return
	}

	w.WriteHeader(http.StatusCreated)
	writeJSON(w, toOrderResponse(*order, nil))
}

// GetOrders возвращает список заказов текущего пользователя.
func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	orders, err := h.service.ListOrders(r.Context(), userID)
	if err != nil {
		h.writeError(w, err, "get orders error")
		return
	}

	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, toOrderResponse(o, nil))
	}
	writeJSON(w, resp)
}

// GetOrder возвращает заказ с позициями.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	orderID, ok := urlParamInt64(r, "orderID")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	order, items, err := h.service.GetOrder(r.Context(), userID, orderID)
	if err != nil {
		h.writeError(w, err, "get order error")
		return
	}

	writeJSON(w, toOrderResponse(*order, items))
}

type lineItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// AddLineItem добавляет позицию в заказ и возвращает заказ с
// пересчитанными суммами.
func (h *Handler) AddLineItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	orderID, ok := urlParamInt64(r, "orderID")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req lineItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	order, err := h.service.AddLineItem(r.Context(), userID, orderID, req.ProductID, req.Quantity)
	if err != nil {
		h.writeError(w, err, "add line item error")
		return
	}

	w.WriteHeader(http.StatusCreated)
	writeJSON(w, toOrderResponse(*order, nil))
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

// UpdateLineItem изменяет количество в позиции заказа.
func (h *Handler) UpdateLineItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	orderID, ok := urlParamInt64(r, "orderID")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	itemID, ok := urlParamInt64(r, "itemID")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req quantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	order, err := h.service.UpdateLineItem(r.Context(), userID, orderID, itemID, req.Quantity)
	if err != nil {
		h.writeError(w, err, "update line item error")
		return
	}

	writeJSON(w, toOrderResponse(*order, nil))
}

// DeleteLineItem удаляет позицию заказа.
func (h *Handler) DeleteLineItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	orderID, ok := urlParamInt64(r, "orderID")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	itemID, ok := urlParamInt64(r, "itemID")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	order, err := h.service.DeleteLineItem(r.Context(), userID, orderID, itemID)
	if err != nil {
		h.writeError(w, err, "delete line item error")
		return
	}

	writeJSON(w, toOrderResponse(*order, nil))
}

type statusRequest struct {
	Status string `json:"status"`
}

// UpdateOrderStatus устанавливает статус заказа (администратор).
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	orderID, ok := urlParamInt64(r, "orderID")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.UpdateOrderStatus(r.Context(), userID, orderID, model.OrderStatus(req.Status)); err != nil {
		h.writeError(w, err, "update order status error")
		return
	}

	w.WriteHeader(http.StatusOK)
}

type paymentProofRequest struct {
	URL string `json:"url"`
}

// AttachPaymentProof сохраняет ссылку на подтверждение оплаты.
func (h *Handler) AttachPaymentProof(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	orderID, ok := urlParamInt64(r, "orderID")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req paymentProofRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.AttachPaymentProof(r.Context(), userID, orderID, req.URL); err != nil {
		h.writeError(w, err, "attach payment proof error")
		return
	}

	w.WriteHeader(http.StatusOK)
}

type notificationResponse struct {
	ID        int64  `json:"id"`
	Type      string `json:"type"`
	Content   string `json:"content"`
	Read      bool   `json:"read"`
	CreatedAt string `json:"created_at"`
}

// GetNotifications возвращает уведомления текущего пользователя.
func (h *Handler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	notifications, err := h.service.ListNotifications(r.Context(), userID)
	if err != nil {
		h.writeError(w, err, "get notifications error")
		return
	}

	if len(notifications) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]notificationResponse, 0, len(notifications))
	for _, n := range notifications {
		resp = append(resp, notificationResponse{
			ID:        n.ID,
			Type:      string(n.Type),
			Content:   n.Content,
			Read:      n.Read,
			CreatedAt: n.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, resp)
}

// MarkNotificationRead помечает уведомление прочитанным.
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	id, ok := urlParamInt64(r, "notificationID")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.MarkNotificationRead(r.Context(), userID, id); err != nil {
		h.writeError(w, err, "mark notification read error")
		return
	}

	w.WriteHeader(http.StatusOK)
}

type notifyRequest struct {
	UserID  int64  `json:"user_id"`
	Type    string `json:"type"`
	Content string `json:"content"`
}

// NotifyUser создаёт уведомление для пользователя (администратор).
func (h *Handler) NotifyUser(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req notifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	id, err := h.service.NotifyUser(r.Context(), adminID, req.UserID, model.NotificationType(req.Type), req.Content)
	if err != nil {
		h.writeError(w, err, "notify user error")
		return
	}

	w.WriteHeader(http.StatusCreated)
	writeJSON(w, map[string]int64{"id": id})
}

type settingsPayload struct {
	CommissionPct    float64  `json:"commission_pct"`
	InsurancePct     float64  `json:"insurance_pct"`
	FreightPerKG     float64  `json:"freight_per_kg"`
	TariffPct        float64  `json:"tariff_pct"`
	VATPct           float64  `json:"vat_pct"`
	CustomsRate      *float64 `json:"customs_rate,omitempty"`
	CustomsUpdatedAt string   `json:"customs_updated_at,omitempty"`
}

// GetSettings возвращает параметры расчёта (администратор).
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	s, err := h.service.GetSettings(r.Context(), userID)
	if err != nil {
		h.writeError(w, err, "get settings error")
		return
	}

	resp := settingsPayload{
		CommissionPct: s.CommissionPct,
		InsurancePct:  s.InsurancePct,
		FreightPerKG:  s.FreightPerKG,
		TariffPct:     s.TariffPct,
		VATPct:        s.VATPct,
		CustomsRate:   s.CustomsRate,
	}
	if s.CustomsUpdatedAt != nil {
		resp.CustomsUpdatedAt = s.CustomsUpdatedAt.Format(time.RFC3339)
	}
	writeJSON(w, resp)
}

// UpdateSettings обновляет ставки расчёта (администратор).
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req settingsPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	err := h.service.UpdateSettings(r.Context(), userID, model.Settings{
		CommissionPct: req.CommissionPct,
		InsurancePct:  req.InsurancePct,
		FreightPerKG:  req.FreightPerKG,
		TariffPct:     req.TariffPct,
		VATPct:        req.VATPct,
	})
	if err != nil {
		h.writeError(w, err, "update settings error")
		return
	}

	w.WriteHeader(http.StatusOK)
}

// RefreshCustomsRate принудительно обновляет таможенный курс (администратор).
func (h *Handler) RefreshCustomsRate(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	// Право администратора проверяется через чтение настроек.
	if _, err := h.service.GetSettings(r.Context(), userID); err != nil {
		h.writeError(w, err, "refresh customs rate error")
		return
	}

	rate, err := h.service.RefreshCustomsRate(r.Context())
	if err != nil {
		h.writeError(w, err, "refresh customs rate error")
		return
	}

	writeJSON(w, map[string]float64{"customs_rate": rate})
}
