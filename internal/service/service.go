// Package service реализует бизнес-логику сервиса импортадора.
package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/mmeshcher/importadora-system/internal/model"
	"github.com/mmeshcher/importadora-system/internal/pricing"
	"github.com/mmeshcher/importadora-system/internal/repository"
	"github.com/mmeshcher/importadora-system/internal/validation"
)

// ErrInvalidCredentials возвращается при неверном логине или пароле.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNotOrderOwner возвращается при попытке изменить чужой заказ.
	ErrNotOrderOwner = errors.New("order belongs to another user")
	// ErrPermissionDenied возвращается при попытке выполнить
	// администраторскую операцию без прав администратора.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrProductPriceMissing возвращается для товара без единой цены:
	// должна быть задана цена в USD или фиксированная цена в CLP.
	ErrProductPriceMissing = errors.New("product must have a USD price or a fixed CLP price")
	// ErrInvalidQuantity возвращается при неположительном количестве.
	ErrInvalidQuantity = errors.New("quantity must be positive")
	// ErrInvalidStatus возвращается при неизвестном статусе заказа.
	ErrInvalidStatus = errors.New("unknown order status")
	// ErrInvalidNotificationType возвращается при неизвестном типе уведомления.
	ErrInvalidNotificationType = errors.New("unknown notification type")
	// ErrRateUnavailable возвращается, когда источник таможенного курса
	// недоступен и обновить настройки нечем.
	ErrRateUnavailable = errors.New("exchange rate source unavailable")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateUser(ctx context.Context, login string, passwordHash []byte, email string) (int64, error)
	GetUserByLogin(ctx context.Context, login string) (*model.User, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	UpdateUserProfile(ctx context.Context, id int64, email, phone, address string) error

	CreateProduct(ctx context.Context, p model.Product) (int64, error)
	UpdateProduct(ctx context.Context, p model.Product) error
	GetProduct(ctx context.Context, id int64) (*model.Product, error)
	ListProducts(ctx context.Context, onlyAvailable bool) ([]model.Product, error)

	GetSettings(ctx context.Context) (model.Settings, error)
	UpdateSettings(ctx context.Context, s model.Settings) error
	SetCustomsRate(ctx context.Context, rate float64, at time.Time) error

	CreateOrder(ctx context.Context, userID int64, exchangeRate float64) (*model.Order, error)
	GetOrder(ctx context.Context, id int64) (*model.Order, error)
	ListOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error)
	UpdateOrderStatus(ctx context.Context, id int64, status model.OrderStatus) error
	SetPaymentProof(ctx context.Context, id int64, url string) error

	GetLineItems(ctx context.Context, orderID int64) ([]model.LineItem, error)
	GetLineItem(ctx context.Context, orderID, itemID int64) (*model.LineItem, error)
	AddLineItem(ctx context.Context, item model.LineItem, totals model.OrderTotals) (int64, error)
	UpdateLineItem(ctx context.Context, item model.LineItem, totals model.OrderTotals) error
	DeleteLineItem(ctx context.Context, orderID, itemID int64, totals model.OrderTotals) error

	CreateNotification(ctx context.Context, n model.Notification) (int64, error)
	ListNotificationsByUser(ctx context.Context, userID int64) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, id int64) error
}

// RateSource описывает контракт источника курсов доллара.
// Сбои источника выражаются флагом ok, а не ошибкой.
type RateSource interface {
	MarketRate(ctx context.Context) (rate float64, asOf string, ok bool)
	CustomsRate(ctx context.Context) (rate float64, ok bool)
}

// Service содержит бизнес-логику сервиса импортадора.
type Service struct {
	repo  Repository
	rates RateSource
}

// NewService создаёт новый сервис с указанным репозиторием и источником курсов.
func NewService(repo Repository, rates RateSource) *Service {
	return &Service{
		repo:  repo,
		rates: rates,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterUser регистрирует нового пользователя.
func (s *Service) RegisterUser(ctx context.Context, login, password, email string) (int64, error) {
	hashed := hashPassword(login, password)
	id, err := s.repo.CreateUser(ctx, login, hashed, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return 0, repository.ErrUserExists
		}
		return 0, err
	}
	return id, nil
}

// AuthenticateUser проверяет логин и пароль пользователя и возвращает его идентификатор.
func (s *Service) AuthenticateUser(ctx context.Context, login, password string) (int64, error) {
	u, err := s.repo.GetUserByLogin(ctx, login)
	if err != nil {
		return 0, err
	}

	hashed := hashPassword(login, password)
	if subtle.ConstantTimeCompare(hashed, u.PasswordHash) != 1 {
		return 0, ErrInvalidCredentials
	}

	return u.ID, nil
}

func hashPassword(login, password string) []byte {
	sum := sha256.Sum256([]byte(login + ":" + password))
	return sum[:]
}

// GetProfile возвращает профиль пользователя.
func (s *Service) GetProfile(ctx context.Context, userID int64) (*model.User, error) {
	return s.repo.GetUserByID(ctx, userID)
}

// UpdateProfile обновляет контактные данные пользователя.
func (s *Service) UpdateProfile(ctx context.Context, userID int64, email, phone, address string) error {
	return s.repo.UpdateUserProfile(ctx, userID, email, phone, address)
}

// requireAdmin возвращает ErrPermissionDenied, если пользователь не администратор.
func (s *Service) requireAdmin(ctx context.Context, userID int64) error {
	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if !u.IsAdmin {
		return ErrPermissionDenied
	}
	return nil
}

// CreateProduct создаёт товар каталога. Операция доступна администратору.
func (s *Service) CreateProduct(ctx context.Context, adminID int64, p model.Product) (int64, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return 0, err
	}
	if !validation.HasPrice(p) {
		return 0, ErrProductPriceMissing
	}
	return s.repo.CreateProduct(ctx, p)
}

// UpdateProduct обновляет товар каталога. Операция доступна администратору.
func (s *Service) UpdateProduct(ctx context.Context, adminID int64, p model.Product) error {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return err
	}
	if !validation.HasPrice(p) {
		return ErrProductPriceMissing
	}
	return s.repo.UpdateProduct(ctx, p)
}

// GetProduct возвращает товар по идентификатору.
func (s *Service) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// ListProducts возвращает товары каталога.
func (s *Service) ListProducts(ctx context.Context, onlyAvailable bool) ([]model.Product, error) {
	return s.repo.ListProducts(ctx, onlyAvailable)
}

// ProductRetailPrice возвращает розничную цену товара в CLP.
// Рыночный курс запрашивается в момент вызова и только когда у товара
// нет фиксированной цены; при недоступном курсе цена равна нулю.
func (s *Service) ProductRetailPrice(ctx context.Context, productID int64) (float64, error) {
	p, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return 0, err
	}

	if p.FixedPriceCLP != nil {
		return *p.FixedPriceCLP, nil
	}

	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return 0, err
	}

	rate, ok := s.marketRate(ctx)
	return pricing.RetailPriceCLP(*p, settings, rate, ok), nil
}

// CreateOrder создаёт пустой заказ, фиксируя на нём текущий рыночный
// курс. Если оба источника курса недоступны, фиксируется ноль — заказ
// остаётся работоспособным, CLP-суммы будут нулевыми до ручного
// вмешательства.
func (s *Service) CreateOrder(ctx context.Context, userID int64) (*model.Order, error) {
	rate, _ := s.marketRate(ctx)
	return s.repo.CreateOrder(ctx, userID, rate)
}

// marketRate возвращает текущий рыночный курс или ноль, если источник
// не настроен либо недоступен.
func (s *Service) marketRate(ctx context.Context) (float64, bool) {
	if s.rates == nil {
		return 0, false
	}
	rate, _, ok := s.rates.MarketRate(ctx)
	if !ok {
		return 0, false
	}
	return rate, true
}

// GetOrder возвращает заказ вместе с позициями. Заказ доступен его
// владельцу и администратору.
func (s *Service) GetOrder(ctx context.Context, userID, orderID int64) (*model.Order, []model.LineItem, error) {
	order, err := s.ownedOrder(ctx, userID, orderID)
	if err != nil {
		return nil, nil, err
	}

	items, err := s.repo.GetLineItems(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}

	return order, items, nil
}

// ListOrders возвращает заказы пользователя.
func (s *Service) ListOrders(ctx context.Context, userID int64) ([]model.Order, error) {
	return s.repo.ListOrdersByUser(ctx, userID)
}

func (s *Service) ownedOrder(ctx context.Context, userID, orderID int64) (*model.Order, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID == userID {
		return order, nil
	}

	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !u.IsAdmin {
		return nil, ErrNotOrderOwner
	}
	return order, nil
}

// AddLineItem добавляет позицию в заказ и пересчитывает его суммы
// и таможенные платежи. Позиция, агрегаты и итог записываются одной
// транзакцией.
func (s *Service) AddLineItem(ctx context.Context, userID, orderID, productID int64, quantity int) (*model.Order, error) {
	if !validation.IsValidQuantity(quantity) {
		return nil, ErrInvalidQuantity
	}

	order, err := s.ownedOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}

	product, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return nil, err
	}

	usd, clp, weight := pricing.LineSubtotals(quantity, *product, order.ExchangeRate, settings)
	item := model.LineItem{
		OrderID:     orderID,
		ProductID:   productID,
		Quantity:    quantity,
		SubtotalUSD: usd,
		SubtotalCLP: clp,
		WeightKG:    weight,
	}

	items, err := s.repo.GetLineItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	totals := computeTotals(append(items, item), order.FinalTotalCLP, settings)

	if _, err := s.repo.AddLineItem(ctx, item, totals); err != nil {
		return nil, err
	}

	return s.repo.GetOrder(ctx, orderID)
}

// UpdateLineItem изменяет количество в позиции и пересчитывает все
// производные поля позиции и заказа.
func (s *Service) UpdateLineItem(ctx context.Context, userID, orderID, itemID int64, quantity int) (*model.Order, error) {
	if !validation.IsValidQuantity(quantity) {
		return nil, ErrInvalidQuantity
	}

	order, err := s.ownedOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}

	item, err := s.repo.GetLineItem(ctx, orderID, itemID)
	if err != nil {
		return nil, err
	}

	product, err := s.repo.GetProduct(ctx, item.ProductID)
	if err != nil {
		return nil, err
	}

	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return nil, err
	}

	usd, clp, weight := pricing.LineSubtotals(quantity, *product, order.ExchangeRate, settings)
	item.Quantity = quantity
	item.SubtotalUSD = usd
	item.SubtotalCLP = clp
	item.WeightKG = weight

	items, err := s.repo.GetLineItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].ID == itemID {
			items[i] = *item
		}
	}
	totals := computeTotals(items, order.FinalTotalCLP, settings)

	if err := s.repo.UpdateLineItem(ctx, *item, totals); err != nil {
		return nil, err
	}

	return s.repo.GetOrder(ctx, orderID)
}

// DeleteLineItem удаляет позицию заказа и пересчитывает его суммы.
func (s *Service) DeleteLineItem(ctx context.Context, userID, orderID, itemID int64) (*model.Order, error) {
	order, err := s.ownedOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}

	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return nil, err
	}

	items, err := s.repo.GetLineItems(ctx, orderID)
	if err != nil {
		return nil, err
	}

	remaining := items[:0:0]
	found := false
	for _, it := range items {
		if it.ID == itemID {
			found = true
			continue
		}
		remaining = append(remaining, it)
	}
	if !found {
		return nil, repository.ErrLineItemNotFound
	}

	totals := computeTotals(remaining, order.FinalTotalCLP, settings)

	if err := s.repo.DeleteLineItem(ctx, orderID, itemID, totals); err != nil {
		return nil, err
	}

	return s.repo.GetOrder(ctx, orderID)
}

// computeTotals суммирует позиции и рассчитывает итог с пошлинами.
// Без таможенного курса итог остаётся прежним (previousFinal).
func computeTotals(items []model.LineItem, previousFinal float64, settings model.Settings) model.OrderTotals {
	usd, clp, weight := pricing.SumTotals(items)
	totals := model.OrderTotals{
		TotalUSD:      usd,
		TotalCLP:      clp,
		WeightKG:      weight,
		FinalTotalCLP: previousFinal,
	}

	if d, ok := pricing.Duties(usd, clp, weight, settings); ok {
		totals.FinalComputed = true
		totals.FinalTotalCLP = d.FinalTotalCLP
	}

	return totals
}

// UpdateOrderStatus устанавливает статус заказа и уведомляет владельца.
// Операция доступна администратору. Порядок переходов между статусами
// намеренно не ограничивается.
func (s *Service) UpdateOrderStatus(ctx context.Context, adminID, orderID int64, status model.OrderStatus) error {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return err
	}
	if !validation.IsValidStatus(status) {
		return ErrInvalidStatus
	}

	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}

	if err := s.repo.UpdateOrderStatus(ctx, orderID, status); err != nil {
		return err
	}

	_, err = s.repo.CreateNotification(ctx, model.Notification{
		UserID:  order.UserID,
		Type:    model.NotificationOrderStatus,
		Content: fmt.Sprintf("Su pedido #%d ahora está en estado: %s", orderID, status),
	})
	return err
}

// AttachPaymentProof сохраняет ссылку на подтверждение оплаты заказа.
func (s *Service) AttachPaymentProof(ctx context.Context, userID, orderID int64, url string) error {
	if _, err := s.ownedOrder(ctx, userID, orderID); err != nil {
		return err
	}
	return s.repo.SetPaymentProof(ctx, orderID, url)
}

// ListNotifications возвращает уведомления пользователя.
func (s *Service) ListNotifications(ctx context.Context, userID int64) ([]model.Notification, error) {
	return s.repo.ListNotificationsByUser(ctx, userID)
}

// MarkNotificationRead помечает уведомление пользователя прочитанным.
func (s *Service) MarkNotificationRead(ctx context.Context, userID, notificationID int64) error {
	return s.repo.MarkNotificationRead(ctx, userID, notificationID)
}

// NotifyUser создаёт уведомление для пользователя. Операция доступна
// администратору.
func (s *Service) NotifyUser(ctx context.Context, adminID, userID int64, typ model.NotificationType, content string) (int64, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return 0, err
	}
	if !validation.IsValidNotificationType(typ) {
		return 0, ErrInvalidNotificationType
	}
	return s.repo.CreateNotification(ctx, model.Notification{
		UserID:  userID,
		Type:    typ,
		Content: content,
	})
}

// GetSettings возвращает параметры расчёта. Операция доступна администратору.
func (s *Service) GetSettings(ctx context.Context, adminID int64) (model.Settings, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return model.Settings{}, err
	}
	return s.repo.GetSettings(ctx)
}

// UpdateSettings обновляет ставки расчёта. Операция доступна администратору.
func (s *Service) UpdateSettings(ctx context.Context, adminID int64, settings model.Settings) error {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return err
	}
	return s.repo.UpdateSettings(ctx, settings)
}

// RefreshCustomsRate запрашивает таможенный курс и сохраняет его
// вместе со временем обновления. При недоступном источнике настройки
// не меняются и возвращается ErrRateUnavailable.
func (s *Service) RefreshCustomsRate(ctx context.Context) (float64, error) {
	if s.rates == nil {
		return 0, ErrRateUnavailable
	}
	rate, ok := s.rates.CustomsRate(ctx)
	if !ok {
		return 0, ErrRateUnavailable
	}

	if err := s.repo.SetCustomsRate(ctx, rate, time.Now()); err != nil {
		return 0, err
	}

	return rate, nil
}

// StartCustomsRateUpdates запускает фоновое периодическое обновление
// таможенного курса. Сбои источника не останавливают цикл: следующая
// попытка произойдёт на очередном тике.
func (s *Service) StartCustomsRateUpdates(ctx context.Context, interval time.Duration) {
	if s.rates == nil || interval <= 0 {
		return
	}

	go func() {
		// Первое обновление сразу при старте, чтобы не ждать целый интервал.
		_, _ = s.RefreshCustomsRate(ctx)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_, _ = s.RefreshCustomsRate(ctx)
			}
		}
	}()
}
