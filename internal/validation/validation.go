// Package validation содержит функции валидации входных данных.
package validation

import "github.com/mmeshcher/importadora-system/internal/model"

// IsValidQuantity проверяет, что количество товара в позиции положительное.
func IsValidQuantity(quantity int) bool {
	return quantity > 0
}

// IsValidStatus проверяет, что статус заказа принадлежит известному набору.
// Порядок переходов между статусами намеренно не проверяется.
func IsValidStatus(status model.OrderStatus) bool {
	switch status {
	case model.OrderStatusReceived, model.OrderStatusInProcess,
		model.OrderStatusShipped, model.OrderStatusDelivered:
		return true
	}
	return false
}

// IsValidNotificationType проверяет тип уведомления.
func IsValidNotificationType(t model.NotificationType) bool {
	switch t {
	case model.NotificationOrderStatus, model.NotificationPromotion, model.NotificationOther:
		return true
	}
	return false
}

// HasPrice проверяет инвариант товара: задана хотя бы одна из цен —
// закупочная в USD или фиксированная розничная в CLP.
func HasPrice(p model.Product) bool {
	return p.PriceUSD > 0 || p.FixedPriceCLP != nil
}
