// Package model содержит доменные сущности сервиса импортадора.
package model

import "time"

// User представляет зарегистрированного пользователя магазина.
type User struct {
	ID           int64
	Login        string
	PasswordHash []byte
	Email        string
	Phone        string
	Address      string
	IsAdmin      bool
	CreatedAt    time.Time
}

// Product описывает товар каталога. Цена закупки задаётся в USD,
// FixedPriceCLP при наличии перекрывает расчётную розничную цену.
type Product struct {
	ID            int64
	Name          string
	Description   string
	Brand         string
	PriceUSD      float64
	WeightKG      float64
	Available     bool
	ImageURL      string
	FixedPriceCLP *float64
	CreatedAt     time.Time
}

// OrderStatus описывает статус обработки заказа.
type OrderStatus string

const (
	OrderStatusReceived  OrderStatus = "received"
	OrderStatusInProcess OrderStatus = "in_process"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
)

// Order описывает заказ пользователя и его агрегированные суммы.
// ExchangeRate фиксируется в момент создания заказа и далее не меняется.
type Order struct {
	ID              int64
	UserID          int64
	Status          OrderStatus
	TotalUSD        float64
	TotalCLP        float64
	WeightKG        float64
	ExchangeRate    float64
	PaymentProofURL string
	FinalTotalCLP   float64
	CreatedAt       time.Time
}

// LineItem описывает одну позицию заказа. Производные поля пересчитываются
// при каждом изменении позиции и никогда не задаются напрямую.
type LineItem struct {
	ID          int64
	OrderID     int64
	ProductID   int64
	Quantity    int
	SubtotalUSD float64
	SubtotalCLP float64
	WeightKG    float64
}

// NotificationType описывает тип уведомления пользователя.
type NotificationType string

const (
	NotificationOrderStatus NotificationType = "order_status"
	NotificationPromotion   NotificationType = "promotion"
	NotificationOther       NotificationType = "other"
)

// Notification описывает уведомление пользователя. После создания
// изменяется только флаг прочтения.
type Notification struct {
	ID        int64
	UserID    int64
	Type      NotificationType
	Content   string
	Read      bool
	CreatedAt time.Time
}

// Settings содержит единственную запись параметров расчёта:
// ставки комиссии, страховки, фрахта, пошлины и НДС, а также
// таможенный курс доллара. CustomsRate равен nil до первого
// успешного обновления.
type Settings struct {
	CommissionPct    float64
	InsurancePct     float64
	FreightPerKG     float64
	TariffPct        float64
	VATPct           float64
	CustomsRate      *float64
	CustomsUpdatedAt *time.Time
}

// OrderTotals содержит пересчитанные агрегаты заказа, сохраняемые
// вместе с изменением позиций в одной транзакции.
type OrderTotals struct {
	TotalUSD float64
	TotalCLP float64
	WeightKG float64
	// FinalComputed показывает, удалось ли рассчитать итог с пошлинами:
	// без таможенного курса FinalTotalCLP не обновляется.
	FinalComputed bool
	FinalTotalCLP float64
}
