// Package pricing реализует расчёт розничных цен, агрегатов заказа
// и таможенных платежей. Все функции чистые: параметры расчёта
// передаются явным снимком настроек, глобального состояния нет.
package pricing

import "github.com/mmeshcher/importadora-system/internal/model"

// RetailPriceCLP возвращает розничную цену товара в CLP.
// Фиксированная цена, если она задана, возвращается без изменений.
// Иначе к цене в USD применяется комиссия и рыночный курс; при
// неизвестном курсе цена считается нулевой.
func RetailPriceCLP(p model.Product, s model.Settings, marketRate float64, rateKnown bool) float64 {
	if p.FixedPriceCLP != nil {
		return *p.FixedPriceCLP
	}
	if !rateKnown {
		return 0
	}
	return priceWithCommission(p.PriceUSD, s) * marketRate
}

// LineSubtotals возвращает суммы позиции заказа: в USD, в CLP и вес.
// CLP-сумма считается по курсу, зафиксированному на заказе, а не по
// свежему рыночному: цены внутри одного заказа не плывут при смене курса.
func LineSubtotals(quantity int, p model.Product, orderRate float64, s model.Settings) (usd, clp, weight float64) {
	q := float64(quantity)
	usd = q * p.PriceUSD
	weight = q * p.WeightKG

	switch {
	case p.FixedPriceCLP != nil:
		clp = q * *p.FixedPriceCLP
	case orderRate != 0:
		clp = q * priceWithCommission(p.PriceUSD, s) * orderRate
	default:
		clp = 0
	}
	return usd, clp, weight
}

func priceWithCommission(priceUSD float64, s model.Settings) float64 {
	return priceUSD + priceUSD*s.CommissionPct/100
}

// SumTotals суммирует позиции заказа в агрегаты. Функция идемпотентна:
// повторный вызов на неизменённых позициях даёт те же значения.
func SumTotals(items []model.LineItem) (totalUSD, totalCLP, weightKG float64) {
	for _, it := range items {
		totalUSD += it.SubtotalUSD
		totalCLP += it.SubtotalCLP
		weightKG += it.WeightKG
	}
	return totalUSD, totalCLP, weightKG
}
