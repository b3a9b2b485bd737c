package pricing

import "github.com/mmeshcher/importadora-system/internal/model"

// DutyBreakdown содержит разложение таможенного расчёта заказа.
type DutyBreakdown struct {
	Insurance     float64
	Freight       float64
	CIFUSD        float64
	CIFCLP        float64
	Tariff        float64
	ImportVAT     float64
	FinalTotalCLP float64
}

// Insurance возвращает стоимость страховки заказа в USD.
func Insurance(totalUSD float64, s model.Settings) float64 {
	return totalUSD * s.InsurancePct / 100
}

// Freight возвращает стоимость фрахта заказа в USD.
func Freight(weightKG float64, s model.Settings) float64 {
	return weightKG * s.FreightPerKG
}

// Duties рассчитывает таможенные платежи и итоговую сумму заказа.
// Без таможенного курса расчёт невозможен: ok равен false, и вызывающий
// код обязан оставить прежний итог заказа без изменений.
//
// Расчёт: CIF = total_usd + страховка + фрахт, переводится в CLP по
// таможенному курсу; пошлина берётся от CIF, ввозной НДС — от суммы
// CIF и пошлины; итог — total_clp плюс оба платежа.
func Duties(totalUSD, totalCLP, weightKG float64, s model.Settings) (DutyBreakdown, bool) {
	if s.CustomsRate == nil {
		return DutyBreakdown{}, false
	}

	d := DutyBreakdown{
		Insurance: Insurance(totalUSD, s),
		Freight:   Freight(weightKG, s),
	}
	d.CIFUSD = totalUSD + d.Insurance + d.Freight
	d.CIFCLP = d.CIFUSD * *s.CustomsRate
	d.Tariff = d.CIFCLP * s.TariffPct / 100
	d.ImportVAT = (d.CIFCLP + d.Tariff) * s.VATPct / 100
	d.FinalTotalCLP = totalCLP + d.Tariff + d.ImportVAT

	return d, true
}
