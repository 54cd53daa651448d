package domain

// statusRank задаёт порядок "вперёд" для не-терминальной цепочки статусов.
// Отмена стоит особняком: в неё можно уйти из любого не-терминального статуса.
var statusRank = map[OrderStatus]int{
	OrderStatusPending:   0,
	OrderStatusConfirmed: 1,
	OrderStatusShipping:  2,
	OrderStatusCompleted: 3,
}

// CanTransition проверяет легальность перехода from -> to без учёта побочных
// эффектов (возврат/повторное резервирование склада — забота сервисного слоя).
// Правила:
//   - одинаковый статус — легальный no-op;
//   - любой не-терминальный статус -> cancelled;
//   - cancelled -> любой не-cancelled статус (административная реактивация,
//     вызывающий обязан предварительно повторно зарезервировать склад);
//   - внутри цепочки pending -> confirmed -> shipping -> completed разрешено
//     только движение вперёд;
//   - из completed переходов нет.
func CanTransition(from, to OrderStatus) error {
	if !to.Valid() {
		return ErrStatusInvalid
	}
	if from == to {
		return nil
	}
	if from == OrderStatusCompleted {
		return ErrOrderFinalized
	}
	if to == OrderStatusCancelled {
		return nil
	}
	if from == OrderStatusCancelled {
		// Реактивация разрешена, но только после повторного резервирования.
		return nil
	}
	if statusRank[to] < statusRank[from] {
		return ErrInvalidTransition
	}
	return nil
}
