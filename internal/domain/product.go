package domain

// Product — товар каталога с текущим свободным остатком.
// Инвариант stock >= 0 поддерживается исключительно условным декрементом
// склада, никакой внешней блокировки по товару нет.
type Product struct {
	ID         string
	Name       string
	PriceMinor int64
	Stock      int32
}
