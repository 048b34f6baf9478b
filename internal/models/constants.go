package models

const (
	// DefaultMaxStayDays максимальная длина бронирования в днях (включительно)
	DefaultMaxStayDays = 3

	// DefaultMaxAdvanceMonths насколько заранее можно бронировать
	DefaultMaxAdvanceMonths = 1

	// DefaultWindowMonths окно запроса доступности без явных дат
	DefaultWindowMonths = 1

	// DefaultMaxWindowMonths максимальная ширина окна запроса доступности
	DefaultMaxWindowMonths = 12

	// DefaultCacheTTL время жизни записи кэша доступности в секундах
	DefaultCacheTTL = 10 * 60

	// BroadcastQueueSize размер очереди воркера рассылки
	BroadcastQueueSize = 256
)
