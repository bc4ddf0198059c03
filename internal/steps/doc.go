// Package steps описывает виды task, которые умеет выполнять движок.
//
// # Обзор
//
// Вид (Kind) — это тип task chain движка вместе с правилами его
// параметров. Каждый вид:
//   - Разбирает параметры из плоского JSON-запроса в свою структуру
//   - Проверяет перечисления и диапазоны (client_type, server, series, ...)
//   - Отдаёт map параметров без незаданных полей
//
// # Registry
//
// Registry — фабрика видов по типу task chain:
//
//	registry := steps.DefaultRegistry()
//	task, err := registry.Decode([]byte(`{"name": "Fight", "stage": "1-7"}`))
//	if errors.Is(err, steps.ErrInvalidParams) {
//	    // 400
//	}
//
// # Виды
//
//   - StartUp, CloseDown — запуск и закрытие клиента
//   - Fight — прохождение этапов
//   - Recruit — открытый набор
//   - Infrast — смены в инфраструктуре
//   - Mall, Award — магазин кредитов и награды
//   - Roguelike, Reclamation — режимы с отдельными темами
//
// NewStartUpTask и NewCloseDownTask используются watchdog'ом для
// перезапуска клиента.
package steps
