// Package cli реализует инструмент командной строки maa-cli.
//
// # Обзор
//
// CLI — клиент MAA API. Работает через HTTP и не импортирует
// внутренние пакеты сервера.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент: запросы, разбор конвертов {data} / {error} и токен
// доступа в заголовке X-Access-Token.
//
//	client := cli.NewClient("http://localhost:8080", token)
//	p, err := client.GetPipeline()
//
// ## Output
//
// Таблицы (text/tabwriter) по умолчанию, JSON с флагом --json.
// Данные идут в stdout, сообщения (Success/Error) в stderr:
// maa-cli pipeline show --json | jq .
//
// ## Commands
//
//   - pipeline: show, status, append, run, start, stop, clear
//   - history: list, show
//   - types
//
// Файлы tasks для append и run принимаются в JSON и YAML.
// Фабрики команд получают clientFn и outputFn: Client и Output
// создаются после разбора PersistentFlags.
package cli
