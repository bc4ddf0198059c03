// Package config загружает конфигурацию maa-api.
//
// Порядок: значения по умолчанию → YAML-файл → переменные окружения
// → Validate. Путь к файлу может быть пустым: тогда используются
// только значения по умолчанию и окружение.
//
// Переменные окружения:
//   - DB_URL, RABBITMQ_URL, API_PORT
//   - MAA_ACCESS_TOKEN, MAA_ADB_ADDRESS, MAA_MQTT_BROKER
//   - LOG_LEVEL, LOG_FORMAT
package config
