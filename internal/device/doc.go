// Package device работает с эмулятором через adb: подключение,
// снимки экрана и проверка процесса игрового клиента.
package device
