package device

import "errors"

// Ошибки adb.
var (
	// ErrConnectFailed — adb connect не подключил устройство.
	ErrConnectFailed = errors.New("adb connect failed")

	// ErrCommandFailed — команда adb завершилась с ошибкой.
	ErrCommandFailed = errors.New("adb command failed")

	// ErrInvalidScreenshot — screencap вернул не PNG.
	ErrInvalidScreenshot = errors.New("invalid screenshot data")
)
