package api

import (
	"net/http"
	"strconv"
)

// Screenshot отдаёт снимок экрана устройства.
// GET /api/adb/screenshot
func (h *Handler) Screenshot(w http.ResponseWriter, r *http.Request) {
	if h.screen == nil {
		NotFound(w, "device is not configured")
		return
	}

	img, err := h.screen.Screenshot(r.Context())
	if err != nil {
		h.logger.Warn("screenshot failed", "error", err)
		Error(w, http.StatusBadGateway, ErrCodeBadGateway, "screenshot failed")
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(img)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(img)
}
