package utils

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// RespondJSON 发送JSON响应
func RespondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

// RespondError 发送错误响应
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, map[string]string{"error": message})
}

// RespondErrorCode 发送带错误码的错误响应，客户端据此区分错误类别
func RespondErrorCode(w http.ResponseWriter, status int, code, message string) {
	RespondJSON(w, status, map[string]string{"error": message, "code": code})
}

// DecodeJSON 解析请求体，限制最大读取字节数
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}, limit int64) error {
	if limit <= 0 {
		limit = 1 << 20
	}
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, limit)).Decode(dst)
}
