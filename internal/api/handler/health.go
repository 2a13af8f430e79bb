// 文件路径: internal/api/handler/health.go
// 模块说明: 健康检查接口。
package handler

import "net/http"

// HealthResponse is the fixed liveness payload.
type HealthResponse struct {
	Status string `json:"status"`
}

// Health always reports UP; it has no dependencies to check.
func Health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, HealthResponse{Status: "UP"})
}
