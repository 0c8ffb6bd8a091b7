package middleware

import (
	"net/http"
	"strings"
)

// 文档注释：提取访问端 IP
// 背景：服务通常部署在反向代理之后，RemoteAddr 只是上一跳；按代理头逐级回退，
//      取到的结果用于限流分桶与访问日志。
// 约束：X-Forwarded-For 取链路第一跳；Forwarded 头解析 for= 字段；都取不到时
//      回退 RemoteAddr 并剥离端口。
func VisitorIP(r *http.Request) string {
	if v := r.Header.Get("X-Forwarded-For"); v != "" {
		parts := strings.Split(v, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}
	if v := strings.TrimSpace(r.Header.Get("X-Real-IP")); v != "" {
		return v
	}
	if v := strings.TrimSpace(r.Header.Get("X-Client-IP")); v != "" {
		return v
	}
	if v := r.Header.Get("Forwarded"); v != "" {
		for _, seg := range strings.Split(v, ";") {
			seg = strings.TrimSpace(seg)
			if strings.HasPrefix(strings.ToLower(seg), "for=") {
				ip := strings.Trim(seg[4:], "\"[]")
				if i := strings.LastIndex(ip, ":"); i > 0 && strings.Count(ip, ":") == 1 {
					ip = ip[:i]
				}
				if ip != "" {
					return ip
				}
			}
		}
	}
	addr := r.RemoteAddr
	if i := strings.LastIndex(addr, ":"); i > 0 {
		addr = addr[:i]
	}
	return strings.Trim(addr, "[]")
}
