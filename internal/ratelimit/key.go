package ratelimit

import "strings"

// LoginKey builds the limiter key for a login attempt from the client address and username.
func LoginKey(clientIP, username string) string {
	ip := strings.TrimSpace(clientIP)
	user := strings.ToLower(strings.TrimSpace(username))
	if ip == "" && user == "" {
		return ""
	}
	return "login:" + ip + ":" + user
}
