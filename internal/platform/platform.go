// Package platform maps chat-site URLs to the platform labels stored on
// sessions and versions.
package platform

import (
	"net/url"
	"strings"

	"github.com/hpungsan/revise/internal/prompt"
)

const (
	ChatGPT = "chatgpt"
	Gemini  = "gemini"
	Claude  = "claude"
	Unknown = prompt.UnknownPlatform
)

// hosts maps a host (or a parent domain of it) to its platform.
var hosts = map[string]string{
	"chat.openai.com":   ChatGPT,
	"chatgpt.com":       ChatGPT,
	"bard.google.com":   Gemini,
	"gemini.google.com": Gemini,
	"claude.ai":         Claude,
}

var displayNames = map[string]string{
	ChatGPT: "ChatGPT",
	Gemini:  "Gemini",
	Claude:  "Claude",
	Unknown: "Unsupported Platform",
}

// Detect returns the platform for rawURL, or "unknown". Bare hosts
// without a scheme are accepted.
func Detect(rawURL string) string {
	host := hostOf(rawURL)
	if host == "" {
		return Unknown
	}
	for host != "" {
		if p, ok := hosts[host]; ok {
			return p
		}
		i := strings.IndexByte(host, '.')
		if i < 0 {
			break
		}
		host = host[i+1:]
	}
	return Unknown
}

// Supported reports whether rawURL belongs to a tracked platform.
func Supported(rawURL string) bool {
	return Detect(rawURL) != Unknown
}

// DisplayName returns a human label for a platform id.
func DisplayName(p string) string {
	if name, ok := displayNames[strings.ToLower(p)]; ok {
		return name
	}
	return "Unknown"
}

func hostOf(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
}
