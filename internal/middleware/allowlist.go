package middleware

import (
	"net/http"
	"net/netip"
	"strings"

	"geonear/internal/logger"
	"geonear/internal/utils"
)

// Allowlist：单 IP 与网段白名单
type Allowlist struct {
	addrs    map[netip.Addr]struct{}
	prefixes []netip.Prefix
}

// 文档注释：解析逗号分隔的 IP 与 CIDR 列表
// 约束：无法解析的项被忽略并记录 warn；IPv4 映射的 IPv6 地址按 IPv4 比较。
func ParseAllowlist(ips, cidrs string, local bool) *Allowlist {
	a := &Allowlist{addrs: map[netip.Addr]struct{}{}}
	for _, p := range strings.Split(ips, ",") {
		if p = strings.TrimSpace(p); p == "" {
			continue
		}
		ip, err := netip.ParseAddr(p)
		if err != nil {
			logger.L().Warn("allowlist_bad_ip", "value", p)
			continue
		}
		a.addrs[ip.Unmap()] = struct{}{}
	}
	for _, c := range strings.Split(cidrs, ",") {
		if c = strings.TrimSpace(c); c == "" {
			continue
		}
		n, err := netip.ParsePrefix(c)
		if err != nil {
			logger.L().Warn("allowlist_bad_cidr", "value", c)
			continue
		}
		a.prefixes = append(a.prefixes, n.Masked())
	}
	if local {
		a.addrs[netip.MustParseAddr("127.0.0.1")] = struct{}{}
		a.addrs[netip.IPv6Loopback()] = struct{}{}
	}
	return a
}

func (a *Allowlist) Allowed(ip netip.Addr) bool {
	ip = ip.Unmap()
	if _, ok := a.addrs[ip]; ok {
		return true
	}
	for _, n := range a.prefixes {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// 文档注释：只对给定路径前缀生效的白名单守卫
// 约束：来源 IP 取自 RemoteAddr，不信任转发头；不在白名单内返回 403。
func (a *Allowlist) Guard(prefixes []string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		guarded := false
		for _, p := range prefixes {
			if strings.HasPrefix(r.URL.Path, p) {
				guarded = true
				break
			}
		}
		if !guarded {
			next.ServeHTTP(w, r)
			return
		}
		ap, err := netip.ParseAddrPort(r.RemoteAddr)
		if err != nil || !a.Allowed(ap.Addr()) {
			logger.L().Debug("admin_guard_block", "path", r.URL.Path, "ip", r.RemoteAddr)
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GuardAdmin：ADMIN_GUARD_ENABLE 为 true 时按 ADMIN_ALLOW_IPS / ADMIN_ALLOW_CIDRS / ADMIN_ALLOW_LOCAL 保护给定路径
func GuardAdmin(prefixes []string, next http.Handler) http.Handler {
	if !utils.EnvBool("ADMIN_GUARD_ENABLE", false) {
		return next
	}
	a := ParseAllowlist(utils.EnvString("ADMIN_ALLOW_IPS", ""), utils.EnvString("ADMIN_ALLOW_CIDRS", ""), utils.EnvBool("ADMIN_ALLOW_LOCAL", true))
	return a.Guard(prefixes, next)
}
