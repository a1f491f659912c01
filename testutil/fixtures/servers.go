// =============================================================================
// 📦 测试数据工厂 - 服务器配置
// =============================================================================
// 提供预定义的服务器地址与配置，用于测试
// =============================================================================
package fixtures

import (
	"net/http"
	"net/netip"

	"github.com/BaSui01/httplistener/config"
	"github.com/BaSui01/httplistener/types"
)

// =============================================================================
// 🌐 地址工厂
// =============================================================================

// LoopbackAddress 返回 127.0.0.1 上的地址；端口 0 由系统分配
func LoopbackAddress(port int) types.ServerAddress {
	return types.NewServerAddress(netip.MustParseAddr("127.0.0.1"), port)
}

// WildcardAddress 返回 0.0.0.0 上的地址
func WildcardAddress(port int) types.ServerAddress {
	return types.NewServerAddress(netip.IPv4Unspecified(), port)
}

// Identifier 返回默认部署单元下的服务器标识
func Identifier(name string) types.ServerIdentifier {
	return types.ServerIdentifier{Context: config.DefaultServerContext, Name: name}
}

// =============================================================================
// ⚙️ 配置工厂
// =============================================================================

// LoopbackServerConfig 返回绑定在回环地址随机端口上的服务器配置
func LoopbackServerConfig(name string, routes ...config.RouteConfig) config.ServerConfig {
	return config.ServerConfig{
		Name:   name,
		Host:   "127.0.0.1",
		Port:   0,
		Routes: routes,
	}
}

// TextRoute 返回对 GET 请求回复纯文本的路由
func TextRoute(path, body string) config.RouteConfig {
	return config.RouteConfig{
		Path:        path,
		Methods:     []string{http.MethodGet},
		Body:        body,
		ContentType: "text/plain",
	}
}

// TestConfig 返回适合测试的完整配置：小线程池、管理端点使用随机端口
func TestConfig(servers ...config.ServerConfig) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Listener.WorkerThreads = 4
	cfg.Listener.WorkerQueueSize = 64
	cfg.Admin.Port = 0
	cfg.Servers = servers
	return cfg
}
