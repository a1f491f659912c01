/*
Package types 提供监听服务的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 registry、httpserver、
internal/server 与 internal/response 提供统一的类型契约，避免循环依赖。

# 核心类型

  - ServerAddress    : 已解析的 IP + 端口，可比较，可作为 map 键
  - ServerIdentifier : 服务器的逻辑归属（context + name）
  - RegistryKey      : (地址, 标识) 二元组，唯一确定一个存活的服务器
  - Protocol         : HTTP / HTTPS
  - TCPServerSocketProperties: 监听套接字与已接受连接的 TCP 参数
  - Error / ErrorCode: 结构化错误体系，含错误码与 HTTP 状态码

# 主要能力

  - 主机名解析：ResolveServerAddress 支持空主机（通配地址）、IP 字面量与 DNS 查询
  - 错误判定：GetErrorCode / IsErrorCode 沿错误链查找错误码
*/
package types
