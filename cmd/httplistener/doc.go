/*
Package main 提供 httplistener 托管进程入口。

# 概述

cmd/httplistener 按 YAML 配置创建监听服务器，为每个服务器挂载静态路由，
并通过注册表自身创建一个管理服务器，暴露健康检查、服务器列表与
Prometheus 指标。

# 核心类型

  - Host         : 持有注册表、证书监视器与遥测，负责启动与优雅关闭
  - Middleware   : HTTP 中间件函数签名 func(http.Handler) http.Handler
  - StaticRoute  : 将配置中的路由转换为固定响应的请求处理器

# 主要能力

  - 子命令：serve、version、health
  - 管理端点：/health、/healthz、/ready、/readyz、/version、/servers、/metrics
  - 证书轮换：watch_files 开启时，证书文件变化会重新启用 TLS
  - 优雅关闭：信号监听 → 停止证书监视 → 释放注册表 → 关闭遥测
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
