// Package tlsutil 提供集中式 TLS 配置，
// 为监听服务端与健康检查客户端提供安全加固的 TLS 设置（TLS 1.2+，仅 AEAD 密码套件），
// 以及基于文件或静态配置的 TLS 上下文工厂。
package tlsutil
