// Package config 提供监听服务的配置管理功能。
//
// 包含配置加载（默认值 → YAML 文件 → 环境变量）、配置校验，
// 以及用于 TLS 证书轮换的文件变更监听。
package config
