// Package ctxkeys 定义请求上下文中携带的值：连接 ID、服务器标识、请求 ID 与路径参数。
package ctxkeys
