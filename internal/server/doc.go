/*
包 server 实现注册表产出的监听服务器及其管理器。

# 概述

Server 持有一个监听套接字、请求处理器注册表与 WebSocket 处理器注册表。
每个被接受的连接在独立的 goroutine 中顺序读取请求：解析请求头、
按路径与方法匹配处理器、在调度器上运行处理器，并等待响应通过
response 包交付完成后才读取下一个请求。

# 核心类型

  - Manager：按 (地址, 标识) 管理服务器，负责创建、查找与并行销毁。
  - Server：生命周期 created → started → stopping → stopped → disposed，
    Stop 后可以再次 Start 重新绑定，Dispose 后不可再用。
  - Resources：服务器共享的 selector/worker 调度器、空闲回收器、
    分块缓冲池、指标与追踪。

# 路由

路径模式支持精确段、{name} 单段参数与结尾 * 前缀匹配。
未匹配返回 404，方法不匹配返回 405 并附带 Allow，处理器被停止时返回 503。
*/
package server
