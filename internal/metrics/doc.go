/*
包 metrics 提供基于 Prometheus 的监听服务指标采集能力，覆盖
服务器生命周期、连接、请求/响应与调度器四个维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto.With
将指标注册到调用方提供的 Registerer，便于测试隔离与多实例部署。
所有指标按 namespace 隔离。

# 核心类型

  - Collector：指标收集器。nil *Collector 的记录方法均为空操作，
    调用方无需判空。Collector 同时满足 response.Observer 接口。

# 主要能力

  - 服务器指标：活跃服务器数（按 protocol）、生命周期事件计数。
  - 连接指标：活跃连接数、累计接受数、空闲超时关闭数。
  - 响应指标：按状态码分类与投递结果计数、耗时、响应体大小、
    分块数量与分块大小。
  - 调度器指标：采集时按需读取 worker 数与队列深度，拒绝计数。
*/
package metrics
