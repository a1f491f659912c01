/*
Package testutil 提供测试的共享工具和辅助函数。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - 异步断言: AssertEventuallyTrue / AssertEventuallyEqual / WaitFor /
    WaitForChannel，支持超时轮询等待条件满足
  - 线路级客户端: RawClient 直接读写 TCP 连接，验证实际发送的字节

# 子包

  - testutil/mocks: 记录写操作的连接、状态回调与调度器模拟
  - testutil/fixtures: 请求、响应与服务器配置样例

# 使用示例

	ctx := testutil.TestContext(t)
	client := testutil.DialRaw(t, addr)
	client.Send("GET / HTTP/1.1\nHost: x\n\n")
	resp := client.ReadResponse(http.MethodGet)
*/
package testutil
