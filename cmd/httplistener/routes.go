package main

import (
	"net/http"

	"github.com/BaSui01/httplistener/config"
	"github.com/BaSui01/httplistener/httpmsg"
	"github.com/BaSui01/httplistener/httpserver"
)

// StaticRoute 返回固定响应的请求处理器，用于配置文件中声明的路由
func StaticRoute(route config.RouteConfig) httpserver.RequestHandler {
	status := route.Status
	if status == 0 {
		status = http.StatusOK
	}
	body := []byte(route.Body)

	return httpserver.RequestHandlerFunc(func(_ httpserver.RequestContext, cb httpserver.ResponseReadyCallback) {
		b := httpmsg.NewResponseBuilder().Status(status)
		if route.ContentType != "" {
			b.Header("Content-Type", route.ContentType)
		}
		for name, value := range route.Headers {
			b.Header(name, value)
		}
		if len(body) > 0 {
			b.Entity(httpmsg.NewByteArrayEntity(body))
		}
		cb.ResponseReady(b.Build(), httpserver.StatusCallbackFuncs{})
	})
}
