// Package response writes HTTP responses to a connection as a sequence of
// asynchronous writes.
//
// A handler moves through Idle, SendingHeaders and SendingBody and ends in
// exactly one of Completed or Failed. Whatever path leads there, the body
// stream is closed once and the status callback is invoked once.
//
// 响应发送：每次写完成后才读取下一块，保证连接上最多只有一个未完成的写操作。
package response
