package types

import "time"

// TCPServerSocketProperties are the TCP options applied to every listening
// socket and the connections it accepts. Zero values for the buffer sizes,
// timeouts and a nil Linger leave the operating system default in place.
type TCPServerSocketProperties struct {
	SendBufferSize    int           `yaml:"send_buffer_size" env:"SEND_BUFFER_SIZE"`
	ReceiveBufferSize int           `yaml:"receive_buffer_size" env:"RECEIVE_BUFFER_SIZE"`
	ClientTimeout     time.Duration `yaml:"client_timeout" env:"CLIENT_TIMEOUT"`
	SendTCPNoDelay    bool          `yaml:"send_tcp_no_delay" env:"SEND_TCP_NO_DELAY"`
	// Linger in seconds; nil disables SO_LINGER handling.
	Linger         *int          `yaml:"linger" env:"LINGER"`
	KeepAlive      bool          `yaml:"keep_alive" env:"KEEP_ALIVE"`
	ReuseAddress   bool          `yaml:"reuse_address" env:"REUSE_ADDRESS"`
	ReceiveBacklog int           `yaml:"receive_backlog" env:"RECEIVE_BACKLOG"`
	ServerTimeout  time.Duration `yaml:"server_timeout" env:"SERVER_TIMEOUT"`
}

// DefaultTCPServerSocketProperties returns the listener defaults: OS buffer
// sizes, TCP_NODELAY on, SO_KEEPALIVE off, SO_REUSEADDR on, a backlog of 50
// and no linger or timeouts.
func DefaultTCPServerSocketProperties() TCPServerSocketProperties {
	return TCPServerSocketProperties{
		SendTCPNoDelay: true,
		KeepAlive:      false,
		ReuseAddress:   true,
		ReceiveBacklog: 50,
	}
}
