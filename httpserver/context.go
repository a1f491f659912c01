package httpserver

import (
	"context"

	"github.com/BaSui01/httplistener/internal/ctxkeys"
	"github.com/BaSui01/httplistener/types"
)

// PathParam returns the value a {name} pattern segment matched for the
// request ctx belongs to.
func PathParam(ctx context.Context, name string) string {
	return ctxkeys.PathParams(ctx)[name]
}

// ConnectionIDFrom returns the id of the connection the request arrived on.
func ConnectionIDFrom(ctx context.Context) string {
	id, _ := ctxkeys.ConnectionID(ctx)
	return id
}

// ServerFrom returns the identifier of the server handling the request.
func ServerFrom(ctx context.Context) (types.ServerIdentifier, bool) {
	return ctxkeys.Server(ctx)
}
