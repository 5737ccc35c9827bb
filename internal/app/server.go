package app

import (
	"credential-manager/internal/handlers"
	"credential-manager/internal/server"
)

// RunServer builds the command API server
func (app *App) RunServer() *server.Server {
	h := handlers.New(app.Credentials, app.Flows, app.Tokens, app.Storage, app.Breaker, app.Logger)
	return server.New(h.Router(), app.Config.APIAddr(), app.Logger)
}
