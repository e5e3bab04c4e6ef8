package main

import (
	"log"

	"github.com/kataras/iris/v12"

	"github.com/CreatyJohnKwon/la-farfalla-sub001/internal/config"
	"github.com/CreatyJohnKwon/la-farfalla-sub001/internal/server"
)

func main() {
	cfg := config.FromEnv()

	app := iris.New()
	server.RegisterAdminRoutes(app, cfg)

	addr := cfg.AdminServer.Addr()
	log.Printf("admin server listening on %s", addr)
	if err := app.Run(iris.Addr(addr)); err != nil {
		log.Fatalf("failed to run admin server: %v", err)
	}
}
