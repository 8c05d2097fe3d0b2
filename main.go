package main

import (
	"context"
	"net/http"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
)

func main() {
	app := NewApp()

	err := wails.Run(&options.App{
		Title:  "Turo Dictation",
		Width:  1180,
		Height: 820,
		AssetServer: &assetserver.Options{
			Handler: http.FileServer(http.Dir("./frontend")),
		},
		OnStartup: app.startup,
		OnShutdown: func(context.Context) {
			app.shutdown()
		},
		Bind: []interface{}{app},
	})
	if err != nil {
		log.Error().Err(err).Msg("desktop shell exited")
		os.Exit(1)
	}
}
