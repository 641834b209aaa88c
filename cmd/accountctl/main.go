package main

import (
	"context"
	"errors"
	"log"
	"os"

	"github.com/dmitrijs2005/accounts/internal/accountctl"
	"github.com/dmitrijs2005/accounts/internal/server/config"
	"github.com/dmitrijs2005/accounts/internal/server/services"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := accountctl.NewApp(cfg)

	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := app.Run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, accountctl.ErrUsage) {
			os.Exit(2)
		}
		var se *services.Error
		if errors.As(err, &se) {
			log.Fatalf("%s: %s", se.Kind, se.Message)
		}
		log.Fatalf("%v", err)
	}

}
