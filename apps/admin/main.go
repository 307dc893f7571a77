package main

import (
	"context"
	"log"
	"os"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/user"
	firestorestore "github.com/darasahq/darasa/storage/store/firestore"
	"github.com/darasahq/darasa/storage/store/inmem"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.NewConfig()

	// set up document store
	store, err := setUpStore(conf)
	errAndDie(err)
	defer store.Close()

	// start CLI
	cli := commandLine{
		usrSvc: user.NewService(store, nil, conf),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func setUpStore(conf *core.Config) (core.DocumentStore, error) {
	switch conf.Store.Backend {
	case "firestore":
		return firestorestore.New(context.Background(), conf)
	default:
		return inmem.New(), nil
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
